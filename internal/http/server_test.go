package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(":0")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Fatalf("missing request id header")
	}
}

func TestReadyz(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]error
		code   int
		body   string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"all pass", map[string]error{"ledger": nil, "amqp": nil}, http.StatusOK, "ready"},
		{"ledger down", map[string]error{"ledger": errors.New("database is closed")}, http.StatusServiceUnavailable, "ledger: not ready"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(":0")
			for name, err := range tc.checks {
				err := err
				srv.AddCheck(name, CheckerFunc(func(context.Context) error { return err }))
			}
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.code {
				t.Fatalf("status=%d, want %d", rr.Code, tc.code)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tc.body {
				t.Fatalf("body=%q, want %q", got, tc.body)
			}
		})
	}
}

func TestStatusz(t *testing.T) {
	srv := NewServer(":0")
	srv.AddGauge("active_sessions", func() int64 { return 3 })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/statusz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var values map[string]int64
	if err := json.Unmarshal(rr.Body.Bytes(), &values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if values["active_sessions"] != 3 {
		t.Fatalf("unexpected values %v", values)
	}
	if _, ok := values["uptime_seconds"]; !ok {
		t.Fatal("missing uptime")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	srv := NewServer(":0")
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
