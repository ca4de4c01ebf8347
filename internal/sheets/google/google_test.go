package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{ServiceAccountJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: t.TempDir() + "/missing.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetName: "Transactions"}
	if _, err := c.AppendTransaction(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected error with nil service")
	}
	if err := c.EnsureHeader(context.Background()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestRow(t *testing.T) {
	tx := core.Transaction{
		ID:       12,
		UserID:   7,
		Amount:   decimal.RequireFromString("50.5"),
		Category: core.NewCategory("food"),
		Currency: "RUB",
		Date:     time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	got := Row(tx)
	want := []any{int64(12), "2025-03-10 09:30:00", int64(7), "50.5", "food", "expense", "RUB"}
	if len(got) != len(Header) {
		t.Fatalf("row has %d columns, header has %d", len(got), len(Header))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: got %v, want %v", i, got[i], want[i])
		}
	}

	tx.IsIncome = true
	tx.Category = core.Category{}
	got = Row(tx)
	if got[4] != "" || got[5] != "income" {
		t.Errorf("unexpected income row %v", got)
	}
}

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	header   [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		row := len(f.appended) + 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sid",
			"updates": map[string]any{
				"updatedRange": "Transactions!A" + strconv.Itoa(row) + ":G" + strconv.Itoa(row),
				"updatedRows":  1,
			},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Transactions!A1:G1", "values": f.header})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.header = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	default:
		http.NotFound(w, r)
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, "sid", ""), fake
}

func TestAppendTransaction(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	for i := int64(1); i <= 2; i++ {
		ref, err := c.AppendTransaction(ctx, core.Transaction{ID: i, UserID: 7, Amount: decimal.NewFromInt(i * 10), Currency: "RUB"})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		want := "Transactions!A" + strconv.Itoa(int(i)+1) + ":G" + strconv.Itoa(int(i)+1)
		if ref != want {
			t.Fatalf("ref = %q, want %q", ref, want)
		}
	}
	if len(fake.appended) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(fake.appended))
	}
	if fake.appended[1][3] != "20" {
		t.Fatalf("unexpected amount cell %v", fake.appended[1][3])
	}
}

func TestEnsureHeader(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if len(fake.header) != 1 || len(fake.header[0]) != len(Header) || fake.header[0][0] != "ID" {
		t.Fatalf("unexpected header %v", fake.header)
	}
	// Second call finds the header and leaves it alone.
	fake.header[0][0] = "kept"
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if fake.header[0][0] != "kept" {
		t.Fatal("existing header was overwritten")
	}
}
