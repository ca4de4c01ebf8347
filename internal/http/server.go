// Package http serves the process health endpoints.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

const readyTimeout = 2 * time.Second

// Checker is a dependency that must be reachable for the process to be
// ready.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Gauge reports a point-in-time number for /statusz.
type Gauge func() int64

type Server struct {
	http.Server

	mu       sync.RWMutex
	checks   map[string]Checker
	gauges   map[string]Gauge
	started  time.Time
	shutdown sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		checks:  map[string]Checker{},
		gauges:  map[string]Gauge{},
		started: time.Now(),
	}

	mux.HandleFunc("/healthz", withLogging(handleHealth))
	mux.HandleFunc("/readyz", withLogging(s.handleReady))
	mux.HandleFunc("/statusz", withLogging(s.handleStatus))
	return s
}

// AddCheck registers a readiness dependency under name.
func (s *Server) AddCheck(name string, c Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = c
}

// AddGauge exposes g on /statusz under name.
func (s *Server) AddGauge(name string, g Gauge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[name] = g
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	checks := make(map[string]Checker, len(s.checks))
	for name, c := range s.checks {
		names = append(names, name)
		checks[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		if err := checks[name].Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "check", name, "error", err)
			http.Error(w, fmt.Sprintf("%s: not ready", name), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	values := make(map[string]int64, len(s.gauges)+1)
	for name, g := range s.gauges {
		values[name] = g()
	}
	s.mu.RUnlock()
	values["uptime_seconds"] = int64(time.Since(s.started).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(values); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode status", "error", err)
	}
}

// withLogging logs each request with a request id and its duration.
func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.DebugContext(r.Context(), "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
