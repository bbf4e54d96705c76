package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/api/health"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store := storage.NewMemoryStorage()
	engine, err := alerting.NewEngine(store, alerting.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	server, err := New(&Config{Address: ":0"}, store, engine, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return server
}

func TestNewRequiresCollaborators(t *testing.T) {
	store := storage.NewMemoryStorage()
	engine, _ := alerting.NewEngine(store, alerting.DefaultConfig())

	if _, err := New(nil, store, engine); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{}, nil, engine); err == nil {
		t.Error("expected error for nil storage")
	}
	if _, err := New(&Config{}, store, nil); err == nil {
		t.Error("expected error for nil engine")
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	if cfg.Address != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Address)
	}
	if cfg.RequestTimeout == 0 {
		t.Error("RequestTimeout not defaulted")
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := newTestServer(t)
	router := server.setupRouter()

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReadyReportsFailingChecker(t *testing.T) {
	server := newTestServer(t)
	server.RegisterHealthChecker(health.NewChecker("database", func(ctx context.Context) error {
		return fmt.Errorf("connection refused")
	}))
	router := server.setupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp health.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "not_ready" || resp.Checks["database"] != "connection refused" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)
	router := server.setupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebSocketRouteMountedOnlyWithHandler(t *testing.T) {
	plain := newTestServer(t)
	rec := httptest.NewRecorder()
	plain.setupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/ws without handler status = %d, want 404", rec.Code)
	}

	marker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	withWS := newTestServer(t, WithWebSocket(marker))
	rec = httptest.NewRecorder()
	withWS.setupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("/ws with handler status = %d, want 418", rec.Code)
	}
}
