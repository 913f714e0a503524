package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"docgate/internal/backend"
	"docgate/internal/config"
	"docgate/internal/health"
)

func newTestServer() (*Server, *mux.Router) {
	p := backend.New(backend.Config{
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "app",
		Max:      20,
	})
	hc := health.NewChecker(p, nil, config.HealthConfig{FailureThreshold: 3})
	s := NewServer(p, hc, nil, config.ListenConfig{}, config.BackendConfig{Host: "localhost", Port: 5432, DBName: "app"})

	mr := mux.NewRouter()
	mr.HandleFunc("/status", s.statusHandler).Methods("GET")
	mr.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	mr.HandleFunc("/ready", s.readyHandler).Methods("GET")
	mr.HandleFunc("/", s.dashboardHandler).Methods("GET")
	mr.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")

	return s, mr
}

func TestStatusEndpoint(t *testing.T) {
	_, mr := newTestServer()

	req := httptest.NewRequest("GET", "/status", nil)
	rr := httptest.NewRecorder()
	mr.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := result["pool"]; !ok {
		t.Error("expected status response to include pool stats")
	}
	if _, ok := result["backend"]; !ok {
		t.Error("expected status response to include backend info")
	}
}

func TestHealthzEndpointUnknownIsHealthy(t *testing.T) {
	_, mr := newTestServer()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	mr.ServeHTTP(rr, req)

	// No health checks have run yet, so the checker reports StatusUnknown,
	// which healthzHandler treats as a 200.
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	_, mr := newTestServer()

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()
	mr.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDashboardServesHTML(t *testing.T) {
	_, mr := newTestServer()

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	mr.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("expected html content type, got %q", ct)
	}
}

func TestNoTenantEndpointsExposed(t *testing.T) {
	_, mr := newTestServer()

	req := httptest.NewRequest("GET", "/tenants", nil)
	rr := httptest.NewRecorder()
	mr.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected no /tenants route to exist, got %d", rr.Code)
	}
}
