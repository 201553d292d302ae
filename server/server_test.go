package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/pn-calculator/config"
	"github.com/giygas/pn-calculator/data"
	"github.com/giygas/pn-calculator/handlers"
	"github.com/giygas/pn-calculator/health"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/storage"
	"github.com/giygas/pn-calculator/summary"
	"github.com/giygas/pn-calculator/validation"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Address:        "127.0.0.1",
		Env:            config.EnvTest,
		LogLevel:       "info",
		MaxRequestBody: 1048576,
		MaxHeaderSize:  1048576,
		CORSOrigins:    []string{"https://ward.example"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logging.InitLogger("")

	store := data.NewPatientContainer(storage.NewMemoryBlobStore())
	store.SetServerStartTime(time.Now())

	h := handlers.NewHTTPHandler(handlers.Dependencies{
		Store:      store,
		Validator:  validation.NewDataValidator(),
		Summarizer: summary.New(summary.Options{}),
		Health:     health.NewHealthChecker(store, nil),
	})

	s := NewServer(testConfig(), h)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	if s.server.Addr != "127.0.0.1:0" {
		t.Errorf("Unexpected address %s", s.server.Addr)
	}
	if s.server.ReadTimeout == 0 || s.server.WriteTimeout == 0 || s.server.IdleTimeout == 0 {
		t.Error("Server timeouts should be set")
	}
	if s.Handler() == nil {
		t.Fatal("Handler should not be nil")
	}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"compute", http.MethodPost, "/v1/compute", `{"tphMl":10}`, http.StatusOK},
		{"blend", http.MethodGet, "/v1/glucose/blend?percent=15&volume=500", "", http.StatusOK},
		{"drugs", http.MethodGet, "/v1/drugs", "", http.StatusOK},
		{"drug titration", http.MethodGet, "/v1/drugs/lasix?dose=2", "", http.StatusOK},
		{"dilution", http.MethodGet, "/v1/dilution?speed=0.5", "", http.StatusOK},
		{"components", http.MethodGet, "/v1/components", "", http.StatusOK},
		{"list patients", http.MethodGet, "/v1/patients", "", http.StatusOK},
		{"create patient", http.MethodPost, "/v1/patients", `{"firstName":"Luca","lastName":"Verdi","birthDate":"2025-01-10"}`, http.StatusCreated},
		{"unknown patient", http.MethodGet, "/v1/patients/3f1c6a2e-8d4b-4c1e-9a77-0b5f2d9e4c10", "", http.StatusNotFound},
		{"unknown patient sheet", http.MethodGet, "/v1/patients/3f1c6a2e-8d4b-4c1e-9a77-0b5f2d9e4c10/sheet", "", http.StatusNotFound},
		{"clear without confirm", http.MethodDelete, "/v1/patients", "", http.StatusBadRequest},
		{"trailing slash", http.MethodGet, "/v1/drugs/", "", http.StatusMovedPermanently},
		{"unknown route", http.MethodGet, "/v1/unknown", "", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/v1/drugs", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("%s %s: expected %d, got %d: %s", tt.method, tt.path, tt.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPatientLifecycleThroughRouter(t *testing.T) {
	s := newTestServer(t)
	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		return rr
	}

	rr := serve(http.MethodPost, "/v1/patients", `{"firstName":"Luca","lastName":"Verdi","birthDate":"2025-01-10","nutrition":{"tphMl":20}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Create failed: %d %s", rr.Code, rr.Body.String())
	}
	idStart := strings.Index(rr.Body.String(), `"id":"`) + len(`"id":"`)
	id := rr.Body.String()[idStart : idStart+36]

	if rr := serve(http.MethodGet, "/v1/patients/"+id+"/sheet", ""); rr.Code != http.StatusOK {
		t.Errorf("Sheet failed: %d", rr.Code)
	}

	rr = serve(http.MethodPost, "/v1/patients/"+id+"/summary", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), summary.FailureResponse) {
		t.Errorf("Disabled summarizer should answer with the failure sentence: %d %s", rr.Code, rr.Body.String())
	}

	if rr := serve(http.MethodDelete, "/v1/patients/"+id, ""); rr.Code != http.StatusNoContent {
		t.Errorf("Delete failed: %d", rr.Code)
	}
	if rr := serve(http.MethodGet, "/v1/patients/"+id, ""); rr.Code != http.StatusNotFound {
		t.Errorf("Deleted patient still served: %d", rr.Code)
	}
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	s := newTestServer(t)

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/drugs/dopamina?dose=4", nil))
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/compute", strings.NewReader(`{"tphMl":1}`)))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rr.Body.String(), `path="/v1/drugs/{drug}"`) {
		t.Error("Metrics should be labelled with the route pattern")
	}
	if !strings.Contains(rr.Body.String(), "pn_computations_total") {
		t.Error("Domain metrics should be exposed")
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://ward.example", true},
		{"https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/v1/patients", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("Expected origin %s to be allowed, got %q", tt.origin, got)
			}
			if !tt.allowed && got != "" {
				t.Errorf("Expected origin %s to be rejected, got %q", tt.origin, got)
			}
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start should return nil after a graceful shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not stop")
	}
}
