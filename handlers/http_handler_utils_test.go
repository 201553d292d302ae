package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/data"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/storage"
	"github.com/giygas/pn-calculator/validation"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

// TestDataFactory creates consistent test data across all tests
type TestDataFactory struct{}

func NewTestDataFactory() *TestDataFactory {
	return &TestDataFactory{}
}

// CreatePatient creates a patient with a small realistic prescription
func (f *TestDataFactory) CreatePatient(firstName, lastName string) entities.Patient {
	n := entities.DefaultNutrition()
	n.GlucosePercent = 10
	n.GlucoseMl = 50
	n.TphMl = 10
	n.NaClMeq = 4
	n.Drugs[entities.Dopamina] = entities.DrugOrder{Dose: 40, Speed: 0.5}
	return entities.Patient{
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: "2025-03-01",
		Nutrition: n,
	}
}

// CreatePatientContainer creates a container holding the given patients in
// an in-memory blob store
func (f *TestDataFactory) CreatePatientContainer(t *testing.T, patients ...entities.Patient) *data.PatientContainer {
	t.Helper()
	pc := data.NewPatientContainer(storage.NewMemoryBlobStore())
	for _, p := range patients {
		if _, _, err := pc.SavePatient(context.Background(), p); err != nil {
			t.Fatalf("Failed to seed patient: %v", err)
		}
	}
	return pc
}

// ============================================================================
// MOCKS
// ============================================================================

// failingPatientStore answers reads from a real container and fails writes
type failingPatientStore struct {
	*data.PatientContainer
	err error
}

func (s *failingPatientStore) SavePatient(context.Context, entities.Patient) (entities.Patient, bool, error) {
	return entities.Patient{}, false, s.err
}

func (s *failingPatientStore) DeletePatient(context.Context, string) error { return s.err }

func (s *failingPatientStore) ClearAll(context.Context) error { return s.err }

// mockExporter records the exported patients
type mockExporter struct {
	mu       sync.Mutex
	location string
	err      error
	exported []entities.Patient
}

func (m *mockExporter) Export(_ context.Context, p entities.Patient) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exported = append(m.exported, p)
	if m.err != nil {
		return "", m.err
	}
	return m.location, nil
}

func (m *mockExporter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exported)
}

// mockSummarizer returns a canned summary and keeps the last request
type mockSummarizer struct {
	text    string
	enabled bool
	lastReq entities.SummaryRequest
}

func (m *mockSummarizer) Summarize(_ context.Context, req entities.SummaryRequest) string {
	m.lastReq = req
	return m.text
}

func (m *mockSummarizer) Enabled() bool { return m.enabled }

// mockHealthChecker returns a fixed health report
type mockHealthChecker struct {
	status     string
	data       map[string]any
	httpStatus int
}

func (m *mockHealthChecker) HealthCheck(context.Context) (string, map[string]any, int) {
	return m.status, m.data, m.httpStatus
}

var (
	_ interfaces.PatientStore  = (*failingPatientStore)(nil)
	_ interfaces.SheetExporter = (*mockExporter)(nil)
	_ interfaces.Summarizer    = (*mockSummarizer)(nil)
	_ interfaces.HealthChecker = (*mockHealthChecker)(nil)
)

// ============================================================================
// HELPERS
// ============================================================================

// testEnv bundles a handler, its router and the mocks behind it
type testEnv struct {
	handler    *HTTPHandlerImpl
	router     chi.Router
	store      interfaces.PatientStore
	exporter   *mockExporter
	summarizer *mockSummarizer
	health     *mockHealthChecker
}

func newTestEnv(t *testing.T, store interfaces.PatientStore) *testEnv {
	t.Helper()
	if store == nil {
		store = NewTestDataFactory().CreatePatientContainer(t)
	}

	env := &testEnv{
		store:      store,
		exporter:   &mockExporter{location: "exports/sheet.txt"},
		summarizer: &mockSummarizer{text: "Paziente stabile.", enabled: true},
		health:     &mockHealthChecker{status: "healthy", data: map[string]any{"patients": 0}, httpStatus: http.StatusOK},
	}
	env.handler = NewHTTPHandler(Dependencies{
		Store:        store,
		Validator:    validation.NewDataValidator(),
		Exporter:     env.exporter,
		Summarizer:   env.summarizer,
		Health:       env.health,
		ExportOnSave: true,
	})
	env.router = newTestRouter(env.handler)
	return env
}

func newTestRouter(h interfaces.HTTPHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/compute", h.Compute)
		r.Get("/glucose/blend", h.GlucoseBlend)
		r.Get("/drugs", h.ListDrugs)
		r.Get("/drugs/{drug}", h.DrugTitration)
		r.Get("/dilution", h.Dilution)
		r.Get("/components", h.ListComponents)

		r.Get("/patients", h.ListPatients)
		r.Post("/patients", h.CreatePatient)
		r.Delete("/patients", h.ClearPatients)
		r.Get("/patients/{id}", h.GetPatient)
		r.Put("/patients/{id}", h.UpdatePatient)
		r.Delete("/patients/{id}", h.DeletePatient)
		r.Get("/patients/{id}/sheet", h.PatientSheet)
		r.Post("/patients/{id}/summary", h.PatientSummary)
	})
	return r
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

var errStoreDown = errors.New("store unavailable")
