package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/giygas/pn-calculator/calculator/entities"
)

// MockPatientStore implements PatientStore with a plain map
type MockPatientStore struct {
	patients    map[string]entities.Patient
	lastUpdated time.Time
	nextID      int
	failWrites  bool
}

func NewMockPatientStore() *MockPatientStore {
	return &MockPatientStore{patients: make(map[string]entities.Patient)}
}

func (m *MockPatientStore) Load(context.Context) error { return nil }

func (m *MockPatientStore) GetPatients() []entities.Patient {
	out := make([]entities.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockPatientStore) GetPatient(id string) (entities.Patient, bool) {
	p, ok := m.patients[id]
	return p, ok
}

func (m *MockPatientStore) GetLastUpdated() time.Time     { return m.lastUpdated }
func (m *MockPatientStore) GetServerStartTime() time.Time { return time.Time{} }

func (m *MockPatientStore) SavePatient(_ context.Context, p entities.Patient) (entities.Patient, bool, error) {
	if m.failWrites {
		return entities.Patient{}, false, &mockError{"write failed"}
	}
	_, exists := m.patients[p.ID]
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("patient-%d", m.nextID)
	}
	m.patients[p.ID] = p
	m.lastUpdated = time.Now()
	return p, !exists, nil
}

func (m *MockPatientStore) DeletePatient(_ context.Context, id string) error {
	if _, ok := m.patients[id]; !ok {
		return &mockError{"not found"}
	}
	delete(m.patients, id)
	return nil
}

func (m *MockPatientStore) ClearAll(context.Context) error {
	m.patients = make(map[string]entities.Patient)
	return nil
}

func (m *MockPatientStore) Snapshot() ([]byte, error)  { return []byte("[]"), nil }
func (m *MockPatientStore) Ping(context.Context) error { return nil }
func (m *MockPatientStore) Backend() string            { return "mock" }

// MockScheduler implements Scheduler interface for testing
type MockScheduler struct {
	started    bool
	stopped    bool
	lastBackup time.Time
}

func (m *MockScheduler) Start() error {
	if m.started {
		return &mockError{"already started"}
	}
	m.started = true
	return nil
}

func (m *MockScheduler) Stop() {
	m.stopped = true
}

func (m *MockScheduler) LastBackup() time.Time { return m.lastBackup }

// MockSummarizer implements Summarizer interface for testing
type MockSummarizer struct {
	enabled bool
}

func (m *MockSummarizer) Summarize(_ context.Context, req entities.SummaryRequest) string {
	if !m.enabled {
		return "unavailable"
	}
	return req.FirstName + " " + req.LastName + ": stable"
}

func (m *MockSummarizer) Enabled() bool { return m.enabled }

// MockExporter implements SheetExporter interface for testing
type MockExporter struct {
	exported []string
}

func (m *MockExporter) Export(_ context.Context, p entities.Patient) (string, error) {
	location := "/exports/" + p.ID + ".txt"
	m.exported = append(m.exported, location)
	return location, nil
}

// MockHTTPHandler implements HTTPHandler interface for testing
type MockHTTPHandler struct {
	responseCode int
	responseBody string
}

func (m *MockHTTPHandler) respond(w http.ResponseWriter) {
	w.WriteHeader(m.responseCode)
	_, _ = w.Write([]byte(m.responseBody))
}

func (m *MockHTTPHandler) Compute(w http.ResponseWriter, r *http.Request)        { m.respond(w) }
func (m *MockHTTPHandler) GlucoseBlend(w http.ResponseWriter, r *http.Request)   { m.respond(w) }
func (m *MockHTTPHandler) ListDrugs(w http.ResponseWriter, r *http.Request)      { m.respond(w) }
func (m *MockHTTPHandler) DrugTitration(w http.ResponseWriter, r *http.Request)  { m.respond(w) }
func (m *MockHTTPHandler) Dilution(w http.ResponseWriter, r *http.Request)       { m.respond(w) }
func (m *MockHTTPHandler) ListComponents(w http.ResponseWriter, r *http.Request) { m.respond(w) }
func (m *MockHTTPHandler) ListPatients(w http.ResponseWriter, r *http.Request)   { m.respond(w) }
func (m *MockHTTPHandler) CreatePatient(w http.ResponseWriter, r *http.Request)  { m.respond(w) }
func (m *MockHTTPHandler) GetPatient(w http.ResponseWriter, r *http.Request)     { m.respond(w) }
func (m *MockHTTPHandler) UpdatePatient(w http.ResponseWriter, r *http.Request)  { m.respond(w) }
func (m *MockHTTPHandler) DeletePatient(w http.ResponseWriter, r *http.Request)  { m.respond(w) }
func (m *MockHTTPHandler) ClearPatients(w http.ResponseWriter, r *http.Request)  { m.respond(w) }
func (m *MockHTTPHandler) PatientSheet(w http.ResponseWriter, r *http.Request)   { m.respond(w) }
func (m *MockHTTPHandler) PatientSummary(w http.ResponseWriter, r *http.Request) { m.respond(w) }
func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request)    { m.respond(w) }

// MockHealthChecker implements HealthChecker interface for testing
type MockHealthChecker struct {
	status     string
	details    map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck(context.Context) (string, map[string]any, int) {
	return m.status, m.details, m.httpStatus
}

// MockDataValidator implements DataValidator interface for testing
type MockDataValidator struct {
	shouldFail bool
}

func (m *MockDataValidator) check(what string) error {
	if m.shouldFail {
		return fmt.Errorf("%s validation failed", what)
	}
	return nil
}

func (m *MockDataValidator) ValidateInput(string) error                      { return m.check("input") }
func (m *MockDataValidator) ValidateNutrition(*entities.NutritionData) error { return m.check("nutrition") }
func (m *MockDataValidator) ValidatePatient(*entities.Patient) error         { return m.check("patient") }
func (m *MockDataValidator) ValidatePatientID(string) error                  { return m.check("id") }

// mockError is a simple error type for testing
type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}

var (
	_ PatientStore  = (*MockPatientStore)(nil)
	_ Scheduler     = (*MockScheduler)(nil)
	_ Summarizer    = (*MockSummarizer)(nil)
	_ SheetExporter = (*MockExporter)(nil)
	_ HTTPHandler   = (*MockHTTPHandler)(nil)
	_ HealthChecker = (*MockHealthChecker)(nil)
	_ DataValidator = (*MockDataValidator)(nil)
)

func TestPatientStoreInterface(t *testing.T) {
	ctx := context.Background()
	store := NewMockPatientStore()

	saved, created, err := store.SavePatient(ctx, entities.Patient{FirstName: "Luca", LastName: "Verdi"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !created || saved.ID == "" {
		t.Errorf("Expected a new patient with an id, got %+v (created=%v)", saved, created)
	}

	saved.LastName = "Bianchi"
	if _, created, _ = store.SavePatient(ctx, saved); created {
		t.Error("Saving a known id should replace the record")
	}
	if got, _ := store.GetPatient(saved.ID); got.LastName != "Bianchi" {
		t.Errorf("Expected updated last name, got %s", got.LastName)
	}

	if err := store.DeletePatient(ctx, saved.ID); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := store.DeletePatient(ctx, saved.ID); err == nil {
		t.Error("Expected error deleting an unknown patient")
	}

	store.failWrites = true
	if _, _, err := store.SavePatient(ctx, entities.Patient{}); err == nil {
		t.Error("Expected write failure")
	}
}

func TestSchedulerInterface(t *testing.T) {
	scheduler := &MockScheduler{}

	if err := scheduler.Start(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !scheduler.started {
		t.Error("Scheduler should be started")
	}
	if err := scheduler.Start(); err == nil {
		t.Error("Starting twice should fail")
	}

	scheduler.Stop()
	if !scheduler.stopped {
		t.Error("Scheduler should be stopped")
	}
	if !scheduler.LastBackup().IsZero() {
		t.Error("No backup has run yet")
	}
}

func TestSummarizerInterface(t *testing.T) {
	req := entities.SummaryRequest{FirstName: "Luca", LastName: "Verdi"}

	var s Summarizer = &MockSummarizer{enabled: true}
	if got := s.Summarize(context.Background(), req); got != "Luca Verdi: stable" {
		t.Errorf("Unexpected summary %q", got)
	}

	s = &MockSummarizer{}
	if s.Enabled() {
		t.Error("Summarizer should be disabled")
	}
	if got := s.Summarize(context.Background(), req); got != "unavailable" {
		t.Errorf("Disabled summarizer should still answer, got %q", got)
	}
}

func TestHTTPHandlerInterface(t *testing.T) {
	handler := &MockHTTPHandler{
		responseCode: http.StatusOK,
		responseBody: "test response",
	}

	routes := map[string]http.HandlerFunc{
		"/v1/compute":  handler.Compute,
		"/v1/patients": handler.ListPatients,
		"/health":      handler.HealthCheck,
	}

	for path, fn := range routes {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		fn(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusOK, w.Code)
		}
		if w.Body.String() != "test response" {
			t.Errorf("%s: expected body 'test response', got '%s'", path, w.Body.String())
		}
	}
}

func TestHealthCheckerInterface(t *testing.T) {
	checker := &MockHealthChecker{
		status:     "degraded",
		details:    map[string]any{"patients": 3},
		httpStatus: http.StatusOK,
	}

	status, details, code := checker.HealthCheck(context.Background())
	if status != "degraded" || code != http.StatusOK {
		t.Errorf("Unexpected result %s/%d", status, code)
	}
	if details["patients"] != 3 {
		t.Errorf("Expected 3 patients, got %v", details["patients"])
	}
}

func TestDataValidatorInterface(t *testing.T) {
	validator := &MockDataValidator{shouldFail: false}
	p := &entities.Patient{FirstName: "Luca"}

	if err := validator.ValidatePatient(p); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	validator = &MockDataValidator{shouldFail: true}
	if err := validator.ValidatePatient(p); err == nil {
		t.Error("Expected validation error but got none")
	}
}

// Example of how interfaces enable dependency injection
type Service struct {
	store     PatientStore
	validator DataValidator
	exporter  SheetExporter
}

func (s *Service) Admit(ctx context.Context, p entities.Patient) (string, error) {
	if err := s.validator.ValidatePatient(&p); err != nil {
		return "", err
	}
	saved, _, err := s.store.SavePatient(ctx, p)
	if err != nil {
		return "", err
	}
	return s.exporter.Export(ctx, saved)
}

func TestDependencyInjection(t *testing.T) {
	exporter := &MockExporter{}
	service := &Service{
		store:     NewMockPatientStore(),
		validator: &MockDataValidator{},
		exporter:  exporter,
	}

	location, err := service.Admit(context.Background(), entities.Patient{FirstName: "Luca"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if location != "/exports/patient-1.txt" || len(exporter.exported) != 1 {
		t.Errorf("Unexpected export %q (%d calls)", location, len(exporter.exported))
	}

	service.validator = &MockDataValidator{shouldFail: true}
	if _, err := service.Admit(context.Background(), entities.Patient{}); err == nil {
		t.Error("Invalid patients must not be stored")
	}

	var me *mockError
	service.validator = &MockDataValidator{}
	service.store.(*MockPatientStore).failWrites = true
	if _, err := service.Admit(context.Background(), entities.Patient{}); !errors.As(err, &me) {
		t.Errorf("Expected store error, got %v", err)
	}
}
