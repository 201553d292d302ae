// Package interfaces defines the contracts between the patient store, the
// storage backends, the HTTP layer and the background jobs so each side can
// be replaced by a mock in tests.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/pn-calculator/calculator/entities"
)

// BlobStore is a key-value store of opaque JSON documents.
// Get returns storage.ErrNotFound for a missing key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	// Name identifies the backend in health reports
	Name() string
	Close() error
}

// PatientStore defines the contract for the patient collection.
// Reads come from an in-memory snapshot, writes persist the whole collection.
type PatientStore interface {
	Load(ctx context.Context) error

	GetPatients() []entities.Patient
	GetPatient(id string) (entities.Patient, bool)
	GetLastUpdated() time.Time
	GetServerStartTime() time.Time

	// SavePatient creates p when its id is empty or unknown and replaces it
	// otherwise. The stored record is returned with created set for new ones.
	SavePatient(ctx context.Context, p entities.Patient) (saved entities.Patient, created bool, err error)
	DeletePatient(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error

	// Snapshot returns the collection as stored
	Snapshot() ([]byte, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
	// Backend names the backing store
	Backend() string
}

// SheetExporter writes the printable sheet of a patient somewhere durable
type SheetExporter interface {
	Export(ctx context.Context, p entities.Patient) (location string, err error)
}

// Summarizer produces a short clinical summary. It never fails: errors are
// reported as a fixed user-facing sentence.
type Summarizer interface {
	Summarize(ctx context.Context, req entities.SummaryRequest) string
	Enabled() bool
}

// Scheduler defines the contract for background jobs
type Scheduler interface {
	Start() error
	Stop()
	LastBackup() time.Time
}

// HealthChecker defines the contract for health check functionality
type HealthChecker interface {
	// HealthCheck returns the overall status, details and the HTTP status to answer with
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}

// HTTPHandler defines the contract for HTTP request handlers
type HTTPHandler interface {
	Compute(w http.ResponseWriter, r *http.Request)
	GlucoseBlend(w http.ResponseWriter, r *http.Request)
	ListDrugs(w http.ResponseWriter, r *http.Request)
	DrugTitration(w http.ResponseWriter, r *http.Request)
	Dilution(w http.ResponseWriter, r *http.Request)
	ListComponents(w http.ResponseWriter, r *http.Request)

	ListPatients(w http.ResponseWriter, r *http.Request)
	CreatePatient(w http.ResponseWriter, r *http.Request)
	GetPatient(w http.ResponseWriter, r *http.Request)
	UpdatePatient(w http.ResponseWriter, r *http.Request)
	DeletePatient(w http.ResponseWriter, r *http.Request)
	ClearPatients(w http.ResponseWriter, r *http.Request)
	PatientSheet(w http.ResponseWriter, r *http.Request)
	PatientSummary(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// DataValidator defines the contract for input validation
type DataValidator interface {
	// ValidateInput validates free text typed by a user
	ValidateInput(input string) error
	ValidateNutrition(n *entities.NutritionData) error
	ValidatePatient(p *entities.Patient) error
	ValidatePatientID(id string) error
}
