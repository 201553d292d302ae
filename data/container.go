// Package data provides thread-safe storage of the patient collection.
// Readers load an immutable snapshot through atomic values; writers are
// serialized, persist the whole collection as one blob and only then swap
// the snapshot in, so a failed write never shows up to readers.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/storage"
)

// StorageKey is the blob the collection is persisted under. Collections
// written by earlier releases use the same key and load unchanged.
const StorageKey = "meddash_patients_v1"

// ErrPatientNotFound is returned when deleting an unknown patient
var ErrPatientNotFound = errors.New("patient not found")

// Compile-time check to ensure PatientContainer implements PatientStore
var _ interfaces.PatientStore = (*PatientContainer)(nil)

// PatientContainer holds the patient collection, newest first
type PatientContainer struct {
	store interfaces.BlobStore

	snapshot        atomic.Value // *collection
	lastUpdated     atomic.Value // time.Time
	serverStartTime atomic.Value // time.Time

	writeMu sync.Mutex
	now     func() time.Time
	newID   func() string
}

// collection is one published version of the patient list and its id index
type collection struct {
	patients []entities.Patient
	index    map[string]int
}

// NewPatientContainer creates an empty container persisting to store
func NewPatientContainer(store interfaces.BlobStore) *PatientContainer {
	pc := &PatientContainer{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	pc.snapshot.Store(&collection{patients: make([]entities.Patient, 0), index: make(map[string]int)})
	pc.lastUpdated.Store(time.Time{})
	pc.serverStartTime.Store(time.Time{})
	return pc
}

// Load replaces the in-memory collection with the stored one. A missing blob
// is an empty collection; a blob that does not decode is discarded with a
// warning so the service can still start.
func (pc *PatientContainer) Load(ctx context.Context) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	raw, err := pc.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		pc.swap(make([]entities.Patient, 0))
		logging.Info("No stored patients found, starting empty", "backend", pc.store.Name())
		return nil
	}
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}

	var patients []entities.Patient
	if err := json.Unmarshal(raw, &patients); err != nil {
		logging.Warn("Stored patient collection is unreadable, starting empty",
			"backend", pc.store.Name(), "error", err)
		pc.swap(make([]entities.Patient, 0))
		return nil
	}
	if patients == nil {
		patients = make([]entities.Patient, 0)
	}
	for i := range patients {
		patients[i].Nutrition.Normalize()
	}

	pc.swap(patients)
	logging.Info("Patients loaded", "count", len(patients), "backend", pc.store.Name())
	return nil
}

// GetPatients returns the collection, newest first
func (pc *PatientContainer) GetPatients() []entities.Patient {
	current := pc.current()
	out := make([]entities.Patient, len(current))
	copy(out, current)
	return out
}

// GetPatient returns the patient with the given id
func (pc *PatientContainer) GetPatient(id string) (entities.Patient, bool) {
	c := pc.collection()
	i, ok := c.index[id]
	if !ok {
		return entities.Patient{}, false
	}
	return c.patients[i], true
}

// Count returns the number of stored patients
func (pc *PatientContainer) Count() int {
	return len(pc.current())
}

// SavePatient stores p. A patient with an empty or unknown id is created:
// it gets an id when it has none, a creation time and goes to the front of
// the collection. A known id replaces the existing record in place and keeps
// its creation time.
func (pc *PatientContainer) SavePatient(ctx context.Context, p entities.Patient) (entities.Patient, bool, error) {
	p = clonePatient(p)
	p.Nutrition.Normalize()

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	c := pc.collection()
	current := c.patients
	i, exists := c.index[p.ID]
	if p.ID == "" {
		exists = false
	}

	var next []entities.Patient
	if exists {
		p.CreatedAt = current[i].CreatedAt
		next = make([]entities.Patient, len(current))
		copy(next, current)
		next[i] = p
	} else {
		if p.ID == "" {
			p.ID = pc.newID()
		}
		if p.CreatedAt == 0 {
			p.CreatedAt = pc.now().UnixMilli()
		}
		next = make([]entities.Patient, 0, len(current)+1)
		next = append(next, p)
		next = append(next, current...)
	}

	if err := pc.persist(ctx, next); err != nil {
		return entities.Patient{}, false, err
	}
	pc.swap(next)

	logging.Debug("Patient saved", "patient_id", p.ID, "created", !exists)
	return p, !exists, nil
}

// DeletePatient removes the patient with the given id
func (pc *PatientContainer) DeletePatient(ctx context.Context, id string) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	c := pc.collection()
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}

	current := c.patients
	next := make([]entities.Patient, 0, len(current)-1)
	next = append(next, current[:i]...)
	next = append(next, current[i+1:]...)

	if err := pc.persist(ctx, next); err != nil {
		return err
	}
	pc.swap(next)

	logging.Debug("Patient deleted", "patient_id", id)
	return nil
}

// ClearAll removes every patient and the stored blob itself
func (pc *PatientContainer) ClearAll(ctx context.Context) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	if err := pc.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear patients: %w", err)
	}
	pc.swap(make([]entities.Patient, 0))

	logging.Info("Patient collection cleared")
	return nil
}

// Snapshot returns the collection encoded the way it is stored
func (pc *PatientContainer) Snapshot() ([]byte, error) {
	return json.Marshal(pc.current())
}

// GetLastUpdated returns the time of the last load or write
func (pc *PatientContainer) GetLastUpdated() time.Time {
	if v := pc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// SetServerStartTime sets the server start time
func (pc *PatientContainer) SetServerStartTime(startTime time.Time) {
	pc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (pc *PatientContainer) GetServerStartTime() time.Time {
	if v := pc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// Ping reports whether the backing store is reachable
func (pc *PatientContainer) Ping(ctx context.Context) error {
	return pc.store.Ping(ctx)
}

// Backend names the backing store
func (pc *PatientContainer) Backend() string {
	return pc.store.Name()
}

func (pc *PatientContainer) collection() *collection {
	if v := pc.snapshot.Load(); v != nil {
		if c, ok := v.(*collection); ok {
			return c
		}
	}

	logging.Warn("Patient collection is empty or invalid")
	return &collection{patients: []entities.Patient{}, index: map[string]int{}}
}

func (pc *PatientContainer) current() []entities.Patient {
	return pc.collection().patients
}

func (pc *PatientContainer) persist(ctx context.Context, patients []entities.Patient) error {
	raw, err := json.Marshal(patients)
	if err != nil {
		return fmt.Errorf("encode patients: %w", err)
	}
	if err := pc.store.Put(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("persist patients: %w", err)
	}
	return nil
}

// swap publishes a new snapshot (caller must hold writeMu)
func (pc *PatientContainer) swap(patients []entities.Patient) {
	index := make(map[string]int, len(patients))
	for i, p := range patients {
		index[p.ID] = i
	}
	pc.snapshot.Store(&collection{patients: patients, index: index})
	pc.lastUpdated.Store(pc.now())
}

// clonePatient detaches the drug orders from the caller's map
func clonePatient(p entities.Patient) entities.Patient {
	if p.Nutrition.Drugs != nil {
		p.Nutrition.Drugs = maps.Clone(p.Nutrition.Drugs)
	}
	return p
}
