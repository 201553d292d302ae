// Package scheduler runs the periodic jobs of the service: the daily backup
// of the patient collection and an hourly check that the storage backend is
// still reachable.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const (
	backupPrefix = "patients-"
	backupSuffix = ".json"
	backupLayout = "20060102T150405.000"

	jobTimeout = 30 * time.Second
)

// Options configures the jobs. An empty BackupDir or a zero Retention
// disables backups; the store monitor always runs.
type Options struct {
	BackupDir string
	BackupAt  string // HH:MM, local time
	Retention int
}

// Scheduler handles backups and store monitoring using dependency injection
type Scheduler struct {
	store     interfaces.PatientStore
	opts      Options
	scheduler *gocron.Scheduler

	lastBackup atomic.Value // time.Time
	backupMu   sync.Mutex
	now        func() time.Time
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.PatientStore, opts Options) *Scheduler {
	s := &Scheduler{
		store:     store,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
		now:       time.Now,
	}
	s.lastBackup.Store(time.Time{})
	return s
}

// BackupsEnabled reports whether the daily backup job is scheduled
func (s *Scheduler) BackupsEnabled() bool {
	return s.opts.BackupDir != "" && s.opts.Retention > 0
}

// Start schedules the jobs and starts the scheduler in the background
func (s *Scheduler) Start() error {
	if s.BackupsEnabled() {
		if err := os.MkdirAll(s.opts.BackupDir, 0o755); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}

		_, err := s.scheduler.Every(1).Day().At(s.opts.BackupAt).SingletonMode().Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := s.RunBackup(ctx); err != nil {
				logging.Error("Scheduled backup failed", "error", err)
			}
		})
		if err != nil {
			logging.Error("Failed to schedule backups", "error", err)
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
		logging.Info("Daily backup scheduled", "at", s.opts.BackupAt, "dir", s.opts.BackupDir, "retention", s.opts.Retention)
	}

	_, err := s.scheduler.Every(1).Hour().WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_ = s.checkStore(ctx)
	})
	if err != nil {
		logging.Error("Failed to schedule store monitoring", "error", err)
		return fmt.Errorf("failed to schedule store monitoring: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// LastBackup returns the time of the last successful backup
func (s *Scheduler) LastBackup() time.Time {
	if v := s.lastBackup.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// RunBackup writes the patient collection to a timestamped file in the
// backup directory and prunes the files beyond the retention count
func (s *Scheduler) RunBackup(ctx context.Context) (string, error) {
	if !s.BackupsEnabled() {
		return "", errors.New("backups are disabled")
	}

	s.backupMu.Lock()
	defer s.backupMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.writeBackup()
	if err != nil {
		metrics.Backups.WithLabelValues(metrics.ResultError).Inc()
		return "", err
	}
	metrics.Backups.WithLabelValues(metrics.ResultSuccess).Inc()
	s.lastBackup.Store(s.now())

	removed, err := s.pruneBackups()
	if err != nil {
		logging.Warn("Failed to prune old backups", "error", err)
	}

	logging.Info("Backup completed", "file", path, "patients", len(s.store.GetPatients()), "pruned", removed)
	return path, nil
}

func (s *Scheduler) writeBackup() (string, error) {
	snapshot, err := s.store.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot patients: %w", err)
	}

	name := backupPrefix + s.now().UTC().Format(backupLayout) + "Z" + backupSuffix
	path := filepath.Join(s.opts.BackupDir, name)

	tmp, err := os.CreateTemp(s.opts.BackupDir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(snapshot); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move backup into place: %w", err)
	}
	return path, nil
}

// pruneBackups keeps the newest Retention backup files. Names embed a UTC
// timestamp, so lexical order is chronological.
func (s *Scheduler) pruneBackups() (int, error) {
	entries, err := os.ReadDir(s.opts.BackupDir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			backups = append(backups, name)
		}
	}
	if len(backups) <= s.opts.Retention {
		return 0, nil
	}

	slices.Sort(backups)
	removed := 0
	var errs []error
	for _, name := range backups[:len(backups)-s.opts.Retention] {
		if err := os.Remove(filepath.Join(s.opts.BackupDir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// checkStore warns when the storage backend stops answering
func (s *Scheduler) checkStore(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		logging.Warn("Storage backend unreachable", "backend", s.store.Backend(), "error", err)
		return err
	}
	logging.Debug("Storage backend reachable", "backend", s.store.Backend())
	return nil
}
