// Package health reports whether the service can serve and persist patients.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/pn-calculator/interfaces"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	// MaxBackupAge is how long the service may run without a backup before it is degraded
	MaxBackupAge = 48 * time.Hour

	pingTimeout = 2 * time.Second
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store   interfaces.PatientStore
	backups interfaces.Scheduler
	now     func() time.Time
}

// NewHealthChecker creates a health checker. backups is nil when scheduled
// backups are disabled.
func NewHealthChecker(store interfaces.PatientStore, backups interfaces.Scheduler) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:   store,
		backups: backups,
		now:     time.Now,
	}
}

// HealthCheck pings the storage backend and checks backup freshness.
// Used by the /health HTTP endpoint.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	now := h.now()
	lastUpdate := h.store.GetLastUpdated()
	startTime := h.store.GetServerStartTime()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	pingErr := h.store.Ping(pingCtx)

	data = map[string]any{
		"patients":        len(h.store.GetPatients()),
		"storage_backend": h.store.Backend(),
		"last_update":     formatTime(lastUpdate),
		"backups_enabled": h.backups != nil,
	}
	if !startTime.IsZero() {
		data["uptime_hours"] = math.Round(now.Sub(startTime).Hours()*10) / 10
	}

	var backupAge time.Duration
	if h.backups != nil {
		lastBackup := h.backups.LastBackup()
		data["last_backup"] = formatTime(lastBackup)

		// Until the first backup runs, the age counts from startup
		reference := lastBackup
		if reference.IsZero() || reference.Before(startTime) {
			reference = startTime
		}
		if !reference.IsZero() {
			backupAge = now.Sub(reference)
		}
	}

	switch {
	case pingErr != nil:
		status = StatusUnhealthy
		httpStatus = http.StatusServiceUnavailable
		data["storage_error"] = pingErr.Error()

	case h.backups != nil && backupAge > MaxBackupAge:
		status = StatusDegraded
		httpStatus = http.StatusOK

	default:
		status = StatusHealthy
		httpStatus = http.StatusOK
	}

	return status, data, httpStatus
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}
