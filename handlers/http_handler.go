// Package handlers provides the HTTP request handlers of the prescription
// service. HTTPHandlerImpl implements interfaces.HTTPHandler with its
// collaborators injected so tests can replace each of them.
package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/giygas/pn-calculator/display"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
)

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Dependencies are the collaborators of the HTTP handler. Exporter may be
// nil, in which case sheets are only served, never written to disk.
type Dependencies struct {
	Store        interfaces.PatientStore
	Validator    interfaces.DataValidator
	Exporter     interfaces.SheetExporter
	Summarizer   interfaces.Summarizer
	Health       interfaces.HealthChecker
	Formatter    *display.Formatter
	ExportOnSave bool
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	store        interfaces.PatientStore
	validator    interfaces.DataValidator
	exporter     interfaces.SheetExporter
	summarizer   interfaces.Summarizer
	health       interfaces.HealthChecker
	formatter    *display.Formatter
	exportOnSave bool
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(deps Dependencies) *HTTPHandlerImpl {
	f := deps.Formatter
	if f == nil {
		f = display.Default()
	}
	return &HTTPHandlerImpl{
		store:        deps.Store,
		validator:    deps.Validator,
		exporter:     deps.Exporter,
		summarizer:   deps.Summarizer,
		health:       deps.Health,
		formatter:    f,
		exportOnSave: deps.ExportOnSave,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes payload as JSON with the given status code
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.health.HealthCheck(r.Context())

	var uptime time.Duration
	if start := h.store.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	response := HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}
