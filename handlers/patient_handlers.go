package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/data"
	"github.com/giygas/pn-calculator/document"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/metrics"
)

const charsetWindows1252 = "windows-1252"

// PatientResponse is a saved patient with the outcome of the sheet export.
// A failed export never fails the save.
type PatientResponse struct {
	Patient     entities.Patient `json:"patient"`
	ExportedTo  string           `json:"exported_to,omitempty"`
	ExportError string           `json:"export_error,omitempty"`
}

// SummaryResponse is the clinical summary of a patient
type SummaryResponse struct {
	PatientID string `json:"patientId"`
	Summary   string `json:"summary"`
	Enabled   bool   `json:"enabled"`
}

type summaryRequest struct {
	Notes string `json:"notes"`
}

// ListPatients returns every patient, newest first
func (h *HTTPHandlerImpl) ListPatients(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, h.store.GetPatients())
}

// CreatePatient validates and stores a new patient. Any id in the body is
// ignored: the store assigns one.
func (h *HTTPHandlerImpl) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var p entities.Patient
	if err := decodeJSON(r, &p, false); err != nil {
		h.respondWithDecodeError(w, err)
		return
	}
	p.ID = ""
	p.CreatedAt = 0

	h.savePatient(w, r, p, http.StatusCreated)
}

// GetPatient returns one patient
func (h *HTTPHandlerImpl) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, ok := h.patientFromPath(w, r)
	if !ok {
		return
	}
	h.RespondWithJSON(w, http.StatusOK, p)
}

// UpdatePatient replaces the record of an existing patient
func (h *HTTPHandlerImpl) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.patientFromPath(w, r)
	if !ok {
		return
	}

	var p entities.Patient
	if err := decodeJSON(r, &p, false); err != nil {
		h.respondWithDecodeError(w, err)
		return
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt

	h.savePatient(w, r, p, http.StatusOK)
}

// DeletePatient removes one patient
func (h *HTTPHandlerImpl) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidatePatientID(id); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.store.DeletePatient(r.Context(), id)
	switch {
	case errors.Is(err, data.ErrPatientNotFound):
		h.RespondWithError(w, http.StatusNotFound, "Patient not found")
		return
	case err != nil:
		logging.Error("Failed to delete patient", "patient_id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to delete patient")
		return
	}

	logging.Info("Patient deleted", "patient_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ClearPatients deletes the whole collection. It requires confirm=true.
func (h *HTTPHandlerImpl) ClearPatients(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		h.RespondWithError(w, http.StatusBadRequest, "Clearing all patients requires confirm=true")
		return
	}

	count := len(h.store.GetPatients())
	if err := h.store.ClearAll(r.Context()); err != nil {
		logging.Error("Failed to clear patients", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to clear patients")
		return
	}

	logging.Warn("All patients cleared", "deleted", count, "remote_addr", r.RemoteAddr)
	h.RespondWithJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

// PatientSheet serves the printable sheet of a patient as a text attachment.
// format=json returns the formatted sheet fields instead and
// charset=windows-1252 encodes the text for legacy printers.
func (h *HTTPHandlerImpl) PatientSheet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.patientFromPath(w, r)
	if !ok {
		return
	}

	sheet := document.Build(p, h.formatter)
	if r.URL.Query().Get("format") == "json" {
		h.RespondWithJSON(w, http.StatusOK, sheet)
		return
	}

	charset := "utf-8"
	render := document.Render
	if strings.EqualFold(r.URL.Query().Get("charset"), charsetWindows1252) {
		charset = charsetWindows1252
		render = document.RenderWindows1252
	}

	var buf bytes.Buffer
	if err := render(&buf, sheet); err != nil {
		logging.Error("Failed to render sheet", "patient_id", p.ID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to render sheet")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset="+charset)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": document.FileName(p),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// PatientSummary asks the summarizer for a short clinical summary. The
// summarizer never fails: errors come back as a fixed sentence.
func (h *HTTPHandlerImpl) PatientSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.patientFromPath(w, r)
	if !ok {
		return
	}

	var req summaryRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.respondWithDecodeError(w, err)
		return
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if req.Notes != "" {
		if err := h.validator.ValidateInput(req.Notes); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	text := h.summarizer.Summarize(r.Context(), entities.SummaryRequestFor(p, req.Notes))
	h.RespondWithJSON(w, http.StatusOK, SummaryResponse{
		PatientID: p.ID,
		Summary:   text,
		Enabled:   h.summarizer.Enabled(),
	})
}

// patientFromPath resolves the {id} URL parameter, answering 400 or 404 itself
func (h *HTTPHandlerImpl) patientFromPath(w http.ResponseWriter, r *http.Request) (entities.Patient, bool) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidatePatientID(id); err != nil {
		logging.Warn("Unusual user input", "id", id)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return entities.Patient{}, false
	}

	p, ok := h.store.GetPatient(id)
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, "Patient not found")
		return entities.Patient{}, false
	}
	return p, true
}

func (h *HTTPHandlerImpl) savePatient(w http.ResponseWriter, r *http.Request, p entities.Patient, status int) {
	if err := h.validator.ValidatePatient(&p); err != nil {
		logging.Warn("Rejected patient", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, created, err := h.store.SavePatient(r.Context(), p)
	if err != nil {
		logging.Error("Failed to save patient", "patient_id", p.ID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to save patient")
		return
	}
	logging.Info("Patient saved", "patient_id", saved.ID, "created", created)

	resp := PatientResponse{Patient: saved}
	resp.ExportedTo, resp.ExportError = h.export(r.Context(), saved)

	h.RespondWithJSON(w, status, resp)
}

// export writes the sheet of a saved patient when export on save is on
func (h *HTTPHandlerImpl) export(ctx context.Context, p entities.Patient) (location, exportErr string) {
	if !h.exportOnSave || h.exporter == nil {
		return "", ""
	}

	location, err := h.exporter.Export(ctx, p)
	if err != nil {
		metrics.Exports.WithLabelValues(metrics.ResultError).Inc()
		logging.Error("Sheet export failed", "patient_id", p.ID, "error", err)
		return "", err.Error()
	}
	metrics.Exports.WithLabelValues(metrics.ResultSuccess).Inc()
	return location, ""
}
