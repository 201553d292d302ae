package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/pn-calculator/calculator"
	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/display"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/metrics"
)

const sourceAPI = "api"

// ComputeResponse carries the computed prescription and its editor rendering
type ComputeResponse struct {
	Summary calculator.ComputedNutritionSummary `json:"summary"`
	Display display.Summary                     `json:"display"`
}

// BlendResponse is a resolved or undefined glucose blend with its mix cells
type BlendResponse struct {
	Blend calculator.GlucoseBlend `json:"blend"`
	Mix   display.MixParts        `json:"mix"`
}

// DrugTitrationResponse is the titration of one drug order
type DrugTitrationResponse struct {
	calculator.DrugComputation
	PrelevareLabel string `json:"prelevareLabel"`
	PortaALabel    string `json:"portaALabel"`
}

// DilutionResponse is the syringe volume for one infusion speed
type DilutionResponse struct {
	SpeedMlPerHour float64           `json:"speedMlPerHour"`
	TargetMl       calculator.Volume `json:"targetMl"`
	Label          string            `json:"label"`
	AllowedSpeeds  []float64         `json:"allowedSpeeds"`
}

// Compute normalizes the posted prescription and returns every derived figure
func (h *HTTPHandlerImpl) Compute(w http.ResponseWriter, r *http.Request) {
	var n entities.NutritionData
	if err := decodeJSON(r, &n, false); err != nil {
		h.respondWithDecodeError(w, err)
		return
	}

	if err := h.validator.ValidateNutrition(&n); err != nil {
		logging.Warn("Rejected prescription", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	n.Normalize()

	summary := calculator.Compute(n)
	countComputation(summary.Blend)

	h.RespondWithJSON(w, http.StatusOK, ComputeResponse{
		Summary: summary,
		Display: h.formatter.Summarize(summary),
	})
}

// GlucoseBlend splits a glucose volume over the two bracketing stocks.
// An undefined blend is a regular answer, not a client error.
func (h *HTTPHandlerImpl) GlucoseBlend(w http.ResponseWriter, r *http.Request) {
	percent, _, err := queryNumber(r, "percent")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	volume, _, err := queryNumber(r, "volume")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	blend := calculator.ResolveGlucoseBlend(percent, volume)
	if !blend.Defined() {
		metrics.BlendUndefined.WithLabelValues(string(blend.Status)).Inc()
	}

	h.RespondWithJSON(w, http.StatusOK, BlendResponse{
		Blend: blend,
		Mix:   h.formatter.GlucoseMix(blend),
	})
}

// ListDrugs returns the vial strength table and the allowed infusion speeds
func (h *HTTPHandlerImpl) ListDrugs(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"drugs":         calculator.Drugs(),
		"allowedSpeeds": calculator.AllowedSpeeds(),
		"defaultSpeed":  entities.DefaultSpeed,
	})
}

// DrugTitration returns the ml to draw up and the dilution target of one order
func (h *HTTPHandlerImpl) DrugTitration(w http.ResponseWriter, r *http.Request) {
	id := entities.DrugID(chi.URLParam(r, "drug"))
	drug, ok := calculator.LookupDrug(id)
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, "Drug not found")
		return
	}

	dose, present, err := queryNumber(r, "dose")
	switch {
	case err != nil:
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case !present:
		h.RespondWithError(w, http.StatusBadRequest, "Missing dose")
		return
	case dose < 0:
		h.RespondWithError(w, http.StatusBadRequest, "dose cannot be negative")
		return
	}

	speed, present, err := queryNumber(r, "speed")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !present {
		speed = entities.DefaultSpeed
	}

	c := calculator.ComputeDrug(drug, entities.DrugOrder{Dose: entities.Quantity(dose), Speed: speed})
	h.RespondWithJSON(w, http.StatusOK, DrugTitrationResponse{
		DrugComputation: c,
		PrelevareLabel:  h.formatter.Ml(c.PrelevareMl),
		PortaALabel:     h.formatter.DilutionLabel(c.SpeedMlPerHour),
	})
}

// Dilution looks up the syringe volume of an infusion speed. Speeds outside
// the table answer with a null target.
func (h *HTTPHandlerImpl) Dilution(w http.ResponseWriter, r *http.Request) {
	speed, present, err := queryNumber(r, "speed")
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !present {
		h.RespondWithError(w, http.StatusBadRequest, "Missing speed")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, DilutionResponse{
		SpeedMlPerHour: speed,
		TargetMl:       calculator.ComputeDilutionTarget(speed),
		Label:          h.formatter.DilutionLabel(speed),
		AllowedSpeeds:  calculator.AllowedSpeeds(),
	})
}

// ListComponents returns the component concentration table
func (h *HTTPHandlerImpl) ListComponents(w http.ResponseWriter, r *http.Request) {
	h.RespondWithJSON(w, http.StatusOK, calculator.Components())
}

func (h *HTTPHandlerImpl) respondWithDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		h.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	h.RespondWithError(w, http.StatusBadRequest, err.Error())
}

func countComputation(blend calculator.GlucoseBlend) {
	metrics.Computations.WithLabelValues(sourceAPI).Inc()
	if !blend.Defined() {
		metrics.BlendUndefined.WithLabelValues(string(blend.Status)).Inc()
	}
}
