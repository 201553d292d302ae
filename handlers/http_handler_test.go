package handlers

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/giygas/pn-calculator/calculator"
	"github.com/giygas/pn-calculator/metrics"
)

// ============================================================================
// CORE HANDLER TESTS
// ============================================================================

func TestNewHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(Dependencies{})
	if h == nil {
		t.Fatal("Handler should not be nil")
	}
	if h.formatter == nil {
		t.Error("A nil formatter should fall back to the display default")
	}
}

func TestRespondWithJSON(t *testing.T) {
	h := NewHTTPHandler(Dependencies{})

	tests := []struct {
		name         string
		code         int
		payload      any
		expectedJSON string
	}{
		{"object", http.StatusOK, map[string]string{"message": "success"}, `{"message":"success"}`},
		{"nil payload", http.StatusOK, nil, `null`},
		{"created", http.StatusCreated, []int{1, 2}, `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.RespondWithJSON(rr, tt.code, tt.payload)

			if rr.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Unexpected content type %q", ct)
			}
			if rr.Body.String() != tt.expectedJSON {
				t.Errorf("Expected %s, got %s", tt.expectedJSON, rr.Body.String())
			}
		})
	}

	t.Run("unencodable payload", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.RespondWithJSON(rr, http.StatusOK, math.NaN())
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rr.Code)
		}
	})
}

func TestRespondWithError(t *testing.T) {
	h := NewHTTPHandler(Dependencies{})
	rr := httptest.NewRecorder()
	h.RespondWithError(rr, http.StatusNotFound, "Patient not found")

	body := decodeBody[map[string]any](t, rr)
	if body["error"] != "Not Found" || body["message"] != "Patient not found" || body["code"] != float64(404) {
		t.Errorf("Unexpected error body %v", body)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		httpStatus int
	}{
		{"healthy", "healthy", http.StatusOK},
		{"degraded", "degraded", http.StatusOK},
		{"unhealthy", "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.health.status = tt.status
			env.health.httpStatus = tt.httpStatus
			env.health.data = map[string]any{"storage_backend": "memory"}

			rr := env.do(http.MethodGet, "/health", "")
			assertStatus(t, rr, tt.httpStatus)

			body := decodeBody[HealthResponse](t, rr)
			if body.Status != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, body.Status)
			}
			if body.Data["storage_backend"] != "memory" {
				t.Errorf("Health data not forwarded: %v", body.Data)
			}
			if _, ok := body.System["goroutines"]; !ok {
				t.Error("System section should report goroutines")
			}
		})
	}
}

// ============================================================================
// CALCULATOR ENDPOINTS
// ============================================================================

type computeBody struct {
	Summary struct {
		TotalVolumeMl float64 `json:"totalVolumeMl"`
		Blend         struct {
			Status string `json:"status"`
		} `json:"blend"`
		Drugs []struct {
			ID               string   `json:"id"`
			PrelevareMl      float64  `json:"prelevareMl"`
			DilutionTargetMl *float64 `json:"dilutionTargetMl"`
			Active           bool     `json:"active"`
		} `json:"drugs"`
	} `json:"summary"`
	Display struct {
		Total    string `json:"total"`
		FlowRate string `json:"flowRate"`
	} `json:"display"`
}

func TestCompute(t *testing.T) {
	env := newTestEnv(t, nil)
	before := testutil.ToFloat64(metrics.Computations.WithLabelValues(sourceAPI))

	rr := env.do(http.MethodPost, "/v1/compute",
		`{"glucosioPerc":10,"glucosioMl":50,"tphMl":10,"naclMeq":"4","dopaminaDose":40,"dopaminaSpeed":"0,5"}`)
	assertStatus(t, rr, http.StatusOK)

	body := decodeBody[computeBody](t, rr)

	if body.Summary.TotalVolumeMl != 62 {
		t.Errorf("Expected total 62 ml, got %v", body.Summary.TotalVolumeMl)
	}
	if body.Display.Total != "62,00" || body.Display.FlowRate != "2,6" {
		t.Errorf("Unexpected display strings %+v", body.Display)
	}
	if body.Summary.Blend.Status != string(calculator.BlendResolved) {
		t.Errorf("Expected resolved blend, got %s", body.Summary.Blend.Status)
	}
	if len(body.Summary.Drugs) != len(calculator.Drugs()) {
		t.Fatalf("Expected every drug in the summary, got %d", len(body.Summary.Drugs))
	}

	for _, d := range body.Summary.Drugs {
		switch d.ID {
		case "dopamina":
			if !d.Active || d.PrelevareMl != 1 || d.DilutionTargetMl == nil || *d.DilutionTargetMl != 12 {
				t.Errorf("Unexpected dopamina row %+v", d)
			}
		default:
			if d.Active {
				t.Errorf("Drug %s should be inactive", d.ID)
			}
			if d.DilutionTargetMl == nil || *d.DilutionTargetMl != 2.5 {
				t.Errorf("Untouched drug %s should use the default speed target", d.ID)
			}
		}
	}

	if got := testutil.ToFloat64(metrics.Computations.WithLabelValues(sourceAPI)); got != before+1 {
		t.Errorf("Expected computation counter to grow by 1, got %v -> %v", before, got)
	}
}

func TestComputeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed json", `{"tphMl":`, http.StatusBadRequest},
		{"not a number", `{"tphMl":true}`, http.StatusBadRequest},
		{"negative quantity", `{"kclMeq":-1}`, http.StatusBadRequest},
		{"glucose above 100%", `{"glucosioPerc":120}`, http.StatusBadRequest},
		{"dangerous label", `{"altroLabel":"<script>"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rr := env.do(http.MethodPost, "/v1/compute", tt.body)
			assertStatus(t, rr, tt.want)

			body := decodeBody[map[string]any](t, rr)
			if body["message"] == "" {
				t.Error("Error response should carry a message")
			}
		})
	}
}

func TestGlucoseBlend(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantCode   int
		wantStatus string
		wantP1     string
		wantP2     string
	}{
		{"interior", "?percent=15&volume=500", http.StatusOK, "resolved", "391,30 ml", "108,70 ml"},
		{"comma decimals", "?percent=10,0&volume=250", http.StatusOK, "resolved", "250,00 ml", "---"},
		{"out of range", "?percent=40&volume=500", http.StatusOK, "out_of_range", "Range errato", "5-33%"},
		{"empty", "", http.StatusOK, "empty", "---", "---"},
		{"zero volume", "?percent=15&volume=0", http.StatusOK, "empty", "---", "---"},
		{"invalid percent", "?percent=abc&volume=500", http.StatusBadRequest, "", "", ""},
		{"invalid volume", "?percent=15&volume=1x", http.StatusBadRequest, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rr := env.do(http.MethodGet, "/v1/glucose/blend"+tt.query, "")
			assertStatus(t, rr, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			body := decodeBody[struct {
				Blend struct {
					Status string `json:"status"`
				} `json:"blend"`
				Mix struct {
					P1 string
					P2 string
				} `json:"mix"`
			}](t, rr)
			if body.Blend.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, body.Blend.Status)
			}
			if body.Mix.P1 != tt.wantP1 || body.Mix.P2 != tt.wantP2 {
				t.Errorf("Expected mix %q/%q, got %q/%q", tt.wantP1, tt.wantP2, body.Mix.P1, body.Mix.P2)
			}
		})
	}
}

func TestGlucoseBlendCountsUndefined(t *testing.T) {
	env := newTestEnv(t, nil)
	counter := metrics.BlendUndefined.WithLabelValues(string(calculator.BlendOutOfRange))
	before := testutil.ToFloat64(counter)

	env.do(http.MethodGet, "/v1/glucose/blend?percent=2&volume=100", "")

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected out of range counter to grow by 1, got %v -> %v", before, got)
	}
}

func TestDrugTitration(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		wantCode      int
		wantPrelevare float64
		wantTarget    *float64
		wantPortaA    string
	}{
		{"dopamina", "/v1/drugs/dopamina?dose=40&speed=0,5", http.StatusOK, 1, ptr(12), "12 ml"},
		{"default speed", "/v1/drugs/lasix?dose=10", http.StatusOK, 1, ptr(2.5), "2,5 ml"},
		{"speed outside table", "/v1/drugs/midazolam?dose=5&speed=0.3", http.StatusOK, 1, nil, "---"},
		{"zero dose", "/v1/drugs/fentanest?dose=0&speed=1", http.StatusOK, 0, ptr(24), "24 ml"},
		{"unknown drug", "/v1/drugs/morfina?dose=1", http.StatusNotFound, 0, nil, ""},
		{"missing dose", "/v1/drugs/dopamina", http.StatusBadRequest, 0, nil, ""},
		{"negative dose", "/v1/drugs/dopamina?dose=-1", http.StatusBadRequest, 0, nil, ""},
		{"invalid speed", "/v1/drugs/dopamina?dose=1&speed=fast", http.StatusBadRequest, 0, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rr := env.do(http.MethodGet, tt.target, "")
			assertStatus(t, rr, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			body := decodeBody[struct {
				PrelevareMl      float64  `json:"prelevareMl"`
				DilutionTargetMl *float64 `json:"dilutionTargetMl"`
				PortaALabel      string   `json:"portaALabel"`
				Unit             string   `json:"unit"`
			}](t, rr)
			if math.Abs(body.PrelevareMl-tt.wantPrelevare) > 1e-9 {
				t.Errorf("Expected prelevare %v, got %v", tt.wantPrelevare, body.PrelevareMl)
			}
			switch {
			case tt.wantTarget == nil && body.DilutionTargetMl != nil:
				t.Errorf("Expected null dilution target, got %v", *body.DilutionTargetMl)
			case tt.wantTarget != nil && (body.DilutionTargetMl == nil || *body.DilutionTargetMl != *tt.wantTarget):
				t.Errorf("Expected dilution target %v, got %v", *tt.wantTarget, body.DilutionTargetMl)
			}
			if body.PortaALabel != tt.wantPortaA {
				t.Errorf("Expected porta a %q, got %q", tt.wantPortaA, body.PortaALabel)
			}
			if body.Unit == "" {
				t.Error("Drug unit should be included")
			}
		})
	}
}

func TestDilution(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLabel string
	}{
		{"?speed=0,2", http.StatusOK, "5 ml"},
		{"?speed=1", http.StatusOK, "24 ml"},
		{"?speed=0.3", http.StatusOK, "---"},
		{"", http.StatusBadRequest, ""},
		{"?speed=x", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rr := env.do(http.MethodGet, "/v1/dilution"+tt.query, "")
			assertStatus(t, rr, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			body := decodeBody[DilutionResponse](t, rr)
			if body.Label != tt.wantLabel {
				t.Errorf("Expected label %q, got %q", tt.wantLabel, body.Label)
			}
			if body.TargetMl.Valid != (tt.wantLabel != "---") {
				t.Errorf("Target validity mismatch: %+v", body.TargetMl)
			}
			if len(body.AllowedSpeeds) != 4 {
				t.Errorf("Expected the 4 allowed speeds, got %v", body.AllowedSpeeds)
			}
		})
	}
}

func TestListTables(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodGet, "/v1/drugs", "")
	assertStatus(t, rr, http.StatusOK)
	drugs := decodeBody[struct {
		Drugs         []calculator.Drug `json:"drugs"`
		AllowedSpeeds []float64         `json:"allowedSpeeds"`
		DefaultSpeed  float64           `json:"defaultSpeed"`
	}](t, rr)
	if len(drugs.Drugs) != 9 {
		t.Errorf("Expected 9 drugs, got %d", len(drugs.Drugs))
	}
	if drugs.DefaultSpeed != 0.1 {
		t.Errorf("Expected default speed 0.1, got %v", drugs.DefaultSpeed)
	}

	rr = env.do(http.MethodGet, "/v1/components", "")
	assertStatus(t, rr, http.StatusOK)
	components := decodeBody[[]map[string]any](t, rr)
	if len(components) != len(calculator.Components()) {
		t.Errorf("Expected %d components, got %d", len(calculator.Components()), len(components))
	}
	if components[0]["id"] != "tph" {
		t.Errorf("Components should keep charting order, first is %v", components[0]["id"])
	}
}

func ptr(v float64) *float64 { return &v }
