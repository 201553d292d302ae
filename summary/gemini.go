// Package summary produces the short clinical summary of a patient through
// the Gemini generateContent API. Failures never reach the caller as errors:
// they become one of two fixed Italian sentences shown in place of a summary.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/ratelimit"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/interfaces"
	"github.com/giygas/pn-calculator/logging"
	"github.com/giygas/pn-calculator/metrics"
)

const (
	// EmptyResponse is returned when the model answers without text
	EmptyResponse = "Impossibile generare il riassunto."
	// FailureResponse is returned for every transport, API or throttling failure
	FailureResponse = "Errore durante la generazione del riassunto AI."

	DefaultModel   = "gemini-3-flash-preview"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	noNotes = "Nessuna nota fornita."

	// maxResponseBytes bounds how much of an API response is read
	maxResponseBytes = 1 << 20
)

var (
	_ interfaces.Summarizer = (*GeminiSummarizer)(nil)
	_ interfaces.Summarizer = DisabledSummarizer{}
)

var errRateLimited = errors.New("summary rate limit reached")

// Options configures a GeminiSummarizer
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	PerMinute  int
	HTTPClient *http.Client
}

// GeminiSummarizer calls the Gemini REST API. Outbound calls share one token
// bucket so a burst of clicks cannot exhaust the API quota.
type GeminiSummarizer struct {
	apiKey   string
	endpoint string
	client   *http.Client
	bucket   *ratelimit.Bucket
}

// New returns a GeminiSummarizer, or a DisabledSummarizer when no API key is set
func New(opts Options) interfaces.Summarizer {
	if strings.TrimSpace(opts.APIKey) == "" {
		logging.Info("AI summary disabled: no API key configured")
		return DisabledSummarizer{}
	}
	return NewGeminiSummarizer(opts)
}

// NewGeminiSummarizer applies defaults to opts and builds the client
func NewGeminiSummarizer(opts Options) *GeminiSummarizer {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.PerMinute <= 0 {
		opts.PerMinute = 10
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &GeminiSummarizer{
		apiKey: opts.APIKey,
		endpoint: fmt.Sprintf("%s/models/%s:generateContent",
			strings.TrimRight(opts.BaseURL, "/"), url.PathEscape(opts.Model)),
		client: client,
		bucket: ratelimit.NewBucketWithRate(float64(opts.PerMinute)/60, int64(opts.PerMinute)),
	}
}

// Enabled reports true: the summarizer has an API key
func (g *GeminiSummarizer) Enabled() bool { return true }

// Summarize returns the model's summary of req or one of the fixed fallback sentences
func (g *GeminiSummarizer) Summarize(ctx context.Context, req entities.SummaryRequest) string {
	text, err := g.generate(ctx, Prompt(req))
	switch {
	case errors.Is(err, errRateLimited):
		metrics.SummaryRequests.WithLabelValues(metrics.ResultLimited).Inc()
		logging.Warn("AI summary throttled")
		return FailureResponse
	case err != nil:
		metrics.SummaryRequests.WithLabelValues(metrics.ResultError).Inc()
		logging.Error("AI summary failed", "error", err)
		return FailureResponse
	case strings.TrimSpace(text) == "":
		metrics.SummaryRequests.WithLabelValues(metrics.ResultEmpty).Inc()
		return EmptyResponse
	}

	metrics.SummaryRequests.WithLabelValues(metrics.ResultSuccess).Inc()
	return strings.TrimSpace(text)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	if g.bucket.TakeAvailable(1) == 0 {
		return "", errRateLimited
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call generateContent: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generateContent returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	if len(decoded.Candidates) > 0 {
		for _, p := range decoded.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

// Prompt builds the Italian instruction sent to the model
func Prompt(req entities.SummaryRequest) string {
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = noNotes
	}

	var sb strings.Builder
	sb.WriteString("Agisci come un assistente medico esperto.\n")
	sb.WriteString("Analizza i dati di questo paziente:\n")
	fmt.Fprintf(&sb, "Nome: %s\n", req.FirstName)
	fmt.Fprintf(&sb, "Cognome: %s\n", req.LastName)
	fmt.Fprintf(&sb, "Data di Nascita: %s\n", req.BirthDate)
	fmt.Fprintf(&sb, "Note aggiuntive: %s\n\n", notes)
	sb.WriteString("Crea un brevissimo riassunto clinico professionale (massimo 3 frasi) in lingua italiana.")
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DisabledSummarizer answers every request with FailureResponse
type DisabledSummarizer struct{}

func (DisabledSummarizer) Summarize(context.Context, entities.SummaryRequest) string {
	metrics.SummaryRequests.WithLabelValues(metrics.ResultError).Inc()
	return FailureResponse
}

func (DisabledSummarizer) Enabled() bool { return false }
