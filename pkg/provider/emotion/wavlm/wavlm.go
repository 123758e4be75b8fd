// Package wavlm provides an emotion provider backed by a local speech
// emotion recognition sidecar running a WavLM categorical model.
//
// The sidecar exposes POST /classify accepting a multipart "file" field and
// returning Hugging Face inference-shaped JSON:
//
//	[[{"label": "angry", "score": 0.81}, {"label": "neutral", "score": 0.11}, ...]]
//
// Predictions arrive sorted by score descending; the first entry is the
// winner. GET /health reports model readiness and is used by the readiness
// probe.
package wavlm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kallevis/talkdown/pkg/provider/emotion"
)

const defaultTimeout = 20 * time.Second

// Compile-time assertion that Provider implements emotion.Provider.
var _ emotion.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 20s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements emotion.Provider against the SER sidecar.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider talking to the sidecar at serverURL
// (e.g., "http://localhost:5050").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("wavlm: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// scoredLabel mirrors one entry of the HF inference response shape.
type scoredLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements emotion.Provider.
func (p *Provider) Classify(ctx context.Context, audio []byte) (*emotion.Prediction, error) {
	if len(audio) == 0 {
		return nil, errors.New("wavlm: empty audio")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "utterance.webm")
	if err != nil {
		return nil, fmt.Errorf("wavlm: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("wavlm: write audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wavlm: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/classify", &body)
	if err != nil {
		return nil, fmt.Errorf("wavlm: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wavlm: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("wavlm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wavlm: server returned %d", resp.StatusCode)
	}

	var nested [][]scoredLabel
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("wavlm: decode response: %w", err)
	}
	if len(nested) == 0 || len(nested[0]) == 0 {
		return nil, errors.New("wavlm: empty prediction list")
	}

	preds := nested[0]
	scores := make(map[string]float64, len(preds))
	for _, sl := range preds {
		scores[sl.Label] = sl.Score
	}

	top := preds[0]
	// The sidecar sorts descending, but don't rely on it.
	for _, sl := range preds[1:] {
		if sl.Score > top.Score {
			top = sl
		}
	}

	return &emotion.Prediction{
		Label:      top.Label,
		Confidence: clamp01(top.Score),
		Scores:     scores,
	}, nil
}

// Health probes the sidecar's GET /health endpoint.
func (p *Provider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("wavlm: build health request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wavlm: health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wavlm: health returned %d", resp.StatusCode)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
