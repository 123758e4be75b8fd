// Package whisper provides a whisper.cpp-backed STT provider.
//
// It connects to a running whisper-server binary, which exposes a REST API
// at POST /inference accepting a multipart audio file and returning a JSON
// body with the transcription. The server handles decoding of common
// container formats (WAV natively; WebM/Opus and friends when built with
// ffmpeg support), so the provider forwards the uploaded clip as-is.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	res, err := p.Transcribe(ctx, clip, "")
package whisper

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

	"github.com/kallevis/talkdown/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "de"). Defaults to "en"; a langHint passed to Transcribe
// takes precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider talking to the whisper-server at serverURL
// (e.g., "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the JSON body returned by whisper-server.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, langHint string) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("whisper: empty audio")
	}
	if len(audio) > stt.MaxAudioBytes {
		return nil, fmt.Errorf("whisper: audio exceeds %d bytes", stt.MaxAudioBytes)
	}

	lang := p.language
	if langHint != "" {
		lang = langHint
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio: %w", err)
	}
	_ = w.WriteField("response_format", "json")
	if lang != "" {
		_ = w.WriteField("language", lang)
	}
	if p.model != "" {
		_ = w.WriteField("model", p.model)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var inf inferenceResponse
	if err := json.Unmarshal(raw, &inf); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}
	if inf.Error != "" {
		return nil, fmt.Errorf("whisper: inference error: %s", inf.Error)
	}

	return &stt.Result{
		Text:     strings.TrimSpace(inf.Text),
		Language: inf.Language,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
