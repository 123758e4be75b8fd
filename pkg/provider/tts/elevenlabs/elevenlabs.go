// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// non-streaming synthesis endpoint. It implements the tts.Provider
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kallevis/talkdown/pkg/provider/tts"
)

const (
	endpointFmt  = "https://api.elevenlabs.io/v1/text-to-speech/%s"
	defaultModel = "eleven_flash_v2_5"
	defaultVoice = "21m00Tcm4TlvDq8ikWAM"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithVoice sets the default voice ID used when a request does not name one.
func WithVoice(voiceID string) Option {
	return func(p *Provider) {
		p.voice = voiceID
	}
}

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.baseURL = base
	}
}

// Provider implements tts.Provider backed by the ElevenLabs HTTP API.
type Provider struct {
	apiKey     string
	model      string
	voice      string
	baseURL    string
	httpClient *http.Client
}

// New creates an ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		voice:      defaultVoice,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// synthesisRequest is the JSON payload for the synthesis endpoint.
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, string, error) {
	if req.Text == "" {
		return nil, "", errors.New("elevenlabs: text must not be empty")
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	payload := synthesisRequest{
		Text:          req.Text,
		ModelID:       p.model,
		VoiceSettings: settingsFor(req.Mood, req.Suspicion),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf(endpointFmt, voice)
	if p.baseURL != "" {
		url = fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, voice)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("elevenlabs: server returned %d: %s", resp.StatusCode, msg)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return resp.Body, ct, nil
}

// settingsFor maps the NPC's mood and suspicion onto ElevenLabs voice
// settings. Stability drops as suspicion rises so hostile lines come out
// more agitated; style rises with mood severity.
func settingsFor(mood string, suspicion int) voiceSettings {
	if suspicion < 0 {
		suspicion = 0
	}
	if suspicion > 100 {
		suspicion = 100
	}

	s := voiceSettings{
		Stability:       0.85 - float64(suspicion)/100*0.45,
		SimilarityBoost: 0.75,
	}
	switch mood {
	case "hostile":
		s.Style = 0.6
	case "suspicious":
		s.Style = 0.3
	default:
		s.Style = 0.1
	}
	return s
}
