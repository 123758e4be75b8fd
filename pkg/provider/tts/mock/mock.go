// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/kallevis/talkdown/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is the byte payload returned from Synthesize. Defaults to a
	// short placeholder when nil.
	Audio []byte

	// ContentType is the MIME type returned. Defaults to "audio/mpeg".
	ContentType string

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Requests records every synthesis request.
	Requests []tts.Request
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (io.ReadCloser, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, "", p.Err
	}
	audio := p.Audio
	if audio == nil {
		audio = []byte("mock-audio")
	}
	ct := p.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	return io.NopCloser(bytes.NewReader(audio)), ct, nil
}
