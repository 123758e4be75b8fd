// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/kallevis/talkdown/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
// Set Result and Err before use; zero values return an empty result.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records the audio sizes and language hints of every call.
	Calls []struct {
		Bytes    int
		LangHint string
	}
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, audio []byte, langHint string) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, struct {
		Bytes    int
		LangHint string
	}{len(audio), langHint})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &stt.Result{}, nil
}
