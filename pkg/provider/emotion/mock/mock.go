// Package mock provides a test double for the emotion.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/kallevis/talkdown/pkg/provider/emotion"
)

// Provider is a mock implementation of emotion.Provider.
type Provider struct {
	mu sync.Mutex

	// Prediction is returned from Classify when Err is nil.
	Prediction *emotion.Prediction

	// Err, if non-nil, is returned as the error from Classify.
	Err error

	// CallCount counts Classify invocations.
	CallCount int
}

// Compile-time interface assertion.
var _ emotion.Provider = (*Provider)(nil)

// Classify implements emotion.Provider.
func (p *Provider) Classify(_ context.Context, _ []byte) (*emotion.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount++
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Prediction != nil {
		return p.Prediction, nil
	}
	return &emotion.Prediction{Label: "neutral", Confidence: 0.5}, nil
}
