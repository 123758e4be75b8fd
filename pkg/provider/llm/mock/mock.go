// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the evaluator sends correct
// CompletionRequests and to feed controlled oracle text without a live
// backend. All fields are safe to set before calling any method; mutating
// them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.CompletionResponse{Content: `{"npcReply":"What."}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/kallevis/talkdown/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// Zero values cause Complete to return an empty response and nil error.
type Provider struct {
	mu sync.Mutex

	// Response is returned from Complete when Err is nil. When nil, an
	// empty CompletionResponse is returned instead.
	Response *llm.CompletionResponse

	// Responses, when non-empty, is consumed one element per Complete
	// call before falling back to Response. Use it to script multi-turn
	// sequences (e.g., a dedup retry that returns different text).
	Responses []*llm.CompletionResponse

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// CompleteFunc, if non-nil, overrides all of the above.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Calls records every Complete invocation in order.
	Calls []CompleteCall
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, CompleteCall{Ctx: ctx, Req: req})

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Responses) > 0 {
		resp := p.Responses[0]
		p.Responses = p.Responses[1:]
		return resp, nil
	}
	if p.Response != nil {
		return p.Response, nil
	}
	return &llm.CompletionResponse{}, nil
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
