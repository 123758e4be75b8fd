package resilience

import (
	"context"

	"github.com/kallevis/talkdown/pkg/provider/llm"
)

// OracleFailover implements [llm.Provider] with automatic failover across
// multiple narrative backends. Each backend has its own circuit breaker;
// when the primary fails or its breaker is open, the next healthy fallback
// is tried. Only when every backend is down does the turn evaluator resort
// to the deterministic safe fallback reply.
type OracleFailover struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*OracleFailover)(nil)

// NewOracleFailover creates an [OracleFailover] with primary as the
// preferred backend. cfg configures the per-backend circuit breakers.
func NewOracleFailover(primary llm.Provider, cfg Config) *OracleFailover {
	return &OracleFailover{
		group: NewFallbackGroup(primary, primary.Name(), cfg),
	}
}

// AddFallback registers an additional narrative backend.
func (f *OracleFailover) AddFallback(provider llm.Provider) {
	f.group.AddFallback(provider.Name(), provider)
}

// Complete sends the request to the first healthy backend.
func (f *OracleFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name identifies the failover chain by its primary backend.
func (f *OracleFailover) Name() string {
	return "failover/" + f.group.entries[0].name
}
