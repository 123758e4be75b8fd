package game

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/internal/replystore"
	"github.com/kallevis/talkdown/internal/resilience"
	"github.com/kallevis/talkdown/internal/turn"
	"github.com/kallevis/talkdown/pkg/provider/llm"
)

// DefaultGatewayTimeout bounds one oracle call. A turn that exceeds it
// falls through to the safe fallback rather than stalling the game.
const DefaultGatewayTimeout = 20 * time.Second

// EvaluatorConfig tunes an [Evaluator].
type EvaluatorConfig struct {
	// GatewayTimeout bounds one oracle call. Zero means
	// [DefaultGatewayTimeout].
	GatewayTimeout time.Duration

	// Breaker configures the circuit breaker guarding the oracle.
	Breaker resilience.Config
}

// Evaluator runs the full turn pipeline: prompt the oracle, parse and
// normalize its output, apply the level rules, and enforce the reply
// policy. Evaluate never fails; when the oracle path breaks, the turn is
// answered from the deterministic fallback instead.
type Evaluator struct {
	oracle  llm.Provider
	levels  *level.Table
	policy  *Policy
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	metrics *observe.Metrics
}

// NewEvaluator wires an Evaluator. oracle may be nil, which forces every
// turn onto the fallback path (useful for offline play and tests).
func NewEvaluator(oracle llm.Provider, levels *level.Table, store replystore.Store, metrics *observe.Metrics, cfg EvaluatorConfig) *Evaluator {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayTimeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "narrative-gateway"
	}
	return &Evaluator{
		oracle:  oracle,
		levels:  levels,
		policy:  newPolicyWithMetrics(store, oracle, levels, metrics),
		breaker: resilience.New(cfg.Breaker),
		timeout: cfg.GatewayTimeout,
		metrics: metrics,
	}
}

// Levels exposes the level catalog for the HTTP layer.
func (e *Evaluator) Levels() *level.Table {
	return e.levels
}

// Evaluate runs one sanitized turn through the pipeline and returns a
// finalized output satisfying every invariant on [turn.Output].
func (e *Evaluator) Evaluate(ctx context.Context, in *turn.Input) *turn.Output {
	ctx, span := observe.StartSpan(ctx, "evaluate_turn")
	defer span.End()
	start := time.Now()
	defer func() {
		e.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	log := observe.Logger(ctx).With("session", in.SessionID, "level", in.Level, "stage", in.Stage)

	out, err := e.oracleTurn(ctx, in)
	if err != nil {
		cause := fallbackCause(err)
		e.metrics.RecordFallback(ctx, cause)
		log.Warn("oracle path failed, using safe fallback", "cause", cause, "error", err)
		out = Fallback(in)
	}

	e.levels.Apply(in, out)
	e.metrics.RecordStageResult(ctx, in.Level, out.PassStage)
	if out.ShouldHangUp {
		e.metrics.Hangups.Add(ctx, 1, metric.WithAttributes(observe.Attr("level", in.Level)))
	}
	if out.RevealCode {
		e.metrics.Reveals.Add(ctx, 1, metric.WithAttributes(observe.Attr("level", in.Level)))
	}

	if err := e.policy.Finalize(ctx, in, out); err != nil {
		// The pre-policy output is still invariant-satisfying, so a
		// broken dedup store must not fail the turn.
		log.Error("reply policy enforcement failed", "error", err)
	}

	log.Info("turn evaluated",
		"pass_stage", out.PassStage,
		"next_stage", out.NextStage,
		"suspicion", out.NewSuspicion,
		"hangup", out.ShouldHangUp,
		"reveal", out.RevealCode,
	)
	return out
}

// oracleTurn runs the oracle half of the pipeline: prompt, complete, parse,
// normalize. Any error routes the turn to the fallback.
func (e *Evaluator) oracleTurn(ctx context.Context, in *turn.Input) (*turn.Output, error) {
	if e.oracle == nil {
		return nil, &GatewayError{Kind: GatewayUnreachable, Err: errors.New("no oracle configured")}
	}
	lvl, ok := e.levels.Get(in.Level)
	if !ok {
		return nil, &GatewayError{Kind: GatewayUpstream, Err: errors.New("unknown level " + in.Level)}
	}

	req := BuildPrompt(in, lvl)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var resp *llm.CompletionResponse
	gwStart := time.Now()
	err := e.breaker.Execute(func() error {
		var callErr error
		resp, callErr = e.oracle.Complete(callCtx, *req)
		return callErr
	})
	e.metrics.GatewayDuration.Record(ctx, time.Since(gwStart).Seconds())
	if err != nil {
		gwErr := classifyGatewayError(err)
		e.metrics.RecordGatewayRequest(ctx, e.oracle.Name(), string(gwErr.Kind))
		return nil, gwErr
	}
	e.metrics.RecordGatewayRequest(ctx, e.oracle.Name(), "ok")

	obj, strategy := ParseOracle(resp.Content)
	if obj == nil {
		return nil, &ParseError{Raw: resp.Content}
	}
	e.metrics.ParseStrategies.Add(ctx, 1, metric.WithAttributes(observe.Attr("strategy", strategy)))

	return Normalize(obj, in), nil
}

// classifyGatewayError buckets an oracle failure into the three gateway
// kinds. The evaluator treats them all the same; the kind feeds logs and
// metrics.
func classifyGatewayError(err error) *GatewayError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &GatewayError{Kind: GatewayTimeout, Err: err}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &GatewayError{Kind: GatewayUnreachable, Err: err}
	default:
		return &GatewayError{Kind: GatewayUpstream, Err: err}
	}
}

// fallbackCause names the fallback trigger for metrics.
func fallbackCause(err error) string {
	var gw *GatewayError
	if errors.As(err, &gw) {
		return "gateway_" + string(gw.Kind)
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return "parse"
	}
	return "unknown"
}
