// Package observe provides application-wide observability primitives for
// Talkdown: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Talkdown metrics.
const meterName = "github.com/kallevis/talkdown"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TurnDuration tracks full turn evaluation latency.
	TurnDuration metric.Float64Histogram

	// GatewayDuration tracks narrative oracle call latency.
	GatewayDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Counters ---

	// GatewayRequests counts oracle calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	GatewayRequests metric.Int64Counter

	// Fallbacks counts turns answered by the safe fallback path. Use with
	// attribute.String("cause", ...): gateway kind or "parse".
	Fallbacks metric.Int64Counter

	// ParseStrategies counts which extraction strategy rescued the oracle
	// text. Use with attribute.String("strategy", ...).
	ParseStrategies metric.Int64Counter

	// DedupCollisions counts reply collisions caught by the policy
	// enforcer. Use with attribute.String("resolution", ...).
	DedupCollisions metric.Int64Counter

	// StageResults counts stage gate outcomes. Use with attributes:
	//   attribute.String("level", ...), attribute.String("result", ...)
	StageResults metric.Int64Counter

	// Hangups counts NPC-terminated calls by level.
	Hangups metric.Int64Counter

	// Reveals counts code disclosures by level.
	Reveals metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a pipeline dominated by one oracle round trip.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("talkdown.turn.duration",
		metric.WithDescription("Latency of full turn evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GatewayDuration, err = m.Float64Histogram("talkdown.gateway.duration",
		metric.WithDescription("Latency of narrative oracle calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("talkdown.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("talkdown.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.GatewayRequests, err = m.Int64Counter("talkdown.gateway.requests",
		metric.WithDescription("Total oracle requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("talkdown.turn.fallbacks",
		metric.WithDescription("Total turns answered by the safe fallback path, by cause."),
	); err != nil {
		return nil, err
	}
	if met.ParseStrategies, err = m.Int64Counter("talkdown.parse.strategies",
		metric.WithDescription("Oracle text extraction strategy outcomes."),
	); err != nil {
		return nil, err
	}
	if met.DedupCollisions, err = m.Int64Counter("talkdown.reply.dedup_collisions",
		metric.WithDescription("Reply collisions caught by the policy enforcer, by resolution."),
	); err != nil {
		return nil, err
	}
	if met.StageResults, err = m.Int64Counter("talkdown.stage.results",
		metric.WithDescription("Stage gate outcomes by level and result."),
	); err != nil {
		return nil, err
	}
	if met.Hangups, err = m.Int64Counter("talkdown.game.hangups",
		metric.WithDescription("NPC-terminated calls by level."),
	); err != nil {
		return nil, err
	}
	if met.Reveals, err = m.Int64Counter("talkdown.game.reveals",
		metric.WithDescription("Code disclosures by level."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("talkdown.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("talkdown.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGatewayRequest records one oracle request with the standard
// attribute set.
func (m *Metrics) RecordGatewayRequest(ctx context.Context, provider, status string) {
	m.GatewayRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordFallback records one safe-fallback turn by cause.
func (m *Metrics) RecordFallback(ctx context.Context, cause string) {
	m.Fallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cause", cause)),
	)
}

// RecordStageResult records one stage gate outcome.
func (m *Metrics) RecordStageResult(ctx context.Context, level string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	m.StageResults.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("level", level),
			attribute.String("result", result),
		),
	)
}

// RecordProviderError records one collaborator error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
