// Package game implements the turn evaluation pipeline: sanitize the raw
// payload, prompt the narrative oracle, parse and normalize its output, run
// the deterministic level rules, and enforce the reply policy. The only
// error a caller ever sees is a [ValidationError] from the sanitizer; every
// downstream failure is absorbed by the safe fallback path.
package game

import "fmt"

// ValidationError reports a malformed turn payload. It is the only error
// kind surfaced to HTTP clients, as a 4xx.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// GatewayErrorKind classifies a narrative oracle failure.
type GatewayErrorKind string

const (
	GatewayUnreachable GatewayErrorKind = "unreachable"
	GatewayTimeout     GatewayErrorKind = "timeout"
	GatewayUpstream    GatewayErrorKind = "upstream"
)

// GatewayError wraps a failed oracle call. All kinds route to the safe
// fallback; the kind only matters for logs and metrics.
type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("narrative gateway %s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ParseError reports oracle text from which no JSON object could be
// extracted. Routed to the safe fallback.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle response not parseable as JSON object (%d bytes)", len(e.Raw))
}

// PolicyEnforcementError reports an unexpected failure while finalizing a
// reply. The pre-policy output is returned instead of failing the turn.
type PolicyEnforcementError struct {
	Err error
}

func (e *PolicyEnforcementError) Error() string {
	return fmt.Sprintf("reply policy enforcement: %v", e.Err)
}

func (e *PolicyEnforcementError) Unwrap() error { return e.Err }
