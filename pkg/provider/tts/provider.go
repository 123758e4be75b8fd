// Package tts defines the Provider interface for Text-to-Speech backends.
//
// The NPC's reply is synthesized once per turn after evaluation completes,
// so the contract is a single batch call returning an encoded audio stream
// rather than a fragment-by-fragment pipeline. Mood and suspicion travel
// with the text so backends can bias delivery (a hostile NPC at suspicion
// 90 should not sound like a cheerful one at 10).
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"io"
)

// Request carries one synthesis job.
type Request struct {
	// Text is the NPC line to speak. Must be non-empty.
	Text string

	// Mood is the NPC disposition: "calm", "suspicious", or "hostile".
	// Providers may ignore it if the backend has no delivery controls.
	Mood string

	// Suspicion is the NPC's 0-100 distrust after this turn. Higher
	// values should produce a tenser delivery.
	Suspicion int

	// Voice selects a provider-specific voice ID. Empty means the
	// provider default.
	Voice string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts req.Text into an encoded audio stream. It
	// returns the stream, its MIME content type (e.g., "audio/mpeg"),
	// and an error. The caller owns the stream and must close it.
	Synthesize(ctx context.Context, req Request) (io.ReadCloser, string, error)
}
