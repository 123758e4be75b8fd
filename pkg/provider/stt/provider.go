// Package stt defines the Provider interface for Speech-to-Text backends.
//
// Unlike a live-call pipeline, the game receives one complete utterance per
// turn (the browser uploads the recorded clip when the player releases the
// talk button), so the contract is a single batch transcription call rather
// than a streaming session.
//
// Implementations must be safe for concurrent use; multiple turns may be
// transcribed in parallel.
package stt

import "context"

// MaxAudioBytes is the upper bound on a single uploaded utterance. Larger
// payloads must be rejected before reaching a provider.
const MaxAudioBytes = 8 << 20 // 8 MiB

// Result is a finished transcription.
type Result struct {
	// Text is the transcribed speech content, trimmed.
	Text string

	// Language is the detected or assumed language code (e.g., "en").
	// Empty if the provider does not report it.
	Language string

	// Confidence is the overall confidence score (0.0-1.0). Zero when
	// the provider does not report confidence.
	Confidence float64
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe converts one complete audio clip into text. audio holds
	// encoded bytes (WAV, WebM/Opus, OGG, MP3 — consult the
	// implementation); langHint is an optional language code the
	// provider may use to bias recognition, "" for auto-detect.
	//
	// Returns an error if the audio cannot be decoded, the backend is
	// unreachable, or ctx is cancelled first.
	Transcribe(ctx context.Context, audio []byte, langHint string) (*Result, error)
}
