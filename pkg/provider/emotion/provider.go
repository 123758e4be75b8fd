// Package emotion defines the Provider interface for speech emotion
// recognition backends.
//
// The classifier sees the same uploaded clip as the STT provider and
// returns one label from a fixed 7-value set plus a confidence score.
// Emotion classification is best-effort by contract: a failed or missing
// classification must never fail the turn — the evaluation engine treats
// the emotion as absent.
package emotion

import "context"

// Labels is the fixed emotion vocabulary shared with the rule engine.
var Labels = []string{"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise"}

// Prediction is a finished classification.
type Prediction struct {
	// Label is the top-scoring emotion, one of [Labels].
	Label string

	// Confidence is the score of Label in [0,1].
	Confidence float64

	// Scores holds the full per-label distribution when the backend
	// reports one. May be nil.
	Scores map[string]float64
}

// Provider is the abstraction over any speech emotion classifier.
type Provider interface {
	// Classify analyses one complete audio clip. audio holds encoded
	// bytes in any common container format.
	//
	// Returns an error if the clip cannot be decoded or the backend is
	// unreachable; callers degrade to "no emotion" rather than failing.
	Classify(ctx context.Context, audio []byte) (*Prediction, error)
}
