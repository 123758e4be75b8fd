// Package llm defines the Provider interface for the narrative text
// generation backends that voice the NPC.
//
// A provider wraps a remote or local model API (e.g., OpenAI, or any
// backend reachable through any-llm-go) and exposes a single blocking
// completion call. The turn evaluation engine treats the generated text as
// advisory: it is parsed, normalized, and then overridden by the
// deterministic level rule engine, so providers never need to guarantee
// well-formed output.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation promptly.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged prompt message.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit; zero values mean the backend did not report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce one NPC
// turn. At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is the level persona plus formatting constraints,
	// injected before the conversation history.
	SystemPrompt string

	// Messages is the ordered turn context; the last message carries the
	// player's current utterance and game state.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means
	// use the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int

	// ForceJSON asks the backend for strict-JSON response formatting.
	// Providers without native support ignore it; the response parser
	// copes either way.
	ForceJSON bool
}

// CompletionResponse is the full model reply.
type CompletionResponse struct {
	// Content is the raw generated text, expected (but not guaranteed)
	// to contain one JSON object.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any narrative generation backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider's short identifier for logs and metrics.
	Name() string
}
