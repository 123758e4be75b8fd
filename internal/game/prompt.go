package game

import (
	"fmt"
	"strings"

	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/turn"
	"github.com/kallevis/talkdown/pkg/provider/llm"
)

// Oracle generation knobs. The reply budget is in words because token
// limits differ per provider; MaxTokens is a generous ceiling on top.
const (
	promptMaxWords    = 35
	promptMaxTokens   = 300
	promptTemperature = 0.9
)

// responseContract is appended to every system prompt. The oracle's
// gameplay fields are advisory; the contract exists to keep its output
// parseable, not to trust it.
const responseContract = `Respond with exactly one JSON object and nothing else. No markdown, no code fences, no commentary. Fields:
{"npcReply": string (your in-character line, at most %d words),
"persuasion": int 1-10, "confidence": int 1-10, "hesitation": int 1-10, "consistency": int 1-10,
"suspicionDelta": int -20..20, "newSuspicion": int 0-100,
"shouldHangUp": bool, "revealCode": bool, "npcMood": "calm"|"suspicious"|"hostile"}`

// BuildPrompt assembles the oracle request for one turn: the level persona
// and stage objective as the system prompt, the bounded session history as
// alternating messages, and the player's current line last.
func BuildPrompt(in *turn.Input, lvl *level.Level) *llm.CompletionRequest {
	rule := lvl.Rule(in.Stage)

	var sys strings.Builder
	sys.WriteString(lvl.Persona)
	sys.WriteString("\n\nYou are on a phone call. The caller is trying to extract a secret 4-digit code from you.")
	fmt.Fprintf(&sys, "\nCurrent scene objective for the caller: %s", rule.Objective)
	fmt.Fprintf(&sys, "\nYour current suspicion of the caller is %d of 100 and your mood is %s.",
		in.Suspicion, turn.MoodFor(in.Suspicion))
	fmt.Fprintf(&sys, "\nThere are %d seconds left on the call.", in.TimeRemaining)
	sys.WriteString("\nStay in character. Never mention being an AI or a game.\n\n")
	fmt.Fprintf(&sys, responseContract, promptMaxWords)

	req := &llm.CompletionRequest{
		SystemPrompt: sys.String(),
		Temperature:  promptTemperature,
		MaxTokens:    promptMaxTokens,
		ForceJSON:    true,
	}
	for _, h := range in.History {
		role := llm.RoleUser
		if h.Role == turn.RoleNPC {
			role = llm.RoleAssistant
		}
		req.Messages = append(req.Messages, llm.Message{Role: role, Content: h.Content})
	}
	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: in.Transcript})

	return req
}

// RetryPrompt builds the one-shot dedup retry: the same turn context plus
// an explicit instruction to avoid the lines already spoken.
func RetryPrompt(in *turn.Input, lvl *level.Level, banned []string) *llm.CompletionRequest {
	req := BuildPrompt(in, lvl)
	var b strings.Builder
	b.WriteString(req.SystemPrompt)
	b.WriteString("\n\nYou already said the following lines this call. Your next line must not repeat or closely paraphrase any of them:")
	for _, line := range banned {
		fmt.Fprintf(&b, "\n- %q", line)
	}
	req.SystemPrompt = b.String()
	return req
}
