package game

import (
	"strings"

	"github.com/kallevis/talkdown/internal/turn"
)

// emptyReplyFallback replaces an oracle reply that was empty after trimming.
const emptyReplyFallback = "I'm listening. Say that again."

// Normalize coerces a parsed oracle object into a [turn.Output]. Every
// field is defaulted and clamped independently, so a missing or corrupt
// field never propagates: the rule engine downstream only ever sees fully
// valid values.
func Normalize(obj map[string]any, in *turn.Input) *turn.Output {
	out := &turn.Output{
		Stage:     in.Stage,
		NextStage: in.Stage,
	}

	out.Scores = turn.Scores{
		Persuasion:  normScore(obj["persuasion"], scoreField(obj, "persuasion")),
		Confidence:  normScore(obj["confidence"], scoreField(obj, "confidence")),
		Hesitation:  normScore(obj["hesitation"], scoreField(obj, "hesitation")),
		Consistency: normScore(obj["consistency"], scoreField(obj, "consistency")),
	}

	out.SuspicionDelta = turn.Clamp(asInt(obj["suspicionDelta"], 2), -turn.MaxDeltaAbs, turn.MaxDeltaAbs)

	if f, ok := asFloat(obj["newSuspicion"]); ok && f >= 0 && f <= float64(turn.MaxSuspicion) {
		out.NewSuspicion = asInt(obj["newSuspicion"], 0)
	} else {
		out.NewSuspicion = turn.Clamp(in.Suspicion+out.SuspicionDelta, 0, turn.MaxSuspicion)
	}

	out.RevealCode = asBool(obj["revealCode"])
	if code := asString(obj["code"]); turn.CodePattern.MatchString(code) {
		out.Code = code
	} else if out.RevealCode {
		out.Code = turn.NewCode()
	}

	// Safety net independent of oracle honesty: high suspicion hangs up,
	// and a rambling inconsistent caller gets cut off a little earlier.
	out.ShouldHangUp = asBool(obj["shouldHangUp"]) ||
		out.NewSuspicion >= 85 ||
		(out.Scores.Consistency <= 3 && in.Round >= 3 && out.NewSuspicion >= 70)
	if out.ShouldHangUp {
		out.RevealCode = false
		out.Code = ""
	}

	if mood := turn.Mood(asString(obj["npcMood"])); mood.IsValid() {
		out.NPCMood = mood
	} else {
		out.NPCMood = turn.MoodFor(out.NewSuspicion)
	}

	out.NPCReply = normReply(asString(obj["npcReply"]), out)

	return out
}

// normReply shapes the reply text: trim, truncate, default when empty,
// embed a revealed code, and force the fixed line on hangup.
func normReply(reply string, out *turn.Output) string {
	reply = truncateRunes(strings.TrimSpace(reply), turn.MaxReplyLen)
	if reply == "" {
		reply = emptyReplyFallback
	}
	if out.RevealCode && !strings.Contains(reply, out.Code) {
		reply = truncateRunes(reply, turn.MaxReplyLen-len(" Reveal code: 0000.")) +
			" Reveal code: " + out.Code + "."
	}
	if out.ShouldHangUp {
		reply = turn.HangupReply
	}
	return reply
}

// scoreField resolves a score that may live at the top level or nested
// under a "scores" object, as different oracle prompts produce both shapes.
func scoreField(obj map[string]any, name string) any {
	if nested, ok := obj["scores"].(map[string]any); ok {
		if v, ok := nested[name]; ok {
			return v
		}
	}
	return nil
}

func normScore(flat, nested any) int {
	v := flat
	if v == nil {
		v = nested
	}
	return turn.Clamp(asInt(v, 5), 1, 10)
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
