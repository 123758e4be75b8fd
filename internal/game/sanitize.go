package game

import (
	"math"
	"strconv"
	"strings"

	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/turn"
)

// Sanitize validates and clamps an arbitrary decoded JSON object into a
// canonical [turn.Input]. Numeric fields out of range are clamped rather
// than rejected; only a missing transcript, a malformed history entry, or
// an unknown level fails the request.
func Sanitize(raw map[string]any, levels *level.Table) (*turn.Input, error) {
	in := &turn.Input{}

	in.SessionID = strings.TrimSpace(asString(raw["sessionId"]))
	if in.SessionID == "" {
		in.SessionID = "global"
	}

	in.Transcript = strings.TrimSpace(asString(raw["transcript"]))
	if in.Transcript == "" {
		return nil, &ValidationError{Field: "transcript", Reason: "must be a non-empty string"}
	}
	in.Transcript = truncateRunes(in.Transcript, turn.MaxTranscriptLen)

	in.Level = asString(raw["level"])
	if _, ok := levels.Get(in.Level); !ok {
		return nil, &ValidationError{Field: "level", Reason: "unknown level identifier"}
	}

	history, err := sanitizeHistory(raw["history"])
	if err != nil {
		return nil, err
	}
	in.History = history

	in.TimeRemaining = turn.Clamp(asInt(raw["timeRemaining"], 0), 0, turn.MaxTimeRemaining)
	in.Suspicion = turn.Clamp(asInt(raw["suspicion"], 0), 0, turn.MaxSuspicion)

	// Round falls back to being derived from the history when absent or
	// nonsensical: player lines so far plus the current one.
	round := asInt(raw["round"], 0)
	if round < 1 {
		round = len(in.PlayerLines()) + 1
	}
	in.Round = turn.Clamp(round, 1, turn.MaxRound)

	final, _ := levels.FinalStage(in.Level)
	in.Stage = turn.Clamp(asInt(raw["stage"], 1), 1, final)

	if emo := turn.Emotion(asString(raw["playerEmotion"])); emo.IsValid() {
		in.PlayerEmotion = emo
		if conf, ok := asFloat(raw["emotionConfidence"]); ok {
			in.EmotionConfidence = clamp01(conf)
			in.EmotionScored = true
		}
	}

	return in, nil
}

func sanitizeHistory(v any) ([]turn.HistoryEntry, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &ValidationError{Field: "history", Reason: "must be an array"}
	}

	entries := make([]turn.HistoryEntry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: "history", Reason: "entries must be objects"}
		}
		role := turn.Role(asString(obj["role"]))
		if !role.IsValid() {
			return nil, &ValidationError{Field: "history", Reason: "entry role must be npc or player"}
		}
		content, ok := obj["content"].(string)
		if !ok {
			return nil, &ValidationError{Field: "history", Reason: "entry content must be a string"}
		}
		content = truncateRunes(content, turn.MaxHistoryEntry)
		entries = append(entries, turn.HistoryEntry{Role: role, Content: content})
	}

	if len(entries) > turn.MaxHistoryLen {
		entries = entries[len(entries)-turn.MaxHistoryLen:]
	}
	return entries, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt coerces JSON numbers (and numeric strings the oracle sometimes
// emits) to int, falling back to def for anything unusable.
func asInt(v any, def int) int {
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	return int(math.Round(f))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
