package game

import (
	"github.com/kallevis/talkdown/internal/turn"
)

// fallbackLines are the "bad line" replies used when the oracle is down,
// keyed by the mood the NPC is currently in so the glitch stays in tone.
var fallbackLines = map[turn.Mood]string{
	turn.MoodCalm:       "Sorry, this line is terrible. Say that again?",
	turn.MoodSuspicious: "You're breaking up. Repeat that, slowly.",
	turn.MoodHostile:    "I can't hear a word you're saying. Try again.",
}

// fallbackSuspicionBump is the deterministic cost of a dropped turn.
const fallbackSuspicionBump = 2

// Fallback builds the deterministic oracle-unavailable output for a turn.
// It is pure and does no I/O. The result still runs through the level rule
// engine and reply policy enforcer so stage invariants hold.
func Fallback(in *turn.Input) *turn.Output {
	mood := turn.MoodFor(in.Suspicion)
	return &turn.Output{
		NPCReply:       fallbackLines[mood],
		Scores:         turn.Scores{Persuasion: 5, Confidence: 5, Hesitation: 5, Consistency: 5},
		SuspicionDelta: fallbackSuspicionBump,
		NewSuspicion:   turn.Clamp(in.Suspicion+fallbackSuspicionBump, 0, turn.MaxSuspicion),
		ShouldHangUp:   false,
		RevealCode:     false,
		NPCMood:        mood,
		Stage:          in.Stage,
		NextStage:      in.Stage,
	}
}
