// Package turn defines the data model for one evaluated game turn: the
// sanitized player input, the finalized NPC output, and the shared enums
// (emotion labels, NPC moods, speaker roles) used across the pipeline.
//
// A [Input]/[Output] pair lives only for the duration of a single request.
// The only state that outlives a turn is the reply-dedup store; see
// internal/replystore.
package turn

import (
	"math/rand/v2"
	"regexp"
	"strconv"
)

// Role identifies the speaker of a history entry.
type Role string

const (
	RoleNPC    Role = "npc"
	RolePlayer Role = "player"
)

// IsValid reports whether r is a recognised speaker role.
func (r Role) IsValid() bool {
	return r == RoleNPC || r == RolePlayer
}

// Emotion is a vocal emotion label from the fixed 7-value set produced by
// the speech emotion classifier.
type Emotion string

const (
	EmotionAngry    Emotion = "angry"
	EmotionDisgust  Emotion = "disgust"
	EmotionFear     Emotion = "fear"
	EmotionHappy    Emotion = "happy"
	EmotionNeutral  Emotion = "neutral"
	EmotionSad      Emotion = "sad"
	EmotionSurprise Emotion = "surprise"
)

// Emotions lists every valid emotion label.
var Emotions = []Emotion{
	EmotionAngry, EmotionDisgust, EmotionFear, EmotionHappy,
	EmotionNeutral, EmotionSad, EmotionSurprise,
}

// IsValid reports whether e is one of the seven classifier labels.
func (e Emotion) IsValid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Mood is the NPC's audible disposition, derived from suspicion unless the
// rule engine overrides it.
type Mood string

const (
	MoodCalm       Mood = "calm"
	MoodSuspicious Mood = "suspicious"
	MoodHostile    Mood = "hostile"
)

// IsValid reports whether m is a recognised mood.
func (m Mood) IsValid() bool {
	return m == MoodCalm || m == MoodSuspicious || m == MoodHostile
}

// MoodFor derives the NPC mood from a suspicion value using the fixed
// thresholds: >=75 hostile, >=40 suspicious, otherwise calm.
func MoodFor(suspicion int) Mood {
	switch {
	case suspicion >= 75:
		return MoodHostile
	case suspicion >= 40:
		return MoodSuspicious
	default:
		return MoodCalm
	}
}

// Escalate returns the mood one step closer to hostile. Hostile stays hostile.
func (m Mood) Escalate() Mood {
	switch m {
	case MoodCalm:
		return MoodSuspicious
	default:
		return MoodHostile
	}
}

// Limits applied by the sanitizer and normalizer.
const (
	MaxTranscriptLen = 400
	MaxHistoryLen    = 12
	MaxHistoryEntry  = 500
	MaxReplyLen      = 220
	MaxRound         = 25
	MaxTimeRemaining = 120
	MaxSuspicion     = 100
	MaxDeltaAbs      = 20
)

// HangupReply is the fixed line emitted whenever the NPC terminates the
// call. It overrides whatever the oracle produced.
const HangupReply = "We're done here. Don't call this number again."

// CodePattern matches a valid 4-digit secret code.
var CodePattern = regexp.MustCompile(`^\d{4}$`)

// NewCode returns a uniformly random 4-digit code in [1000, 9999].
func NewCode() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// HistoryEntry is one prior line of the session, oldest first.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Input is the canonical, validated turn payload produced by the sanitizer.
// All numeric fields are already clamped into range.
type Input struct {
	// SessionID scopes reply deduplication. Empty means the shared
	// "global" bucket.
	SessionID string

	// Transcript is the player's utterance, trimmed and non-empty.
	Transcript string

	// TimeRemaining is the seconds left on the level clock, 0..120.
	TimeRemaining int

	// Suspicion is the NPC's distrust before this turn, 0..100.
	Suspicion int

	// History holds the last MaxHistoryLen lines of the session.
	History []HistoryEntry

	// Round counts player turns including this one, 1..25.
	Round int

	// Stage is the player's current position in the level's gate
	// sequence, 1..the level's final stage.
	Stage int

	// Level identifies the level whose stage machine governs this turn.
	Level string

	// PlayerEmotion is the detected vocal emotion, or "" when the
	// classifier produced nothing usable.
	PlayerEmotion Emotion

	// EmotionConfidence is the classifier confidence in [0,1]. Only
	// meaningful when EmotionScored is true.
	EmotionConfidence float64

	// EmotionScored reports whether a confidence score accompanied the
	// emotion label. Some classifiers return a bare label.
	EmotionScored bool
}

// Scores are the oracle's per-turn performance ratings, each clamped 1..10.
type Scores struct {
	Persuasion  int `json:"persuasion"`
	Confidence  int `json:"confidence"`
	Hesitation  int `json:"hesitation"`
	Consistency int `json:"consistency"`
}

// Output is the finalized NPC response for one turn. Every field satisfies
// the engine invariants regardless of what the oracle produced:
//
//   - NewSuspicion is in [0,100] and SuspicionDelta in [-20,20], with
//     SuspicionDelta == NewSuspicion - input suspicion after clamping.
//   - RevealCode implies Code matches ^\d{4}$.
//   - ShouldHangUp implies RevealCode == false and Code == "".
//   - NextStage only advances past Stage when PassStage is true.
type Output struct {
	NPCReply       string `json:"npcReply"`
	Scores         Scores `json:"scores"`
	SuspicionDelta int    `json:"suspicionDelta"`
	NewSuspicion   int    `json:"newSuspicion"`
	ShouldHangUp   bool   `json:"shouldHangUp"`
	RevealCode     bool   `json:"revealCode"`
	Code           string `json:"code,omitempty"`
	NPCMood        Mood   `json:"npcMood"`
	Stage          int    `json:"stage"`
	NextStage      int    `json:"nextStage"`
	PassStage      bool   `json:"passStage"`
	FailureReason  string `json:"failureReason,omitempty"`
}

// PlayerLines returns the player-side utterances of the history, oldest
// first. Used by the intent detectors to build the cumulative corpus.
func (in *Input) PlayerLines() []string {
	var lines []string
	for _, h := range in.History {
		if h.Role == RolePlayer {
			lines = append(lines, h.Content)
		}
	}
	return lines
}

// NPCLines returns the NPC-side utterances of the history, oldest first.
// Used by the reply policy enforcer for in-session dedup.
func (in *Input) NPCLines() []string {
	var lines []string
	for _, h := range in.History {
		if h.Role == RoleNPC {
			lines = append(lines, h.Content)
		}
	}
	return lines
}

// Clamp returns v limited to the inclusive range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
