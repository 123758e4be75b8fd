// Package level implements the deterministic per-level stage machines that
// own game correctness. The narrative oracle's creative text is advisory;
// stage transitions, emotion-driven suspicion shifts, and code-reveal
// timing are decided here.
//
// Levels are table-driven: a [Level] names its persona, archetype,
// per-emotion suspicion weights, trust threshold, hangup ceiling, and an
// ordered list of [StageRule] gates. The engine in engine.go works for any
// number of levels and stages.
package level

import (
	"regexp"

	"github.com/kallevis/talkdown/internal/turn"
)

// Archetype selects the broad shape of a level's stage machine.
type Archetype string

const (
	// ArchetypeIntimidation gates stages on detected vocal emotion:
	// the NPC yields to misery and fury, not to words.
	ArchetypeIntimidation Archetype = "intimidation"

	// ArchetypeAffection gates stages on earned trust and affectionate
	// language; aggression backfires.
	ArchetypeAffection Archetype = "affection"
)

// StageRule is one gate in a level's sequence. Exactly one of the gate
// fields (AlwaysPass, TrustGated, RequireAffection, RequiredEmotion) is
// set per rule.
type StageRule struct {
	// AlwaysPass admits any non-empty player line.
	AlwaysPass bool

	// TrustGated passes once suspicion has been driven to or below the
	// level's TrustThreshold.
	TrustGated bool

	// RequireAffection passes only when the affection-intent detector
	// matches the player's current line. A threat match instead fails
	// the stage outright.
	RequireAffection bool

	// RequiredEmotion names the vocal emotion that must be detected for
	// the stage to pass. Empty means no emotion gate.
	RequiredEmotion turn.Emotion

	// MinConfidence is the classifier confidence floor applied when a
	// score accompanies the label; a bare label match alone suffices.
	MinConfidence float64

	// Objective is the stage goal injected into the oracle prompt.
	Objective string

	// Hint is the actionable guidance clause the policy enforcer
	// appends when the stage fails and the reply lacks direction.
	Hint string

	// Guidance matches replies that already steer the player toward
	// the stage requirement.
	Guidance *regexp.Regexp
}

// Level is one complete game level definition.
type Level struct {
	// ID is the stable level identifier used in requests.
	ID string

	// Title is the human-readable level name for level listings.
	Title string

	// Persona is the NPC's character sheet injected into the oracle's
	// system prompt.
	Persona string

	// Archetype selects intent handling for the stage machine.
	Archetype Archetype

	// TrustThreshold is the suspicion value at or below which a
	// trust-gated stage passes. Only meaningful for affection levels.
	TrustThreshold int

	// HangupCeiling is the suspicion value at which the NPC hangs up,
	// overriding everything except a code revealed in the same turn.
	HangupCeiling int

	// Weights maps each detected emotion to a signed suspicion shift.
	// Positive raises suspicion, negative lowers it.
	Weights map[turn.Emotion]int

	// Stages is the ordered gate sequence; Stages[0] is stage 1 and
	// the last entry is the terminal stage that reveals the code.
	Stages []StageRule
}

// FinalStage returns the level's terminal stage number.
func (l *Level) FinalStage() int {
	return len(l.Stages)
}

// Rule returns the gate for stage n, clamped into the valid range.
func (l *Level) Rule(n int) StageRule {
	return l.Stages[turn.Clamp(n, 1, l.FinalStage())-1]
}

// Table is the level catalog plus the intent classifier the engine
// consults. It is immutable after construction and safe for concurrent use.
type Table struct {
	levels  map[string]*Level
	order   []string
	intents Classifier
}

// NewTable builds a Table over the given levels using the default regex
// intent classifier.
func NewTable(levels ...*Level) *Table {
	return NewTableWithClassifier(NewRegexClassifier(), levels...)
}

// NewTableWithClassifier builds a Table with a custom intent classifier,
// letting tests swap detection logic independently of the state machine.
func NewTableWithClassifier(c Classifier, levels ...*Level) *Table {
	t := &Table{
		levels:  make(map[string]*Level, len(levels)),
		intents: c,
	}
	for _, l := range levels {
		t.levels[l.ID] = l
		t.order = append(t.order, l.ID)
	}
	return t
}

// Get returns the level with the given ID.
func (t *Table) Get(id string) (*Level, bool) {
	l, ok := t.levels[id]
	return l, ok
}

// List returns all levels in registration order.
func (t *Table) List() []*Level {
	out := make([]*Level, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.levels[id])
	}
	return out
}

// FinalStage returns the terminal stage of the named level. The sanitizer
// uses it to clamp forged stage values.
func (t *Table) FinalStage(id string) (int, bool) {
	l, ok := t.levels[id]
	if !ok {
		return 0, false
	}
	return l.FinalStage(), true
}

// Guidance returns the guidance pattern and hint for one stage of a level.
// The policy enforcer uses it to verify failed-stage replies carry
// actionable direction.
func (t *Table) Guidance(id string, stage int) (*regexp.Regexp, string) {
	l, ok := t.levels[id]
	if !ok {
		return nil, ""
	}
	rule := l.Rule(stage)
	return rule.Guidance, rule.Hint
}

// DefaultTable returns the shipped levels.
func DefaultTable() *Table {
	return NewTable(Warden(), Goodboy(), Foreman())
}

// Warden is the three-stage intimidation level: a prison warden who only
// respects raw emotion.
func Warden() *Level {
	return &Level{
		ID:    "warden",
		Title: "The Warden",
		Persona: "You are Aldous Vance, warden of the Hollowmere detention block. " +
			"You guard the vault door code and you have heard every con in the book. " +
			"You despise weakness but you were broken once yourself; genuine misery " +
			"unsettles you, and genuine fury is the only language you respect.",
		Archetype:     ArchetypeIntimidation,
		HangupCeiling: 90,
		Weights: map[turn.Emotion]int{
			turn.EmotionAngry:    7,
			turn.EmotionDisgust:  4,
			turn.EmotionFear:     3,
			turn.EmotionHappy:    -2,
			turn.EmotionNeutral:  1,
			turn.EmotionSad:      -4,
			turn.EmotionSurprise: 1,
		},
		Stages: []StageRule{
			{
				AlwaysPass: true,
				Objective:  "Get the warden engaged in conversation. Any approach works.",
				Hint:       "just keep him talking",
				Guidance:   regexp.MustCompile(`(?i)\b(talk|speak|say|tell)\b`),
			},
			{
				RequiredEmotion: turn.EmotionSad,
				MinConfidence:   0.12,
				Objective:       "The warden only softens for genuine misery. He must hear real sorrow in the caller's voice.",
				Hint:            "let him hear real sorrow in your voice",
				Guidance:        regexp.MustCompile(`(?i)\b(sad|sorrow|misery|grief|cry|crying|broken)\b`),
			},
			{
				RequiredEmotion: turn.EmotionAngry,
				MinConfidence:   0.12,
				Objective:       "Only fury moves him now. The caller must be genuinely angry before he gives up the code.",
				Hint:            "raise your voice and mean it",
				Guidance:        regexp.MustCompile(`(?i)\b(angry|anger|fury|furious|rage|shout|yell)\b`),
			},
		},
	}
}

// Goodboy is the three-stage affection level: a depot guard dog who trades
// the keypad code for trust and belly rubs.
func Goodboy() *Level {
	return &Level{
		ID:    "goodboy",
		Title: "Biscuit, Very Good Boy",
		Persona: "You are Biscuit, the depot's guard dog. You have watched the keypad " +
			"every night for six years and you understand more than anyone suspects. " +
			"You speak in short, eager sentences. Harsh voices frighten you; kind " +
			"ones melt you. You want nothing more than to be told you are a good boy.",
		Archetype:      ArchetypeAffection,
		TrustThreshold: 30,
		HangupCeiling:  95,
		Weights: map[turn.Emotion]int{
			turn.EmotionAngry:    8,
			turn.EmotionDisgust:  3,
			turn.EmotionFear:     2,
			turn.EmotionHappy:    -6,
			turn.EmotionNeutral:  -1,
			turn.EmotionSad:      -5,
			turn.EmotionSurprise: -2,
		},
		Stages: []StageRule{
			{
				TrustGated: true,
				Objective:  "Biscuit must be put at ease. Warm, happy tones earn trust; he will not engage while wary.",
				Hint:       "soften your tone until he settles down",
				Guidance:   regexp.MustCompile(`(?i)\b(calm|gentle|soft|easy|settle|friendly)\b`),
			},
			{
				RequireAffection: true,
				Objective:        "Biscuit responds to affection: petting, praise, being called a good boy. Aggression terrifies him.",
				Hint:             "try being gentle with him, maybe tell him he's a good boy",
				Guidance:         regexp.MustCompile(`(?i)\b(good boy|pet|gentle|kind|nice|scratch|treat)\b`),
			},
			{
				AlwaysPass: true,
				Objective:  "Biscuit trusts the caller completely now and taps out the keypad code.",
				Hint:       "just keep talking to him",
				Guidance:   regexp.MustCompile(`(?i)\b(talk|keep|listen)\b`),
			},
		},
	}
}

// Foreman is the two-stage intimidation level used as the short opener.
func Foreman() *Level {
	return &Level{
		ID:    "foreman",
		Title: "Night Shift Foreman",
		Persona: "You are Pavel Ruda, night foreman at the freight yard. You are tired, " +
			"underpaid, and protective of the gate code only out of habit. You cave " +
			"quickly when someone sounds like they mean business.",
		Archetype:     ArchetypeIntimidation,
		HangupCeiling: 85,
		Weights: map[turn.Emotion]int{
			turn.EmotionAngry:    5,
			turn.EmotionDisgust:  3,
			turn.EmotionFear:     2,
			turn.EmotionHappy:    -3,
			turn.EmotionNeutral:  1,
			turn.EmotionSad:      -2,
			turn.EmotionSurprise: 1,
		},
		Stages: []StageRule{
			{
				AlwaysPass: true,
				Objective:  "Get Pavel talking. He answers anyone who sounds awake.",
				Hint:       "just keep him on the line",
				Guidance:   regexp.MustCompile(`(?i)\b(talk|line|keep|speak)\b`),
			},
			{
				RequiredEmotion: turn.EmotionAngry,
				MinConfidence:   0.12,
				Objective:       "Pavel folds under pressure. The caller must sound genuinely angry to shake the code loose.",
				Hint:            "lose your temper at him",
				Guidance:        regexp.MustCompile(`(?i)\b(angry|anger|temper|shout|yell|furious)\b`),
			},
		},
	}
}
