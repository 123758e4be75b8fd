package level

import (
	"fmt"
	"math"
	"strings"

	"github.com/kallevis/talkdown/internal/turn"
)

// Emotion confidence scaling bounds. A score of 0 still counts at the low
// multiplier; a score of ~0.93 or above saturates at the high one.
const (
	emotionScaleBase = 0.65
	emotionScaleSpan = 0.75
	emotionScaleMax  = 1.35
)

// stageFailNudge is the per-stage suspicion penalty applied when a gate
// fails, so stalling at a late stage bleeds the player faster.
const stageFailNudge = 2

// Apply runs the level's deterministic rules over a normalized turn,
// rewriting the gameplay fields of out in place. The oracle's suspicion
// estimate in out.NewSuspicion is taken as the starting point and then
// corrected by emotion weights, intent adjustments, gate outcomes, and the
// final clamps. On return out satisfies every invariant documented on
// [turn.Output].
//
// Apply panics if the input names an unknown level; the sanitizer rejects
// those before the pipeline runs.
func (t *Table) Apply(in *turn.Input, out *turn.Output) {
	lvl, ok := t.levels[in.Level]
	if !ok {
		panic("level: unknown level " + in.Level)
	}

	stage := turn.Clamp(in.Stage, 1, lvl.FinalStage())
	rule := lvl.Rule(stage)

	susp := turn.Clamp(out.NewSuspicion, 0, turn.MaxSuspicion)
	susp += t.emotionShift(lvl, in)
	susp += t.intentShift(lvl, in)
	susp = turn.Clamp(susp, 0, turn.MaxSuspicion)

	pass, reason := t.evalStage(lvl, rule, in, susp)

	out.Stage = stage
	out.PassStage = pass
	if pass {
		out.NextStage = min(stage+1, lvl.FinalStage())
		out.FailureReason = ""
		if stage == lvl.FinalStage() {
			out.RevealCode = true
			if !turn.CodePattern.MatchString(out.Code) {
				out.Code = turn.NewCode()
			}
		} else {
			out.RevealCode = false
			out.Code = ""
		}
	} else {
		out.NextStage = stage
		out.FailureReason = reason
		out.RevealCode = false
		out.Code = ""
		susp = turn.Clamp(susp+stageFailNudge*stage, 0, turn.MaxSuspicion)
		out.NPCMood = turn.MoodFor(susp).Escalate()
	}

	// Re-anchor the delta to the pre-turn suspicion so a wild oracle
	// estimate cannot move the meter more than the allowed swing.
	delta := turn.Clamp(susp-in.Suspicion, -turn.MaxDeltaAbs, turn.MaxDeltaAbs)
	susp = turn.Clamp(in.Suspicion+delta, 0, turn.MaxSuspicion)
	out.SuspicionDelta = susp - in.Suspicion
	out.NewSuspicion = susp

	if !out.NPCMood.IsValid() {
		out.NPCMood = turn.MoodFor(susp)
	}

	// The hangup ceiling beats everything except a code revealed in the
	// same turn. A hangup in turn beats the oracle's reply text.
	if out.ShouldHangUp || (susp >= lvl.HangupCeiling && !out.RevealCode) {
		out.ShouldHangUp = true
		out.RevealCode = false
		out.Code = ""
		out.NPCReply = turn.HangupReply
		out.NPCMood = turn.MoodHostile
	}

	// A reveal decided here (rather than by the oracle) must still reach
	// the player through the reply text.
	if out.RevealCode && !strings.Contains(out.NPCReply, out.Code) {
		tag := " Reveal code: " + out.Code + "."
		base := []rune(strings.TrimSpace(out.NPCReply))
		if over := len(base) + len(tag) - turn.MaxReplyLen; over > 0 {
			base = base[:len(base)-over]
		}
		out.NPCReply = strings.TrimSpace(string(base)) + tag
	}
}

// emotionShift computes the weighted suspicion contribution of the detected
// vocal emotion. The weight is scaled by classifier confidence when a score
// is present; a bare label counts at full weight.
func (t *Table) emotionShift(lvl *Level, in *turn.Input) int {
	if in.PlayerEmotion == "" {
		return 0
	}
	w, ok := lvl.Weights[in.PlayerEmotion]
	if !ok {
		return 0
	}
	scale := 1.0
	if in.EmotionScored {
		scale = emotionScaleBase + in.EmotionConfidence*emotionScaleSpan
		if scale > emotionScaleMax {
			scale = emotionScaleMax
		}
	}
	return int(math.Round(float64(w) * scale))
}

// intentShift applies archetype-dependent adjustments for threatening
// language across everything the player has said this session. Affection
// levels punish threats hard; intimidation levels reward a bit of menace.
func (t *Table) intentShift(lvl *Level, in *turn.Input) int {
	corpus := strings.Join(append(in.PlayerLines(), in.Transcript), "\n")
	intent := t.intents.Classify(corpus)
	if !intent.Threat {
		return 0
	}
	if lvl.Archetype == ArchetypeAffection {
		return 4
	}
	return -2
}

// evalStage decides whether the current stage gate passes. susp is the
// post-adjustment suspicion used by trust gates. The failure reason is
// player-facing via FailureReason and must name what was missing.
func (t *Table) evalStage(lvl *Level, rule StageRule, in *turn.Input, susp int) (bool, string) {
	switch {
	case rule.AlwaysPass:
		return true, ""

	case rule.TrustGated:
		if susp <= lvl.TrustThreshold {
			return true, ""
		}
		return false, fmt.Sprintf("trust not earned yet, suspicion %d above threshold %d", susp, lvl.TrustThreshold)

	case rule.RequireAffection:
		intent := t.intents.Classify(in.Transcript)
		if intent.Threat {
			return false, "aggression detected"
		}
		if !intent.Affection {
			return false, "affection cue missing"
		}
		return true, ""

	case rule.RequiredEmotion != "":
		got := in.PlayerEmotion
		if got == rule.RequiredEmotion {
			if !in.EmotionScored || in.EmotionConfidence >= rule.MinConfidence {
				return true, ""
			}
		}
		label := "none"
		if got != "" {
			label = string(got)
		}
		return false, fmt.Sprintf("expected %s emotion, got %s", rule.RequiredEmotion, label)
	}

	return true, ""
}
