package level

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kallevis/talkdown/internal/turn"
)

func baseInput(level string, stage, suspicion int) *turn.Input {
	return &turn.Input{
		SessionID:  "s1",
		Transcript: "open the gate",
		Suspicion:  suspicion,
		Round:      stage,
		Stage:      stage,
		Level:      level,
	}
}

func baseOutput(in *turn.Input) *turn.Output {
	return &turn.Output{
		NPCReply:     "Who is this?",
		Scores:       turn.Scores{Persuasion: 5, Confidence: 5, Hesitation: 5, Consistency: 5},
		NewSuspicion: in.Suspicion,
		NPCMood:      turn.MoodFor(in.Suspicion),
		Stage:        in.Stage,
		NextStage:    in.Stage,
	}
}

func TestApplyInvariants(t *testing.T) {
	table := DefaultTable()
	emotions := append([]turn.Emotion{""}, turn.Emotions...)

	for _, lvl := range table.List() {
		for stage := 1; stage <= lvl.FinalStage(); stage++ {
			for _, emo := range emotions {
				for _, susp := range []int{0, 25, 50, 80, 100} {
					in := baseInput(lvl.ID, stage, susp)
					in.PlayerEmotion = emo
					in.EmotionConfidence = 0.8
					in.EmotionScored = emo != ""
					out := baseOutput(in)

					table.Apply(in, out)

					if out.NewSuspicion < 0 || out.NewSuspicion > 100 {
						t.Errorf("%s stage %d emo %q susp %d: newSuspicion %d out of range", lvl.ID, stage, emo, susp, out.NewSuspicion)
					}
					if out.SuspicionDelta < -20 || out.SuspicionDelta > 20 {
						t.Errorf("%s stage %d emo %q susp %d: delta %d out of range", lvl.ID, stage, emo, susp, out.SuspicionDelta)
					}
					if out.NewSuspicion-in.Suspicion != out.SuspicionDelta {
						t.Errorf("%s stage %d: delta %d does not match suspicion move %d -> %d", lvl.ID, stage, out.SuspicionDelta, in.Suspicion, out.NewSuspicion)
					}
					if out.RevealCode && !turn.CodePattern.MatchString(out.Code) {
						t.Errorf("%s stage %d: reveal without valid code %q", lvl.ID, stage, out.Code)
					}
					if out.ShouldHangUp && (out.RevealCode || out.Code != "") {
						t.Errorf("%s stage %d: hangup with reveal=%v code=%q", lvl.ID, stage, out.RevealCode, out.Code)
					}
					if out.NextStage < out.Stage || out.NextStage > lvl.FinalStage() {
						t.Errorf("%s stage %d: nextStage %d out of range", lvl.ID, stage, out.NextStage)
					}
					if !out.PassStage && out.NextStage != out.Stage {
						t.Errorf("%s stage %d: failed stage advanced to %d", lvl.ID, stage, out.NextStage)
					}
					if !out.NPCMood.IsValid() {
						t.Errorf("%s stage %d: invalid mood %q", lvl.ID, stage, out.NPCMood)
					}
				}
			}
		}
	}
}

func TestApplyEmotionGate(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name       string
		emotion    turn.Emotion
		confidence float64
		scored     bool
		wantPass   bool
		wantReason string
	}{
		{name: "required emotion with confidence", emotion: turn.EmotionSad, confidence: 0.7, scored: true, wantPass: true},
		{name: "required emotion bare label", emotion: turn.EmotionSad, wantPass: true},
		{name: "required emotion below floor", emotion: turn.EmotionSad, confidence: 0.05, scored: true, wantPass: false, wantReason: "expected sad emotion, got sad"},
		{name: "wrong emotion", emotion: turn.EmotionHappy, confidence: 0.9, scored: true, wantPass: false, wantReason: "expected sad emotion, got happy"},
		{name: "no emotion", emotion: "", wantPass: false, wantReason: "expected sad emotion, got none"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput("warden", 2, 40)
			in.PlayerEmotion = tc.emotion
			in.EmotionConfidence = tc.confidence
			in.EmotionScored = tc.scored
			out := baseOutput(in)

			table.Apply(in, out)

			if out.PassStage != tc.wantPass {
				t.Fatalf("passStage = %v, want %v (reason %q)", out.PassStage, tc.wantPass, out.FailureReason)
			}
			if tc.wantPass {
				if out.NextStage != 3 {
					t.Errorf("nextStage = %d, want 3", out.NextStage)
				}
				if out.FailureReason != "" {
					t.Errorf("failureReason = %q, want empty", out.FailureReason)
				}
			} else {
				if out.NextStage != 2 {
					t.Errorf("nextStage = %d, want 2", out.NextStage)
				}
				if out.FailureReason != tc.wantReason {
					t.Errorf("failureReason = %q, want %q", out.FailureReason, tc.wantReason)
				}
			}
		})
	}
}

func TestApplyEmotionWeightScaling(t *testing.T) {
	table := DefaultTable()

	// Warden weights anger at +7. At confidence 1.0 the scale saturates
	// at 1.35, so the shift is round(7*1.35) = 9; at confidence 0 the
	// scale floors at 0.65, so round(7*0.65) = 5.
	tests := []struct {
		name       string
		confidence float64
		scored     bool
		wantDelta  int
	}{
		{name: "full confidence", confidence: 1.0, scored: true, wantDelta: 9},
		{name: "zero confidence", confidence: 0.0, scored: true, wantDelta: 5},
		{name: "unscored label", scored: false, wantDelta: 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput("warden", 1, 30)
			in.PlayerEmotion = turn.EmotionAngry
			in.EmotionConfidence = tc.confidence
			in.EmotionScored = tc.scored
			out := baseOutput(in)

			table.Apply(in, out)

			if out.SuspicionDelta != tc.wantDelta {
				t.Errorf("suspicionDelta = %d, want %d", out.SuspicionDelta, tc.wantDelta)
			}
		})
	}
}

func TestApplyTrustGate(t *testing.T) {
	table := DefaultTable()

	in := baseInput("goodboy", 1, 50)
	out := baseOutput(in)
	table.Apply(in, out)
	if out.PassStage {
		t.Fatal("trust gate passed at suspicion 50, threshold 30")
	}
	if !strings.Contains(out.FailureReason, "trust not earned") {
		t.Errorf("failureReason = %q", out.FailureReason)
	}

	// Happy voice at high confidence pulls suspicion under the threshold.
	in = baseInput("goodboy", 1, 32)
	in.PlayerEmotion = turn.EmotionHappy
	in.EmotionConfidence = 0.9
	in.EmotionScored = true
	out = baseOutput(in)
	table.Apply(in, out)
	if !out.PassStage {
		t.Fatalf("trust gate failed: suspicion %d, reason %q", out.NewSuspicion, out.FailureReason)
	}
	if out.NextStage != 2 {
		t.Errorf("nextStage = %d, want 2", out.NextStage)
	}
}

func TestApplyAffectionGate(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name       string
		transcript string
		wantPass   bool
		wantReason string
	}{
		{name: "affection passes", transcript: "Who's a good boy? You are!", wantPass: true},
		{name: "threat fails", transcript: "Open up or I'll hurt you", wantPass: false, wantReason: "aggression detected"},
		{name: "neutral fails", transcript: "Please open the door now", wantPass: false, wantReason: "affection cue missing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput("goodboy", 2, 20)
			in.Transcript = tc.transcript
			out := baseOutput(in)

			table.Apply(in, out)

			if out.PassStage != tc.wantPass {
				t.Fatalf("passStage = %v, want %v (reason %q)", out.PassStage, tc.wantPass, out.FailureReason)
			}
			if !tc.wantPass && out.FailureReason != tc.wantReason {
				t.Errorf("failureReason = %q, want %q", out.FailureReason, tc.wantReason)
			}
		})
	}
}

func TestApplyThreatBackfiresOnAffectionLevel(t *testing.T) {
	table := DefaultTable()

	in := baseInput("goodboy", 2, 40)
	in.Transcript = "Tell me the code or else"
	out := baseOutput(in)
	table.Apply(in, out)

	// Threat adjustment +4 plus the failed-stage nudge 2*stage.
	if out.SuspicionDelta != 8 {
		t.Errorf("suspicionDelta = %d, want 8", out.SuspicionDelta)
	}
}

func TestApplyFinalStageReveals(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 3, 40)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 0.8
	in.EmotionScored = true
	out := baseOutput(in)

	table.Apply(in, out)

	if !out.PassStage {
		t.Fatalf("final stage did not pass: %q", out.FailureReason)
	}
	if !out.RevealCode {
		t.Fatal("final stage pass did not reveal the code")
	}
	if !turn.CodePattern.MatchString(out.Code) {
		t.Errorf("generated code %q is not 4 digits", out.Code)
	}
	if out.NextStage != 3 {
		t.Errorf("nextStage = %d, want 3 (terminal)", out.NextStage)
	}
}

// TestApplyRevealTagTruncatesOnRuneBoundary forces the reveal tag onto a
// multi-byte reply already at the length cap.
func TestApplyRevealTagTruncatesOnRuneBoundary(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 3, 40)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 0.8
	in.EmotionScored = true
	out := baseOutput(in)
	out.NPCReply = strings.Repeat("ärgerlich ", 22)

	table.Apply(in, out)

	if !out.RevealCode || !strings.Contains(out.NPCReply, out.Code) {
		t.Fatalf("code %q missing from reply %q", out.Code, out.NPCReply)
	}
	if !utf8.ValidString(out.NPCReply) {
		t.Error("truncated reply is not valid UTF-8")
	}
	if n := len([]rune(out.NPCReply)); n > turn.MaxReplyLen {
		t.Errorf("reply runes = %d, want <= %d", n, turn.MaxReplyLen)
	}
}

func TestApplyKeepsOracleCodeWhenValid(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 3, 40)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 0.8
	in.EmotionScored = true
	out := baseOutput(in)
	out.Code = "4711"

	table.Apply(in, out)

	if out.Code != "4711" {
		t.Errorf("code = %q, want oracle's 4711 kept", out.Code)
	}
}

func TestApplyNoRevealBeforeFinalStage(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 1, 40)
	out := baseOutput(in)
	out.RevealCode = true
	out.Code = "1234"

	table.Apply(in, out)

	if out.RevealCode || out.Code != "" {
		t.Errorf("stage 1 pass leaked reveal=%v code=%q", out.RevealCode, out.Code)
	}
	if !out.PassStage || out.NextStage != 2 {
		t.Errorf("passStage=%v nextStage=%d, want pass to stage 2", out.PassStage, out.NextStage)
	}
}

func TestApplyHangupCeiling(t *testing.T) {
	table := DefaultTable()

	in := baseInput("foreman", 1, 80)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 1.0
	in.EmotionScored = true
	out := baseOutput(in)

	table.Apply(in, out)

	if out.NewSuspicion < 85 {
		t.Fatalf("suspicion %d did not reach the foreman ceiling", out.NewSuspicion)
	}
	if !out.ShouldHangUp {
		t.Fatal("ceiling reached but no hangup")
	}
	if out.RevealCode || out.Code != "" {
		t.Errorf("hangup left reveal=%v code=%q", out.RevealCode, out.Code)
	}
	if out.NPCReply != turn.HangupReply {
		t.Errorf("reply = %q, want the fixed hangup line", out.NPCReply)
	}
	if out.NPCMood != turn.MoodHostile {
		t.Errorf("mood = %q, want hostile", out.NPCMood)
	}
}

func TestApplySameTurnRevealBeatsCeiling(t *testing.T) {
	table := DefaultTable()

	// Anger is required to pass the foreman's final stage but also drives
	// suspicion up. A reveal earned in the same turn wins over the ceiling.
	in := baseInput("foreman", 2, 84)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 1.0
	in.EmotionScored = true
	out := baseOutput(in)

	table.Apply(in, out)

	if !out.RevealCode {
		t.Fatalf("final stage pass did not reveal (hangup=%v reason=%q)", out.ShouldHangUp, out.FailureReason)
	}
	if out.ShouldHangUp {
		t.Error("hangup fired despite same-turn reveal")
	}
}

func TestApplyFailedStageEscalatesMood(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 2, 20)
	out := baseOutput(in)

	table.Apply(in, out)

	if out.PassStage {
		t.Fatal("stage passed without the required emotion")
	}
	if out.NPCMood != turn.MoodSuspicious {
		t.Errorf("mood = %q, want suspicious after escalation from calm", out.NPCMood)
	}
}

func TestApplyClampsWildOracleSuspicion(t *testing.T) {
	table := DefaultTable()

	in := baseInput("warden", 1, 10)
	out := baseOutput(in)
	out.NewSuspicion = 95

	table.Apply(in, out)

	if out.SuspicionDelta != 20 {
		t.Errorf("suspicionDelta = %d, want clamped to 20", out.SuspicionDelta)
	}
	if out.NewSuspicion != 30 {
		t.Errorf("newSuspicion = %d, want 30", out.NewSuspicion)
	}
}

func TestApplyStageClampedToFinal(t *testing.T) {
	table := DefaultTable()

	in := baseInput("foreman", 9, 30)
	in.PlayerEmotion = turn.EmotionAngry
	in.EmotionConfidence = 0.5
	in.EmotionScored = true
	out := baseOutput(in)

	table.Apply(in, out)

	if out.Stage != 2 || out.NextStage != 2 {
		t.Errorf("stage=%d nextStage=%d, want clamped to final stage 2", out.Stage, out.NextStage)
	}
}
