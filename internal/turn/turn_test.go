package turn

import "testing"

func TestMoodFor(t *testing.T) {
	cases := []struct {
		suspicion int
		want      Mood
	}{
		{0, MoodCalm},
		{39, MoodCalm},
		{40, MoodSuspicious},
		{74, MoodSuspicious},
		{75, MoodHostile},
		{100, MoodHostile},
	}
	for _, tc := range cases {
		if got := MoodFor(tc.suspicion); got != tc.want {
			t.Errorf("MoodFor(%d) = %q, want %q", tc.suspicion, got, tc.want)
		}
	}
}

func TestMoodEscalate(t *testing.T) {
	cases := map[Mood]Mood{
		MoodCalm:       MoodSuspicious,
		MoodSuspicious: MoodHostile,
		MoodHostile:    MoodHostile,
	}
	for m, want := range cases {
		if got := m.Escalate(); got != want {
			t.Errorf("%q.Escalate() = %q, want %q", m, got, want)
		}
	}
}

func TestNewCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewCode()
		if !CodePattern.MatchString(code) {
			t.Fatalf("NewCode() = %q, not four digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("NewCode() = %q, leading zero", code)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-3, 0, 10, 0},
		{15, 0, 10, 10},
		{-20, -20, 20, -20},
	}
	for _, tc := range cases {
		if got := Clamp(tc.v, tc.lo, tc.hi); got != tc.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tc.v, tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestHistoryLineFilters(t *testing.T) {
	in := &Input{History: []HistoryEntry{
		{Role: RolePlayer, Content: "hello"},
		{Role: RoleNPC, Content: "who is this"},
		{Role: RolePlayer, Content: "a friend"},
	}}

	player := in.PlayerLines()
	if len(player) != 2 || player[0] != "hello" || player[1] != "a friend" {
		t.Errorf("PlayerLines = %v", player)
	}
	npc := in.NPCLines()
	if len(npc) != 1 || npc[0] != "who is this" {
		t.Errorf("NPCLines = %v", npc)
	}
}

func TestEnumValidity(t *testing.T) {
	for _, e := range Emotions {
		if !e.IsValid() {
			t.Errorf("emotion %q invalid", e)
		}
	}
	if Emotion("bored").IsValid() {
		t.Error("unknown emotion accepted")
	}
	if Role("ghost").IsValid() {
		t.Error("unknown role accepted")
	}
	if Mood("giddy").IsValid() {
		t.Error("unknown mood accepted")
	}
}
