// Package replystore tracks NPC lines that have already been spoken so the
// reply policy enforcer can guarantee no line repeats within a session.
//
// Lines are compared after [Normalize]: lowercased, punctuation stripped,
// whitespace collapsed. On top of exact matching, [Equivalent] treats
// near-identical lines (Jaro-Winkler similarity above a high floor) as
// duplicates, which catches the oracle re-emitting a line with one word
// changed.
//
// The store is an explicit dependency of the enforcer rather than a
// process-wide singleton: every implementation is keyed by session so two
// concurrent games cannot starve each other's line inventory, and all
// implementations are safe for concurrent use.
package replystore

import (
	"context"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultCapacity is the per-session line cap; the oldest line is evicted
// when it is exceeded.
const DefaultCapacity = 64

// similarityFloor is the Jaro-Winkler score at or above which two
// normalized lines count as the same line.
const similarityFloor = 0.96

// Store records spoken NPC lines per session.
type Store interface {
	// Seen reports whether line (normalized) duplicates a previously
	// recorded line of the session.
	Seen(ctx context.Context, session, line string) (bool, error)

	// Record stores line (normalized) for the session, evicting the
	// oldest entry beyond capacity.
	Record(ctx context.Context, session, line string) error
}

// Normalize maps a line to its dedup key: lowercase, letters/digits/spaces
// only, single-spaced.
func Normalize(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range strings.ToLower(line) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Equivalent reports whether two normalized lines are the same for dedup
// purposes: exact match or near-identical by Jaro-Winkler similarity.
func Equivalent(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= similarityFloor
}
