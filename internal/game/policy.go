package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kallevis/talkdown/internal/game/level"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/internal/replystore"
	"github.com/kallevis/talkdown/internal/turn"
	"github.com/kallevis/talkdown/pkg/provider/llm"
)

// fillerClauses break a duplicate line apart when the oracle retry fails.
// Appends go through appendCapped, which trims the base line so the result
// never exceeds the reply length cap.
var fillerClauses = []string{
	"Anyway.",
	"You still there?",
	"Hm.",
	"Where was I.",
	"Right.",
	"Listen.",
}

// Policy finalizes a turn's reply: it guarantees the line is unique within
// the session, injects actionable guidance after a failed stage, and
// records the emitted line for future dedup checks.
//
// The oracle is optional; without one the dedup chain skips straight to the
// filler clause. now and pick exist so tests can pin time and randomness.
type Policy struct {
	store   replystore.Store
	oracle  llm.Provider
	levels  *level.Table
	metrics *observe.Metrics
	now     func() time.Time
	pick    func(n int) int
}

// NewPolicy builds a Policy. oracle may be nil.
func NewPolicy(store replystore.Store, oracle llm.Provider, levels *level.Table) *Policy {
	return &Policy{
		store:  store,
		oracle: oracle,
		levels: levels,
		now:    time.Now,
		pick:   rand.IntN,
	}
}

// newPolicyWithMetrics is the evaluator's constructor; collision resolutions
// are counted when metrics is non-nil.
func newPolicyWithMetrics(store replystore.Store, oracle llm.Provider, levels *level.Table, metrics *observe.Metrics) *Policy {
	p := NewPolicy(store, oracle, levels)
	p.metrics = metrics
	return p
}

// Finalize enforces the reply policy on out in place. A returned error is
// always a [*PolicyEnforcementError] and leaves out untouched, so the
// caller can emit the pre-policy output instead of failing the turn.
//
// The fixed hangup line is exempt from dedup: it ends the session, and by
// design it reads the same every time.
func (p *Policy) Finalize(ctx context.Context, in *turn.Input, out *turn.Output) error {
	if out.ShouldHangUp {
		return nil
	}

	reply := p.withGuidance(in, out, out.NPCReply)

	collides, err := p.collides(ctx, in, reply)
	if err != nil {
		return &PolicyEnforcementError{Err: err}
	}

	if collides {
		reply, err = p.resolveCollision(ctx, in, out, reply)
		if err != nil {
			return &PolicyEnforcementError{Err: err}
		}
	}

	if err := p.store.Record(ctx, in.SessionID, reply); err != nil {
		return &PolicyEnforcementError{Err: err}
	}
	out.NPCReply = reply
	return nil
}

// withGuidance appends the stage hint when the stage failed and the reply
// does not already steer the player toward the requirement.
func (p *Policy) withGuidance(in *turn.Input, out *turn.Output, reply string) string {
	if out.PassStage {
		return reply
	}
	re, hint := p.levels.Guidance(in.Level, out.Stage)
	if hint == "" || (re != nil && re.MatchString(reply)) {
		return reply
	}
	return appendCapped(reply, " If you want progress, "+hint+".")
}

// appendCapped joins base and suffix, trimming runes off the end of base so
// the result stays within [turn.MaxReplyLen].
func appendCapped(base, suffix string) string {
	room := turn.MaxReplyLen - len([]rune(suffix))
	return truncateRunes(strings.TrimSpace(base), room) + suffix
}

// collides reports whether reply duplicates an NPC line from the session
// history or the dedup store.
func (p *Policy) collides(ctx context.Context, in *turn.Input, reply string) (bool, error) {
	key := replystore.Normalize(reply)
	for _, prev := range in.NPCLines() {
		if replystore.Equivalent(replystore.Normalize(prev), key) {
			return true, nil
		}
	}
	return p.store.Seen(ctx, in.SessionID, reply)
}

// resolveCollision works through the escalation chain: one oracle retry
// with the banned lines spelled out, then a random filler clause, then a
// timestamp fragment that cannot collide.
func (p *Policy) resolveCollision(ctx context.Context, in *turn.Input, out *turn.Output, reply string) (string, error) {
	if fresh := p.retryOracle(ctx, in, out); fresh != "" {
		collides, err := p.collides(ctx, in, fresh)
		if err != nil {
			return "", err
		}
		if !collides {
			p.recordCollision(ctx, "retry")
			return fresh, nil
		}
	}

	filled := appendCapped(reply, " "+fillerClauses[p.pick(len(fillerClauses))])
	collides, err := p.collides(ctx, in, filled)
	if err != nil {
		return "", err
	}
	if !collides {
		p.recordCollision(ctx, "filler")
		return filled, nil
	}

	// Nanosecond precision so two last-resort lines in a row can never be
	// textually identical.
	p.recordCollision(ctx, "timestamp")
	return appendCapped(reply, fmt.Sprintf(" (%s)", p.now().Format("15:04:05.000000000"))), nil
}

func (p *Policy) recordCollision(ctx context.Context, resolution string) {
	if p.metrics == nil {
		return
	}
	p.metrics.DedupCollisions.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("resolution", resolution)))
}

// retryOracle asks the oracle for one replacement line. Any failure returns
// "" and the chain moves on; a retry is best-effort by definition.
func (p *Policy) retryOracle(ctx context.Context, in *turn.Input, out *turn.Output) string {
	if p.oracle == nil {
		return ""
	}
	lvl, ok := p.levels.Get(in.Level)
	if !ok {
		return ""
	}

	req := RetryPrompt(in, lvl, in.NPCLines())
	resp, err := p.oracle.Complete(ctx, *req)
	if err != nil {
		return ""
	}
	obj, _ := ParseOracle(resp.Content)
	if obj == nil {
		return ""
	}
	fresh := truncateRunes(strings.TrimSpace(asString(obj["npcReply"])), turn.MaxReplyLen)
	if fresh == "" {
		return ""
	}
	if out.RevealCode && !strings.Contains(fresh, out.Code) {
		fresh = appendCapped(fresh, " Reveal code: "+out.Code+".")
	}
	return p.withGuidance(in, out, fresh)
}
