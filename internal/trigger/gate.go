package trigger

import (
	"strings"
	"sync"
	"time"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// Deny reasons, in the order they are checked.
const (
	DenyNoEvent  = "auto skipped: no event"
	DenyBusy     = "auto skipped: busy"
	DenySameHash = "auto skipped: same hash"
	DenyDebounce = "auto skipped: debounce"
)

// Decision is the gate's verdict on one event.
type Decision struct {
	Allow  bool
	Reason string
}

// Label renders a denial for the status line. Combat turns use their own
// prefix so the player can tell which path was skipped.
func (d Decision) Label(kind Kind) string {
	if kind == KindCombatTurn {
		return strings.Replace(d.Reason, "auto skipped", "combat skipped", 1)
	}
	return d.Reason
}

// DefaultIntervals are the per-kind minimum intervals between automatic
// requests.
func DefaultIntervals() map[Kind]time.Duration {
	return map[Kind]time.Duration{
		KindMapPath:        5 * time.Second,
		KindCardReward:     2 * time.Second,
		KindPotionOverflow: 8 * time.Second,
		KindCombatTurn:     1 * time.Second,
		KindNeow:           5 * time.Second,
		KindShop:           3 * time.Second,
		KindBossRelic:      3 * time.Second,
		KindRest:           3 * time.Second,
		KindEvent:          3 * time.Second,
	}
}

// Gate suppresses duplicate and too-frequent automatic requests. Deciding
// never changes its state; the caller records a submission explicitly.
type Gate struct {
	mu         sync.Mutex
	intervals  map[Kind]time.Duration
	fallback   time.Duration
	now        func() time.Time
	lastDigest map[Kind]string
	lastFire   map[Kind]time.Time
}

// NewGate creates a gate. Kinds missing from intervals use DefaultDebounce.
// A nil now uses time.Now.
func NewGate(intervals map[Kind]time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	merged := DefaultIntervals()
	for k, v := range intervals {
		merged[k] = v
	}
	return &Gate{
		intervals:  merged,
		fallback:   constants.DefaultDebounce,
		now:        now,
		lastDigest: make(map[Kind]string),
		lastFire:   make(map[Kind]time.Time),
	}
}

// Interval returns the minimum interval for kind.
func (g *Gate) Interval(kind Kind) time.Duration {
	if d, ok := g.intervals[kind]; ok {
		return d
	}
	return g.fallback
}

// ShouldFire decides whether ev may be sent with the given digest.
func (g *Gate) ShouldFire(ev *Event, digest string, busy bool) Decision {
	if ev == nil {
		return Decision{Reason: DenyNoEvent}
	}
	if busy {
		return Decision{Reason: DenyBusy}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastDigest[ev.Kind]; ok && last == digest {
		return Decision{Reason: DenySameHash}
	}
	if last, ok := g.lastFire[ev.Kind]; ok && g.now().Sub(last) < g.Interval(ev.Kind) {
		return Decision{Reason: DenyDebounce}
	}
	return Decision{Allow: true}
}

// RecordSubmitted marks digest as sent for kind. Call it only after the
// request was accepted by the orchestrator.
func (g *Gate) RecordSubmitted(kind Kind, digest string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDigest[kind] = digest
	g.lastFire[kind] = g.now()
}

// Forget clears the sent mark for kind if it still equals digest, so a
// failed request does not block a retry of the same state.
func (g *Gate) Forget(kind Kind, digest string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastDigest[kind] == digest {
		delete(g.lastDigest, kind)
	}
}

// Reset clears all bookkeeping.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDigest = make(map[Kind]string)
	g.lastFire = make(map[Kind]time.Time)
}
