package trigger

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestGate() (*Gate, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	return NewGate(nil, c.now), c
}

func TestGateDenyOrder(t *testing.T) {
	g, _ := newTestGate()
	ev := &Event{Kind: KindCardReward, Reason: "reward opened"}

	tests := []struct {
		name   string
		ev     *Event
		busy   bool
		reason string
	}{
		{"no event beats busy", nil, true, DenyNoEvent},
		{"busy", ev, true, DenyBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.ShouldFire(tt.ev, "h1", tt.busy)
			if d.Allow || d.Reason != tt.reason {
				t.Errorf("expected deny %q, got %+v", tt.reason, d)
			}
		})
	}
}

func TestGateIdempotence(t *testing.T) {
	g, c := newTestGate()
	ev := &Event{Kind: KindCardReward}

	allowed := 0
	for i := 0; i < 5; i++ {
		d := g.ShouldFire(ev, "h1", false)
		if d.Allow {
			allowed++
			g.RecordSubmitted(ev.Kind, "h1")
		} else if d.Reason != DenySameHash && d.Reason != DenyDebounce {
			t.Errorf("unexpected deny reason %q", d.Reason)
		}
		c.t = c.t.Add(100 * time.Millisecond)
	}
	if allowed != 1 {
		t.Errorf("expected exactly 1 allow, got %d", allowed)
	}

	// New digest inside the interval is debounced.
	if d := g.ShouldFire(ev, "h2", false); d.Allow || d.Reason != DenyDebounce {
		t.Errorf("expected debounce, got %+v", d)
	}

	// After the interval a new digest is allowed; the old one stays deduped.
	c.t = c.t.Add(2 * time.Second)
	if d := g.ShouldFire(ev, "h1", false); d.Reason != DenySameHash {
		t.Errorf("expected same hash, got %+v", d)
	}
	if d := g.ShouldFire(ev, "h2", false); !d.Allow {
		t.Errorf("expected allow, got %+v", d)
	}
}

func TestGateDecisionDoesNotConsumeWindow(t *testing.T) {
	g, _ := newTestGate()
	ev := &Event{Kind: KindShop}
	for i := 0; i < 3; i++ {
		if d := g.ShouldFire(ev, "h1", false); !d.Allow {
			t.Fatalf("decision %d: expected allow without a recorded submission, got %+v", i, d)
		}
	}
}

func TestGateForgetAllowsRetry(t *testing.T) {
	g, c := newTestGate()
	ev := &Event{Kind: KindCombatTurn}
	g.RecordSubmitted(ev.Kind, "h1")
	g.Forget(ev.Kind, "h1")

	c.t = c.t.Add(1500 * time.Millisecond)
	if d := g.ShouldFire(ev, "h1", false); !d.Allow {
		t.Errorf("expected retry to be allowed after failure, got %+v", d)
	}

	// Forget for a stale digest leaves the newer mark alone.
	g.RecordSubmitted(ev.Kind, "h2")
	g.Forget(ev.Kind, "h1")
	c.t = c.t.Add(5 * time.Second)
	if d := g.ShouldFire(ev, "h2", false); d.Reason != DenySameHash {
		t.Errorf("expected same hash, got %+v", d)
	}
}

func TestGatePerKindIntervals(t *testing.T) {
	g, c := newTestGate()
	g.RecordSubmitted(KindCombatTurn, "a")
	g.RecordSubmitted(KindMapPath, "a")
	c.t = c.t.Add(1500 * time.Millisecond)

	if d := g.ShouldFire(&Event{Kind: KindCombatTurn}, "b", false); !d.Allow {
		t.Errorf("combat should react after 1s, got %+v", d)
	}
	if d := g.ShouldFire(&Event{Kind: KindMapPath}, "b", false); d.Reason != DenyDebounce {
		t.Errorf("map should still be debounced, got %+v", d)
	}
}

func TestGateConfiguredInterval(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	g := NewGate(map[Kind]time.Duration{KindMapPath: 100 * time.Millisecond}, c.now)
	if got := g.Interval(KindMapPath); got != 100*time.Millisecond {
		t.Errorf("expected override, got %v", got)
	}
	if got := g.Interval(KindShop); got != 3*time.Second {
		t.Errorf("expected default, got %v", got)
	}
	if got := g.Interval(Kind("UNKNOWN")); got != 3*time.Second {
		t.Errorf("expected fallback, got %v", got)
	}
}

func TestDecisionLabel(t *testing.T) {
	d := Decision{Reason: DenyBusy}
	if got := d.Label(KindCombatTurn); got != "combat skipped: busy" {
		t.Errorf("unexpected label %q", got)
	}
	if got := d.Label(KindShop); got != DenyBusy {
		t.Errorf("unexpected label %q", got)
	}
}
