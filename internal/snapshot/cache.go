// Package snapshot keeps the current byte-bounded view of the game state.
package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
)

// StateProvider extracts game state from the host. Implementations must not
// block; Extract may fail or panic and the cache recovers from both.
type StateProvider interface {
	CurrentContext() gamestate.ContextTag
	Extract(ctx gamestate.ContextTag, includeCombat, includeFullMap bool) (*gamestate.RawState, error)
	LightweightFingerprint() string
}

// Snapshot is one refreshed, trimmed and digested state. It is read-only
// once returned by the cache.
type Snapshot struct {
	State       *gamestate.RawState
	Serialized  []byte
	Digest      string
	SizeBytes   int
	Dropped     []string
	Exhausted   bool
	Fingerprint string
	CreatedAt   time.Time
}

// Trimmed reports whether the trim pipeline fired any step.
func (s *Snapshot) Trimmed() bool {
	return len(s.Dropped) > 0
}

// Context returns the screen the snapshot was taken on.
func (s *Snapshot) Context() gamestate.ContextTag {
	if s == nil || s.State == nil {
		return gamestate.ContextOther
	}
	return s.State.Context
}

// Options tune the cache.
type Options struct {
	MaxBytes    int
	MinInterval time.Duration
	Now         func() time.Time
}

// Cache holds the most recent Snapshot. It is driven from the polling
// goroutine; the mutex only protects readers on other goroutines (UI).
type Cache struct {
	mu       sync.RWMutex
	provider StateProvider
	maxBytes int
	interval time.Duration
	now      func() time.Time

	current     *Snapshot
	lastRefresh time.Time
	lastFP      string
	forced      bool
	status      string
	summary     string
	lastErr     error
}

// New creates a cache over provider.
func New(provider StateProvider, opts Options) *Cache {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = constants.DefaultSnapshotMaxBytes
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = constants.DefaultSnapshotMinInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		provider: provider,
		maxBytes: opts.MaxBytes,
		interval: opts.MinInterval,
		now:      opts.Now,
		status:   "no snapshot",
	}
}

// RequestRefresh forces the next Refresh to extract regardless of throttling.
func (c *Cache) RequestRefresh() {
	c.mu.Lock()
	c.forced = true
	c.mu.Unlock()
}

// Refresh returns the current snapshot, extracting a new one when forced,
// when none exists, or when the interval elapsed and the fingerprint moved.
// On extraction failure the previous snapshot is returned unchanged.
func (c *Cache) Refresh(wantSerialized, includeCombat bool) *Snapshot {
	now := c.now()
	fp, fpErr := c.fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	due := c.forced || c.current == nil ||
		(now.Sub(c.lastRefresh) >= c.interval && (fpErr != nil || fp != c.lastFP))
	if !due {
		if wantSerialized && c.current != nil && c.current.Serialized == nil {
			c.current = c.serialize(c.current)
			c.updateStatusLocked()
		}
		return c.current
	}

	c.forced = false
	c.lastRefresh = now

	state, err := c.extract(includeCombat)
	if err != nil {
		c.lastErr = err
		c.status = "snapshot error: " + err.Error()
		log.Warn().Err(err).Msg("Snapshot extraction failed, keeping previous snapshot")
		return c.current
	}

	snap := &Snapshot{
		State:       state,
		Digest:      gamestate.Digest(state),
		Fingerprint: fp,
		CreatedAt:   now,
	}
	if wantSerialized {
		snap = c.serialize(snap)
	}
	c.current = snap
	c.lastFP = fp
	c.lastErr = nil
	c.summary = gamestate.Summary(state)
	c.updateStatusLocked()

	log.Debug().
		Str("context", string(state.Context)).
		Str("digest", gamestate.ShortDigest(snap.Digest, constants.DigestShortLen)).
		Int("size", snap.SizeBytes).
		Strs("dropped", snap.Dropped).
		Msg("Snapshot refreshed")
	return snap
}

// serialize runs the trim pipeline and returns a copy of snap with the
// serialized payload. The digest stays the one of the untrimmed state.
func (c *Cache) serialize(snap *Snapshot) *Snapshot {
	res := gamestate.Trim(snap.State, c.maxBytes)
	out := *snap
	out.Serialized = res.Bytes
	out.SizeBytes = len(res.Bytes)
	out.Dropped = res.Dropped
	out.Exhausted = res.Exhausted
	if res.Exhausted {
		log.Warn().Int("size", out.SizeBytes).Int("budget", c.maxBytes).Msg("Snapshot over budget after all trim steps")
	}
	return &out
}

func (c *Cache) extract(includeCombat bool) (state *gamestate.RawState, err error) {
	ctx := gamestate.ContextOther
	defer func() {
		if r := recover(); r != nil {
			state = nil
			err = &gamestate.ExtractionError{Context: ctx, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ctx = c.provider.CurrentContext()
	state, err = c.provider.Extract(ctx, includeCombat, ctx == gamestate.ContextMap)
	if err != nil {
		return nil, &gamestate.ExtractionError{Context: ctx, Err: err}
	}
	if state == nil {
		return nil, &gamestate.ExtractionError{Context: ctx, Err: fmt.Errorf("provider returned no state")}
	}
	if state.Context == "" {
		state.Context = ctx
	}
	return state, nil
}

func (c *Cache) fingerprint() (fp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			fp, err = "", fmt.Errorf("fingerprint panic: %v", r)
		}
	}()
	return c.provider.LightweightFingerprint(), nil
}

func (c *Cache) updateStatusLocked() {
	snap := c.current
	if snap == nil {
		c.status = "no snapshot"
		return
	}
	var b strings.Builder
	if snap.Serialized == nil {
		b.WriteString("snapshot ok")
	} else {
		if snap.Trimmed() {
			b.WriteString("trimmed")
		} else {
			b.WriteString("snapshot ok")
		}
		b.WriteString(" size=" + strconv.Itoa(snap.SizeBytes))
		if snap.Trimmed() {
			b.WriteString(" dropped=" + strings.Join(snap.Dropped, ","))
		}
	}
	b.WriteString(" hash=" + gamestate.ShortDigest(snap.Digest, constants.DigestShortLen))
	c.status = b.String()
}

// Current returns the latest snapshot without refreshing.
func (c *Cache) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Status returns the human-readable status line.
func (c *Cache) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Summary returns the one-line game summary of the current snapshot.
func (c *Cache) Summary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

// LastError returns the error of the most recent failed refresh, if the
// latest attempt failed.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Reset discards the snapshot and all throttling state.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.lastRefresh = time.Time{}
	c.lastFP = ""
	c.forced = false
	c.status = "no snapshot"
	c.summary = ""
	c.lastErr = nil
}
