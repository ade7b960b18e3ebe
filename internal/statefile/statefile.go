// Package statefile reads the game state from a JSON file written by an
// in-game hook and keeps it current by watching the file.
package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/gamestate"
)

var (
	// ErrNoState is returned by Extract before any state was loaded.
	ErrNoState = errors.New("no state exported")
	// ErrContextChanged is returned by Extract when the file moved to a
	// different screen after CurrentContext was read.
	ErrContextChanged = errors.New("context changed during extraction")
)

// Export is the on-disk format written by the hook.
type Export struct {
	InRun          bool                `json:"in_run"`
	PlayerTurn     bool                `json:"player_turn"`
	ScreenUp       bool                `json:"screen_up"`
	PotionOverflow *PotionOverflow     `json:"potion_overflow,omitempty"`
	State          *gamestate.RawState `json:"state,omitempty"`
}

// PotionOverflow is the hook's notice that a potion found every slot full.
// Seq increases with every notice.
type PotionOverflow struct {
	Incoming  string `json:"incoming"`
	SlotsFull bool   `json:"slots_full"`
	Seq       int64  `json:"seq"`
}

// Provider serves the latest successfully parsed export. A malformed or
// half-written file keeps the previous export.
type Provider struct {
	path string

	mu      sync.RWMutex
	export  Export
	fp      string
	loadErr error
	version uint64

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New creates a provider for path and loads it once. A missing file is not
// an error; the provider reports no run until the file appears.
func New(path string) (*Provider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}
	p := &Provider{path: abs}
	if err := p.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", abs).Msg("Initial state load failed")
	}
	return p, nil
}

// Path returns the watched file.
func (p *Provider) Path() string {
	return p.path
}

// Reload reads and parses the file.
func (p *Provider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		p.setErr(err)
		return err
	}
	if len(data) == 0 {
		// Truncated by the writer, the next write completes it.
		return nil
	}
	var ex Export
	if err := json.Unmarshal(data, &ex); err != nil {
		err = fmt.Errorf("parse %s: %w", filepath.Base(p.path), err)
		p.setErr(err)
		return err
	}

	p.mu.Lock()
	p.export = ex
	p.fp = gamestate.Fingerprint(ex.State)
	p.loadErr = nil
	p.version++
	p.mu.Unlock()
	return nil
}

func (p *Provider) setErr(err error) {
	p.mu.Lock()
	p.loadErr = err
	p.mu.Unlock()
}

// LastError returns the error of the most recent failed load, or nil.
func (p *Provider) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadErr
}

// Version increases with every successful load.
func (p *Provider) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Start watches the file's directory. Writers usually replace the file by
// rename, so the directory is watched and events are filtered by name.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		p.mu.Unlock()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = w
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	log.Info().Str("path", p.path).Msg("Watching state file")
	go p.run(ctx)
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (p *Provider) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh
	if err := p.watcher.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing state watcher")
	}
}

func (p *Provider) run(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(ev)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("State watcher error")
		}
	}
}

func (p *Provider) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != p.path {
		return
	}
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if err := p.Reload(); err != nil {
			log.Debug().Err(err).Msg("State reload failed, keeping previous state")
		}
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// The replacement arrives as a Create.
		log.Debug().Str("op", ev.Op.String()).Msg("State file moved")
	}
}

func (p *Provider) snapshot() Export {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.export
}

// CurrentContext returns the screen of the latest export.
func (p *Provider) CurrentContext() gamestate.ContextTag {
	ex := p.snapshot()
	if ex.State == nil || ex.State.Context == "" {
		return gamestate.ContextOther
	}
	return ex.State.Context
}

// Extract returns a copy of the latest state. Combat data and the full map
// are only included when asked for.
func (p *Provider) Extract(ctx gamestate.ContextTag, includeCombat, includeFullMap bool) (*gamestate.RawState, error) {
	ex := p.snapshot()
	if ex.State == nil {
		return nil, ErrNoState
	}
	if ex.State.Context != "" && ex.State.Context != ctx {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrContextChanged, ctx, ex.State.Context)
	}
	s := ex.State.Clone()
	if !includeCombat {
		s.Combat = nil
	}
	if !includeFullMap {
		s.MapFull = nil
	}
	return s, nil
}

// LightweightFingerprint returns the fingerprint of the latest state.
func (p *Provider) LightweightFingerprint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fp
}

// InRun reports whether a run is active.
func (p *Provider) InRun() bool {
	return p.snapshot().InRun
}

// PlayerTurn reports whether the player may act in combat.
func (p *Provider) PlayerTurn() bool {
	return p.snapshot().PlayerTurn
}

// ScreenUp reports whether an overlay screen covers combat.
func (p *Provider) ScreenUp() bool {
	return p.snapshot().ScreenUp
}

// PotionOverflow returns the latest overflow notice, or nil.
func (p *Provider) PotionOverflow() *gamestate.PotionOverflow {
	ov := p.snapshot().PotionOverflow
	if ov == nil {
		return nil
	}
	return &gamestate.PotionOverflow{Incoming: ov.Incoming, SlotsFull: ov.SlotsFull, Seq: ov.Seq}
}
