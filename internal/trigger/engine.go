// Package trigger decides when an automatic advice request is worth making.
package trigger

import (
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
)

// Kind names what changed. Debounce intervals are keyed by Kind.
type Kind string

const (
	KindMapPath        Kind = "MAP_PATH"
	KindCombatTurn     Kind = "COMBAT_TURN"
	KindCardReward     Kind = "CARD_REWARD"
	KindShop           Kind = "SHOP"
	KindNeow           Kind = "NEOW"
	KindBossRelic      Kind = "BOSS_RELIC"
	KindRest           Kind = "REST"
	KindEvent          Kind = "EVENT"
	KindPotionOverflow Kind = "POTION_OVERFLOW"
)

// Kinds lists every trigger kind.
var Kinds = []Kind{
	KindMapPath, KindCombatTurn, KindCardReward, KindShop, KindNeow,
	KindBossRelic, KindRest, KindEvent, KindPotionOverflow,
}

// Event is emitted at most once per poll.
type Event struct {
	Kind    Kind
	Context gamestate.ContextTag
	Reason  string
}

// family describes a screen whose content signature drives triggers.
type family struct {
	kind    Kind
	sig     func(gamestate.Signatures) string
	opened  string
	changed string
}

var families = map[gamestate.ContextTag]family{
	gamestate.ContextNeow: {KindNeow, func(s gamestate.Signatures) string { return s.Neow },
		"neow opened", "neow options changed"},
	gamestate.ContextBossRelic: {KindBossRelic, func(s gamestate.Signatures) string { return s.BossRelic },
		"boss relic opened", "boss relic options changed"},
	gamestate.ContextRest: {KindRest, func(s gamestate.Signatures) string { return s.Rest },
		"rest site opened", "rest options changed"},
	gamestate.ContextShop: {KindShop, func(s gamestate.Signatures) string { return s.Shop },
		"shop opened", "shop items changed"},
	gamestate.ContextCardReward: {KindCardReward, func(s gamestate.Signatures) string { return s.Reward },
		"reward opened", "reward choices changed"},
	gamestate.ContextEvent: {KindEvent, func(s gamestate.Signatures) string { return s.Event },
		"event opened", "event options changed"},
	gamestate.ContextMap: {KindMapPath, func(s gamestate.Signatures) string { return s.MapNode },
		"map entered", "map node changed"},
}

// Engine is the per-context trigger state machine. It is polled from a
// single goroutine and keeps no timers.
type Engine struct {
	combatAdvice bool
	maxHandPolls int

	lastContext gamestate.ContextTag
	lastSig     map[Kind]string
	opened      map[Kind]bool

	pendingTurn   int
	pendingPolls  int
	firedTurn     int
	pendingPotion string
	hasPotion     bool
}

// NewEngine creates an engine. combatAdvice enables COMBAT_TURN events.
func NewEngine(combatAdvice bool) *Engine {
	e := &Engine{combatAdvice: combatAdvice, maxHandPolls: constants.CombatHandMaxPolls}
	e.Reset()
	return e
}

// SetCombatAdvice toggles COMBAT_TURN events.
func (e *Engine) SetCombatAdvice(enabled bool) {
	e.combatAdvice = enabled
	if !enabled {
		e.clearCombat()
	}
}

// CombatAdvice reports whether COMBAT_TURN events are enabled.
func (e *Engine) CombatAdvice() bool {
	return e.combatAdvice
}

// NotifyPotionOverflow records an incoming potion that found every slot
// full. It fires on the next poll, ahead of any other trigger, exactly once.
func (e *Engine) NotifyPotionOverflow(incoming string) {
	e.pendingPotion = incoming
	e.hasPotion = true
}

// Reset clears all per-context memory.
func (e *Engine) Reset() {
	e.lastContext = ""
	e.lastSig = make(map[Kind]string)
	e.opened = make(map[Kind]bool)
	e.pendingPotion = ""
	e.hasPotion = false
	e.clearCombat()
	e.firedTurn = -1
}

func (e *Engine) clearCombat() {
	e.pendingTurn = -1
	e.pendingPolls = 0
}

// Poll consumes one observation and returns an event, or nil.
func (e *Engine) Poll(obs gamestate.Observation) *Event {
	if !obs.InRun {
		if e.lastContext != "" || e.hasPotion {
			e.Reset()
		}
		return nil
	}

	if obs.Context != e.lastContext {
		e.enter(obs.Context)
	}

	if e.hasPotion {
		incoming := e.pendingPotion
		e.pendingPotion, e.hasPotion = "", false
		return &Event{Kind: KindPotionOverflow, Context: obs.Context, Reason: "potion overflow: incoming=" + incoming}
	}

	if obs.Context == gamestate.ContextCombat {
		return e.pollCombat(obs)
	}
	if fam, ok := families[obs.Context]; ok {
		return e.pollFamily(fam, obs)
	}
	return nil
}

// enter resets the memory of the context being entered.
func (e *Engine) enter(ctx gamestate.ContextTag) {
	e.lastContext = ctx
	e.clearCombat()
	if ctx == gamestate.ContextCombat {
		e.firedTurn = -1
		return
	}
	if fam, ok := families[ctx]; ok {
		delete(e.opened, fam.kind)
		delete(e.lastSig, fam.kind)
	}
}

// pollFamily fires once when a screen's content first appears and again
// whenever it changes while the screen is held.
func (e *Engine) pollFamily(fam family, obs gamestate.Observation) *Event {
	sig := fam.sig(obs.Signatures)
	if sig == "" {
		// Screen is up but its content has not loaded yet.
		return nil
	}
	if !e.opened[fam.kind] {
		e.opened[fam.kind] = true
		e.lastSig[fam.kind] = sig
		return &Event{Kind: fam.kind, Context: obs.Context, Reason: fam.opened}
	}
	if sig != e.lastSig[fam.kind] {
		e.lastSig[fam.kind] = sig
		return &Event{Kind: fam.kind, Context: obs.Context, Reason: fam.changed}
	}
	return nil
}

func (e *Engine) pollCombat(obs gamestate.Observation) *Event {
	if !e.combatAdvice {
		return nil
	}
	if !obs.PlayerTurn {
		e.clearCombat()
		return nil
	}
	if obs.ScreenUp {
		return nil
	}

	turn := obs.Combat.Turn
	if turn == e.firedTurn {
		return nil
	}
	if turn != e.pendingTurn {
		e.pendingTurn = turn
		e.pendingPolls = 0
	}
	e.pendingPolls++

	if !handReady(obs.Combat) && e.pendingPolls < e.maxHandPolls {
		return nil
	}
	if !handReady(obs.Combat) {
		log.Debug().Int("turn", turn).Int("polls", e.pendingPolls).Msg("Combat hand not dealt, firing after poll limit")
	}
	e.firedTurn = turn
	e.clearCombat()
	return &Event{Kind: KindCombatTurn, Context: obs.Context, Reason: "combat turn start: " + strconv.Itoa(turn)}
}

// handReady reports whether the hand has been dealt. An empty hand only
// counts after the first turn with nothing left to draw or reshuffle.
func handReady(c gamestate.CombatView) bool {
	if c.HandSize > 0 {
		return true
	}
	if c.Turn <= 1 {
		return false
	}
	return c.DrawPile == 0 && c.DiscardPile == 0
}
