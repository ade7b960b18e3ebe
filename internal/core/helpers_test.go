package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/gamestate"
	"github.com/xonecas/spire-advisor/internal/provider"
)

const validReply = `{"context_type":"MAP","summary":"go left","recommendations":[{"action_type":"path","title":"Elite","action":"Take the elite","reason":"strong deck","confidence":0.8}]}`

// scriptedProvider answers with reply, except for the calls listed in block
// which wait for their context to end.
type scriptedProvider struct {
	name  string
	reply string
	err   error
	block map[int]bool

	mu       sync.Mutex
	calls    int
	messages [][]provider.Message
}

func newScripted(name string, blockCalls ...int) *scriptedProvider {
	p := &scriptedProvider{name: name, reply: validReply, block: make(map[int]bool)}
	for _, n := range blockCalls {
		p.block[n] = true
	}
	return p
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Chat(ctx context.Context, messages []provider.Message) (string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.messages = append(p.messages, messages)
	p.mu.Unlock()

	if p.block[n] {
		<-ctx.Done()
		return "", provider.Classify(p.name, ctx.Err())
	}
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProvider) Messages(i int) []provider.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[i]
}

// fakeGame is both the state provider and the host.
type fakeGame struct {
	mu         sync.Mutex
	state      *gamestate.RawState
	inRun      bool
	playerTurn bool
	screenUp   bool
	overflow   *gamestate.PotionOverflow
}

func (g *fakeGame) CurrentContext() gamestate.ContextTag {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == nil {
		return gamestate.ContextOther
	}
	return g.state.Context
}

func (g *fakeGame) Extract(ctx gamestate.ContextTag, includeCombat, includeFullMap bool) (*gamestate.RawState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone(), nil
}

func (g *fakeGame) LightweightFingerprint() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gamestate.Fingerprint(g.state)
}

func (g *fakeGame) InRun() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inRun
}

func (g *fakeGame) PlayerTurn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerTurn
}

func (g *fakeGame) ScreenUp() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.screenUp
}

func (g *fakeGame) PotionOverflow() *gamestate.PotionOverflow {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overflow
}

func (g *fakeGame) set(fn func(g *fakeGame)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func mapState(x, y int) *gamestate.RawState {
	return &gamestate.RawState{
		Context: gamestate.ContextMap,
		Run: &gamestate.Run{
			Floor:     gamestate.Int(3),
			HP:        gamestate.Int(70),
			MaxHP:     gamestate.Int(80),
			Gold:      gamestate.Int(99),
			Character: "IRONCLAD",
		},
		Deck: []gamestate.Card{{ID: "Strike_R"}, {ID: "Bash", Upgraded: true}},
		Map:  &gamestate.MapInfo{CurrX: x, CurrY: y, CurrType: "MonsterRoom"},
	}
}

func combatState(turn, hand int) *gamestate.RawState {
	s := mapState(1, 2)
	s.Context = gamestate.ContextCombat
	s.Map = nil
	cards := make([]gamestate.HandCard, hand)
	for i := range cards {
		cards[i] = gamestate.HandCard{ID: "Strike_R", Cost: 1}
	}
	s.Combat = &gamestate.Combat{
		Turn:     turn,
		Energy:   3,
		Hand:     cards,
		Monsters: []gamestate.Monster{{ID: "JawWorm", HP: 40, MaxHP: 42, Intent: "ATTACK"}},
	}
	return s
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Provider = "mock"
	cfg.Providers["mock"] = config.ProviderConfig{
		Kind:      config.KindOpenAI,
		Endpoint:  "https://llm.example",
		Model:     "m",
		TimeoutMs: 2000,
	}
	return cfg
}

func newTestEngine(t *testing.T, game *fakeGame, p provider.Provider, cfg *config.Config, apiKey string) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register(p)
	e := NewEngine(Options{
		Config:    cfg,
		State:     game,
		Host:      game,
		Providers: reg,
		APIKey:    apiKey,
	})
	t.Cleanup(e.Close)
	return e
}

// tickUntil ticks e until cond holds or the deadline passes.
func tickUntil(t *testing.T, e *Engine, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Tick()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// drainEvents returns every event currently buffered on ch.
func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findEvent(events []Event, typ EventType) *Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}
