package core

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
	"github.com/xonecas/spire-advisor/internal/provider"
	"github.com/xonecas/spire-advisor/internal/snapshot"
	"github.com/xonecas/spire-advisor/internal/trigger"
)

// State lines shown when nothing failed.
const (
	StateIdle      = "Idle"
	StateAnalyzing = "Analyzing..."
)

// Manual request labels.
const (
	LabelManual = "MANUAL"
	LabelCombat = "COMBAT"
)

var (
	// ErrNoRun is returned by RequestManual outside of a run.
	ErrNoRun = errors.New("no active run")
	// ErrNoSnapshot is returned when no state could be extracted yet.
	ErrNoSnapshot = errors.New("no snapshot available")
)

// Host reports the flags that are not part of the extracted state.
type Host interface {
	InRun() bool
	PlayerTurn() bool
	ScreenUp() bool
	// PotionOverflow returns the latest overflow notice, or nil.
	PotionOverflow() *gamestate.PotionOverflow
}

// Options configure an Engine.
type Options struct {
	Config    *config.Config
	State     snapshot.StateProvider
	Host      Host
	Providers ProviderSource
	APIKey    string
	Bus       *EventBus
	Now       func() time.Time
}

// Failure is the last failed request as shown to the player.
type Failure struct {
	Code  string
	Raw   string
	Label string
	At    time.Time
}

// Engine holds every piece of advisor state. Tick and RequestManual must be
// called from one goroutine; the accessors are safe from any goroutine.
type Engine struct {
	cfg    *config.Config
	apiKey string
	host   Host
	bus    *EventBus
	now    func() time.Time

	cache    *snapshot.Cache
	triggers *trigger.Engine
	gate     *trigger.Gate
	orch     *Orchestrator

	wasInRun      bool
	lastPotionSeq int64
	lastDigest    string

	mu          sync.RWMutex
	features    config.FeaturesConfig
	stateLine   string
	rec         *advice.Recommendation
	failure     *Failure
	lastSuccess time.Time
}

// NewEngine creates an engine and starts its request worker.
func NewEngine(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewEventBus(0)
	}

	intervals := make(map[trigger.Kind]time.Duration)
	for k, d := range cfg.DebounceIntervals() {
		intervals[trigger.Kind(k)] = d
	}

	return &Engine{
		cfg:    cfg,
		apiKey: opts.APIKey,
		host:   opts.Host,
		bus:    bus,
		now:    now,
		cache: snapshot.New(opts.State, snapshot.Options{
			MaxBytes:    cfg.Snapshot.MaxBytes,
			MinInterval: cfg.Snapshot.MinInterval(),
			Now:         now,
		}),
		triggers:  trigger.NewEngine(cfg.Features.CombatAdvice),
		gate:      trigger.NewGate(intervals, now),
		orch:      NewOrchestrator(opts.Providers, now),
		features:  cfg.Features,
		stateLine: StateIdle,
	}
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *EventBus {
	return e.bus
}

// Tick runs one polling step: drain finished requests, refresh the
// snapshot, poll the trigger engine and maybe submit an automatic request.
func (e *Engine) Tick() {
	e.drainResults()

	if !e.host.InRun() {
		if e.wasInRun {
			log.Info().Msg("Run ended, resetting advisor state")
			e.Reset()
			e.publish(Event{Type: EventRunEnded})
		}
		e.wasInRun = false
		return
	}
	e.wasInRun = true

	features := e.Features()
	if e.triggers.CombatAdvice() != features.CombatAdvice {
		e.triggers.SetCombatAdvice(features.CombatAdvice)
	}
	snap := e.cache.Refresh(false, features.CombatAdvice)
	if snap == nil {
		return
	}
	e.noteSnapshot(snap)

	obs := gamestate.Observe(snap.State)
	obs.InRun = true
	obs.PlayerTurn = e.host.PlayerTurn()
	obs.ScreenUp = e.host.ScreenUp()
	e.checkPotionOverflow(features.AutoTriggers)

	ev := e.triggers.Poll(obs)
	if ev == nil || !features.AutoTriggers {
		return
	}
	log.Debug().Str("kind", string(ev.Kind)).Str("reason", ev.Reason).Msg("Trigger fired")
	e.submitAuto(ev, features)
}

func (e *Engine) noteSnapshot(snap *snapshot.Snapshot) {
	if snap.Digest == e.lastDigest {
		return
	}
	e.lastDigest = snap.Digest
	e.publish(Event{
		Type:     EventSnapshotRefreshed,
		Context:  snap.Context(),
		Snapshot: &SnapshotData{Digest: snap.Digest, Size: snap.SizeBytes, Dropped: snap.Dropped},
	})
}

// checkPotionOverflow forwards a new overflow notice to the trigger engine.
// The host's sequence number is kept across resets so an old notice never
// fires twice.
func (e *Engine) checkPotionOverflow(auto bool) {
	ov := e.host.PotionOverflow()
	if ov == nil || ov.Seq == e.lastPotionSeq {
		return
	}
	e.lastPotionSeq = ov.Seq
	if !auto || !ov.SlotsFull || ov.Incoming == "" {
		return
	}
	e.triggers.NotifyPotionOverflow(ov.Incoming)
}

func (e *Engine) submitAuto(ev *trigger.Event, features config.FeaturesConfig) {
	e.cache.RequestRefresh()
	snap := e.cache.Refresh(true, features.CombatAdvice)
	if snap == nil {
		return
	}

	decision := e.gate.ShouldFire(ev, snap.Digest, e.orch.InFlight())
	if !decision.Allow {
		e.skip(ev, decision.Label(ev.Kind))
		return
	}

	req, err := e.buildRequest(snap, features, true, string(ev.Kind), ev.Reason)
	if err != nil {
		e.setFailure(ErrorCode(err), "", string(ev.Kind))
		return
	}
	req.Kind = ev.Kind

	h, err := e.orch.Submit(req)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			e.skip(ev, trigger.Decision{Reason: trigger.DenyBusy}.Label(ev.Kind))
		}
		return
	}
	e.gate.RecordSubmitted(ev.Kind, snap.Digest)
	e.submitted(h)
}

func (e *Engine) skip(ev *trigger.Event, label string) {
	log.Debug().Str("kind", string(ev.Kind)).Str("reason", label).Msg("Automatic request skipped")
	e.mu.Lock()
	e.stateLine = label
	e.mu.Unlock()
	e.publish(Event{
		Type:    EventRequestSkipped,
		Context: ev.Context,
		Skip:    &SkipData{Kind: string(ev.Kind), Reason: label},
	})
}

// RequestManual cancels any in-flight request and asks for advice on the
// freshly extracted state.
func (e *Engine) RequestManual() error {
	if !e.host.InRun() {
		return ErrNoRun
	}
	features := e.Features()
	e.orch.Cancel()
	e.cache.RequestRefresh()
	snap := e.cache.Refresh(true, true)
	if snap == nil {
		if err := e.cache.LastError(); err != nil {
			return err
		}
		return ErrNoSnapshot
	}

	label := LabelManual
	if snap.Context() == gamestate.ContextCombat {
		label = LabelCombat
	}
	req, err := e.buildRequest(snap, features, false, label, "manual")
	if err != nil {
		e.setFailure(ErrorCode(err), "", label)
		return err
	}
	h, err := e.orch.Submit(req)
	if err != nil {
		return err
	}
	e.submitted(h)
	return nil
}

func (e *Engine) buildRequest(snap *snapshot.Snapshot, features config.FeaturesConfig, auto bool, label, reason string) (Request, error) {
	name := e.cfg.Provider
	if err := e.cfg.Validate(name, e.apiKey); err != nil {
		return Request{}, err
	}
	pc, _ := e.cfg.Active()

	ctx := snap.Context()
	prompt := advice.BuildPrompt(advice.PromptInput{
		Context: ctx,
		State:   snap.State,
		Payload: snap.Serialized,
		Digest:  snap.Digest,
	}, advice.PromptOptions{
		UseKnowledgeBase: features.UseKnowledgeBase,
		Multi:            features.MultiRecommendations,
		MaxSnapshotChars: e.cfg.Snapshot.PromptMaxChars,
	})

	return Request{
		Auto:     auto,
		Label:    label,
		Reason:   reason,
		Context:  ctx,
		Digest:   snap.Digest,
		Provider: name,
		Payload:  string(snap.Serialized),
		Messages: []provider.Message{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Limit:   advice.Cap(ctx, features.MultiRecommendations),
		Timeout: pc.Timeout(),
	}, nil
}

func (e *Engine) submitted(h *Handle) {
	req := h.Request
	log.Info().
		Str("id", h.ID).
		Str("label", req.Label).
		Str("reason", req.Reason).
		Str("context", string(req.Context)).
		Str("digest", gamestate.ShortDigest(req.Digest, constants.DigestShortLen)).
		Msg("Request submitted")
	data := req.data()
	e.publish(Event{Type: EventRequestSubmitted, RequestID: h.ID, Context: req.Context, Request: &data})
	e.publish(Event{Type: EventNetworkLLM, RequestID: h.ID})
}

func (e *Engine) drainResults() {
	for {
		select {
		case res := <-e.orch.Results():
			e.handleResult(res)
		default:
			return
		}
	}
}

func (e *Engine) handleResult(res Result) {
	req := res.Handle.Request
	data := ResultData{
		Request:        req.data(),
		Recommendation: res.Recommendation,
		Raw:            res.Raw,
		Latency:        res.Finished.Sub(res.Started),
	}
	e.publish(Event{Type: EventNetworkIdle, RequestID: res.Handle.ID})

	if res.Err != nil {
		code := res.Code()
		if req.Auto {
			e.gate.Forget(req.Kind, req.Digest)
		}
		raw := res.Raw
		var pe *advice.ParseError
		if errors.As(res.Err, &pe) {
			raw = pe.Raw
		}
		var te *provider.TransportError
		if errors.As(res.Err, &te) && te.Raw != "" {
			raw = te.Raw
		}
		log.Warn().Err(res.Err).Str("code", code).Str("label", req.Label).Msg("Request failed")
		e.setFailure(code, raw, req.Label)
		data.Code = code
		data.Raw = raw
		e.publishResult(Event{Type: EventRequestFailed, RequestID: res.Handle.ID, Context: req.Context, Result: &data})
		return
	}

	log.Info().
		Str("id", res.Handle.ID).
		Str("label", req.Label).
		Int("items", len(res.Recommendation.Items)).
		Dur("latency", data.Latency).
		Msg("Request completed")
	e.mu.Lock()
	e.rec = res.Recommendation
	e.failure = nil
	e.stateLine = StateIdle
	e.lastSuccess = res.Finished
	e.mu.Unlock()
	e.publishResult(Event{Type: EventRequestCompleted, RequestID: res.Handle.ID, Context: req.Context, Result: &data})
}

func (e *Engine) setFailure(code, raw, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateLine = code
	e.failure = &Failure{Code: code, Raw: raw, Label: label, At: e.now()}
}

func (e *Engine) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.bus.Publish(ev)
}

// publishResult delivers terminal events with a short wait so the advice
// log does not miss them.
func (e *Engine) publishResult(ev Event) {
	ev.Timestamp = e.now()
	if !e.bus.PublishBlocking(ev, constants.EventBusPublishTimeout) {
		log.Warn().Str("type", string(ev.Type)).Str("id", ev.RequestID).Msg("Subscriber missed result event")
	}
}

// Reset cancels any in-flight request and returns every component to its
// initial state.
func (e *Engine) Reset() {
	if e.orch.Cancel() {
		e.publish(Event{Type: EventRequestCancelled})
	}
	e.cache.Reset()
	e.triggers.Reset()
	e.gate.Reset()
	e.lastDigest = ""

	e.mu.Lock()
	e.rec = nil
	e.failure = nil
	e.stateLine = StateIdle
	e.lastSuccess = time.Time{}
	e.mu.Unlock()
}

// Close stops the request worker.
func (e *Engine) Close() {
	e.orch.Close()
}

// Status returns the human-readable state line.
func (e *Engine) Status() string {
	if req := e.orch.Current(); req != nil {
		if req.Auto {
			return StateAnalyzing + " (" + req.Reason + ")"
		}
		return StateAnalyzing
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLine
}

// Busy reports whether a request is in flight.
func (e *Engine) Busy() bool {
	return e.orch.InFlight()
}

// Recommendation returns the latest successful recommendation, or nil.
func (e *Engine) Recommendation() *advice.Recommendation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec
}

// LastFailure returns the latest failure since the last success, or nil.
func (e *Engine) LastFailure() *Failure {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.failure == nil {
		return nil
	}
	f := *e.failure
	return &f
}

// SecondsSinceSuccess returns the age of the last successful response, or
// -1 when there has been none.
func (e *Engine) SecondsSinceSuccess() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastSuccess.IsZero() {
		return -1
	}
	return e.now().Sub(e.lastSuccess).Seconds()
}

// Snapshot returns the current snapshot, or nil.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.cache.Current()
}

// SnapshotStatus returns the snapshot status line.
func (e *Engine) SnapshotStatus() string {
	return e.cache.Status()
}

// SnapshotSummary returns the one-line run summary.
func (e *Engine) SnapshotSummary() string {
	return e.cache.Summary()
}

// Features returns the current toggles.
func (e *Engine) Features() config.FeaturesConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.features
}

// SetAutoTriggers toggles automatic requests.
func (e *Engine) SetAutoTriggers(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features.AutoTriggers = enabled
}

// SetCombatAdvice toggles combat-turn requests. The trigger engine picks
// the change up on the next Tick.
func (e *Engine) SetCombatAdvice(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features.CombatAdvice = enabled
}

// SetMultiRecommendations toggles the larger recommendation cap.
func (e *Engine) SetMultiRecommendations(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features.MultiRecommendations = enabled
}

// SetShowSnapshot toggles the debug snapshot view.
func (e *Engine) SetShowSnapshot(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features.ShowSnapshot = enabled
}
