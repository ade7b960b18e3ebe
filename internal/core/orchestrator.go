package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/gamestate"
	"github.com/xonecas/spire-advisor/internal/provider"
	"github.com/xonecas/spire-advisor/internal/trigger"
)

var (
	// ErrBusy is returned when an automatic request finds one in flight.
	ErrBusy = errors.New("request in flight")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// ProviderSource resolves a provider by name. *provider.Registry satisfies it.
type ProviderSource interface {
	Get(name string) (provider.Provider, error)
}

// Request is one unit of work for the worker.
type Request struct {
	Auto     bool
	Label    string
	Reason   string
	Kind     trigger.Kind
	Context  gamestate.ContextTag
	Digest   string
	Provider string
	Payload  string
	Messages []provider.Message
	Limit    int
	Timeout  time.Duration
}

func (r *Request) data() RequestData {
	return RequestData{
		Auto:     r.Auto,
		Label:    r.Label,
		Reason:   r.Reason,
		Digest:   r.Digest,
		Provider: r.Provider,
		Payload:  r.Payload,
	}
}

// Handle identifies a submitted request.
type Handle struct {
	ID      string
	Request *Request

	ctx    context.Context
	cancel context.CancelFunc
}

// Result is the outcome of one request. Exactly one of Recommendation and
// Err is set.
type Result struct {
	Handle         *Handle
	Recommendation *advice.Recommendation
	Raw            string
	Err            error
	Started        time.Time
	Finished       time.Time
}

// Code returns the status-line tag of the failure, or "" on success.
func (r Result) Code() string {
	return ErrorCode(r.Err)
}

// ErrorCode maps any failure from the request path to its stable tag.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, provider.ErrProviderNotFound) {
		return "unknown_provider"
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return provider.Classify("", err).Code()
}

// Orchestrator runs requests on a single worker goroutine, one at a time.
// Submit and Cancel are called from the polling goroutine; the worker only
// touches the current slot when a request completes.
type Orchestrator struct {
	providers ProviderSource
	now       func() time.Time

	mu      sync.Mutex
	current *Handle
	pending *Handle
	closed  bool

	wake    chan struct{}
	results chan Result
	root    context.Context
	stop    context.CancelFunc
	done    chan struct{}
}

// NewOrchestrator creates an orchestrator and starts its worker.
func NewOrchestrator(providers ProviderSource, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	root, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		providers: providers,
		now:       now,
		wake:      make(chan struct{}, 1),
		results:   make(chan Result, constants.ResultBufferSize),
		root:      root,
		stop:      stop,
		done:      make(chan struct{}),
	}
	go o.run()
	return o
}

// Submit queues req. An automatic request is rejected with ErrBusy while
// another is in flight; a manual one cancels the in-flight request first.
func (o *Orchestrator) Submit(req Request) (*Handle, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if o.current != nil {
		if req.Auto {
			o.mu.Unlock()
			return nil, ErrBusy
		}
		log.Info().
			Str("cancelled", o.current.Request.Label).
			Str("by", req.Label).
			Msg("Manual request supersedes in-flight request")
		o.current.cancel()
	}

	ctx, cancel := context.WithCancel(o.root)
	h := &Handle{ID: uuid.NewString(), Request: &req, ctx: ctx, cancel: cancel}
	o.current = h
	o.pending = h
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return h, nil
}

// Cancel aborts the in-flight request, if any, and frees the slot at once.
// It reports whether something was cancelled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return false
	}
	o.current.cancel()
	o.current = nil
	o.pending = nil
	return true
}

// InFlight reports whether a request occupies the slot.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// Current returns the in-flight request, or nil.
func (o *Orchestrator) Current() *Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	return o.current.Request
}

// Results delivers completions of requests that were still current when
// they finished. Superseded and cancelled requests are dropped.
func (o *Orchestrator) Results() <-chan Result {
	return o.results
}

// Close cancels any in-flight request and waits for the worker to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.current != nil {
		o.current.cancel()
		o.current = nil
		o.pending = nil
	}
	o.mu.Unlock()

	o.stop()
	select {
	case <-o.done:
	case <-time.After(constants.WorkerStopTimeout):
		log.Warn().Msg("Orchestrator worker did not stop in time")
	}
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.root.Done():
			return
		case <-o.wake:
		}

		o.mu.Lock()
		h := o.pending
		o.pending = nil
		o.mu.Unlock()
		if h == nil || h.ctx.Err() != nil {
			continue
		}

		res := o.execute(h)
		o.complete(h, res)
	}
}

func (o *Orchestrator) execute(h *Handle) Result {
	req := h.Request
	res := Result{Handle: h, Started: o.now()}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("label", req.Label).Msg("Request panicked")
			res.Recommendation = nil
			res.Err = &provider.TransportError{Kind: provider.KindRequestFailed, Reason: "panic"}
			res.Finished = o.now()
		}
	}()

	p, err := o.providers.Get(req.Provider)
	if err != nil {
		res.Err = err
		res.Finished = o.now()
		return res
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(h.ctx, timeout)
	defer cancel()

	log.Debug().
		Str("id", h.ID).
		Str("label", req.Label).
		Str("reason", req.Reason).
		Str("provider", req.Provider).
		Msg("Request started")

	text, err := p.Chat(ctx, req.Messages)
	res.Finished = o.now()
	if err != nil {
		res.Err = err
		return res
	}
	res.Raw = text
	rec, err := advice.ParseReply(text, req.Context, req.Limit)
	if err != nil {
		res.Err = err
		return res
	}
	res.Recommendation = rec
	return res
}

// complete frees the slot if h still owns it and forwards the result.
func (o *Orchestrator) complete(h *Handle, res Result) {
	o.mu.Lock()
	stale := o.current != h
	if !stale {
		o.current = nil
	}
	o.mu.Unlock()
	h.cancel()

	if stale {
		log.Debug().Str("id", h.ID).Str("label", h.Request.Label).Msg("Dropping result of superseded request")
		return
	}
	select {
	case o.results <- res:
	default:
		log.Warn().Str("id", h.ID).Msg("Result queue full, dropping result")
	}
}
