package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/store"
)

// AdviceLog is the persistence the recorder writes to. *store.Store
// satisfies it.
type AdviceLog interface {
	RecordAdvice(e *store.AdviceEntry) error
	StoreSnapshot(context, digest, payload string) error
}

// Recorder persists finished requests and the snapshots sent with them.
type Recorder struct {
	log    AdviceLog
	bus    *EventBus
	events <-chan Event
	done   chan struct{}
}

// NewRecorder subscribes to bus. Call Run to start consuming.
func NewRecorder(l AdviceLog, bus *EventBus) *Recorder {
	return &Recorder{
		log:    l,
		bus:    bus,
		events: bus.Subscribe(),
		done:   make(chan struct{}),
	}
}

// Run consumes events until ctx is done or the subscription is closed.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.bus.Unsubscribe(r.events)
			return
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.handle(ev)
		}
	}
}

// Done is closed when Run returns.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) handle(ev Event) {
	switch ev.Type {
	case EventRequestSubmitted:
		if ev.Request == nil || ev.Request.Payload == "" {
			return
		}
		if err := r.log.StoreSnapshot(string(ev.Context), ev.Request.Digest, ev.Request.Payload); err != nil {
			log.Warn().Err(err).Str("context", string(ev.Context)).Msg("Failed to store snapshot")
		}
	case EventRequestCompleted, EventRequestFailed:
		if ev.Result == nil {
			return
		}
		if err := r.log.RecordAdvice(entryFor(ev)); err != nil {
			log.Warn().Err(err).Str("id", ev.RequestID).Msg("Failed to record advice")
		}
	}
}

func entryFor(ev Event) *store.AdviceEntry {
	res := ev.Result
	req := res.Request
	e := &store.AdviceEntry{
		RequestID: ev.RequestID,
		Context:   string(ev.Context),
		Label:     req.Label,
		Reason:    req.Reason,
		Auto:      req.Auto,
		Provider:  req.Provider,
		Digest:    req.Digest,
		Code:      res.Code,
		Raw:       res.Raw,
		Latency:   res.Latency,
		CreatedAt: ev.Timestamp.UTC(),
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if rec := res.Recommendation; rec != nil {
		e.Summary = rec.Summary
		e.Items = rec.Items
		// Raw is kept only for failures.
		e.Raw = ""
	}
	return e
}
