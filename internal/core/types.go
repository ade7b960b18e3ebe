// Package core wires the snapshot cache, trigger engine, debounce gate and
// request orchestrator into one engine driven by a polling loop.
package core

import (
	"time"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/gamestate"
)

// EventType identifies the type of event.
type EventType string

const (
	EventSnapshotRefreshed EventType = "snapshot_refreshed"
	EventRequestSubmitted  EventType = "request_submitted"
	EventRequestCompleted  EventType = "request_completed"
	EventRequestFailed     EventType = "request_failed"
	EventRequestSkipped    EventType = "request_skipped"
	EventRequestCancelled  EventType = "request_cancelled"
	EventRunEnded          EventType = "run_ended"
	EventNetworkLLM        EventType = "network_llm"  // LLM request started
	EventNetworkIdle       EventType = "network_idle" // LLM request finished
)

// Event represents something that happened in the engine.
type Event struct {
	Type      EventType
	RequestID string
	Context   gamestate.ContextTag
	Request   *RequestData
	Result    *ResultData
	Skip      *SkipData
	Snapshot  *SnapshotData
	Timestamp time.Time
}

// RequestData describes a submitted request.
type RequestData struct {
	Auto     bool
	Label    string
	Reason   string
	Digest   string
	Provider string
	// Payload is the serialized snapshot sent with the prompt.
	Payload string
}

// ResultData describes a finished request. Code is empty on success.
type ResultData struct {
	Request        RequestData
	Recommendation *advice.Recommendation
	Code           string
	Raw            string
	Latency        time.Duration
}

// SkipData explains why an automatic request was not made.
type SkipData struct {
	Kind   string
	Reason string
}

// SnapshotData describes a snapshot whose digest changed.
type SnapshotData struct {
	Digest  string
	Size    int
	Dropped []string
}
