package s3transfer

import (
	"time"

	"github.com/packit-aws-playground/s3transfer/internal/coarsetime"
)

// EventKind classifies an Event passed to Config.OnEvent.
type EventKind int

const (
	EventEndpointCreated EventKind = iota
	EventEndpointDestroyed
	EventMetaRequestFinished
	EventRequestRetried
	EventCircuitOpened
)

// Event is a lightweight diagnostics notification. Handlers must not
// block: they run synchronously on whatever thread reported the event,
// which may be the process-work event-loop thread.
type Event struct {
	Kind    EventKind
	Host    string // set for endpoint events
	Err     error  // set for finish/retry events
	PartNum int    // set for retry events, 0 if N/A
	Time    time.Time
}

func fireEvent(cfg *Config, ev Event) {
	if cfg == nil || cfg.OnEvent == nil {
		return
	}
	ev.Time = coarsetime.Now()
	cfg.OnEvent(ev)
}
