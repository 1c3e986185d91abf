// Package progress carries the ordered event stream of one provisioning run.
package progress

import (
	"context"
	"sync"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Status is the state an event reports for its step.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusWarning    Status = "warning"
	StatusError      Status = "error"
)

// Final step ids.
const (
	StepDone  = "done"
	StepError = "error"
)

// Event is one progress report. Events are never retracted; a correction is
// a later event for the same step.
type Event struct {
	Step    string            `json:"step"`
	Status  Status            `json:"status"`
	Message string            `json:"message"`
	Log     any               `json:"log,omitempty"`
	Data    *model.RunSummary `json:"data,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Step == StepDone || e.Step == StepError
}

// Emitter accepts events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Reporter is an unbounded, strictly ordered event queue. Emit appends and
// returns immediately; a single pump goroutine hands events to Events() in
// emission order. Closing the reporter lets the pump drain what is queued
// and then close the channel.
type Reporter struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
	stop   chan struct{}
	once   sync.Once
}

// NewReporter starts a Reporter.
func NewReporter() *Reporter {
	r := &Reporter{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
		stop: make(chan struct{}),
	}
	go r.pump()
	return r
}

// Emit queues e. It never blocks on the consumer. Events emitted after
// Close are dropped.
func (r *Reporter) Emit(e Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, e)
	r.mu.Unlock()
	r.signal()
}

// Events returns the stream. It is closed after Close once every queued
// event has been delivered, or right away after Abandon.
func (r *Reporter) Events() <-chan Event {
	return r.out
}

// Close marks the end of the run.
func (r *Reporter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.signal()
}

// Abandon stops delivery without draining, for consumers that went away.
// Producers may keep emitting; their events are discarded.
func (r *Reporter) Abandon() {
	r.Close()
	r.once.Do(func() { close(r.stop) })
}

func (r *Reporter) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reporter) pump() {
	defer close(r.out)
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-r.wake:
			case <-r.stop:
				return
			}
			continue
		}
		e := r.queue[0]
		r.queue[0] = Event{}
		r.queue = r.queue[1:]
		r.mu.Unlock()

		select {
		case r.out <- e:
		case <-r.stop:
			return
		}
	}
}

// Collect reads the stream until it is closed or ctx is done and returns
// what it saw.
func Collect(ctx context.Context, events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case <-ctx.Done():
			return out
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		}
	}
}

// Recorder is a synchronous Emitter that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Tee forwards every event to each emitter in order.
func Tee(emitters ...Emitter) Emitter {
	return EmitterFunc(func(e Event) {
		for _, em := range emitters {
			em.Emit(e)
		}
	})
}
