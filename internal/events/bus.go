// Package events carries progress from background workers to the UI
// goroutine without ever blocking the sender.
package events

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the buffer size used by the CLI.
const DefaultCapacity = 256

// Kind identifies what an Event reports.
type Kind int

const (
	// Status is a short progress message from the pipeline.
	Status Kind = iota
	// Log is verbatim command output from the pipeline.
	Log
	// ServerLine is one line of dev server output.
	ServerLine
	// ServerStopped reports that the dev server exited.
	ServerStopped
)

func (k Kind) String() string {
	switch k {
	case Status:
		return "status"
	case Log:
		return "log"
	case ServerLine:
		return "server"
	case ServerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a single message on the bus.
type Event struct {
	Kind Kind
	Text string
	Err  error
}

// Bus is a bounded channel of events. Publish drops the event and counts
// it when the buffer is full, so producers never wait on the UI.
type Bus struct {
	ch      chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus buffering up to capacity events.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues e. It reports false if the event was dropped because
// the buffer was full or the bus was closed.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}
	select {
	case b.ch <- e:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// C returns the receive side of the bus.
func (b *Bus) C() <-chan Event {
	return b.ch
}

// Dropped returns how many events were discarded on a full buffer.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes the channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

// Status publishes a pipeline status message.
func (b *Bus) Status(msg string) {
	b.Publish(Event{Kind: Status, Text: msg})
}

// Log publishes verbatim pipeline output.
func (b *Bus) Log(text string) {
	b.Publish(Event{Kind: Log, Text: text})
}

// Line publishes a dev server output line.
func (b *Bus) Line(line string) {
	b.Publish(Event{Kind: ServerLine, Text: line})
}

// Stopped publishes the dev server exit.
func (b *Bus) Stopped(err error) {
	b.Publish(Event{Kind: ServerStopped, Err: err})
}
