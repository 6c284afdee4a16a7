package events

import "raisemoney/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Recordable events expose their canonical attribute record.
type Recordable interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Record adapts a plain *types.Event to the Recordable interface.
type Record struct {
	evt *types.Event
}

// Wrap returns a Recordable view of evt.
func Wrap(evt *types.Event) Record { return Record{evt: evt} }

func (r Record) EventType() string {
	if r.evt == nil {
		return ""
	}
	return r.evt.Type
}

func (r Record) Event() *types.Event { return r.evt }

// Buffer collects events emitted during a single ledger operation so they can
// be published only once the operation commits.
type Buffer struct {
	events []*types.Event
}

// Emit implements Emitter. Events that do not expose a record are kept as a
// bare type.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	if rec, ok := evt.(Recordable); ok {
		if r := rec.Event(); r != nil {
			b.events = append(b.events, r.Clone())
			return
		}
	}
	b.events = append(b.events, &types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []*types.Event {
	if b == nil {
		return nil
	}
	out := b.events
	b.events = nil
	return out
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}
