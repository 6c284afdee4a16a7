package events

import (
	"sync"

	"raisemoney/core/types"
)

// DefaultBacklog bounds how many committed events the bus retains for late
// subscribers.
const DefaultBacklog = 256

// Envelope pairs a committed event with its position in the node's event
// sequence.
type Envelope struct {
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

type subscriber struct {
	ch chan Envelope
}

// Bus fans committed events out to subscribers. Slow subscribers drop events
// rather than blocking the ledger.
type Bus struct {
	mu      sync.Mutex
	next    uint64
	backlog []Envelope
	limit   int
	subs    map[int]*subscriber
	nextSub int
	dropped uint64
}

// NewBus constructs a bus retaining up to backlog events.
func NewBus(backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{limit: backlog, subs: make(map[int]*subscriber)}
}

// Publish assigns sequence numbers and delivers the events.
func (b *Bus) Publish(evts ...*types.Event) {
	if b == nil || len(evts) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		b.next++
		env := Envelope{Sequence: b.next, Event: evt.Clone()}
		b.backlog = append(b.backlog, env)
		if len(b.backlog) > b.limit {
			b.backlog = append([]Envelope(nil), b.backlog[len(b.backlog)-b.limit:]...)
		}
		for _, sub := range b.subs {
			select {
			case sub.ch <- env:
			default:
				b.dropped++
			}
		}
	}
}

// Subscribe registers a subscriber and returns the retained backlog after
// cursor along with the live channel. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe(cursor uint64, buffer int) ([]Envelope, <-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	backlog := make([]Envelope, 0)
	for _, env := range b.backlog {
		if env.Sequence > cursor {
			backlog = append(backlog, env)
		}
	}
	id := b.nextSub
	b.nextSub++
	sub := &subscriber{ch: make(chan Envelope, buffer)}
	b.subs[id] = sub
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return backlog, sub.ch, cancel
}

// Sequence returns the sequence number of the last published event.
func (b *Bus) Sequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Dropped reports how many deliveries were skipped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
