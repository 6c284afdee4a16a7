package events

import (
	"testing"
	"time"

	"raisemoney/core/types"
)

func evt(kind string) *types.Event {
	return &types.Event{Type: kind, Attributes: map[string]string{"k": kind}}
}

func TestBusBacklogAndLive(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(evt("a"), evt("b"), evt("c"))
	if bus.Sequence() != 3 {
		t.Fatalf("expected sequence 3, got %d", bus.Sequence())
	}
	backlog, live, cancel := bus.Subscribe(0, 4)
	defer cancel()
	if len(backlog) != 2 || backlog[0].Event.Type != "b" || backlog[1].Sequence != 3 {
		t.Fatalf("unexpected backlog %+v", backlog)
	}
	bus.Publish(evt("d"))
	select {
	case env := <-live:
		if env.Event.Type != "d" || env.Sequence != 4 {
			t.Fatalf("unexpected envelope %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live event")
	}
}

func TestBusCursorSkipsSeenEvents(t *testing.T) {
	bus := NewBus(0)
	bus.Publish(evt("a"), evt("b"))
	backlog, _, cancel := bus.Subscribe(1, 1)
	defer cancel()
	if len(backlog) != 1 || backlog[0].Event.Type != "b" {
		t.Fatalf("unexpected backlog %+v", backlog)
	}
}

func TestBusDropsForSlowSubscribers(t *testing.T) {
	bus := NewBus(8)
	_, _, cancel := bus.Subscribe(0, 1)
	bus.Publish(evt("a"), evt("b"), evt("c"))
	if bus.Dropped() != 2 {
		t.Fatalf("expected 2 dropped deliveries, got %d", bus.Dropped())
	}
	cancel()
	cancel()
	bus.Publish(evt("d"))
	if bus.Dropped() != 2 {
		t.Fatalf("cancelled subscriber still receiving")
	}
}

func TestBusPublishClonesEvents(t *testing.T) {
	bus := NewBus(4)
	original := evt("a")
	bus.Publish(original, nil)
	original.Attributes["k"] = "mutated"
	backlog, _, cancel := bus.Subscribe(0, 1)
	defer cancel()
	if len(backlog) != 1 || backlog[0].Event.Attributes["k"] != "a" {
		t.Fatalf("bus retained caller's event: %+v", backlog)
	}
}

func TestBufferDrain(t *testing.T) {
	var buf Buffer
	buf.Emit(Wrap(evt("x")))
	buf.Emit(Wrap(nil))
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}
	drained := buf.Drain()
	if len(drained) != 2 || drained[0].Type != "x" || buf.Len() != 0 {
		t.Fatalf("unexpected drain %+v", drained)
	}
	var noop NoopEmitter
	noop.Emit(Wrap(evt("y")))
}
