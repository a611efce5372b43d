package telemetry

import "testing"

func TestEmitBeforeStartIsDropped(t *testing.T) {
	el := NewEventLog()
	if el.Emit(Event{Type: EventPlayerJoined}) {
		t.Error("Emit before Start should return false")
	}
}

func TestEmitAfterStartIsAccepted(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer el.Stop()

	if !el.Emit(Event{Type: EventRoomCreated}) {
		t.Error("Emit after Start should return true")
	}
	total, dropped, _ := el.Stats()
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
}

func TestEmitOverflowDropsOldest(t *testing.T) {
	el := NewEventLog()
	el.limiter.SetBurst(eventBufferSize * 2)
	el.limiter.SetLimit(1e6)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer el.Stop()

	for i := 0; i < eventBufferSize+10; i++ {
		el.Emit(Event{Type: EventKill})
	}

	_, dropped, pending := el.Stats()
	if dropped < 10 {
		t.Errorf("expected at least 10 dropped events from ring overflow, got %d", dropped)
	}
	if pending > eventBufferSize {
		t.Errorf("pending = %d exceeds buffer size %d", pending, eventBufferSize)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	el.Stop()
	el.Stop() // must not panic on double-close
}
