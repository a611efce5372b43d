package gameloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
)

type capture struct {
	mu        sync.Mutex
	snapshots int
	finished  []arena.GameState
}

func (c *capture) onSnapshot(s arena.GameState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots++
}

func (c *capture) onFinished(s arena.GameState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, s)
}

func (c *capture) finishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.finished)
}

func (c *capture) snapshotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots
}

func newTestLoop() (*Loop, *capture) {
	game := arena.New(arena.DefaultGameConfig(), nil, nil)
	rec := &capture{}
	loop := New(game, "test", rec.onSnapshot, rec.onFinished)
	return loop, rec
}

func TestSendReturnsFalseWhenInboxFull(t *testing.T) {
	loop, _ := newTestLoop()
	ok := true
	for i := 0; i < inboxCapacity; i++ {
		ok = loop.Send(Command{Kind: PlayerJoined, PlayerID: uint32(i)})
		if !ok {
			t.Fatalf("Send failed early at i=%d, inbox should hold %d", i, inboxCapacity)
		}
	}
	if loop.Send(Command{Kind: PlayerJoined, PlayerID: 9999}) {
		t.Fatal("Send on a full inbox should return false")
	}
}

func TestGameCommandIgnoredWhileNotRunning(t *testing.T) {
	loop, _ := newTestLoop()
	loop.apply(Command{Kind: PlayerJoined, PlayerID: 0})
	loop.apply(Command{Kind: GameCommand, PlayerID: 0, Game: arena.Command{Kind: arena.CommandThrottle, Value: 1}})

	if loop.game.Snapshot().Players[0].Throttle != 0 {
		t.Errorf("GameCommand applied while loop not running: throttle=%v", loop.game.Snapshot().Players[0].Throttle)
	}

	loop.apply(Command{Kind: Start})
	loop.apply(Command{Kind: GameCommand, PlayerID: 0, Game: arena.Command{Kind: arena.CommandThrottle, Value: 1}})
	if loop.game.Snapshot().Players[0].Throttle != 1 {
		t.Errorf("GameCommand should apply once running, throttle=%v", loop.game.Snapshot().Players[0].Throttle)
	}
}

func TestStartWithPastDeadlineTriggersOnFinished(t *testing.T) {
	loop, rec := newTestLoop()
	loop.apply(Command{Kind: PlayerJoined, PlayerID: 0})
	loop.apply(Command{Kind: Start, Deadline: time.Now().Add(-time.Second)})

	loop.checkTimeLimit()

	if rec.finishedCount() != 1 {
		t.Fatalf("expected onFinished called once, got %d", rec.finishedCount())
	}
	if loop.running {
		t.Error("loop should stop running after time limit elapses")
	}

	loop.checkTimeLimit()
	if rec.finishedCount() != 1 {
		t.Fatalf("onFinished should fire exactly once, got %d calls", rec.finishedCount())
	}
}

func TestRunTicksAndStopsOnCancel(t *testing.T) {
	loop, rec := newTestLoop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	loop.Send(Command{Kind: PlayerJoined, PlayerID: 0})
	loop.Send(Command{Kind: Start})

	deadline := time.After(2 * time.Second)
	for rec.snapshotCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ticks")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
