package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
	"github.com/webuild-community/spacebot/internal/store"
	"github.com/webuild-community/spacebot/internal/wire"
)

// fakeRecipient is a test double for Recipient, recording every message sent
// and whether Close was ever called.
type fakeRecipient struct {
	mu       sync.Mutex
	messages []wire.ServerMessage
	closed   bool
	closeMsg string
}

func (f *fakeRecipient) Send(msg wire.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeRecipient) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeMsg = reason
}

func (f *fakeRecipient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeRecipient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRoom(t *testing.T, maxPlayers, timeLimit uint32) (*Room, context.CancelFunc) {
	t.Helper()
	cfg := Config{
		ID:               1,
		Name:             "test",
		MaxPlayers:       maxPlayers,
		TimeLimitSeconds: timeLimit,
		Token:            "tok",
		Game:             arena.DefaultGameConfig(),
	}
	r := New(cfg, store.NoopAdapter{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	return r, cancel
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestJoinNewRoomAssignsIdAndTeamName(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	rec := &fakeRecipient{}
	r.Join("key-a", "Red Team", rec)

	waitFor(t, func() bool { return rec.count() > 0 })
	if r.Status() != StatusRunning {
		t.Errorf("dev-mode room should start running immediately, got %v", r.Status())
	}
}

func TestReconnectReusesPlayerID(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	first := &fakeRecipient{}
	r.Join("key-a", "Red", first)
	waitFor(t, func() bool { return first.count() > 0 })

	second := &fakeRecipient{}
	r.Join("key-a", "Red", second)
	waitFor(t, func() bool { return second.count() > 0 })

	if !first.isClosed() {
		t.Error("old session should be closed when the same api key reconnects")
	}

	firstID := first.messages[0]
	secondID := second.messages[0]
	if firstID != secondID {
		t.Errorf("reconnect should reuse the same Id message: first=%+v second=%+v", firstID, secondID)
	}
}

func TestSecondSessionKicksOldSession(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	old := &fakeRecipient{}
	r.Join("dupe", "A", old)
	waitFor(t, func() bool { return old.count() > 0 })

	newer := &fakeRecipient{}
	r.Join("dupe", "A", newer)

	waitFor(t, old.isClosed)
	if old.closeMsg == "" {
		t.Error("expected a non-empty close reason")
	}
}

func TestSpectatorJoinReceivesTeamNamesNotID(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	player := &fakeRecipient{}
	r.Join("key-a", "Red", player)
	waitFor(t, func() bool { return player.count() > 0 })

	spec := &fakeRecipient{}
	r.Join(SpectatorKey, SpectatorKey, spec)

	if spec.count() != 1 {
		t.Fatalf("expected exactly one immediate message to a spectator, got %d", spec.count())
	}
}

func TestSpectatorLeaveRemovesFromBroadcast(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	spec := &fakeRecipient{}
	r.Join(SpectatorKey, SpectatorKey, spec)
	r.Leave(SpectatorKey, spec)

	before := spec.count()
	player := &fakeRecipient{}
	r.Join("key-b", "Blue", player)
	waitFor(t, func() bool { return player.count() > 0 })

	time.Sleep(50 * time.Millisecond)
	if spec.count() != before {
		t.Error("a departed spectator should not keep receiving broadcasts")
	}
}

func TestBoundedRoomAdmissionTable(t *testing.T) {
	r, cancel := newTestRoom(t, 2, 60)
	defer cancel()

	if r.Status() != StatusNew {
		t.Fatalf("bounded room should start New, got %v", r.Status())
	}

	a := &fakeRecipient{}
	r.Join("a", "A", a)
	waitFor(t, func() bool { return a.count() > 0 })
	if r.Status() != StatusNew {
		t.Errorf("room with 1/2 players should remain New, got %v", r.Status())
	}

	b := &fakeRecipient{}
	r.Join("b", "B", b)
	waitFor(t, func() bool { return b.count() > 0 })
	if r.Status() != StatusRunning {
		t.Errorf("room should transition to Running once full, got %v", r.Status())
	}

	c := &fakeRecipient{}
	r.Join("c", "C", c)
	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 {
		t.Error("a full, already-running room must reject a new player")
	}
}

func TestLeaveIgnoresStaleRecipient(t *testing.T) {
	r, cancel := newTestRoom(t, 0, 0)
	defer cancel()

	old := &fakeRecipient{}
	r.Join("k", "A", old)
	waitFor(t, func() bool { return old.count() > 0 })

	newer := &fakeRecipient{}
	r.Join("k", "A", newer)
	waitFor(t, func() bool { return newer.count() > 0 })

	// Leave with the stale recipient must not evict the session the newer
	// connection just installed.
	r.Leave("k", old)

	msg := &fakeRecipient{}
	r.Join(SpectatorKey, SpectatorKey, msg)
	time.Sleep(30 * time.Millisecond)
	if newer.isClosed() {
		t.Error("a stale Leave evicted the current session")
	}
}
