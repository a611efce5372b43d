// Package gameloop drives a single arena.Game at a fixed tick rate on its
// own goroutine. It never blocks on I/O: its only waits are the tick-pacer
// sleep and a non-blocking drain of its inbound command channel.
package gameloop

import (
	"context"
	"log"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
	"github.com/webuild-community/spacebot/internal/telemetry"
)

// CommandKind enumerates the messages a Room may send to a running Loop.
type CommandKind int

const (
	// PlayerJoined admits a player id into the simulation. The Room has
	// already performed admission checks; the loop never rejects this.
	PlayerJoined CommandKind = iota
	// PlayerLeft removes a player id from the simulation.
	PlayerLeft
	// GameCommand applies a decoded client intent, ignored unless the loop
	// is currently ticking.
	GameCommand
	// Reset reinitializes the simulation, keeping current player ids.
	Reset
	// Start transitions the loop into ticking mode. deadline is zero for
	// an unbounded (dev-mode) room.
	Start
)

// Command is one inbound message to the loop.
type Command struct {
	Kind     CommandKind
	PlayerID uint32
	Game     arena.Command
	Deadline time.Time
}

const inboxCapacity = 256

// Loop owns one arena.Game and is the sole goroutine that ever touches it.
type Loop struct {
	game *arena.Game
	cmds chan Command

	onSnapshot func(arena.GameState)
	onFinished func(arena.GameState)

	running     bool
	hasDeadline bool
	gameOverAt  time.Time

	label string
}

// New constructs a Loop around game. onSnapshot is invoked once per tick
// (even while not yet running, so joins/Id assignment can precede the
// first tick) with an immutable clone of the current state; it must not
// block. onFinished is invoked exactly once, when the time limit elapses.
func New(game *arena.Game, label string, onSnapshot func(arena.GameState), onFinished func(arena.GameState)) *Loop {
	return &Loop{
		game:       game,
		cmds:       make(chan Command, inboxCapacity),
		onSnapshot: onSnapshot,
		onFinished: onFinished,
		label:      label,
	}
}

// Send enqueues a command for the loop. It never blocks: a full inbox or a
// stopped loop is a fatal condition for the sender per the error-handling
// design, signaled by a false return so the caller can escalate to room
// teardown instead of sending into the void.
func (l *Loop) Send(cmd Command) bool {
	select {
	case l.cmds <- cmd:
		return true
	default:
		return false
	}
}

// Run pumps the fixed-rate tick loop until ctx is cancelled. It is meant to
// be started with `go loop.Run(ctx)` once per room.
func (l *Loop) Run(ctx context.Context) {
	interval := time.Second / time.Duration(arena.TicksPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := 1.0 / float64(arena.TicksPerSecond)

	for {
		select {
		case <-ctx.Done():
			log.Printf("gameloop[%s]: cancelled, exiting", l.label)
			return
		case <-ticker.C:
			l.drainCommands()
			l.checkTimeLimit()
			if l.running {
				tickStart := time.Now()
				l.game.Tick(dt)
				telemetry.Metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
			}
			if l.onSnapshot != nil {
				l.onSnapshot(l.game.Snapshot())
			}
		}
	}
}

// drainCommands processes every command currently queued without blocking.
func (l *Loop) drainCommands() {
	for {
		select {
		case cmd := <-l.cmds:
			l.apply(cmd)
		default:
			return
		}
	}
}

func (l *Loop) apply(cmd Command) {
	switch cmd.Kind {
	case PlayerJoined:
		l.game.AddPlayer(cmd.PlayerID)
	case PlayerLeft:
		l.game.PlayerLeft(cmd.PlayerID)
	case GameCommand:
		if l.running {
			l.game.HandleCommand(cmd.PlayerID, cmd.Game)
		}
	case Reset:
		l.game.Reset()
	case Start:
		l.running = true
		if !cmd.Deadline.IsZero() {
			l.hasDeadline = true
			l.gameOverAt = cmd.Deadline
		}
	}
}

func (l *Loop) checkTimeLimit() {
	if !l.running || !l.hasDeadline {
		return
	}
	if time.Now().Before(l.gameOverAt) {
		return
	}
	l.running = false
	l.hasDeadline = false
	if l.onFinished != nil {
		l.onFinished(l.game.Snapshot())
	}
}
