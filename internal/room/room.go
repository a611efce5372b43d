// Package room implements the single-writer coordinator described in
// spec.md §4.4: it bundles one GameLoop with its connected sessions, a
// team-name registry, and the admission/lifecycle state machine that gates
// which commands the loop ever sees.
package room

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
	"github.com/webuild-community/spacebot/internal/gameloop"
	"github.com/webuild-community/spacebot/internal/store"
	"github.com/webuild-community/spacebot/internal/telemetry"
	"github.com/webuild-community/spacebot/internal/wire"
)

// SpectatorKey is the sentinel api_key identifying observer connections.
const SpectatorKey = "SPECTATOR"

// Status is the room's lifecycle state.
type Status int

const (
	StatusNew Status = iota
	StatusRunning
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Recipient is anything that can receive server-to-client messages and be
// force-closed. session.Session implements this; room never imports the
// session package, avoiding an import cycle.
type Recipient interface {
	Send(msg wire.ServerMessage)
	Close(reason string)
}

// Config is the immutable configuration a Room is created with.
type Config struct {
	ID               uint64
	Name             string
	MaxPlayers       uint32
	TimeLimitSeconds uint32
	Token            string
	Game             arena.GameConfig
}

// Room is the coordinator for one isolated game instance.
type Room struct {
	cfg Config

	mu               sync.Mutex
	status           Status
	gameOverAt       time.Time
	nextPlayerID     uint32
	apiKeyToPlayerID map[string]uint32
	sessions         map[string]Recipient
	spectators       map[Recipient]struct{}
	teamNames        map[uint32]string

	loop   *gameloop.Loop
	cancel context.CancelFunc

	store  store.Adapter
	events *telemetry.EventLog
}

// New constructs a Room. Call Start to spin up its GameLoop goroutine.
func New(cfg Config, adapter store.Adapter, events *telemetry.EventLog) *Room {
	if adapter == nil {
		adapter = store.NoopAdapter{}
	}
	return &Room{
		cfg:              cfg,
		apiKeyToPlayerID: make(map[string]uint32),
		sessions:         make(map[string]Recipient),
		spectators:       make(map[Recipient]struct{}),
		teamNames:        make(map[uint32]string),
		store:            adapter,
		events:           events,
	}
}

// ID, Name, Token, MaxPlayers, TimeLimitSeconds expose the immutable
// configuration for HTTP listing/creation responses.
func (r *Room) ID() uint64               { return r.cfg.ID }
func (r *Room) Name() string             { return r.cfg.Name }
func (r *Room) Token() string            { return r.cfg.Token }
func (r *Room) MaxPlayers() uint32       { return r.cfg.MaxPlayers }
func (r *Room) TimeLimitSeconds() uint32 { return r.cfg.TimeLimitSeconds }

// Status returns the current lifecycle status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start constructs the Game and GameLoop and spawns the tick goroutine.
// In dev-mode (MaxPlayers == 0) the room transitions to Running
// immediately and runs indefinitely.
func (r *Room) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	game := arena.New(r.cfg.Game, nil, nil)
	r.loop = gameloop.New(game, r.cfg.Token, r.broadcastSnapshot, r.onFinished)

	r.mu.Lock()
	if r.cfg.MaxPlayers == 0 {
		r.status = StatusRunning
		r.loop.Send(gameloop.Command{Kind: gameloop.Start})
	}
	r.mu.Unlock()

	go r.loop.Run(loopCtx)
}

// Stop cancels the GameLoop goroutine.
func (r *Room) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Room) emit(evt telemetry.Event) {
	if r.events == nil {
		return
	}
	evt.RoomToken = r.cfg.Token
	r.events.Emit(evt)
}

// canAddPlayer implements the New/Running/Finished admission column of the
// table in spec.md §4.4. Must be called with r.mu held.
func (r *Room) canAddPlayer(numPlayers uint32) bool {
	if r.cfg.MaxPlayers == 0 {
		return true
	}
	return r.status == StatusNew && numPlayers < r.cfg.MaxPlayers
}

// canStart implements the can_start column. Must be called with r.mu held,
// after the new player has already been counted.
func (r *Room) canStart(numPlayers uint32) bool {
	if r.cfg.MaxPlayers == 0 {
		return false // already started at construction time
	}
	return r.status == StatusNew && numPlayers == r.cfg.MaxPlayers
}

// Join handles a new or reconnecting session per spec.md §4.4.
func (r *Room) Join(apiKey, teamName string, recipient Recipient) {
	if apiKey == SpectatorKey {
		r.mu.Lock()
		r.spectators[recipient] = struct{}{}
		names := cloneTeamNames(r.teamNames)
		r.mu.Unlock()
		recipient.Send(wire.TeamNamesMessage(names))
		return
	}

	r.mu.Lock()

	if existing, ok := r.sessions[apiKey]; ok {
		existing.Close("The server decided it didn't like you anymore. Or maybe you connected another client with the same API key")
	}
	r.sessions[apiKey] = recipient

	playerID, known := r.apiKeyToPlayerID[apiKey]
	if known {
		r.mu.Unlock()
		recipient.Send(wire.IDMessage(playerID))
		r.broadcastTeamNameUpdate(playerID, teamName)
		return
	}

	numPlayers := uint32(len(r.apiKeyToPlayerID))
	if !r.canAddPlayer(numPlayers) {
		r.mu.Unlock()
		r.emit(telemetry.Event{Type: telemetry.EventAdmissionDrop})
		return
	}

	playerID = r.nextPlayerID
	r.nextPlayerID++
	r.apiKeyToPlayerID[apiKey] = playerID
	numPlayers++

	start := r.canStart(numPlayers)
	if start {
		r.status = StatusRunning
		r.gameOverAt = time.Now().Add(time.Duration(r.cfg.TimeLimitSeconds) * time.Second)
	}
	deadline := r.gameOverAt
	r.mu.Unlock()

	if ok := r.loop.Send(gameloop.Command{Kind: gameloop.PlayerJoined, PlayerID: playerID}); !ok {
		log.Printf("room %s: loop inbox full, tearing down", r.cfg.Token)
		r.Stop()
		return
	}
	if start {
		r.loop.Send(gameloop.Command{Kind: gameloop.Start, Deadline: deadline})
	}

	recipient.Send(wire.IDMessage(playerID))
	r.emit(telemetry.Event{Type: telemetry.EventPlayerJoined, PlayerID: playerID})
	r.broadcastTeamNameUpdate(playerID, teamName)
	r.persistPlayerInfo(playerID, apiKey, teamName)
	r.addRoomPlayer(apiKey)
	telemetry.Metrics.PlayersActive.Set(float64(numPlayers))
}

// addRoomPlayer registers apiKey in the store's room:{token}:players set,
// mirroring the original ClientWsActor's started hook. Best-effort.
func (r *Room) addRoomPlayer(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.AddRoomPlayer(ctx, r.cfg.Token, apiKey); err != nil {
		log.Printf("room %s: failed to add room player %s: %v", r.cfg.Token, apiKey, err)
	}
}

// removeRoomPlayer unregisters apiKey from the store's room:{token}:players
// set, mirroring the original ClientWsActor's stopped hook. Best-effort.
func (r *Room) removeRoomPlayer(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.RemoveRoomPlayer(ctx, r.cfg.Token, apiKey); err != nil {
		log.Printf("room %s: failed to remove room player %s: %v", r.cfg.Token, apiKey, err)
	}
}

// persistPlayerInfo writes identity fields for a newly admitted player so a
// later scoreboard read can join them back in. Best-effort: failures are
// logged, never surfaced to the joining session.
func (r *Room) persistPlayerInfo(playerID uint32, apiKey, teamName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.SetPlayerInfo(ctx, playerID, store.PlayerInfo{APIKey: apiKey, TeamName: teamName}); err != nil {
		log.Printf("room %s: failed to persist player info for %d: %v", r.cfg.Token, playerID, err)
	}
}

func (r *Room) broadcastTeamNameUpdate(playerID uint32, teamName string) {
	r.mu.Lock()
	r.teamNames[playerID] = teamName
	names := cloneTeamNames(r.teamNames)
	r.mu.Unlock()
	r.broadcast(wire.TeamNamesMessage(names))
}

func cloneTeamNames(in map[uint32]string) map[uint32]string {
	out := make(map[uint32]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Leave handles a disconnect or explicit leave per spec.md §4.4. recipient
// must be the same value passed to Join, so a stale disconnect for an
// already-replaced session does not evict the new one.
func (r *Room) Leave(apiKey string, recipient Recipient) {
	if apiKey == SpectatorKey {
		r.mu.Lock()
		delete(r.spectators, recipient)
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	current, ok := r.sessions[apiKey]
	if !ok || current != recipient {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, apiKey)
	playerID, hadID := r.apiKeyToPlayerID[apiKey]
	delete(r.apiKeyToPlayerID, apiKey)
	remaining := len(r.apiKeyToPlayerID)
	r.mu.Unlock()

	if hadID {
		r.loop.Send(gameloop.Command{Kind: gameloop.PlayerLeft, PlayerID: playerID})
		r.emit(telemetry.Event{Type: telemetry.EventPlayerLeft, PlayerID: playerID})
		r.removeRoomPlayer(apiKey)
		telemetry.Metrics.PlayersActive.Set(float64(remaining))
	}
}

// Command forwards a decoded client intent to the GameLoop, only if apiKey
// has already been assigned a player id.
func (r *Room) Command(apiKey string, cmd arena.Command) {
	r.mu.Lock()
	playerID, ok := r.apiKeyToPlayerID[apiKey]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.loop.Send(gameloop.Command{Kind: gameloop.GameCommand, PlayerID: playerID, Game: cmd})
}

// Reset forwards an admin reset request to the GameLoop.
func (r *Room) Reset() {
	r.loop.Send(gameloop.Command{Kind: gameloop.Reset})
}

// broadcastSnapshot is the GameLoop's onSnapshot callback; it runs on the
// loop goroutine, so it must never block or touch Game state.
func (r *Room) broadcastSnapshot(state arena.GameState) {
	for _, k := range state.Kills {
		r.emit(telemetry.Event{Type: telemetry.EventKill, PlayerID: k.KillerID, Payload: k})
	}
	r.broadcast(wire.GameStateMessage(state))
}

func (r *Room) broadcast(msg wire.ServerMessage) {
	r.mu.Lock()
	recipients := make([]Recipient, 0, len(r.sessions)+len(r.spectators))
	for _, s := range r.sessions {
		recipients = append(recipients, s)
	}
	for s := range r.spectators {
		recipients = append(recipients, s)
	}
	r.mu.Unlock()

	for _, rec := range recipients {
		rec.Send(msg)
	}
}

// onFinished is the GameLoop's onFinished callback, invoked once when the
// time limit elapses, with the final GameState.
func (r *Room) onFinished(final arena.GameState) {
	r.mu.Lock()
	r.status = StatusFinished
	r.mu.Unlock()

	r.emit(telemetry.Event{Type: telemetry.EventRoomFinished})

	if len(final.Scoreboard) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.store.SetScoreboard(ctx, r.cfg.Token, final.Scoreboard); err != nil {
		log.Printf("room %s: failed to persist final scoreboard: %v", r.cfg.Token, err)
	}
}
