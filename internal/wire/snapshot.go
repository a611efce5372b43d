package wire

import (
	"encoding/json"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
)

// Snapshot is the wire shape of a GameState, distinct from arena.GameState
// itself: the wire protocol groups bounds into a two-element array and
// renames dead.RespawnAt to "respawn", per spec.md §6.
type Snapshot struct {
	Bounds     [2]float64          `json:"bounds"`
	Players    []arena.PlayerState `json:"players"`
	Dead       []deadEntry         `json:"dead"`
	Bullets    []arena.BulletState `json:"bullets"`
	Items      []arena.Item        `json:"items"`
	Scoreboard map[uint32]uint32   `json:"scoreboard"`
}

type deadEntry struct {
	Respawn time.Time         `json:"respawn"`
	Player  arena.PlayerState `json:"player"`
}

// NewSnapshot converts an arena.GameState into its wire representation.
func NewSnapshot(state arena.GameState) Snapshot {
	dead := make([]deadEntry, len(state.Dead))
	for i, d := range state.Dead {
		dead[i] = deadEntry{Respawn: d.RespawnAt, Player: d.Player}
	}
	return Snapshot{
		Bounds:     [2]float64{state.BoundX, state.BoundY},
		Players:    state.Players,
		Dead:       dead,
		Bullets:    state.Bullets,
		Items:      state.Items,
		Scoreboard: state.Scoreboard,
	}
}

// serverMessageKind enumerates the three ServerToClient variants.
type serverMessageKind int

const (
	kindID serverMessageKind = iota
	kindTeamNames
	kindGameState
)

// ServerMessage is the closed sum type for everything the server sends a
// client: {"Id": n}, {"TeamNames": {...}}, or {"GameState": {...}}.
type ServerMessage struct {
	kind      serverMessageKind
	id        uint32
	teamNames map[uint32]string
	state     Snapshot
}

// IDMessage is sent once on join, before any snapshot. Never sent to
// spectators.
func IDMessage(id uint32) ServerMessage {
	return ServerMessage{kind: kindID, id: id}
}

// TeamNamesMessage is broadcast on any join or team-name change.
func TeamNamesMessage(names map[uint32]string) ServerMessage {
	return ServerMessage{kind: kindTeamNames, teamNames: names}
}

// GameStateMessage is broadcast every tick.
func GameStateMessage(state arena.GameState) ServerMessage {
	return ServerMessage{kind: kindGameState, state: NewSnapshot(state)}
}

// IsGameState reports whether m is a per-tick snapshot message, the only
// variant allowed to be dropped under backpressure (a later snapshot
// supersedes an earlier undelivered one).
func (m ServerMessage) IsGameState() bool { return m.kind == kindGameState }

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch m.kind {
	case kindID:
		return json.Marshal(struct {
			ID uint32 `json:"Id"`
		}{ID: m.id})
	case kindTeamNames:
		return json.Marshal(struct {
			TeamNames map[uint32]string `json:"TeamNames"`
		}{TeamNames: m.teamNames})
	case kindGameState:
		return json.Marshal(struct {
			GameState Snapshot `json:"GameState"`
		}{GameState: m.state})
	default:
		return nil, ErrUnknownCommand
	}
}
