// Package store implements the external key-value adapter spec.md §4.6
// describes: a fire-and-forget write path and a request/response read path
// for scoreboard and player metadata. The core never depends on its
// availability — every write failure is logged and swallowed.
package store

import "context"

// PlayerInfo is the subset of session identity persisted per player id,
// looked up in bulk when a scoreboard is read back.
type PlayerInfo struct {
	APIKey   string `json:"api_key"`
	TeamName string `json:"team_name"`
}

// Adapter is the contract any backing store must fulfil. Implementations
// must treat write methods as best-effort: returning an error only logs,
// it never propagates to the GameLoop.
type Adapter interface {
	// SetScoreboard upserts room:{token}:scoreboard with the given
	// player_id -> points mapping.
	SetScoreboard(ctx context.Context, roomToken string, scores map[uint32]uint32) error
	// GetScoreboard returns the scoreboard in descending score order.
	GetScoreboard(ctx context.Context, roomToken string) ([]ScoreEntry, error)
	// SetPlayerInfo persists identity fields for one player id.
	SetPlayerInfo(ctx context.Context, playerID uint32, info PlayerInfo) error
	// GetMultiplePlayerInfo looks up identity fields for many ids at once.
	GetMultiplePlayerInfo(ctx context.Context, ids []uint32) (map[uint32]PlayerInfo, error)

	// SetRoomField bulk-upserts the room:{token} hash with metadata fields
	// (name, max_players, time_limit_seconds), mirroring the original
	// RedisActor's SetRoomCommand.
	SetRoomField(ctx context.Context, roomToken string, fields map[string]string) error
	// AddRoomPlayer adds playerKey to the room:{token}:players set.
	AddRoomPlayer(ctx context.Context, roomToken, playerKey string) error
	// RemoveRoomPlayer removes playerKey from the room:{token}:players set.
	RemoveRoomPlayer(ctx context.Context, roomToken, playerKey string) error
	// RoomSize returns the cardinality of the room:{token}:players set.
	RoomSize(ctx context.Context, roomToken string) (int, error)
}

// ScoreEntry is one row of a scoreboard read, already in descending order.
type ScoreEntry struct {
	PlayerID uint32
	Points   uint32
}

// NoopAdapter discards every write and returns empty reads. It is the
// zero-config default when no redis_uri is configured, matching spec.md's
// "the core does not depend on its availability."
type NoopAdapter struct{}

func (NoopAdapter) SetScoreboard(context.Context, string, map[uint32]uint32) error { return nil }

func (NoopAdapter) GetScoreboard(context.Context, string) ([]ScoreEntry, error) {
	return nil, nil
}

func (NoopAdapter) SetPlayerInfo(context.Context, uint32, PlayerInfo) error { return nil }

func (NoopAdapter) GetMultiplePlayerInfo(context.Context, []uint32) (map[uint32]PlayerInfo, error) {
	return map[uint32]PlayerInfo{}, nil
}

func (NoopAdapter) SetRoomField(context.Context, string, map[string]string) error { return nil }

func (NoopAdapter) AddRoomPlayer(context.Context, string, string) error { return nil }

func (NoopAdapter) RemoveRoomPlayer(context.Context, string, string) error { return nil }

func (NoopAdapter) RoomSize(context.Context, string) (int, error) { return 0, nil }
