package store

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter backs Adapter with Redis, grounded on the two actors the
// original implementation split this across: a scoreboard sorted set and a
// player-info hash per id.
type RedisAdapter struct {
	client *redis.Client
}

// NewRedisAdapter dials uri (e.g. "redis://127.0.0.1:6379/0") eagerly; the
// connection itself is lazy in go-redis, so this only validates the URI.
func NewRedisAdapter(uri string) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("store: invalid redis uri: %w", err)
	}
	return &RedisAdapter{client: redis.NewClient(opts)}, nil
}

func scoreboardKey(roomToken string) string {
	return fmt.Sprintf("room:%s:scoreboard", roomToken)
}

func playerKey(id uint32) string {
	return fmt.Sprintf("player:%d", id)
}

func roomKey(roomToken string) string {
	return fmt.Sprintf("room:%s", roomToken)
}

func roomPlayersKey(roomToken string) string {
	return fmt.Sprintf("room:%s:players", roomToken)
}

// SetScoreboard upserts the sorted set room:{token}:scoreboard. Failures
// are logged, never surfaced to the caller's caller.
func (a *RedisAdapter) SetScoreboard(ctx context.Context, roomToken string, scores map[uint32]uint32) error {
	if len(scores) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(scores))
	for id, points := range scores {
		members = append(members, redis.Z{Score: float64(points), Member: id})
	}
	if err := a.client.ZAdd(ctx, scoreboardKey(roomToken), members...).Err(); err != nil {
		log.Printf("store: set_scoreboard(%s) failed: %v", roomToken, err)
		return err
	}
	return nil
}

// GetScoreboard reads room:{token}:scoreboard in descending score order.
func (a *RedisAdapter) GetScoreboard(ctx context.Context, roomToken string) ([]ScoreEntry, error) {
	results, err := a.client.ZRevRangeWithScores(ctx, scoreboardKey(roomToken), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: get_scoreboard(%s): %w", roomToken, err)
	}
	entries := make([]ScoreEntry, 0, len(results))
	for _, z := range results {
		var id uint32
		if _, err := fmt.Sscanf(fmt.Sprint(z.Member), "%d", &id); err != nil {
			continue
		}
		entries = append(entries, ScoreEntry{PlayerID: id, Points: uint32(z.Score)})
	}
	return entries, nil
}

// SetPlayerInfo persists api_key/team_name fields under player:{id}.
func (a *RedisAdapter) SetPlayerInfo(ctx context.Context, playerID uint32, info PlayerInfo) error {
	err := a.client.HSet(ctx, playerKey(playerID), map[string]interface{}{
		"api_key":   info.APIKey,
		"team_name": info.TeamName,
	}).Err()
	if err != nil {
		log.Printf("store: set_player_info(%d) failed: %v", playerID, err)
		return err
	}
	return nil
}

// GetMultiplePlayerInfo pipelines an HGETALL per id, matching the original
// implementation's request/response read path.
func (a *RedisAdapter) GetMultiplePlayerInfo(ctx context.Context, ids []uint32) (map[uint32]PlayerInfo, error) {
	if len(ids) == 0 {
		return map[uint32]PlayerInfo{}, nil
	}

	pipe := a.client.Pipeline()
	cmds := make(map[uint32]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, playerKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("store: get_multiple_player_info: %w", err)
	}

	out := make(map[uint32]PlayerInfo, len(ids))
	for id, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out[id] = PlayerInfo{APIKey: fields["api_key"], TeamName: fields["team_name"]}
	}
	return out, nil
}

// SetRoomField bulk-upserts the room:{token} hash, matching the original
// RedisActor's SetRoomCommand / create_room_handler caching.
func (a *RedisAdapter) SetRoomField(ctx context.Context, roomToken string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if err := a.client.HSet(ctx, roomKey(roomToken), values).Err(); err != nil {
		log.Printf("store: set_room_field(%s) failed: %v", roomToken, err)
		return err
	}
	return nil
}

// AddRoomPlayer adds playerKey to room:{token}:players, matching the
// original RedisActor's AddRoomPlayerCommand.
func (a *RedisAdapter) AddRoomPlayer(ctx context.Context, roomToken, playerKey string) error {
	if err := a.client.SAdd(ctx, roomPlayersKey(roomToken), playerKey).Err(); err != nil {
		log.Printf("store: add_room_player(%s) failed: %v", roomToken, err)
		return err
	}
	return nil
}

// RemoveRoomPlayer removes playerKey from room:{token}:players, matching
// the original RedisActor's RemoveRoomPlayerCommand.
func (a *RedisAdapter) RemoveRoomPlayer(ctx context.Context, roomToken, playerKey string) error {
	if err := a.client.SRem(ctx, roomPlayersKey(roomToken), playerKey).Err(); err != nil {
		log.Printf("store: remove_room_player(%s) failed: %v", roomToken, err)
		return err
	}
	return nil
}

// RoomSize returns the cardinality of room:{token}:players, matching the
// original RedisActor's GetRoomSizeCommand.
func (a *RedisAdapter) RoomSize(ctx context.Context, roomToken string) (int, error) {
	n, err := a.client.SCard(ctx, roomPlayersKey(roomToken)).Result()
	if err != nil {
		return 0, fmt.Errorf("store: room_size(%s): %w", roomToken, err)
	}
	return int(n), nil
}
