package room

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/webuild-community/spacebot/internal/arena"
	"github.com/webuild-community/spacebot/internal/store"
	"github.com/webuild-community/spacebot/internal/telemetry"
)

// RoomCreated is the response shape for a successful room creation,
// matching spec.md §4.5/§6 exactly.
type RoomCreated struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	MaxPlayers       uint32 `json:"max_players"`
	TimeLimitSeconds uint32 `json:"time_limit_seconds"`
	Token            string `json:"token"`
}

// Summary is one row of a room listing.
type Summary struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	MaxPlayers       uint32 `json:"max_players"`
	TimeLimitSeconds uint32 `json:"time_limit_seconds"`
	Token            string `json:"token"`
	Status           string `json:"status"`
}

const maxTokenAttempts = 16

// Registry creates rooms, assigns tokens, and looks rooms up by token.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	byID   []string // token, in id order
	nextID uint64
	rng    *rand.Rand

	gameDefaults arena.GameConfig
	store        store.Adapter
	events       *telemetry.EventLog
	ctx          context.Context
}

// NewRegistry constructs an empty registry. ctx governs the lifetime of
// every room's GameLoop goroutine.
func NewRegistry(ctx context.Context, gameDefaults arena.GameConfig, adapter store.Adapter, events *telemetry.EventLog) *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		gameDefaults: gameDefaults,
		store:        adapter,
		events:       events,
		ctx:          ctx,
	}
}

// CreateRoom allocates an id, generates a unique token, starts a fresh
// Room (and its GameLoop), and inserts it by token.
func (reg *Registry) CreateRoom(name string, maxPlayers, timeLimitSeconds uint32) (RoomCreated, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var token string
	for attempt := 0; ; attempt++ {
		candidate := generateToken(reg.rng)
		if _, exists := reg.rooms[candidate]; !exists {
			token = candidate
			break
		}
		if attempt >= maxTokenAttempts {
			return RoomCreated{}, fmt.Errorf("room: exhausted token generation attempts")
		}
	}

	id := reg.nextID
	reg.nextID++

	cfg := Config{
		ID:               id,
		Name:             name,
		MaxPlayers:       maxPlayers,
		TimeLimitSeconds: timeLimitSeconds,
		Token:            token,
		Game:             reg.gameDefaults,
	}
	r := New(cfg, reg.store, reg.events)
	r.Start(reg.ctx)

	reg.rooms[token] = r
	reg.byID = append(reg.byID, token)
	telemetry.Metrics.RoomsActive.Inc()
	reg.cacheRoomMetadata(token, name, maxPlayers, timeLimitSeconds)
	if reg.events != nil {
		reg.events.Emit(telemetry.Event{Type: telemetry.EventRoomCreated, RoomToken: token})
	}

	return RoomCreated{
		ID:               id,
		Name:             name,
		MaxPlayers:       maxPlayers,
		TimeLimitSeconds: timeLimitSeconds,
		Token:            token,
	}, nil
}

// cacheRoomMetadata writes the room:{token} hash, matching the original
// create_room_handler's caching of room fields to Redis. Best-effort.
func (reg *Registry) cacheRoomMetadata(token, name string, maxPlayers, timeLimitSeconds uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	fields := map[string]string{
		"name":               name,
		"max_players":        fmt.Sprint(maxPlayers),
		"time_limit_seconds": fmt.Sprint(timeLimitSeconds),
	}
	if err := reg.store.SetRoomField(ctx, token, fields); err != nil {
		log.Printf("registry: failed to cache room metadata for %s: %v", token, err)
	}
}

// JoinRoom looks up a room by token.
func (reg *Registry) JoinRoom(token string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[token]
	return r, ok
}

// ListRooms returns every room, sorted by id ascending.
func (reg *Registry) ListRooms() []Summary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]Summary, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, Summary{
			ID:               r.ID(),
			Name:             r.Name(),
			MaxPlayers:       r.MaxPlayers(),
			TimeLimitSeconds: r.TimeLimitSeconds(),
			Token:            r.Token(),
			Status:           r.Status().String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
