package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webuild-community/spacebot/internal/config"
	"github.com/webuild-community/spacebot/internal/room"
	"github.com/webuild-community/spacebot/internal/store"
)

// fakeRegistry is a test double for Registry, backed by a plain map so HTTP
// handler tests never spin up a real GameLoop.
type fakeRegistry struct {
	rooms    map[string]*room.Room
	created  []room.RoomCreated
	nextID   uint64
	failNext bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rooms: make(map[string]*room.Room)}
}

func (f *fakeRegistry) CreateRoom(name string, maxPlayers, timeLimitSeconds uint32) (room.RoomCreated, error) {
	if f.failNext {
		return room.RoomCreated{}, fmt.Errorf("forced failure")
	}
	f.nextID++
	token := fmt.Sprintf("token-%d", f.nextID)
	cfg := room.Config{ID: f.nextID, Name: name, MaxPlayers: maxPlayers, TimeLimitSeconds: timeLimitSeconds, Token: token}
	rm := room.New(cfg, store.NoopAdapter{}, nil)
	f.rooms[token] = rm
	created := room.RoomCreated{ID: f.nextID, Name: name, MaxPlayers: maxPlayers, TimeLimitSeconds: timeLimitSeconds, Token: token}
	f.created = append(f.created, created)
	return created, nil
}

func (f *fakeRegistry) JoinRoom(token string) (*room.Room, bool) {
	rm, ok := f.rooms[token]
	return rm, ok
}

func (f *fakeRegistry) ListRooms() []room.Summary {
	out := make([]room.Summary, 0, len(f.rooms))
	for token, rm := range f.rooms {
		out = append(out, room.Summary{ID: rm.ID(), Name: rm.Name(), Token: token, Status: rm.Status().String()})
	}
	return out
}

func newTestServer(t *testing.T, reg *fakeRegistry, adapter store.Adapter, defaultToken string) *httptest.Server {
	t.Helper()
	if adapter == nil {
		adapter = store.NoopAdapter{}
	}
	router := NewRouter(RouterConfig{
		Registry:         reg,
		Store:            adapter,
		Config:           config.Default(),
		DefaultRoomToken: defaultToken,
		DisableLogging:   true,
	})
	return httptest.NewServer(router)
}

func TestCreateRoomReturnsToken(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(t, reg, nil, "")
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"name": "arena-1", "max_players": 2, "time_limit_seconds": 120})
	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /rooms: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var created room.RoomCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Token == "" {
		t.Error("expected a non-empty room token")
	}
	if created.Name != "arena-1" {
		t.Errorf("name = %q, want arena-1", created.Name)
	}
}

func TestCreateRoomRejectsMalformedBody(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(t, reg, nil, "")
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rooms", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("POST /rooms: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListRoomsReturnsCreatedRooms(t *testing.T) {
	reg := newFakeRegistry()
	reg.CreateRoom("a", 2, 60)
	reg.CreateRoom("b", 4, 120)

	srv := newTestServer(t, reg, nil, "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/rooms")
	if err != nil {
		t.Fatalf("GET /rooms: %v", err)
	}
	defer resp.Body.Close()

	var rooms []room.Summary
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
}

func TestScoreboardUnknownRoomReturns400(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(t, reg, nil, "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/rooms/nonexistent/scoreboard")
	if err != nil {
		t.Fatalf("GET scoreboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestResetUnknownDefaultRoomReturns400(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(t, reg, nil, "missing-token")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/reset")
	if err != nil {
		t.Fatalf("GET /reset: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	reg := newFakeRegistry()
	srv := newTestServer(t, reg, nil, "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSocketRejectsInvalidAPIKeyWhenNotDevMode(t *testing.T) {
	reg := newFakeRegistry()
	reg.CreateRoom("a", 0, 0)
	token := reg.created[0].Token

	router := NewRouter(RouterConfig{
		Registry:         reg,
		Store:            store.NoopAdapter{},
		Config:           config.AppConfig{DevMode: false, APIKeys: []string{"good-key"}},
		DefaultRoomToken: token,
		DisableLogging:   true,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("%s/socket?room_token=%s&key=bad-key&name=x", srv.URL, token))
	if err != nil {
		t.Fatalf("GET /socket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an invalid API key", resp.StatusCode)
	}
}

func TestSocketRejectsUnknownRoom(t *testing.T) {
	reg := newFakeRegistry()
	router := NewRouter(RouterConfig{
		Registry:         reg,
		Store:            store.NoopAdapter{},
		Config:           config.AppConfig{DevMode: true},
		DefaultRoomToken: "",
		DisableLogging:   true,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/socket?room_token=missing&key=k&name=n")
	if err != nil {
		t.Fatalf("GET /socket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unknown room", resp.StatusCode)
	}
}
