package wire

import (
	"encoding/json"
	"testing"

	"github.com/webuild-community/spacebot/internal/arena"
)

func TestDecodeCommandRoundTrip(t *testing.T) {
	cases := []arena.Command{
		{Kind: arena.CommandRotate, Value: 1.5707963267948966},
		{Kind: arena.CommandThrottle, Value: 0.75},
		{Kind: arena.CommandFire},
	}

	for _, want := range cases {
		data, err := EncodeCommand(want)
		if err != nil {
			t.Fatalf("EncodeCommand(%+v): %v", want, err)
		}
		got, err := DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand(%q): %v", data, err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestDecodeCommandWireShapes(t *testing.T) {
	cases := []struct {
		name string
		data string
		want arena.Command
	}{
		{"rotate", `{"Rotate":0.0}`, arena.Command{Kind: arena.CommandRotate, Value: 0}},
		{"throttle", `{"Throttle":1.0}`, arena.Command{Kind: arena.CommandThrottle, Value: 1}},
		{"fire", `"Fire"`, arena.Command{Kind: arena.CommandFire}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tc.data))
			if err != nil {
				t.Fatalf("DecodeCommand(%q): %v", tc.data, err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecodeCommandRejectsGarbage(t *testing.T) {
	cases := []string{`{}`, `"Reload"`, `{"Rotate":"nan"}`, `not json`, `42`}
	for _, data := range cases {
		if _, err := DecodeCommand([]byte(data)); err == nil {
			t.Errorf("DecodeCommand(%q) succeeded, want error", data)
		}
	}
}

func fieldPresent(t *testing.T, msg ServerMessage, key string) bool {
	t.Helper()
	data, err := msg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	_, ok := m[key]
	return ok
}

func TestServerMessageVariants(t *testing.T) {
	if !fieldPresent(t, IDMessage(7), "Id") {
		t.Error("IDMessage should marshal with an \"Id\" key")
	}
	if !fieldPresent(t, TeamNamesMessage(map[uint32]string{0: "red"}), "TeamNames") {
		t.Error("TeamNamesMessage should marshal with a \"TeamNames\" key")
	}
	state := arena.GameState{BoundX: 100, BoundY: 100, Scoreboard: map[uint32]uint32{}}
	if !fieldPresent(t, GameStateMessage(state), "GameState") {
		t.Error("GameStateMessage should marshal with a \"GameState\" key")
	}
}

func TestIsGameState(t *testing.T) {
	state := arena.GameState{Scoreboard: map[uint32]uint32{}}
	if !GameStateMessage(state).IsGameState() {
		t.Error("GameStateMessage should report IsGameState() == true")
	}
	if IDMessage(0).IsGameState() {
		t.Error("IDMessage should not report IsGameState() == true")
	}
	if TeamNamesMessage(nil).IsGameState() {
		t.Error("TeamNamesMessage should not report IsGameState() == true")
	}
}

func TestNewSnapshotGroupsBounds(t *testing.T) {
	state := arena.GameState{
		BoundX:     1280,
		BoundY:     720,
		Scoreboard: map[uint32]uint32{1: 3},
		Dead: []arena.DeadPlayer{
			{Player: arena.PlayerState{ID: 2}},
		},
	}
	snap := NewSnapshot(state)
	if snap.Bounds != [2]float64{1280, 720} {
		t.Errorf("bounds = %v, want [1280 720]", snap.Bounds)
	}
	if len(snap.Dead) != 1 || snap.Dead[0].Player.ID != 2 {
		t.Errorf("dead entries not carried through: %+v", snap.Dead)
	}
}
