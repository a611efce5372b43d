// Package wire implements the JSON text-frame protocol exchanged with
// clients: the tagged-union GameCommand documents clients send, and the
// ServerToClient documents the server sends back.
package wire

import (
	"encoding/json"
	"errors"

	"github.com/webuild-community/spacebot/internal/arena"
)

// ErrUnknownCommand is returned when a frame decodes as JSON but matches
// none of the known GameCommand shapes.
var ErrUnknownCommand = errors.New("wire: unknown game command")

// rotateCommand / throttleCommand mirror the externally-tagged shapes
// {"Rotate": <f32>} and {"Throttle": <f32>}.
type rotateCommand struct {
	Rotate *float64 `json:"Rotate"`
}

type throttleCommand struct {
	Throttle *float64 `json:"Throttle"`
}

const fireCommandLiteral = `"Fire"`

// DecodeCommand parses one inbound text frame into an arena.Command.
// "Fire" arrives as a bare JSON string, not an object, so it is checked
// before attempting to unmarshal into either tagged-object shape.
func DecodeCommand(data []byte) (arena.Command, error) {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		if literal == "Fire" {
			return arena.Command{Kind: arena.CommandFire}, nil
		}
		return arena.Command{}, ErrUnknownCommand
	}

	var rc rotateCommand
	if err := json.Unmarshal(data, &rc); err == nil && rc.Rotate != nil {
		return arena.Command{Kind: arena.CommandRotate, Value: *rc.Rotate}, nil
	}

	var tc throttleCommand
	if err := json.Unmarshal(data, &tc); err == nil && tc.Throttle != nil {
		return arena.Command{Kind: arena.CommandThrottle, Value: *tc.Throttle}, nil
	}

	return arena.Command{}, ErrUnknownCommand
}

// EncodeCommand is the inverse of DecodeCommand, used by tests to verify
// the round-trip property and by any future bot client.
func EncodeCommand(cmd arena.Command) ([]byte, error) {
	switch cmd.Kind {
	case arena.CommandRotate:
		return json.Marshal(rotateCommand{Rotate: &cmd.Value})
	case arena.CommandThrottle:
		return json.Marshal(throttleCommand{Throttle: &cmd.Value})
	case arena.CommandFire:
		return []byte(fireCommandLiteral), nil
	default:
		return nil, ErrUnknownCommand
	}
}
