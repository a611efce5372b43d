// Package session implements one asynchronous WebSocket client per
// spec.md §4.3: wire decode/encode, per-connection rate limiting, and the
// join/leave signals sent to its Room.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/webuild-community/spacebot/internal/arena"
	"github.com/webuild-community/spacebot/internal/room"
	"github.com/webuild-community/spacebot/internal/telemetry"
	"github.com/webuild-community/spacebot/internal/wire"
)

const (
	reliableQueueSize = 16
	writeWait         = 5 * time.Second
)

// Room is the subset of *room.Room a session needs, kept as an interface
// so tests can exercise Session without spinning up a real GameLoop.
type Room interface {
	Join(apiKey, teamName string, recipient room.Recipient)
	Leave(apiKey string, recipient room.Recipient)
	Command(apiKey string, cmd arena.Command)
}

// Session is one live connection's state, implementing room.Recipient.
type Session struct {
	apiKey   string
	teamName string
	room     Room
	conn     *websocket.Conn
	limiter  *rate.Limiter

	reliable chan wire.ServerMessage

	snapMu  sync.Mutex
	pending *wire.ServerMessage
	notify  chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Session bound to conn. limiter is the per-connection
// action-rate bucket, built by the caller (api.NewSessionLimiter) so this
// package never needs to know how the cap is configured. Call Run to drive
// it; Run blocks until the connection closes.
func New(conn *websocket.Conn, apiKey, teamName string, r Room, limiter *rate.Limiter) *Session {
	return &Session{
		apiKey:   apiKey,
		teamName: teamName,
		room:     r,
		conn:     conn,
		limiter:  limiter,
		reliable: make(chan wire.ServerMessage, reliableQueueSize),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run joins the room, starts the write pump, and blocks on the read pump
// until the socket closes or errors. It always leaves the room on return.
func (s *Session) Run() {
	telemetry.Metrics.WSConnectionsTotal.Inc()
	s.room.Join(s.apiKey, s.teamName, s)

	go s.writePump()
	s.readPump()

	s.room.Leave(s.apiKey, s)
	s.closeDone()
}

func (s *Session) closeDone() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) readPump() {
	defer s.conn.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		telemetry.Metrics.WSMessagesTotal.Inc()

		if !s.limiter.Allow() {
			telemetry.Metrics.CommandsDropped.WithLabelValues("rate_limited").Inc()
			log.Printf("session %s: rate limited, dropping frame", s.apiKey)
			continue
		}

		cmd, err := wire.DecodeCommand(data)
		if err != nil {
			telemetry.Metrics.CommandsDropped.WithLabelValues("invalid_json").Inc()
			log.Printf("session %s: dropping invalid command: %v", s.apiKey, err)
			continue
		}

		s.room.Command(s.apiKey, cmd)
	}
}

// writePump serializes the reliable queue (Id/TeamNames) and the
// at-most-one-pending snapshot slot onto the socket.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.reliable:
			if !s.writeJSON(msg) {
				return
			}
		case <-s.notify:
			s.snapMu.Lock()
			msg := s.pending
			s.pending = nil
			s.snapMu.Unlock()
			if msg != nil && !s.writeJSON(*msg) {
				return
			}
		}
	}
}

func (s *Session) writeJSON(msg wire.ServerMessage) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := msg.MarshalJSON()
	if err != nil {
		log.Printf("session %s: failed to encode outbound message: %v", s.apiKey, err)
		return true
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

// Send implements room.Recipient. GameState snapshots replace any
// previously undelivered snapshot; every other message is queued
// reliably, blocking briefly rather than being dropped.
func (s *Session) Send(msg wire.ServerMessage) {
	if msg.IsGameState() {
		s.snapMu.Lock()
		s.pending = &msg
		s.snapMu.Unlock()
		select {
		case s.notify <- struct{}{}:
		default:
		}
		return
	}

	select {
	case s.reliable <- msg:
	case <-s.done:
	}
}

// Close implements room.Recipient: an admin-kick closes the socket with a
// normal code and a human-readable reason.
func (s *Session) Close(reason string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
	s.conn.Close()
	s.closeDone()
}
