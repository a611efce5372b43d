package api

import (
	"log"
	"net/http"

	"github.com/webuild-community/spacebot/internal/room"
	"github.com/webuild-community/spacebot/internal/session"
	"github.com/webuild-community/spacebot/internal/telemetry"
)

// handleSocket upgrades to a player WebSocket connection, per
// original_source/server/src/controllers/api.rs's socket_handler: the key
// must be allow-listed unless dev_mode is set, and the room token must
// resolve to a live room.
func (h *routerHandlers) handleSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomToken := q.Get("room_token")
	key := q.Get("key")
	name := q.Get("name")

	if !h.cfg.DevMode {
		if _, ok := h.cfg.APIKeySet()[key]; !ok {
			telemetry.Metrics.ConnectionRejected.WithLabelValues("invalid_api_key").Inc()
			writeError(w, "Invalid API Key", http.StatusBadRequest)
			return
		}
	}

	rm, ok := h.registry.JoinRoom(roomToken)
	if !ok {
		telemetry.Metrics.ConnectionRejected.WithLabelValues("room_not_found").Inc()
		writeError(w, "Room not found", http.StatusBadRequest)
		return
	}

	h.upgradeAndRun(w, r, rm, key, name)
}

// handleSpectate upgrades to an observer WebSocket connection: no API key is
// required, and the session is forced to the SPECTATOR sentinel identity.
func (h *routerHandlers) handleSpectate(w http.ResponseWriter, r *http.Request) {
	roomToken := r.URL.Query().Get("room_token")

	rm, ok := h.registry.JoinRoom(roomToken)
	if !ok {
		telemetry.Metrics.ConnectionRejected.WithLabelValues("room_not_found").Inc()
		writeError(w, "Room not found", http.StatusBadRequest)
		return
	}

	h.upgradeAndRun(w, r, rm, room.SpectatorKey, room.SpectatorKey)
}

func (h *routerHandlers) upgradeAndRun(w http.ResponseWriter, r *http.Request, rm *room.Room, apiKey, teamName string) {
	ip := GetClientIP(r)
	if !h.wsLimiter.Allow(ip) {
		telemetry.Metrics.ConnectionRejected.WithLabelValues("ws_ip_limit").Inc()
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.wsLimiter.Release(ip)
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}
	defer h.wsLimiter.Release(ip)

	sess := session.New(conn, apiKey, teamName, rm, NewSessionLimiter())
	sess.Run()
}
