package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCreateRoom implements POST /rooms, grounded on
// original_source/server/src/controllers/api.rs's create_room_handler.
func (h *routerHandlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		MaxPlayers       uint32 `json:"max_players"`
		TimeLimitSeconds uint32 `json:"time_limit_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	created, err := h.registry.CreateRoom(req.Name, req.MaxPlayers, req.TimeLimitSeconds)
	if err != nil {
		writeError(w, "Failed to create room", http.StatusBadRequest)
		return
	}

	writeJSON(w, created)
}

// handleListRooms implements GET /rooms.
func (h *routerHandlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.registry.ListRooms())
}

// scoreboardRow is one entry of the GET /rooms/{token}/scoreboard response,
// matching spec.md §6 exactly.
type scoreboardRow struct {
	PlayerID    uint32 `json:"player_id"`
	TotalPoints uint32 `json:"total_points"`
	APIKey      string `json:"api_key"`
	TeamName    string `json:"team_name"`
}

// handleScoreboard implements GET /rooms/{token}/scoreboard: it reads the
// persisted scoreboard, then joins in api_key/team_name for each id in one
// batched lookup.
func (h *routerHandlers) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, ok := h.registry.JoinRoom(token); !ok {
		writeError(w, "Room not found", http.StatusBadRequest)
		return
	}

	entries, err := h.store.GetScoreboard(r.Context(), token)
	if err != nil {
		writeError(w, "Failed to read scoreboard", http.StatusBadRequest)
		return
	}

	ids := make([]uint32, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	infos, err := h.store.GetMultiplePlayerInfo(r.Context(), ids)
	if err != nil {
		writeError(w, "Failed to read scoreboard", http.StatusBadRequest)
		return
	}

	rows := make([]scoreboardRow, len(entries))
	for i, e := range entries {
		info := infos[e.PlayerID]
		rows[i] = scoreboardRow{
			PlayerID:    e.PlayerID,
			TotalPoints: e.Points,
			APIKey:      info.APIKey,
			TeamName:    info.TeamName,
		}
	}

	writeJSON(w, map[string]interface{}{"scoreboard": rows})
}

// handleReset implements GET /reset: admin reset of the default room.
func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.registry.JoinRoom(h.defaultRM)
	if !ok {
		writeError(w, "Room not found", http.StatusBadRequest)
		return
	}
	rm.Reset()
	w.Write([]byte("done"))
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
