// internal/handlers/room_http.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/game"
	"github.com/zhongsurehow/zhouyi/internal/room"
)

type createRoomRequest struct {
	Players []struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
	} `json:"players"`
}

type createRoomResponse struct {
	RoomID  uuid.UUID        `json:"room_id"`
	Players []roomPlayerInfo `json:"players"`
}

type roomPlayerInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Seat int       `json:"seat"`
}

// CreateRoomHandler starts a room with the requested roster. Player ids
// may be supplied (to seat already-authenticated guests) or omitted, in
// which case fresh ids are issued and echoed back.
func CreateRoomHandler(logger *logrus.Logger, reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		roster := make([]*game.Player, 0, len(req.Players))
		for _, p := range req.Players {
			id := uuid.New()
			if p.ID != "" {
				parsed, err := uuid.Parse(p.ID)
				if err != nil {
					http.Error(w, "invalid player id", http.StatusBadRequest)
					return
				}
				id = parsed
			}
			roster = append(roster, game.NewPlayer(id, p.Name))
		}

		rm, err := reg.Create(roster)
		if err != nil {
			if errors.Is(err, room.ErrRosterSize) || errors.Is(err, room.ErrRoomFull) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Errorf("failed to create room: %v", err)
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		resp := createRoomResponse{RoomID: rm.ID}
		for i, p := range roster {
			resp.Players = append(resp.Players, roomPlayerInfo{ID: p.ID, Name: p.Name, Seat: i})
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// ListRoomsHandler returns the ids of every live room on this instance.
func ListRoomsHandler(reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": reg.List()})
	}
}

// RoomStateHandler returns the current full snapshot of one room.
// Path shape: /room/state/{room_id}
func RoomStateHandler(reg *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/room/state/")
		roomID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}
		rm, err := reg.Get(roomID)
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rm.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
