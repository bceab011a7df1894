package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type RoomHandler interface {
	GetRoom(w http.ResponseWriter, r *http.Request)
}

type roomReader interface {
	Get(ctx context.Context, roomID string) (*entity.Game, error)
}

type roomHandler struct {
	logger *slog.Logger
	rooms  roomReader
}

func NewRoomHandler(logger *slog.Logger, rooms roomReader) RoomHandler {
	return &roomHandler{
		logger: logger.With("component", "roomHandler"),
		rooms:  rooms,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetRoom - returns the current record of a room.
func (that *roomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	log := that.logger.With("method", "GetRoom", "roomID", roomID)

	if !entity.IsValidRoomCode(roomID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: apperror.ErrInvalidRoomCode.Error()})
		return
	}

	game, err := that.rooms.Get(r.Context(), roomID)
	if errors.Is(err, apperror.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	if err != nil {
		log.Error("failed to get room", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, game)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
