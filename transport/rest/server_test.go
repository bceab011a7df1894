package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type failingRooms struct{}

func (failingRooms) Get(context.Context, string) (*entity.Game, error) {
	return nil, errors.New("redis down")
}

func newTestRouter(t *testing.T, rooms roomReader) http.Handler {
	t.Helper()

	return NewRouter(slog.New(slog.NewJSONHandler(io.Discard, nil)), rooms)
}

func TestPing(t *testing.T) {
	router := newTestRouter(t, broker.NewMemory())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", recorder.Body.String())
}

func TestGetRoom(t *testing.T) {
	rooms := broker.NewMemory()
	require.NoError(t, rooms.Create(context.Background(),
		entity.NewGame("1234", entity.Seat{ID: "p1", Name: "Alice"}, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))))

	t.Run("Existing room", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		newTestRouter(t, rooms).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/rooms/1234", nil))

		require.Equal(t, http.StatusOK, recorder.Code)

		var game entity.Game
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&game))
		assert.Equal(t, "1234", game.RoomID)
		assert.Equal(t, "Alice", game.Players.X.Name)
	})

	tests := []struct {
		name   string
		rooms  roomReader
		path   string
		status int
	}{
		{name: "Unknown room", rooms: rooms, path: "/rooms/9999", status: http.StatusNotFound},
		{name: "Malformed code", rooms: rooms, path: "/rooms/12a4", status: http.StatusBadRequest},
		{name: "Storage failure", rooms: failingRooms{}, path: "/rooms/1234", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			newTestRouter(t, tt.rooms).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}
