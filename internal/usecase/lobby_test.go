package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	mockedUseCase "github.com/rocketscienceinc/tictactoe-rooms/mocks/usecase"
)

var (
	errRedisDown = errors.New("redis down")

	createdAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	alice     = entity.Seat{ID: "p1", Name: "Alice"}
	bob       = entity.Seat{ID: "p2", Name: "Bob"}
)

func newTestLobby(rooms roomStore, attempts int, codes ...string) *lobby {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	l := NewLobby(logger, rooms, clockwork.NewFakeClockAt(createdAt), attempts).(*lobby)

	next := 0
	l.generateCode = func() string {
		code := codes[next%len(codes)]
		next++
		return code
	}

	return l
}

func TestLobby_CreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Seats the creator as X", func(t *testing.T) {
		// Given: a store accepting the first code
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "4821")

		mockRooms.EXPECT().
			Create(mock.Anything, mock.MatchedBy(func(game *entity.Game) bool {
				return game.RoomID == "4821" && game.Players.X.ID == "p1" && game.PlayerCount == 1
			})).
			Return(nil).
			Once()

		// When: a room is created
		game, err := lobbyInstance.CreateRoom(ctx, alice)

		// Then: the fresh record is returned
		require.NoError(t, err)
		assert.Equal(t, "4821", game.RoomID)
		assert.Equal(t, entity.PlayerX, game.NextPlayer)
		assert.Equal(t, entity.Board{}, game.Board)
		assert.Equal(t, createdAt, game.CreatedAt)
		assert.False(t, game.Players.O.IsOccupied())
	})

	t.Run("Retries with a new code on collision", func(t *testing.T) {
		// Given: the first code is already taken
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111", "2222")

		mockRooms.EXPECT().
			Create(mock.Anything, mock.MatchedBy(func(game *entity.Game) bool { return game.RoomID == "1111" })).
			Return(fmt.Errorf("%w: 1111", apperror.ErrAlreadyExists)).
			Once()
		mockRooms.EXPECT().
			Create(mock.Anything, mock.MatchedBy(func(game *entity.Game) bool { return game.RoomID == "2222" })).
			Return(nil).
			Once()

		// When: a room is created
		game, err := lobbyInstance.CreateRoom(ctx, alice)

		// Then: the second code is used
		require.NoError(t, err)
		assert.Equal(t, "2222", game.RoomID)
	})

	t.Run("Gives up after the configured attempts", func(t *testing.T) {
		// Given: every code is taken
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 3, "1111")

		mockRooms.EXPECT().
			Create(mock.Anything, mock.Anything).
			Return(apperror.ErrAlreadyExists).
			Times(3)

		// When: a room is created
		game, err := lobbyInstance.CreateRoom(ctx, alice)

		// Then: ErrCreateIDExhausted is returned
		require.ErrorIs(t, err, apperror.ErrCreateIDExhausted)
		assert.Nil(t, game)
	})

	t.Run("Storage failure is a write failure", func(t *testing.T) {
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Create(mock.Anything, mock.Anything).
			Return(errRedisDown).
			Once()

		game, err := lobbyInstance.CreateRoom(ctx, alice)

		require.ErrorIs(t, err, apperror.ErrWriteFailed)
		require.ErrorIs(t, err, errRedisDown)
		assert.Nil(t, game)
	})
}

func TestRandomRoomCode(t *testing.T) {
	for range 1000 {
		code := randomRoomCode()

		require.True(t, entity.IsValidRoomCode(code), code)

		value, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, value, minRoomCode)
		assert.LessOrEqual(t, value, maxRoomCode)
	}
}

func TestLobby_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects a malformed code before lookup", func(t *testing.T) {
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		for _, code := range []string{"", "123", "12345", "12a4", " 1234"} {
			_, err := lobbyInstance.JoinRoom(ctx, code, bob)
			require.ErrorIs(t, err, apperror.ErrInvalidRoomCode, code)
		}
	})

	t.Run("Unknown room", func(t *testing.T) {
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Get(mock.Anything, "1234").
			Return((*entity.Game)(nil), apperror.ErrNotFound).
			Once()

		_, err := lobbyInstance.JoinRoom(ctx, "1234", bob)

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Seats the joiner as O", func(t *testing.T) {
		// Given: a room with only X seated
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Get(mock.Anything, "1234").
			Return(entity.NewGame("1234", alice, createdAt), nil).
			Once()
		mockRooms.EXPECT().
			MergeUpdate(mock.Anything, "1234", broker.Fields{
				broker.SeatPath(entity.PlayerO): bob,
				broker.FieldPlayerCount:         2,
			}).
			Return(nil).
			Once()

		// When: Bob joins
		game, err := lobbyInstance.JoinRoom(ctx, "1234", bob)

		// Then: Bob holds seat O
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerO, game.RoleOf("p2"))
		assert.Equal(t, 2, game.PlayerCount)
	})

	t.Run("Seated player rejoins without a write", func(t *testing.T) {
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Get(mock.Anything, "1234").
			Return(entity.NewGame("1234", alice, createdAt), nil).
			Once()

		game, err := lobbyInstance.JoinRoom(ctx, "1234", alice)

		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, game.RoleOf("p1"))
	})

	t.Run("Full room", func(t *testing.T) {
		// Given: both seats taken
		full := entity.NewGame("1234", alice, createdAt)
		full.Players.O = bob
		full.PlayerCount = 2

		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Get(mock.Anything, "1234").
			Return(full, nil).
			Once()

		// When: a third player joins
		_, err := lobbyInstance.JoinRoom(ctx, "1234", entity.Seat{ID: "p3", Name: "Carol"})

		// Then: ErrRoomFull is returned
		require.ErrorIs(t, err, apperror.ErrRoomFull)
	})

	t.Run("Write failure", func(t *testing.T) {
		mockRooms := mockedUseCase.NewMockroomStore(t)
		lobbyInstance := newTestLobby(mockRooms, 20, "1111")

		mockRooms.EXPECT().
			Get(mock.Anything, "1234").
			Return(entity.NewGame("1234", alice, createdAt), nil).
			Once()
		mockRooms.EXPECT().
			MergeUpdate(mock.Anything, "1234", mock.Anything).
			Return(errRedisDown).
			Once()

		_, err := lobbyInstance.JoinRoom(ctx, "1234", bob)

		require.ErrorIs(t, err, apperror.ErrWriteFailed)
	})
}
