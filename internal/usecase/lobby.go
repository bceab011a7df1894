package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const (
	minRoomCode = 1000
	maxRoomCode = 9999
)

// Lobby - creates rooms and seats joiners before a session takes over.
type Lobby interface {
	CreateRoom(ctx context.Context, player entity.Seat) (*entity.Game, error)
	JoinRoom(ctx context.Context, roomID string, player entity.Seat) (*entity.Game, error)
	ValidateRoomCode(code string) error
}

type roomStore interface {
	Get(ctx context.Context, roomID string) (*entity.Game, error)
	Create(ctx context.Context, game *entity.Game) error
	MergeUpdate(ctx context.Context, roomID string, fields broker.Fields) error
}

type lobby struct {
	logger         *slog.Logger
	rooms          roomStore
	clock          clockwork.Clock
	createAttempts int
	generateCode   func() string
}

func NewLobby(logger *slog.Logger, rooms roomStore, clock clockwork.Clock, createAttempts int) Lobby {
	return &lobby{
		logger:         logger.With("component", "lobby"),
		rooms:          rooms,
		clock:          clock,
		createAttempts: createAttempts,
		generateCode:   randomRoomCode,
	}
}

func randomRoomCode() string {
	return strconv.Itoa(minRoomCode + rand.IntN(maxRoomCode-minRoomCode+1))
}

func (that *lobby) ValidateRoomCode(code string) error {
	if !entity.IsValidRoomCode(code) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidRoomCode, code)
	}

	return nil
}

// CreateRoom seats player as X in a room with a fresh code. Codes already taken are
// retried with a new one until the attempts are exhausted.
func (that *lobby) CreateRoom(ctx context.Context, player entity.Seat) (*entity.Game, error) {
	log := that.logger.With("method", "CreateRoom", "playerID", player.ID)

	for attempt := 1; attempt <= that.createAttempts; attempt++ {
		game := entity.NewGame(that.generateCode(), entity.Seat{ID: player.ID, Name: player.Name}, that.clock.Now().UTC())

		err := that.rooms.Create(ctx, game)
		if errors.Is(err, apperror.ErrAlreadyExists) {
			log.Debug("room code taken", "roomID", game.RoomID, "attempt", attempt)
			continue
		}

		if err != nil {
			log.Error("failed to create room", "error", err)
			return nil, fmt.Errorf("%w: %w", apperror.ErrWriteFailed, err)
		}

		log.Info("room created", "roomID", game.RoomID)
		game.Revision = 1

		return game, nil
	}

	log.Error("no free room code", "attempts", that.createAttempts)

	return nil, apperror.ErrCreateIDExhausted
}

// JoinRoom seats player as O. A player already seated in the room rejoins its seat.
func (that *lobby) JoinRoom(ctx context.Context, roomID string, player entity.Seat) (*entity.Game, error) {
	log := that.logger.With("method", "JoinRoom", "roomID", roomID, "playerID", player.ID)

	if err := that.ValidateRoomCode(roomID); err != nil {
		return nil, err
	}

	game, err := that.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("could not get room: %w", err)
	}

	if game.RoleOf(player.ID) != entity.EmptyCell {
		log.Info("player rejoined", "role", game.RoleOf(player.ID))
		return game, nil
	}

	if game.Players.O.IsOccupied() {
		return nil, apperror.ErrRoomFull
	}

	seat := entity.Seat{ID: player.ID, Name: player.Name}
	err = that.rooms.MergeUpdate(ctx, roomID, broker.Fields{
		broker.SeatPath(entity.PlayerO): seat,
		broker.FieldPlayerCount:         2,
	})
	if err != nil {
		log.Error("failed to seat player", "error", err)
		return nil, fmt.Errorf("%w: %w", apperror.ErrWriteFailed, err)
	}

	game.Players.O = seat
	game.PlayerCount = 2

	log.Info("player joined")

	return game, nil
}
