package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const maxUpdateAttempts = 5

// GameRepository - Redis backed shared state broker. Each room is a JSON document at
// "game:<room>" and every accepted write is published on "game:<room>:changes".
type GameRepository interface {
	Create(ctx context.Context, game *entity.Game) error
	Get(ctx context.Context, roomID string) (*entity.Game, error)
	MergeUpdate(ctx context.Context, roomID string, fields broker.Fields) error
	Subscribe(ctx context.Context, roomID string, onChange func(*entity.Game), onError func(error)) (func(), error)
}

type dbGame struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

// NewGameRepository - ttl bounds the lifetime of an idle room, zero keeps rooms forever.
func NewGameRepository(logger *slog.Logger, client *redis.Client, ttl time.Duration) GameRepository {
	return &dbGame{
		logger: logger.With("component", "gameRepository"),
		client: client,
		ttl:    ttl,
	}
}

func gameKey(roomID string) string {
	return "game:" + roomID
}

func channelKey(roomID string) string {
	return "game:" + roomID + ":changes"
}

func (that *dbGame) Create(ctx context.Context, game *entity.Game) error {
	created := game.Clone()
	created.Revision = 1

	gameJSON, err := json.Marshal(created)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	ok, err := that.client.SetNX(ctx, gameKey(game.RoomID), gameJSON, that.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set game: %w", err)
	}

	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrAlreadyExists, game.RoomID)
	}

	// the room exists from here on, subscribers read it on Subscribe anyway
	if err = that.client.Publish(ctx, channelKey(game.RoomID), gameJSON).Err(); err != nil {
		that.logger.Error("failed to publish created game", "method", "Create", "roomID", game.RoomID, "error", err)
	}

	return nil
}

func (that *dbGame) Get(ctx context.Context, roomID string) (*entity.Game, error) {
	response, err := that.client.Get(ctx, gameKey(roomID)).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	return broker.Decode(response)
}

func (that *dbGame) MergeUpdate(ctx context.Context, roomID string, fields broker.Fields) error {
	key := gameKey(roomID)

	update := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrNotFound
		}

		if err != nil {
			return fmt.Errorf("failed to get game: %w", err)
		}

		_, updated, err := broker.Apply(doc, fields)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, that.ttl)
			pipe.Publish(ctx, channelKey(roomID), updated)
			return nil
		})

		return err
	}

	// optimistic locking: retry when another writer touched the room between WATCH and EXEC
	for range maxUpdateAttempts {
		err := that.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}

		return nil
	}

	return fmt.Errorf("failed to update game %s: %w", roomID, redis.TxFailedErr)
}

func (that *dbGame) Subscribe(ctx context.Context, roomID string, onChange func(*entity.Game), _ func(error)) (func(), error) {
	log := that.logger.With("method", "Subscribe", "roomID", roomID)

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := that.client.Subscribe(subCtx, channelKey(roomID))

	closeSubscription := func() {
		cancel()
		if err := pubsub.Close(); err != nil {
			log.Error("failed to close subscription", "error", err)
		}
	}

	// wait for the confirmation so no change published after the read below is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		closeSubscription()
		return nil, fmt.Errorf("failed to subscribe to game: %w", err)
	}

	deliver := broker.Monotonic(onChange)

	current, err := that.Get(ctx, roomID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		deliver(nil)
	case err != nil:
		closeSubscription()
		return nil, err
	default:
		deliver(current)
	}

	go func() {
		for message := range pubsub.Channel() {
			game, err := broker.Decode([]byte(message.Payload))
			if err != nil {
				log.Error("failed to decode pushed game", "error", err)
				continue
			}

			deliver(game)
		}
	}()

	var once sync.Once

	return func() { once.Do(closeSubscription) }, nil
}
