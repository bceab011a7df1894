package repository

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// failPublish makes every PUBLISH command fail.
type failPublish struct{}

func (failPublish) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failPublish) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "publish" {
			err := errors.New("publish refused")
			cmd.SetErr(err)

			return err
		}

		return next(ctx, cmd)
	}
}

func (failPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestGameRepository_Create(t *testing.T) {
	t.Run("Create_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Logger, st.Storage, time.Hour)

		// Given: a new room record
		game := entity.NewGame("1234", entity.Seat{ID: "p1", Name: "Alice"}, createdAt)

		// When: Create is called
		err := gameRepo.Create(ctx, game)

		// Then: the room is stored at revision one with an expiry
		require.NoError(t, err)

		stored, err := gameRepo.Get(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, "p1", stored.Players.X.ID)
		assert.Equal(t, int64(1), stored.Revision)

		ttl, err := st.Storage.TTL(ctx, gameKey("1234")).Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)

		assert.Equal(t, []string{gameKey("1234")}, st.Keys(ctx, gameKey("*")))
	})

	t.Run("Create_PublishFails", func(t *testing.T) {
		ctx, st := suite.New(t)

		// Given: a server that stores keys but refuses to publish
		st.Storage.AddHook(failPublish{})
		gameRepo := NewGameRepository(st.Logger, st.Storage, 0)

		// When: Create is called
		err := gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p1"}, createdAt))

		// Then: the room is reported as created because it is stored
		require.NoError(t, err)

		stored, err := gameRepo.Get(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, "p1", stored.Players.X.ID)
	})

	t.Run("Create_AlreadyExists", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Logger, st.Storage, 0)

		// Given: an existing room
		require.NoError(t, gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p1"}, createdAt)))

		// When: another player tries to create the same code
		err := gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p2"}, createdAt))

		// Then: ErrAlreadyExists is returned
		require.ErrorIs(t, err, apperror.ErrAlreadyExists)
	})
}

func TestGameRepository_Get(t *testing.T) {
	ctx, st := suite.New(t)

	gameRepo := NewGameRepository(st.Logger, st.Storage, 0)

	// When: Get is called with a code that has no record
	game, err := gameRepo.Get(ctx, "9999")

	// Then: ErrNotFound is returned
	require.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Nil(t, game)

	// Given: a document that is not a room record
	st.Seed(ctx, gameKey("5555"), []byte("{not json"))

	// When: reading it
	game, err = gameRepo.Get(ctx, "5555")

	// Then: a decode error is returned, not ErrNotFound
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
	assert.Nil(t, game)
}

func TestGameRepository_MergeUpdate(t *testing.T) {
	t.Run("MergeUpdate_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Logger, st.Storage, 0)
		require.NoError(t, gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p1"}, createdAt)))

		// When: O is seated with a merge update
		err := gameRepo.MergeUpdate(ctx, "1234", broker.Fields{
			broker.SeatPath(entity.PlayerO): entity.Seat{ID: "p2", Name: "Bob"},
			broker.FieldPlayerCount:         2,
		})

		// Then: only the named fields changed
		require.NoError(t, err)

		game, err := gameRepo.Get(ctx, "1234")
		require.NoError(t, err)
		assert.Equal(t, "p1", game.Players.X.ID)
		assert.Equal(t, "p2", game.Players.O.ID)
		assert.Equal(t, 2, game.PlayerCount)
		assert.Equal(t, int64(2), game.Revision)
	})

	t.Run("MergeUpdate_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Logger, st.Storage, 0)

		// When: updating a missing room
		err := gameRepo.MergeUpdate(ctx, "9999", broker.Fields{broker.FieldPlayerCount: 2})

		// Then: ErrNotFound is returned
		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("MergeUpdate_Concurrent", func(t *testing.T) {
		ctx, st := suite.New(t)

		gameRepo := NewGameRepository(st.Logger, st.Storage, 0)
		require.NoError(t, gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p1"}, createdAt)))

		// When: both seats stamp their heartbeat at the same time
		var wg sync.WaitGroup
		for _, symbol := range []entity.Symbol{entity.PlayerX, entity.PlayerO} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, gameRepo.MergeUpdate(ctx, "1234", broker.Fields{
					broker.SeatPath(symbol, broker.SeatLastSeen): createdAt,
				}))
			}()
		}
		wg.Wait()

		// Then: neither write was lost
		game, err := gameRepo.Get(ctx, "1234")
		require.NoError(t, err)
		assert.NotNil(t, game.Players.X.LastSeen)
		assert.NotNil(t, game.Players.O.LastSeen)
		assert.Equal(t, int64(3), game.Revision)
	})
}

func TestGameRepository_Subscribe(t *testing.T) {
	ctx, st := suite.New(t)

	gameRepo := NewGameRepository(st.Logger, st.Storage, 0)
	require.NoError(t, gameRepo.Create(ctx, entity.NewGame("1234", entity.Seat{ID: "p1"}, createdAt)))

	// Given: a subscriber
	pushed := make(chan *entity.Game, 10)
	unsubscribe, err := gameRepo.Subscribe(ctx, "1234", func(game *entity.Game) {
		pushed <- game
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	// Then: the current record is delivered first
	initial := <-pushed
	require.NotNil(t, initial)
	assert.Equal(t, int64(1), initial.Revision)

	// When: the room changes
	require.NoError(t, gameRepo.MergeUpdate(ctx, "1234", broker.Fields{broker.FieldNextPlayer: entity.PlayerO}))

	// Then: the change is pushed
	select {
	case game := <-pushed:
		assert.Equal(t, entity.PlayerO, game.NextPlayer)
		assert.Equal(t, int64(2), game.Revision)
	case <-time.After(5 * time.Second):
		t.Fatal("change was not pushed")
	}
}

func TestGameRepository_SubscribeMissingRoom(t *testing.T) {
	ctx, st := suite.New(t)

	gameRepo := NewGameRepository(st.Logger, st.Storage, 0)

	// When: subscribing to a room that does not exist
	pushed := make(chan *entity.Game, 1)
	unsubscribe, err := gameRepo.Subscribe(ctx, "9999", func(game *entity.Game) {
		pushed <- game
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	// Then: nil is pushed
	assert.Nil(t, <-pushed)
}
