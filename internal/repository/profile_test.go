package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileRepository(t *testing.T) ProfileRepository {
	t.Helper()

	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "profile.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})

	require.NoError(t, st.Init(context.Background()))

	return NewProfileRepository(st.Connection)
}

func TestProfileRepository_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("Find_NotFound", func(t *testing.T) {
		// Given: a fresh database
		profileRepo := newProfileRepository(t)

		// When: Find is called before anything was saved
		profile, err := profileRepo.Find(ctx)

		// Then: ErrProfileNotFound should be returned
		require.ErrorIs(t, err, ErrProfileNotFound)
		assert.Nil(t, profile)
	})

	t.Run("Find_AfterSave", func(t *testing.T) {
		// Given: a saved profile
		profileRepo := newProfileRepository(t)
		lastReset := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		saved := &entity.Profile{
			PlayerID: "p1",
			Name:     "Alice",
			Stats:    entity.Stats{Played: 3, Wins: 1, Losses: 1, Draws: 1, LastReset: &lastReset},
		}
		require.NoError(t, profileRepo.Save(ctx, saved))

		// When: Find is called
		profile, err := profileRepo.Find(ctx)

		// Then: every field survives the round trip
		require.NoError(t, err)
		assert.Equal(t, "p1", profile.PlayerID)
		assert.Equal(t, "Alice", profile.Name)
		assert.Equal(t, 3, profile.Stats.Played)
		require.NotNil(t, profile.Stats.LastReset)
		assert.True(t, lastReset.Equal(*profile.Stats.LastReset))
	})
}

func TestProfileRepository_Save(t *testing.T) {
	ctx := context.Background()

	// Given: a profile saved once
	profileRepo := newProfileRepository(t)
	require.NoError(t, profileRepo.Save(ctx, &entity.Profile{PlayerID: "p1", Name: "Alice"}))

	// When: it is saved again with new values
	err := profileRepo.Save(ctx, &entity.Profile{PlayerID: "p1", Name: "Bob", Stats: entity.Stats{Played: 1, Wins: 1}})
	require.NoError(t, err)

	// Then: the single row is updated in place
	profile, err := profileRepo.Find(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bob", profile.Name)
	assert.Equal(t, 1, profile.Stats.Wins)
	assert.Nil(t, profile.Stats.LastReset)
}
