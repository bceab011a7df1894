package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
)

var now = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newProfileService(t *testing.T, path string) ProfileService {
	t.Helper()

	st, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})

	require.NoError(t, st.Init(context.Background()))

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewProfileService(logger, repository.NewProfileRepository(st.Connection), clockwork.NewFakeClockAt(now))
}

func TestProfileService_GetOrCreatePlayerID(t *testing.T) {
	ctx := context.Background()

	t.Run("Generates an id once and keeps it", func(t *testing.T) {
		// Given: a fresh profile database
		profileService := newProfileService(t, filepath.Join(t.TempDir(), "profile.db"))

		// When: the id is requested twice
		first, err := profileService.GetOrCreatePlayerID(ctx)
		require.NoError(t, err)
		second, err := profileService.GetOrCreatePlayerID(ctx)
		require.NoError(t, err)

		// Then: the same non-empty id is returned
		assert.NotEmpty(t, first)
		assert.Equal(t, first, second)
	})

	t.Run("Id survives a restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.db")

		// Given: an id created by a previous run
		first, err := newProfileService(t, path).GetOrCreatePlayerID(ctx)
		require.NoError(t, err)

		// When: a new service opens the same database
		second, err := newProfileService(t, path).GetOrCreatePlayerID(ctx)

		// Then: the stored id is reused
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestProfileService_SetName(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "Trimmed", input: "  Alice  ", want: "Alice"},
		{name: "Minimum length", input: "Al", want: "Al"},
		{name: "Maximum length", input: "ABCDEFGHIJKLMNO", want: "ABCDEFGHIJKLMNO"},
		{name: "Too short", input: " A ", wantErr: apperror.ErrInvalidName},
		{name: "Too long", input: "ABCDEFGHIJKLMNOP", wantErr: apperror.ErrInvalidName},
		{name: "Blank", input: "   ", wantErr: apperror.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profileService := newProfileService(t, filepath.Join(t.TempDir(), "profile.db"))

			err := profileService.SetName(ctx, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			name, err := profileService.Name(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestProfileService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordResult increments played and the matching counter", func(t *testing.T) {
		profileService := newProfileService(t, filepath.Join(t.TempDir(), "profile.db"))

		// When: three results are recorded
		for _, result := range []entity.Result{entity.ResultWin, entity.ResultLoss, entity.ResultWin} {
			require.NoError(t, profileService.RecordResult(ctx, result))
		}

		// Then: the counters match
		stats, err := profileService.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Played)
		assert.Equal(t, 2, stats.Wins)
		assert.Equal(t, 1, stats.Losses)
		assert.Equal(t, 0, stats.Draws)
		assert.Nil(t, stats.LastReset)
	})

	t.Run("ResetStats zeroes counters and stamps the reset time", func(t *testing.T) {
		profileService := newProfileService(t, filepath.Join(t.TempDir(), "profile.db"))
		require.NoError(t, profileService.SetName(ctx, "Alice"))
		require.NoError(t, profileService.RecordResult(ctx, entity.ResultDraw))

		// When: the stats are reset
		require.NoError(t, profileService.ResetStats(ctx))

		// Then: counters are zero, the name is kept
		stats, err := profileService.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Played)
		assert.Equal(t, 0, stats.Draws)
		require.NotNil(t, stats.LastReset)
		assert.True(t, now.Equal(*stats.LastReset))

		name, err := profileService.Name(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Alice", name)
	})
}
