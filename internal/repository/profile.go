package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository interface {
	Save(ctx context.Context, profile *entity.Profile) error
	Find(ctx context.Context) (*entity.Profile, error)
}

type profileRepository struct {
	conn *sql.DB
}

func NewProfileRepository(conn *sql.DB) ProfileRepository {
	return &profileRepository{
		conn: conn,
	}
}

func (that *profileRepository) Save(ctx context.Context, profile *entity.Profile) error {
	query := `INSERT INTO profile (id, player_id, name, played, wins, losses, draws, last_reset)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			player_id = excluded.player_id,
			name = excluded.name,
			played = excluded.played,
			wins = excluded.wins,
			losses = excluded.losses,
			draws = excluded.draws,
			last_reset = excluded.last_reset`

	var lastReset sql.NullString
	if profile.Stats.LastReset != nil {
		lastReset = sql.NullString{String: profile.Stats.LastReset.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := that.conn.ExecContext(ctx, query,
		profile.PlayerID,
		profile.Name,
		profile.Stats.Played,
		profile.Stats.Wins,
		profile.Stats.Losses,
		profile.Stats.Draws,
		lastReset,
	)
	if err != nil {
		return fmt.Errorf("can't save profile: %w", err)
	}

	return nil
}

func (that *profileRepository) Find(ctx context.Context) (*entity.Profile, error) {
	query := `SELECT player_id, name, played, wins, losses, draws, last_reset FROM profile WHERE id = 1`

	var (
		profile   entity.Profile
		lastReset sql.NullString
	)

	err := that.conn.QueryRowContext(ctx, query).Scan(
		&profile.PlayerID,
		&profile.Name,
		&profile.Stats.Played,
		&profile.Stats.Wins,
		&profile.Stats.Losses,
		&profile.Stats.Draws,
		&lastReset,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find profile: %w", err)
	}

	if lastReset.Valid {
		parsed, err := time.Parse(time.RFC3339Nano, lastReset.String)
		if err != nil {
			return nil, fmt.Errorf("can't parse last reset: %w", err)
		}
		profile.Stats.LastReset = &parsed
	}

	return &profile, nil
}
