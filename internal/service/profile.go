package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
)

const (
	minNameLength = 2
	maxNameLength = 15
)

// ProfileService - identity, display name and aggregate stats of the local player.
type ProfileService interface {
	GetOrCreatePlayerID(ctx context.Context) (string, error)

	Name(ctx context.Context) (string, error)
	SetName(ctx context.Context, name string) error

	Stats(ctx context.Context) (entity.Stats, error)
	RecordResult(ctx context.Context, result entity.Result) error
	ResetStats(ctx context.Context) error
}

type profileRepo interface {
	Save(ctx context.Context, profile *entity.Profile) error
	Find(ctx context.Context) (*entity.Profile, error)
}

type profileService struct {
	logger      *slog.Logger
	profileRepo profileRepo
	clock       clockwork.Clock

	// serializes read-modify-write cycles on the single profile row
	mu sync.Mutex
}

func NewProfileService(logger *slog.Logger, profileRepo profileRepo, clock clockwork.Clock) ProfileService {
	return &profileService{
		logger:      logger.With("component", "profileService"),
		profileRepo: profileRepo,
		clock:       clock,
	}
}

func (that *profileService) GetOrCreatePlayerID(ctx context.Context) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	profile, err := that.loadLocked(ctx)
	if err != nil {
		return "", err
	}

	if profile.PlayerID != "" {
		return profile.PlayerID, nil
	}

	profile.PlayerID = uuid.NewString()
	if err = that.profileRepo.Save(ctx, profile); err != nil {
		return "", fmt.Errorf("could not save player id: %w", err)
	}

	that.logger.Info("created player id", "playerID", profile.PlayerID)

	return profile.PlayerID, nil
}

func (that *profileService) Name(ctx context.Context) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	profile, err := that.loadLocked(ctx)
	if err != nil {
		return "", err
	}

	return profile.Name, nil
}

// SetName stores a trimmed display name of 2 to 15 characters.
func (that *profileService) SetName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	if length := utf8.RuneCountInString(name); length < minNameLength || length > maxNameLength {
		return apperror.ErrInvalidName
	}

	return that.update(ctx, func(profile *entity.Profile) {
		profile.Name = name
	})
}

func (that *profileService) Stats(ctx context.Context) (entity.Stats, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	profile, err := that.loadLocked(ctx)
	if err != nil {
		return entity.Stats{}, err
	}

	return profile.Stats, nil
}

func (that *profileService) RecordResult(ctx context.Context, result entity.Result) error {
	return that.update(ctx, func(profile *entity.Profile) {
		profile.Stats.Record(result)
	})
}

func (that *profileService) ResetStats(ctx context.Context) error {
	now := that.clock.Now().UTC()

	return that.update(ctx, func(profile *entity.Profile) {
		profile.Stats = entity.Stats{LastReset: &now}
	})
}

func (that *profileService) update(ctx context.Context, mutate func(profile *entity.Profile)) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	profile, err := that.loadLocked(ctx)
	if err != nil {
		return err
	}

	mutate(profile)

	if err = that.profileRepo.Save(ctx, profile); err != nil {
		return fmt.Errorf("could not save profile: %w", err)
	}

	return nil
}

func (that *profileService) loadLocked(ctx context.Context) (*entity.Profile, error) {
	profile, err := that.profileRepo.Find(ctx)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return &entity.Profile{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not load profile: %w", err)
	}

	return profile, nil
}
