package broker

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const (
	FieldBoard       = "board"
	FieldPlayers     = "players"
	FieldPlayerCount = "playerCount"
	FieldNextPlayer  = "nextPlayer"
	FieldWinner      = "winner"
	FieldWinReason   = "winReason"

	SeatID       = "id"
	SeatName     = "name"
	SeatLastSeen = "lastSeen"
)

var (
	mutableFields = map[string]bool{
		FieldBoard:       true,
		FieldPlayers:     true,
		FieldPlayerCount: true,
		FieldNextPlayer:  true,
		FieldWinner:      true,
		FieldWinReason:   true,
	}

	seatFields = map[string]bool{
		SeatID:       true,
		SeatName:     true,
		SeatLastSeen: true,
	}
)

// Fields is a partial update keyed by dotted path, e.g. "players.X.lastSeen".
type Fields map[string]any

// SeatPath returns the dotted path of a seat or of one of its fields.
func SeatPath(symbol entity.Symbol, field ...string) string {
	return strings.Join(append([]string{FieldPlayers, string(symbol)}, field...), ".")
}

// Validate rejects paths outside the mutable part of a Game record.
func (that Fields) Validate() error {
	for path := range that {
		if err := validatePath(strings.Split(path, ".")); err != nil {
			return fmt.Errorf("%w: %s", err, path)
		}
	}

	return nil
}

func validatePath(parts []string) error {
	if !mutableFields[parts[0]] {
		return apperror.ErrInvalidField
	}

	if parts[0] != FieldPlayers {
		if len(parts) != 1 {
			return apperror.ErrInvalidField
		}
		return nil
	}

	if len(parts) > 3 {
		return apperror.ErrInvalidField
	}

	if len(parts) >= 2 && !entity.Symbol(parts[1]).IsSeat() {
		return apperror.ErrInvalidField
	}

	if len(parts) == 3 && !seatFields[parts[2]] {
		return apperror.ErrInvalidField
	}

	return nil
}

// Apply merges fields into the JSON encoded record doc and bumps its revision.
func Apply(doc []byte, fields Fields) (*entity.Game, []byte, error) {
	if err := fields.Validate(); err != nil {
		return nil, nil, err
	}

	var tree map[string]any
	if err := json.Unmarshal(doc, &tree); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	// shallow paths first so "players.X" never overwrites "players.X.name" set in the same call
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.Count(paths[i], ".") < strings.Count(paths[j], ".") ||
			(strings.Count(paths[i], ".") == strings.Count(paths[j], ".") && paths[i] < paths[j])
	})

	for _, path := range paths {
		value, err := toTree(fields[path])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode field %s: %w", path, err)
		}
		setPath(tree, strings.Split(path, "."), value)
	}

	merged, err := json.Marshal(tree)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal game: %w", err)
	}

	var game entity.Game
	if err = json.Unmarshal(merged, &game); err != nil {
		return nil, nil, fmt.Errorf("failed to decode merged game: %w", err)
	}

	game.Revision++

	encoded, err := json.Marshal(&game)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal game: %w", err)
	}

	return &game, encoded, nil
}

func toTree(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var tree any
	if err = json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	return tree, nil
}

func setPath(tree map[string]any, parts []string, value any) {
	node := tree
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}

	node[parts[len(parts)-1]] = value
}
