package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// Memory is an in-process Broker. Pushes are delivered synchronously on the
// writer's goroutine once the store lock is released.
type Memory struct {
	mu          sync.Mutex
	rooms       map[string][]byte
	subscribers map[string]map[int]func(*entity.Game)
	nextID      int
}

func NewMemory() *Memory {
	return &Memory{
		rooms:       make(map[string][]byte),
		subscribers: make(map[string]map[int]func(*entity.Game)),
	}
}

func (that *Memory) Get(_ context.Context, roomID string) (*entity.Game, error) {
	that.mu.Lock()
	doc, ok := that.rooms[roomID]
	that.mu.Unlock()

	if !ok {
		return nil, apperror.ErrNotFound
	}

	return Decode(doc)
}

func (that *Memory) Create(_ context.Context, game *entity.Game) error {
	created := game.Clone()
	created.Revision = 1

	doc, err := json.Marshal(created)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	that.mu.Lock()
	if _, ok := that.rooms[game.RoomID]; ok {
		that.mu.Unlock()
		return fmt.Errorf("%w: %s", apperror.ErrAlreadyExists, game.RoomID)
	}
	that.rooms[game.RoomID] = doc
	listeners := that.listenersLocked(game.RoomID)
	that.mu.Unlock()

	notify(listeners, created)

	return nil
}

func (that *Memory) MergeUpdate(_ context.Context, roomID string, fields Fields) error {
	that.mu.Lock()
	doc, ok := that.rooms[roomID]
	if !ok {
		that.mu.Unlock()
		return apperror.ErrNotFound
	}

	game, updated, err := Apply(doc, fields)
	if err != nil {
		that.mu.Unlock()
		return err
	}

	that.rooms[roomID] = updated
	listeners := that.listenersLocked(roomID)
	that.mu.Unlock()

	notify(listeners, game)

	return nil
}

func (that *Memory) Subscribe(_ context.Context, roomID string, onChange func(*entity.Game), _ func(error)) (func(), error) {
	deliver := Monotonic(onChange)

	that.mu.Lock()
	id := that.nextID
	that.nextID++
	if that.subscribers[roomID] == nil {
		that.subscribers[roomID] = make(map[int]func(*entity.Game))
	}
	that.subscribers[roomID][id] = deliver
	doc, ok := that.rooms[roomID]
	that.mu.Unlock()

	var current *entity.Game
	if ok {
		game, err := Decode(doc)
		if err != nil {
			return nil, err
		}
		current = game
	}
	deliver(current)

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()
		delete(that.subscribers[roomID], id)
		if len(that.subscribers[roomID]) == 0 {
			delete(that.subscribers, roomID)
		}
	}, nil
}

// Delete removes a room and pushes its absence to subscribers.
func (that *Memory) Delete(_ context.Context, roomID string) {
	that.mu.Lock()
	delete(that.rooms, roomID)
	listeners := that.listenersLocked(roomID)
	that.mu.Unlock()

	notify(listeners, nil)
}

func (that *Memory) listenersLocked(roomID string) []func(*entity.Game) {
	listeners := make([]func(*entity.Game), 0, len(that.subscribers[roomID]))
	for _, listener := range that.subscribers[roomID] {
		listeners = append(listeners, listener)
	}

	return listeners
}

func notify(listeners []func(*entity.Game), game *entity.Game) {
	for _, listener := range listeners {
		listener(game.Clone())
	}
}

// Decode parses a JSON encoded Game record.
func Decode(doc []byte) (*entity.Game, error) {
	var game entity.Game
	if err := json.Unmarshal(doc, &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &game, nil
}
