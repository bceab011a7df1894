// Package broker defines the shared state broker contract consumed by room clients
// and the pieces every implementation shares: dotted-path merge updates and
// revision ordering of pushed snapshots.
package broker

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// Broker stores one Game record per room and pushes every change to subscribers.
//
// Subscribe delivers the current record (nil when the room does not exist) and then
// every later change. onChange must not write to the broker synchronously.
type Broker interface {
	Get(ctx context.Context, roomID string) (*entity.Game, error)
	Create(ctx context.Context, game *entity.Game) error
	MergeUpdate(ctx context.Context, roomID string, fields Fields) error
	Subscribe(ctx context.Context, roomID string, onChange func(*entity.Game), onError func(error)) (func(), error)
}

// Monotonic wraps onChange so snapshots older than one already delivered are dropped.
// A nil snapshot (room deleted) is always delivered and resets the ordering.
func Monotonic(onChange func(*entity.Game)) func(*entity.Game) {
	var (
		mu   sync.Mutex
		last int64
	)

	return func(game *entity.Game) {
		mu.Lock()
		defer mu.Unlock()

		if game == nil {
			last = 0
			onChange(nil)
			return
		}

		if game.Revision < last {
			return
		}

		last = game.Revision
		onChange(game)
	}
}
