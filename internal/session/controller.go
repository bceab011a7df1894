// Package session keeps one client's view of a room in sync with the shared state
// broker and turns player intents into broker writes.
//
// The broker push stream is the source of truth: intents never touch local state,
// they write to the broker and the resulting push updates every client, this one
// included. The controller also runs the liveness protocol of a seated player:
// a heartbeat stamping its own lastSeen and a timeout check on the opponent's.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tictactoe"
)

type State int

const (
	StateConnecting State = iota
	StateActive
	StateError
	StateClosed
)

func (that State) String() string {
	switch that {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the controller state for the presentation layer.
type Snapshot struct {
	State State
	Game  *entity.Game
	Role  entity.Symbol
	Err   error

	// HasBeenFull is set once both seats were observed occupied.
	HasBeenFull bool
}

// ResultRecorder receives the outcome of every round this client saw being decided.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result entity.Result) error
}

type Controller struct {
	logger   *slog.Logger
	rooms    broker.Broker
	clock    clockwork.Clock
	results  ResultRecorder
	roomID   string
	playerID string

	heartbeatInterval time.Duration
	timeout           time.Duration

	// background writes are bound to ctx, cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	game        *entity.Game
	err         error
	hasBeenFull bool
	visible     bool
	subscribed  bool
	unsubscribe func()

	heartbeatStop chan struct{}
	poke          chan struct{}

	// liveSince is when the current round was first seen live. The opponent's
	// silence is measured from the later of it and the opponent's lastSeen.
	liveSince       time.Time
	timeoutTimer    clockwork.Timer
	timeoutArmedFor time.Time
	timeoutGen      uint64
	timeoutWritten  bool

	notifyMu sync.Mutex
	listener func(Snapshot)
}

// New returns a controller for playerID in roomID. results may be nil.
func New(
	logger *slog.Logger,
	rooms broker.Broker,
	clock clockwork.Clock,
	results ResultRecorder,
	liveness config.Liveness,
	roomID, playerID string,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		logger:            logger.With("component", "session", "roomID", roomID, "playerID", playerID),
		rooms:             rooms,
		clock:             clock,
		results:           results,
		roomID:            roomID,
		playerID:          playerID,
		heartbeatInterval: liveness.HeartbeatInterval,
		timeout:           liveness.Timeout,
		ctx:               ctx,
		cancel:            cancel,
		state:             StateConnecting,
		visible:           true,
		poke:              make(chan struct{}, 1),
	}
}

// OnChange registers the listener called after every state change. The listener
// must not call back into the controller synchronously.
func (that *Controller) OnChange(listener func(Snapshot)) {
	that.notifyMu.Lock()
	defer that.notifyMu.Unlock()

	that.listener = listener
}

func (that *Controller) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return Snapshot{
		State:       that.state,
		Game:        that.game.Clone(),
		Role:        that.roleLocked(),
		Err:         that.err,
		HasBeenFull: that.hasBeenFull,
	}
}

// Role is the seat of the local player in the latest record, EmptyCell when unseated.
func (that *Controller) Role() entity.Symbol {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.roleLocked()
}

func (that *Controller) roleLocked() entity.Symbol {
	if that.game == nil {
		return entity.EmptyCell
	}

	return that.game.RoleOf(that.playerID)
}

// Subscribe starts following the room. The first push moves the controller out of
// the connecting state.
func (that *Controller) Subscribe(ctx context.Context) error {
	that.mu.Lock()
	if that.subscribed || that.state == StateClosed {
		that.mu.Unlock()
		return nil
	}
	that.subscribed = true
	that.mu.Unlock()

	unsubscribe, err := that.rooms.Subscribe(ctx, that.roomID, that.handleChange, that.handleError)
	if err != nil {
		that.logger.Error("failed to subscribe", "error", err)
		that.fail(fmt.Errorf("%w: %w", apperror.ErrConnectionLost, err))

		return fmt.Errorf("could not subscribe to room: %w", err)
	}

	that.mu.Lock()
	if that.state == StateClosed {
		that.mu.Unlock()
		unsubscribe()

		return nil
	}
	that.unsubscribe = unsubscribe
	that.mu.Unlock()

	return nil
}

func (that *Controller) handleChange(game *entity.Game) {
	that.mu.Lock()

	if that.state == StateClosed || that.state == StateError {
		that.mu.Unlock()
		return
	}

	switch {
	case game == nil:
		that.failLocked(apperror.ErrNotFound)
		that.mu.Unlock()
		that.notify()

		return
	case game.RoleOf(that.playerID) == entity.EmptyCell && game.IsFull():
		that.failLocked(apperror.ErrRoomFull)
		that.mu.Unlock()
		that.notify()

		return
	}

	previous := that.game
	that.game = game
	that.state = StateActive
	that.err = nil

	if game.IsFull() {
		that.hasBeenFull = true
	}

	if !game.IsFinished() && (previous == nil || previous.IsFinished()) {
		that.liveSince = that.clock.Now()
		that.timeoutWritten = false
	}

	role := game.RoleOf(that.playerID)

	var result entity.Result
	if previous != nil && !previous.IsFinished() && game.IsFinished() && role.IsSeat() {
		result = entity.ResultFor(game.Winner, role)
		that.logger.Info("game decided", "winner", game.Winner, "reason", game.WinReason, "result", result)
	}

	that.reconcileLivenessLocked()
	that.mu.Unlock()

	if result != "" && that.results != nil {
		if err := that.results.RecordResult(that.ctx, result); err != nil {
			that.logger.Error("failed to record result", "error", err)
		}
	}

	that.notify()
}

func (that *Controller) handleError(err error) {
	that.logger.Error("subscription failed", "error", err)
	that.fail(fmt.Errorf("%w: %w", apperror.ErrConnectionLost, err))
}

func (that *Controller) fail(err error) {
	that.mu.Lock()
	if that.state == StateClosed {
		that.mu.Unlock()
		return
	}
	that.failLocked(err)
	that.mu.Unlock()

	that.notify()
}

// failLocked moves to the blocking error state. Later pushes are ignored.
func (that *Controller) failLocked(err error) {
	that.logger.Warn("session failed", "error", err)

	that.state = StateError
	that.err = err
	that.game = nil
	that.stopHeartbeatLocked()
	that.stopTimeoutLocked()
}

func (that *Controller) notify() {
	that.notifyMu.Lock()
	defer that.notifyMu.Unlock()

	if that.listener == nil {
		return
	}

	that.listener(that.Snapshot())
}

// current returns the record and role intents act on, nil unless the session is active.
func (that *Controller) current() (*entity.Game, entity.Symbol) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state != StateActive || that.game == nil {
		return nil, entity.EmptyCell
	}

	return that.game.Clone(), that.roleLocked()
}

// SubmitMove places the local symbol on cell. Moves that are not legal right now
// are ignored without a write.
func (that *Controller) SubmitMove(ctx context.Context, cell int) error {
	log := that.logger.With("method", "SubmitMove", "cell", cell)

	game, role := that.current()
	if game == nil {
		return nil
	}

	move, ok := tictactoe.ApplyMove(game, role, cell)
	if !ok {
		log.Debug("move ignored", "role", role, "nextPlayer", game.NextPlayer, "winner", game.Winner)
		return nil
	}

	fields := broker.Fields{
		broker.FieldBoard:      move.Board,
		broker.FieldNextPlayer: move.NextPlayer,
		broker.FieldWinner:     move.Winner,
	}
	if move.WinReason != entity.ReasonNone {
		fields[broker.FieldWinReason] = move.WinReason
	}

	if err := that.rooms.MergeUpdate(ctx, that.roomID, fields); err != nil {
		log.Error("failed to write move", "error", err)
		return fmt.Errorf("%w: %w", apperror.ErrWriteFailed, err)
	}

	return nil
}

// RequestRematch resets a decided game. Only seat X authors the reset, seat O gets
// apperror.ErrWaitingForHost and waits for the push.
func (that *Controller) RequestRematch(ctx context.Context) error {
	log := that.logger.With("method", "RequestRematch")

	game, role := that.current()
	if game == nil || !game.IsFinished() {
		return nil
	}

	switch role {
	case entity.PlayerO:
		return apperror.ErrWaitingForHost
	case entity.PlayerX:
	default:
		return nil
	}

	err := that.rooms.MergeUpdate(ctx, that.roomID, broker.Fields{
		broker.FieldBoard:      entity.Board{},
		broker.FieldNextPlayer: entity.PlayerX,
		broker.FieldWinner:     entity.OutcomeNone,
		broker.FieldWinReason:  entity.ReasonNone,
	})
	if err != nil {
		log.Error("failed to reset game", "error", err)
		return fmt.Errorf("%w: %w", apperror.ErrWriteFailed, err)
	}

	log.Info("rematch started")

	return nil
}

// Leave forfeits a live game to a seated opponent and closes the session. A failed
// forfeit write is logged and does not keep the session open.
func (that *Controller) Leave(ctx context.Context) {
	log := that.logger.With("method", "Leave")

	game, role := that.current()
	if game != nil && role.IsSeat() && !game.IsFinished() && game.Players.Get(role.Opponent()).IsOccupied() {
		err := that.rooms.MergeUpdate(ctx, that.roomID, broker.Fields{
			broker.FieldWinner:    role.Opponent().Outcome(),
			broker.FieldWinReason: entity.ReasonAbandonment,
		})
		if err != nil {
			log.Error("failed to forfeit on leave", "error", err)
		}
	}

	that.Close()
}

// SetVisible tells the heartbeat whether the player is looking at the room. Hidden
// clients stop stamping lastSeen.
func (that *Controller) SetVisible(visible bool) {
	that.mu.Lock()
	wasVisible := that.visible
	that.visible = visible
	that.mu.Unlock()

	if visible && !wasVisible {
		select {
		case that.poke <- struct{}{}:
		default:
		}
	}
}

// Close ends the subscription and cancels every timer. Safe to call more than once.
func (that *Controller) Close() {
	that.mu.Lock()
	if that.state == StateClosed {
		that.mu.Unlock()
		return
	}

	that.state = StateClosed
	that.stopHeartbeatLocked()
	that.stopTimeoutLocked()
	unsubscribe := that.unsubscribe
	that.unsubscribe = nil
	that.mu.Unlock()

	that.cancel()

	if unsubscribe != nil {
		unsubscribe()
	}

	that.notify()
}

func (that *Controller) reconcileLivenessLocked() {
	game := that.game
	role := game.RoleOf(that.playerID)
	live := that.state == StateActive && role.IsSeat() && !game.IsFinished()

	if live && that.heartbeatStop == nil && that.heartbeatInterval > 0 {
		that.startHeartbeatLocked()
	}

	if !live {
		that.stopHeartbeatLocked()
		that.stopTimeoutLocked()

		return
	}

	opponent := game.Players.Get(role.Opponent())
	if that.timeout <= 0 || that.timeoutWritten || !opponent.IsOccupied() || opponent.LastSeen == nil {
		that.stopTimeoutLocked()
		return
	}

	silentSince := laterOf(*opponent.LastSeen, that.liveSince)
	if that.timeoutTimer != nil && that.timeoutArmedFor.Equal(silentSince) {
		return
	}

	that.stopTimeoutLocked()

	delay := silentSince.Add(that.timeout).Sub(that.clock.Now())
	if delay < 0 {
		delay = 0
	}

	that.timeoutGen++
	gen := that.timeoutGen
	that.timeoutArmedFor = silentSince
	that.timeoutTimer = that.clock.AfterFunc(delay, func() { that.checkTimeout(gen) })
}

// disarmTimeout drops the check armed as gen so the next push arms a fresh one.
// A check armed by a newer push is left alone.
func (that *Controller) disarmTimeout(gen uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.timeoutGen == gen {
		that.stopTimeoutLocked()
	}
}

// retryTimeout re-runs the check armed as gen after a failed read. The retry keeps
// the armed deadline so pushes carrying the same lastSeen leave it in place.
func (that *Controller) retryTimeout(gen uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.timeoutGen != gen || that.timeoutTimer == nil {
		return
	}

	retryIn := that.heartbeatInterval
	if retryIn <= 0 {
		retryIn = that.timeout
	}

	that.timeoutTimer.Stop()
	that.timeoutGen++
	next := that.timeoutGen
	that.timeoutTimer = that.clock.AfterFunc(retryIn, func() { that.checkTimeout(next) })
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}

	return a
}

func (that *Controller) stopTimeoutLocked() {
	if that.timeoutTimer != nil {
		that.timeoutTimer.Stop()
		that.timeoutTimer = nil
	}

	that.timeoutArmedFor = time.Time{}
}

func (that *Controller) startHeartbeatLocked() {
	stop := make(chan struct{})
	that.heartbeatStop = stop

	go that.heartbeat(stop)
}

func (that *Controller) stopHeartbeatLocked() {
	if that.heartbeatStop != nil {
		close(that.heartbeatStop)
		that.heartbeatStop = nil
	}
}

func (that *Controller) heartbeat(stop chan struct{}) {
	ticker := that.clock.NewTicker(that.heartbeatInterval)
	defer ticker.Stop()

	that.beat(stop)

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			that.beat(stop)
		case <-that.poke:
			that.beat(stop)
		}
	}
}

// beat stamps the local seat's lastSeen while the heartbeat owning stop is current.
func (that *Controller) beat(stop chan struct{}) {
	that.mu.Lock()
	if that.heartbeatStop != stop || !that.visible {
		that.mu.Unlock()
		return
	}
	role := that.roleLocked()
	that.mu.Unlock()

	if !role.IsSeat() {
		return
	}

	err := that.rooms.MergeUpdate(that.ctx, that.roomID, broker.Fields{
		broker.SeatPath(role, broker.SeatLastSeen): that.clock.Now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		that.logger.Error("failed to write heartbeat", "error", err)
	}
}

// checkTimeout re-reads the room and forfeits the opponent when it has been silent
// for the timeout, counting from its lastSeen or the round start, whichever is
// later. At most one forfeit is written per round.
func (that *Controller) checkTimeout(gen uint64) {
	log := that.logger.With("method", "checkTimeout")

	that.mu.Lock()
	if that.state != StateActive || that.timeoutWritten {
		that.mu.Unlock()
		return
	}
	role := that.roleLocked()
	liveSince := that.liveSince
	that.mu.Unlock()

	if !role.IsSeat() {
		return
	}

	game, err := that.rooms.Get(that.ctx, that.roomID)
	if err != nil {
		log.Error("failed to read room", "error", err)
		that.retryTimeout(gen)

		return
	}

	opponent := game.Players.Get(role.Opponent())
	if game.IsFinished() || game.RoleOf(that.playerID) != role || !opponent.IsOccupied() || opponent.LastSeen == nil {
		that.disarmTimeout(gen)
		return
	}

	if that.clock.Since(laterOf(*opponent.LastSeen, liveSince)) < that.timeout {
		that.disarmTimeout(gen)
		return
	}

	that.mu.Lock()
	if that.state != StateActive || that.timeoutWritten {
		that.mu.Unlock()
		return
	}
	that.timeoutWritten = true
	that.mu.Unlock()

	log.Info("opponent timed out", "lastSeen", *opponent.LastSeen)

	err = that.rooms.MergeUpdate(that.ctx, that.roomID, broker.Fields{
		broker.FieldWinner:    role.Outcome(),
		broker.FieldWinReason: entity.ReasonTimeout,
	})
	if err != nil {
		log.Error("failed to write timeout", "error", err)

		// allow the next push to arm a new check
		that.mu.Lock()
		that.timeoutWritten = false
		that.stopTimeoutLocked()
		that.mu.Unlock()
	}
}
