package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var ErrClientClosed = errors.New("websocket client closed")

const unsubscribeTimeout = 5 * time.Second

type subscriber struct {
	onChange func(*entity.Game)
	onError  func(error)
}

// Client is a broker backed by a remote gateway. Pushes and connection errors are
// delivered on the client's read goroutine.
type Client struct {
	logger *slog.Logger
	ws     *websocket.Conn

	writeMu sync.Mutex

	mu          sync.Mutex
	nextID      int64
	pending     map[int64]chan Message
	subscribers map[string]map[int]subscriber
	nextSub     int
	err         error

	done chan struct{}
}

// Dial connects to the gateway at url, e.g. ws://localhost:9091/ws.
func Dial(ctx context.Context, logger *slog.Logger, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	client := &Client{
		logger:      logger.With("component", "websocketClient"),
		ws:          ws,
		pending:     make(map[int64]chan Message),
		subscribers: make(map[string]map[int]subscriber),
		done:        make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

func (that *Client) Get(ctx context.Context, roomID string) (*entity.Game, error) {
	payload, err := that.request(ctx, ActionGet, Payload{RoomID: roomID})
	if err != nil {
		return nil, err
	}

	return payload.Game, nil
}

func (that *Client) Create(ctx context.Context, game *entity.Game) error {
	_, err := that.request(ctx, ActionCreate, Payload{RoomID: game.RoomID, Game: game})
	return err
}

func (that *Client) MergeUpdate(ctx context.Context, roomID string, fields broker.Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	_, err := that.request(ctx, ActionUpdate, Payload{RoomID: roomID, Fields: fields})
	return err
}

// Subscribe follows roomID. The gateway subscription is shared by every local
// subscriber of the room.
func (that *Client) Subscribe(ctx context.Context, roomID string, onChange func(*entity.Game), onError func(error)) (func(), error) {
	deliver := broker.Monotonic(onChange)

	that.mu.Lock()
	if that.err != nil {
		err := that.err
		that.mu.Unlock()
		return nil, err
	}

	first := len(that.subscribers[roomID]) == 0
	if first {
		that.subscribers[roomID] = make(map[int]subscriber)
	}
	id := that.nextSub
	that.nextSub++
	that.subscribers[roomID][id] = subscriber{onChange: deliver, onError: onError}
	that.mu.Unlock()

	unsubscribe := func() {
		that.mu.Lock()
		delete(that.subscribers[roomID], id)
		last := len(that.subscribers[roomID]) == 0
		if last {
			delete(that.subscribers, roomID)
		}
		that.mu.Unlock()

		if !last {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()

		if _, err := that.request(ctx, ActionUnsubscribe, Payload{RoomID: roomID}); err != nil && !errors.Is(err, ErrClientClosed) {
			that.logger.Warn("failed to unsubscribe", "roomID", roomID, "error", err)
		}
	}

	if first {
		// the gateway pushes the current record right after confirming
		if _, err := that.request(ctx, ActionSubscribe, Payload{RoomID: roomID}); err != nil {
			unsubscribe()
			return nil, err
		}

		return unsubscribe, nil
	}

	current, err := that.Get(ctx, roomID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		deliver(nil)
	case err != nil:
		unsubscribe()
		return nil, err
	default:
		deliver(current)
	}

	return unsubscribe, nil
}

// Close drops the connection. Subscribers are not notified.
func (that *Client) Close() error {
	that.mu.Lock()
	if that.err == nil {
		that.err = ErrClientClosed
	}
	that.subscribers = make(map[string]map[int]subscriber)
	that.mu.Unlock()

	if err := that.ws.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	<-that.done

	return nil
}

func (that *Client) request(ctx context.Context, action string, payload Payload) (Payload, error) {
	that.mu.Lock()
	if that.err != nil {
		err := that.err
		that.mu.Unlock()
		return Payload{}, err
	}
	that.nextID++
	id := that.nextID
	response := make(chan Message, 1)
	that.pending[id] = response
	that.mu.Unlock()

	defer func() {
		that.mu.Lock()
		delete(that.pending, id)
		that.mu.Unlock()
	}()

	if err := that.send(Message{Action: action, ID: id, Payload: mustMarshal(payload)}); err != nil {
		return Payload{}, err
	}

	select {
	case message := <-response:
		var result Payload
		if err := json.Unmarshal(message.Payload, &result); err != nil {
			return Payload{}, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		if err := remoteError(result); err != nil {
			return Payload{}, err
		}

		return result, nil
	case <-that.done:
		that.mu.Lock()
		err := that.err
		that.mu.Unlock()

		return Payload{}, err
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	}
}

func (that *Client) send(message Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.ws.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *Client) readLoop() {
	defer close(that.done)

	for {
		var message Message
		if err := that.ws.ReadJSON(&message); err != nil {
			that.fail(err)
			return
		}

		if message.ID != 0 {
			that.mu.Lock()
			response, ok := that.pending[message.ID]
			that.mu.Unlock()

			if ok {
				response <- message
			}

			continue
		}

		var payload Payload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			that.logger.Error("failed to unmarshal push", "error", err)
			continue
		}

		switch message.Action {
		case ActionChanged:
			for _, sub := range that.subscribersOf(payload.RoomID) {
				sub.onChange(payload.Game.Clone())
			}
		case ActionError:
			for _, sub := range that.subscribersOf(payload.RoomID) {
				if sub.onError != nil {
					sub.onError(fmt.Errorf("%w: %s", errRemote, payload.Error))
				}
			}
		default:
			that.logger.Warn("unexpected push", "action", message.Action)
		}
	}
}

func (that *Client) subscribersOf(roomID string) []subscriber {
	that.mu.Lock()
	defer that.mu.Unlock()

	subscribers := make([]subscriber, 0, len(that.subscribers[roomID]))
	for _, sub := range that.subscribers[roomID] {
		subscribers = append(subscribers, sub)
	}

	return subscribers
}

// fail reports a broken connection to every subscriber unless Close caused it.
func (that *Client) fail(err error) {
	that.mu.Lock()
	if that.err != nil {
		that.mu.Unlock()
		return
	}
	that.err = fmt.Errorf("connection lost: %w", err)

	var subscribers []subscriber
	for _, room := range that.subscribers {
		for _, sub := range room {
			subscribers = append(subscribers, sub)
		}
	}
	that.mu.Unlock()

	that.logger.Error("connection lost", "error", err)

	for _, sub := range subscribers {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}
