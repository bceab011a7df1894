package websocket

import (
	"encoding/json"
	"errors"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const (
	ActionGet         = "room:get"
	ActionCreate      = "room:create"
	ActionUpdate      = "room:update"
	ActionSubscribe   = "room:subscribe"
	ActionUnsubscribe = "room:unsubscribe"

	// ActionChanged is pushed by the server, never sent by clients.
	ActionChanged = "room:changed"
	ActionError   = "room:error"
)

const (
	codeNotFound      = "not_found"
	codeAlreadyExists = "already_exists"
	codeInvalidField  = "invalid_field"
	codeBadRequest    = "bad_request"
	codeInternal      = "internal"
)

// Message is one frame of the gateway protocol. Requests carry an ID that the
// response echoes; pushes have none.
type Message struct {
	Action  string          `json:"action"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	RoomID string        `json:"roomId,omitempty"`
	Game   *entity.Game  `json:"game,omitempty"`
	Fields broker.Fields `json:"fields,omitempty"`
	Error  string        `json:"error,omitempty"`
	Code   string        `json:"code,omitempty"`
}

var errRemote = errors.New("gateway error")

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return codeNotFound
	case errors.Is(err, apperror.ErrAlreadyExists):
		return codeAlreadyExists
	case errors.Is(err, apperror.ErrInvalidField):
		return codeInvalidField
	default:
		return codeInternal
	}
}

// remoteError rebuilds a sentinel error from a response payload.
func remoteError(payload Payload) error {
	var sentinel error

	switch payload.Code {
	case "":
		return nil
	case codeNotFound:
		sentinel = apperror.ErrNotFound
	case codeAlreadyExists:
		sentinel = apperror.ErrAlreadyExists
	case codeInvalidField:
		sentinel = apperror.ErrInvalidField
	default:
		sentinel = errRemote
	}

	return &gatewayError{sentinel: sentinel, message: payload.Error}
}

type gatewayError struct {
	sentinel error
	message  string
}

func (that *gatewayError) Error() string {
	return that.message
}

func (that *gatewayError) Unwrap() error {
	return that.sentinel
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
