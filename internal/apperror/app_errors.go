package apperror

import "errors"

var (
	ErrNotFound          = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full, spectators are not allowed")
	ErrWriteFailed       = errors.New("failed to write room state")
	ErrCreateIDExhausted = errors.New("could not find a free room code")
	ErrAlreadyExists     = errors.New("room already exists")
	ErrInvalidRoomCode   = errors.New("room code must be 4 digits")
	ErrInvalidField      = errors.New("unknown room field")
	ErrWaitingForHost    = errors.New("waiting for player X to start the next game")
	ErrConnectionLost    = errors.New("connection to the room was lost")
	ErrInvalidName       = errors.New("name must be between 2 and 15 characters")
)
