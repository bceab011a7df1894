package entity

import (
	"regexp"
	"time"
)

type Symbol string

const (
	PlayerX   Symbol = "X"
	PlayerO   Symbol = "O"
	EmptyCell Symbol = ""
)

// Outcome is the value of Game.Winner.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "draw"
)

type WinReason string

const (
	ReasonNone        WinReason = ""
	ReasonScore       WinReason = "score"
	ReasonAbandonment WinReason = "abandonment"
	ReasonTimeout     WinReason = "timeout"
)

const BoardSize = 9

var roomCodePattern = regexp.MustCompile(`^\d{4}$`)

type Board [BoardSize]Symbol

// Seat is one of the two symbol slots. An empty ID means the seat is vacant.
type Seat struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	LastSeen *time.Time `json:"lastSeen"`
}

type Seats struct {
	X Seat `json:"X"`
	O Seat `json:"O"`
}

// Game is the record shared by both players of a room.
type Game struct {
	RoomID      string    `json:"roomId"`
	Board       Board     `json:"board"`
	Players     Seats     `json:"players"`
	PlayerCount int       `json:"playerCount"`
	NextPlayer  Symbol    `json:"nextPlayer"`
	Winner      Outcome   `json:"winner"`
	WinReason   WinReason `json:"winReason"`
	CreatedAt   time.Time `json:"createdAt"`
	Revision    int64     `json:"revision"`
}

// NewGame returns a fresh record with the creator seated as X.
func NewGame(roomID string, creator Seat, createdAt time.Time) *Game {
	return &Game{
		RoomID:      roomID,
		Players:     Seats{X: creator},
		PlayerCount: 1,
		NextPlayer:  PlayerX,
		CreatedAt:   createdAt,
	}
}

// IsValidRoomCode reports whether code is exactly four ASCII digits.
func IsValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

func (that Symbol) Opponent() Symbol {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return EmptyCell
	}
}

func (that Symbol) IsSeat() bool {
	return that == PlayerX || that == PlayerO
}

// Outcome converts a seat symbol into the matching winner value.
func (that Symbol) Outcome() Outcome {
	return Outcome(that)
}

func (that Outcome) IsDecisive() bool {
	return that == OutcomeX || that == OutcomeO
}

func (that *Seat) IsOccupied() bool {
	return that.ID != ""
}

func (that *Seats) Get(symbol Symbol) *Seat {
	switch symbol {
	case PlayerX:
		return &that.X
	case PlayerO:
		return &that.O
	default:
		return nil
	}
}

func (that *Game) IsFinished() bool {
	return that.Winner != OutcomeNone
}

func (that *Game) IsFull() bool {
	return that.Players.X.IsOccupied() && that.Players.O.IsOccupied()
}

// RoleOf returns the symbol seated by playerID, or EmptyCell for spectators.
func (that *Game) RoleOf(playerID string) Symbol {
	if playerID == "" {
		return EmptyCell
	}

	switch playerID {
	case that.Players.X.ID:
		return PlayerX
	case that.Players.O.ID:
		return PlayerO
	default:
		return EmptyCell
	}
}

// FilledCells counts cells holding a symbol.
func (that *Game) FilledCells() int {
	filled := 0
	for _, cell := range that.Board {
		if cell != EmptyCell {
			filled++
		}
	}

	return filled
}

// Clone returns a deep copy safe to hand out to readers.
func (that *Game) Clone() *Game {
	if that == nil {
		return nil
	}

	clone := *that
	clone.Players.X.LastSeen = cloneTime(that.Players.X.LastSeen)
	clone.Players.O.LastSeen = cloneTime(that.Players.O.LastSeen)

	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	value := *t
	return &value
}
