package entity

import "time"

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Profile is the locally persisted identity of this client.
type Profile struct {
	PlayerID string
	Name     string
	Stats    Stats
}

type Stats struct {
	Played    int        `json:"played"`
	Wins      int        `json:"wins"`
	Losses    int        `json:"losses"`
	Draws     int        `json:"draws"`
	LastReset *time.Time `json:"lastReset"`
}

// Record adds one finished game to the counters.
func (that *Stats) Record(result Result) {
	that.Played++

	switch result {
	case ResultWin:
		that.Wins++
	case ResultLoss:
		that.Losses++
	case ResultDraw:
		that.Draws++
	}
}

// ResultFor maps a winner to the result seen from symbol's seat.
func ResultFor(winner Outcome, symbol Symbol) Result {
	switch {
	case winner == OutcomeDraw:
		return ResultDraw
	case winner == symbol.Outcome():
		return ResultWin
	default:
		return ResultLoss
	}
}
