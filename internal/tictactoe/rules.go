package tictactoe

import "github.com/rocketscienceinc/tictactoe-rooms/internal/entity"

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// CheckOutcome - evaluates the board after a move.
func CheckOutcome(board entity.Board) entity.Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a.Outcome()
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range board {
		if cell == entity.EmptyCell {
			return entity.OutcomeNone
		}
	}

	return entity.OutcomeDraw
}

func IsValidCell(cell int) bool {
	return cell >= 0 && cell < entity.BoardSize
}

// Move is the result of placing a symbol on a board.
type Move struct {
	Board      entity.Board
	NextPlayer entity.Symbol
	Winner     entity.Outcome
	WinReason  entity.WinReason
}

// ApplyMove places symbol on cell and reports the resulting state. ok is false when
// the move is not legal for game.
func ApplyMove(game *entity.Game, symbol entity.Symbol, cell int) (Move, bool) {
	if !symbol.IsSeat() || game.IsFinished() || game.NextPlayer != symbol {
		return Move{}, false
	}

	if !IsValidCell(cell) || game.Board[cell] != entity.EmptyCell {
		return Move{}, false
	}

	move := Move{
		Board:      game.Board,
		NextPlayer: symbol.Opponent(),
	}
	move.Board[cell] = symbol
	move.Winner = CheckOutcome(move.Board)

	if move.Winner.IsDecisive() {
		move.WinReason = entity.ReasonScore
	}

	return move, true
}
