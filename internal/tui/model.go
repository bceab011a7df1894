// Package tui renders a room in the terminal and turns key presses into session
// intents. Intents run as commands so the event loop never waits on the network.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
)

// Controller is the part of session.Controller the view drives.
type Controller interface {
	Snapshot() session.Snapshot
	SubmitMove(ctx context.Context, cell int) error
	RequestRematch(ctx context.Context) error
	Leave(ctx context.Context)
	SetVisible(visible bool)
}

type StatsReader interface {
	Stats(ctx context.Context) (entity.Stats, error)
}

type (
	changedMsg struct{}
	statsMsg   struct{ stats entity.Stats }
	noticeMsg  struct{ text string }
	leftMsg    struct{}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("236"))
	turnStyle   = statusStyle.Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	xStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	oStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cellStyle   = lipgloss.NewStyle().Width(5).Align(lipgloss.Center)
	boardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type Model struct {
	controller Controller
	stats      StatsReader
	changes    <-chan struct{}

	snapshot session.Snapshot
	record   *entity.Stats
	notice   string
}

// New returns the room view. changes signals that the controller state moved on,
// see Changes. stats may be nil.
func New(controller Controller, stats StatsReader, changes <-chan struct{}) Model {
	return Model{
		controller: controller,
		stats:      stats,
		changes:    changes,
		snapshot:   controller.Snapshot(),
	}
}

// Changes registers a listener on the controller and returns a channel signalled
// after every change. Signals coalesce, the view always reads the latest snapshot.
func Changes(controller interface{ OnChange(func(session.Snapshot)) }) <-chan struct{} {
	changes := make(chan struct{}, 1)

	controller.OnChange(func(session.Snapshot) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	return changes
}

func listenForChanges(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (model Model) loadStats() tea.Cmd {
	if model.stats == nil {
		return nil
	}

	return func() tea.Msg {
		stats, err := model.stats.Stats(context.Background())
		if err != nil {
			return noticeMsg{text: "Could not load stats: " + err.Error()}
		}
		return statsMsg{stats: stats}
	}
}

func (model Model) Init() tea.Cmd {
	return tea.Batch(listenForChanges(model.changes), model.loadStats())
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case changedMsg:
		model.snapshot = model.controller.Snapshot()

		cmds := []tea.Cmd{listenForChanges(model.changes)}
		if model.snapshot.Game != nil && model.snapshot.Game.IsFinished() {
			cmds = append(cmds, model.loadStats())
		}

		return model, tea.Batch(cmds...)
	case statsMsg:
		model.record = &message.stats
		return model, nil
	case noticeMsg:
		model.notice = message.text
		return model, nil
	case leftMsg:
		return model, tea.Quit
	case tea.FocusMsg:
		model.controller.SetVisible(true)
		return model, nil
	case tea.BlurMsg:
		model.controller.SetVisible(false)
		return model, nil
	case tea.KeyMsg:
		return model.handleKey(message)
	}

	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := message.String()

	switch key {
	case "q", "esc", "ctrl+c":
		return model, model.leave()
	}

	if model.notice != "" {
		model.notice = ""
		return model, nil
	}

	switch {
	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		return model, model.submitMove(int(key[0] - '1'))
	case key == "r":
		return model, model.requestRematch()
	}

	return model, nil
}

func (model Model) submitMove(cell int) tea.Cmd {
	controller := model.controller

	return func() tea.Msg {
		if err := controller.SubmitMove(context.Background(), cell); err != nil {
			return noticeMsg{text: "Could not make move, try again."}
		}
		return nil
	}
}

func (model Model) requestRematch() tea.Cmd {
	controller := model.controller

	return func() tea.Msg {
		err := controller.RequestRematch(context.Background())
		switch {
		case errors.Is(err, apperror.ErrWaitingForHost):
			return noticeMsg{text: "Waiting for Player X to start the next game."}
		case err != nil:
			return noticeMsg{text: "Could not restart game, try again."}
		}
		return nil
	}
}

func (model Model) leave() tea.Cmd {
	controller := model.controller

	return func() tea.Msg {
		controller.Leave(context.Background())
		return leftMsg{}
	}
}

// Status is the one line summary of the room from the local player's seat.
func Status(snapshot session.Snapshot) string {
	switch snapshot.State {
	case session.StateConnecting:
		return "Joining room..."
	case session.StateClosed:
		return "You left the room."
	case session.StateError:
		return errorText(snapshot.Err)
	}

	game, role := snapshot.Game, snapshot.Role
	if game == nil {
		return "Joining room..."
	}

	if game.IsFinished() {
		switch {
		case game.Winner == entity.OutcomeDraw:
			return "It's a draw! Stalemate."
		case !role.IsSeat():
			return fmt.Sprintf("Player %s wins.", game.Winner)
		case game.Winner == role.Outcome() && game.WinReason == entity.ReasonAbandonment:
			return "Victory is yours! Your opponent has fled the battle."
		case game.Winner == role.Outcome() && game.WinReason == entity.ReasonTimeout:
			return "Victory is yours! Your opponent stopped responding."
		case game.Winner == role.Outcome():
			return "Victory is yours!"
		case game.WinReason == entity.ReasonTimeout:
			return "You have been defeated. You ran out of time."
		default:
			return "You have been defeated."
		}
	}

	switch {
	case snapshot.HasBeenFull && game.PlayerCount < 2:
		return "Your opponent has fled the battle."
	case game.PlayerCount < 2:
		return "Waiting for a challenger..."
	case !role.IsSeat():
		return "Watching the game."
	case game.NextPlayer == role:
		return "Your turn to strike!"
	default:
		return "Awaiting opponent's move..."
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return "Game not found. It might have been deleted or the code is incorrect."
	case errors.Is(err, apperror.ErrRoomFull):
		return "This game is full and you are not a player."
	case errors.Is(err, apperror.ErrConnectionLost):
		return "Lost the connection to the game server."
	case err != nil:
		return err.Error()
	default:
		return "Something went wrong."
	}
}

func (model Model) View() string {
	snapshot := model.snapshot

	var view strings.Builder

	if snapshot.State == session.StateError {
		view.WriteString(errorStyle.Render(Status(snapshot)))
		view.WriteString("\n\n" + faintStyle.Render("q quit") + "\n")

		return view.String()
	}

	game := snapshot.Game
	if game == nil {
		view.WriteString(Status(snapshot) + "\n")
		return view.String()
	}

	view.WriteString(titleStyle.Render("Room Code: "+game.RoomID) + "   " + fmt.Sprintf("%d / 2 players", game.PlayerCount) + "\n\n")

	status := statusStyle
	if !game.IsFinished() && snapshot.Role.IsSeat() && game.NextPlayer == snapshot.Role {
		status = turnStyle
	}
	view.WriteString(status.Render(Status(snapshot)) + "\n")

	if snapshot.Role.IsSeat() {
		view.WriteString(faintStyle.Render("You are Player "+string(snapshot.Role)) + "\n")
	}

	view.WriteString(renderBoard(game.Board) + "\n")
	view.WriteString(renderPlayers(game.Players) + "\n")

	if model.record != nil {
		view.WriteString(faintStyle.Render(fmt.Sprintf("Played %d  Wins %d  Losses %d  Draws %d",
			model.record.Played, model.record.Wins, model.record.Losses, model.record.Draws)) + "\n")
	}

	if model.notice != "" {
		view.WriteString("\n" + noticeStyle.Render(model.notice) + "\n")
	}

	help := "1-9 move  q leave"
	if game.IsFinished() {
		help = "r play again  q leave"
	}
	view.WriteString("\n" + faintStyle.Render(help) + "\n")

	return view.String()
}

func renderBoard(board entity.Board) string {
	rows := make([]string, 0, 3)

	for row := range 3 {
		cells := make([]string, 0, 3)
		for column := range 3 {
			cell := row*3 + column
			cells = append(cells, cellStyle.Render(renderCell(board[cell], cell)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	return boardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderCell(symbol entity.Symbol, cell int) string {
	switch symbol {
	case entity.PlayerX:
		return xStyle.Render("X")
	case entity.PlayerO:
		return oStyle.Render("O")
	default:
		return faintStyle.Render(fmt.Sprint(cell + 1))
	}
}

func renderPlayers(players entity.Seats) string {
	name := func(seat entity.Seat) string {
		switch {
		case !seat.IsOccupied():
			return faintStyle.Render("(empty)")
		case seat.Name == "":
			return "Anonymous"
		default:
			return seat.Name
		}
	}

	return xStyle.Render("X") + " " + name(players.X) + "   " + oStyle.Render("O") + " " + name(players.O)
}
