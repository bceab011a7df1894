// Command client plays a room of tic-tac-toe in the terminal against another client
// connected to the same room server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/logging"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/session"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tui"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/websocket"
)

var errNoRoom = errors.New("either --create or --join CODE is required")

type options struct {
	configPath string
	serverURL  string
	name       string
	create     bool
	join       string
	stats      bool
	resetStats bool
}

func main() {
	var opts options

	pflag.StringVar(&opts.configPath, "config", "config.yml", "path to the config file")
	pflag.StringVar(&opts.serverURL, "server", "", "room server websocket URL (overrides the config)")
	pflag.StringVar(&opts.name, "name", "", "set the display name shown to the opponent")
	pflag.BoolVar(&opts.create, "create", false, "create a new room and wait for a challenger")
	pflag.StringVar(&opts.join, "join", "", "join the room with this 4 digit code")
	pflag.BoolVar(&opts.stats, "stats", false, "print the local game stats and exit")
	pflag.BoolVar(&opts.resetStats, "reset-stats", false, "reset the local game stats")
	pflag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	conf, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if opts.serverURL != "" {
		conf.Client.ServerURL = opts.serverURL
	}

	logger, closeLog, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := storage.NewSQLiteStorage(conf.Client.SQLiteStoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err = store.Init(ctx); err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	profiles := service.NewProfileService(logger, repository.NewProfileRepository(store.Connection), clock)

	if done, err := manageProfile(ctx, profiles, opts); done || err != nil {
		return err
	}

	if !opts.create && opts.join == "" {
		return errNoRoom
	}

	playerID, err := profiles.GetOrCreatePlayerID(ctx)
	if err != nil {
		return err
	}

	name, err := profiles.Name(ctx)
	if err != nil {
		return err
	}

	client, err := websocket.Dial(ctx, logger, conf.Client.ServerURL)
	if err != nil {
		return err
	}
	defer client.Close()

	lobby := usecase.NewLobby(logger, client, clock, conf.Room.CreateAttempts)
	player := entity.Seat{ID: playerID, Name: name}

	var game *entity.Game
	if opts.create {
		game, err = lobby.CreateRoom(ctx, player)
	} else {
		game, err = lobby.JoinRoom(ctx, opts.join, player)
	}
	if err != nil {
		return err
	}

	controller := session.New(logger, client, clock, profiles, conf.Liveness, game.RoomID, playerID)
	defer controller.Close()

	changes := tui.Changes(controller)
	if err = controller.Subscribe(ctx); err != nil {
		return err
	}

	program := tea.NewProgram(
		tui.New(controller, profiles, changes),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("terminal ui failed: %w", err)
	}

	return nil
}

// manageProfile applies the profile flags. done reports that nothing is left to run.
func manageProfile(ctx context.Context, profiles service.ProfileService, opts options) (bool, error) {
	if opts.resetStats {
		if err := profiles.ResetStats(ctx); err != nil {
			return true, err
		}
		fmt.Println("Stats reset.")
	}

	if opts.name != "" {
		if err := profiles.SetName(ctx, opts.name); err != nil {
			return true, err
		}
	}

	if opts.stats {
		stats, err := profiles.Stats(ctx)
		if err != nil {
			return true, err
		}

		fmt.Printf("Played: %d\nWins:   %d\nLosses: %d\nDraws:  %d\n", stats.Played, stats.Wins, stats.Losses, stats.Draws)
		if stats.LastReset != nil {
			fmt.Printf("Since:  %s\n", stats.LastReset.Local().Format("2006-01-02 15:04"))
		}

		return true, nil
	}

	return (opts.resetStats || opts.name != "") && !opts.create && opts.join == "", nil
}

// newLogger writes to the configured log file. The terminal belongs to the UI, so
// without a file the client logs nothing.
func newLogger(conf *config.Config) (*slog.Logger, func(), error) {
	if conf.Client.LogFile == "" {
		return logging.New(io.Discard, conf.LogLevel), func() {}, nil
	}

	file, err := os.OpenFile(conf.Client.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("can't open log file: %w", err)
	}

	return logging.New(file, conf.LogLevel), func() { _ = file.Close() }, nil
}
