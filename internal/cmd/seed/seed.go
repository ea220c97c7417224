// Package seed parses seed command flags and populates a local database
// with a demo game ready to play.
package seed

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/event"
	entrypoint "github.com/louisbranch/meldtable/internal/platform/cmd"
	"github.com/louisbranch/meldtable/internal/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath     string `env:"MELDTABLE_DB_PATH" envDefault:"meldtable.sqlite"`
	PlayerID   string `env:"MELDTABLE_SEED_PLAYER" envDefault:"demo-player"`
	OpponentID string `env:"MELDTABLE_SEED_OPPONENT" envDefault:"demo-bot"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	fs.StringVar(&cfg.PlayerID, "player", cfg.PlayerID, "Seat id for the human demo player")
	fs.StringVar(&cfg.OpponentID, "opponent", cfg.OpponentID, "Seat id for the scripted opponent")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds a demo game: two seats joined and readied, cards dealt, the
// non-dealer seat holding the upcard decision.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	eventRegistry, err := event.NewGameRegistry()
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}
	commandRegistry, err := command.NewGameRegistry()
	if err != nil {
		return fmt.Errorf("build command registry: %w", err)
	}
	store, err := sqlite.Open(cfg.DBPath, eventRegistry)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	eng, err := engine.New(store, commandRegistry)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	gameID, err := eng.CreateGame(ctx)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}

	version := uint64(0)
	steps := []struct {
		typ      command.Type
		actorID  string
		scripted bool
	}{
		{typ: command.TypeJoinGame, actorID: cfg.PlayerID},
		{typ: command.TypeJoinGame, actorID: cfg.OpponentID, scripted: true},
		{typ: command.TypeMarkReady, actorID: cfg.PlayerID},
		{typ: command.TypeMarkReady, actorID: cfg.OpponentID},
	}
	for i, step := range steps {
		cmd := command.Command{
			GameID:          gameID,
			Type:            step.typ,
			ActorType:       command.ActorTypePlayer,
			ActorID:         step.actorID,
			RequestID:       fmt.Sprintf("seed-%s-%d", gameID, i),
			ExpectedVersion: version,
		}
		if step.typ == command.TypeJoinGame {
			payload, err := json.Marshal(command.JoinGamePayload{
				DisplayName: step.actorID,
				Scripted:    step.scripted,
			})
			if err != nil {
				return fmt.Errorf("encode join payload: %w", err)
			}
			cmd.PayloadJSON = payload
		}
		result, err := eng.Submit(ctx, cmd)
		if err != nil {
			return fmt.Errorf("seed step %s for %s: %w", step.typ, step.actorID, err)
		}
		version = result.State.Version
	}

	log.Printf("seeded game %s at version %d: %s vs %s (scripted)",
		gameID, version, cfg.PlayerID, cfg.OpponentID)
	return nil
}
