// Package server parses server command flags and runs the HTTP game service.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/louisbranch/meldtable/internal/api/httpapi"
	"github.com/louisbranch/meldtable/internal/game/ai"
	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/event"
	entrypoint "github.com/louisbranch/meldtable/internal/platform/cmd"
	"github.com/louisbranch/meldtable/internal/platform/timeouts"
	"github.com/louisbranch/meldtable/internal/storage/sqlite"
)

// Config holds server command configuration.
type Config struct {
	Port              int           `env:"MELDTABLE_PORT" envDefault:"8080"`
	Addr              string        `env:"MELDTABLE_ADDR"`
	DBPath            string        `env:"MELDTABLE_DB_PATH" envDefault:"meldtable.sqlite"`
	SnapshotInterval  uint64        `env:"MELDTABLE_SNAPSHOT_INTERVAL" envDefault:"20"`
	SnapshotRetention int           `env:"MELDTABLE_SNAPSHOT_RETENTION" envDefault:"3"`
	AIPersona         string        `env:"MELDTABLE_AI_PERSONA"`
	AIPollInterval    time.Duration `env:"MELDTABLE_AI_POLL_INTERVAL" envDefault:"500ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	fs.StringVar(&cfg.AIPersona, "ai-persona", cfg.AIPersona, "Path to a Lua persona script for scripted seats")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
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

	store, err := sqlite.Open(cfg.DBPath, eventRegistry,
		sqlite.WithSnapshotRetention(cfg.SnapshotRetention))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	eng, err := engine.New(store, commandRegistry,
		engine.WithSnapshotInterval(cfg.SnapshotInterval))
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	persona := ai.DefaultPersona()
	if cfg.AIPersona != "" {
		persona, err = ai.LoadPersona(cfg.AIPersona)
		if err != nil {
			return fmt.Errorf("load ai persona: %w", err)
		}
		log.Printf("loaded ai persona %q", persona.Name)
	}
	go runScriptedSeats(ctx, eng, persona, cfg.AIPollInterval)

	mux := http.NewServeMux()
	httpapi.NewHandler(eng).RegisterRoutes(mux)

	addr := cfg.Addr
	if addr == "" {
		addr = net.JoinHostPort("", strconv.Itoa(cfg.Port))
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runScriptedSeats polls active games and plays any scripted seat that holds
// the turn. The runner goes through the public submission path, so a human
// retrying concurrently just loses the version race.
func runScriptedSeats(ctx context.Context, eng *engine.Engine, persona ai.Persona, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		gameIDs, err := eng.GameIDs(ctx)
		if err != nil {
			log.Printf("ai poll: list games: %v", err)
			continue
		}
		for _, gameID := range gameIDs {
			playScriptedSeat(ctx, eng, persona, gameID)
		}
	}
}

func playScriptedSeat(ctx context.Context, eng *engine.Engine, persona ai.Persona, gameID string) {
	current, err := eng.State(ctx, gameID)
	if err != nil {
		log.Printf("ai poll: load game %s: %v", gameID, err)
		return
	}
	actor := current.Player(current.CurrentActorID)
	if actor == nil || !actor.Scripted {
		return
	}

	runner, err := ai.NewRunner(eng, persona, gameID, actor.ID, log.Default())
	if err != nil {
		log.Printf("ai poll: build runner for game %s: %v", gameID, err)
		return
	}
	if err := runner.Play(ctx); err != nil {
		log.Printf("ai poll: play game %s: %v", gameID, err)
	}
}
