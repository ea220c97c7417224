package ai

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/engine"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/rules"
	"github.com/louisbranch/meldtable/internal/storage/memory"
)

func newRunnerFixture(t *testing.T) (*engine.Engine, *Runner) {
	t.Helper()
	eventRegistry, err := event.NewGameRegistry()
	if err != nil {
		t.Fatalf("build event registry: %v", err)
	}
	commandRegistry, err := command.NewGameRegistry()
	if err != nil {
		t.Fatalf("build command registry: %v", err)
	}
	eng, err := engine.New(memory.New(eventRegistry), commandRegistry,
		engine.WithDecider(rules.NewDecider(func() (int64, error) { return 42, nil })),
		engine.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	runner, err := NewRunner(eng, DefaultPersona(), "game-1", "bot", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("build runner: %v", err)
	}
	return eng, runner
}

func submit(t *testing.T, eng *engine.Engine, typ command.Type, actorID, requestID string, version uint64, payload any) {
	t.Helper()
	cmd := command.Command{
		GameID:          "game-1",
		Type:            typ,
		ActorType:       command.ActorTypePlayer,
		ActorID:         actorID,
		RequestID:       requestID,
		ExpectedVersion: version,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		cmd.PayloadJSON = raw
	}
	if _, err := eng.Submit(context.Background(), cmd); err != nil {
		t.Fatalf("Submit(%s) error = %v, want nil", typ, err)
	}
}

func TestRunnerWaitsForItsTurn(t *testing.T) {
	eng, runner := newRunnerFixture(t)
	submit(t, eng, command.TypeJoinGame, "alice", "join-a", 0,
		command.JoinGamePayload{DisplayName: "Alice"})
	submit(t, eng, command.TypeJoinGame, "bot", "join-b", 1,
		command.JoinGamePayload{DisplayName: "Bot", Scripted: true})
	submit(t, eng, command.TypeMarkReady, "bot", "ready-b", 2, nil)

	// The game has not started, so the runner has nothing to do.
	acted, err := runner.Act(context.Background())
	if err != nil {
		t.Fatalf("Act() error = %v, want nil", err)
	}
	if acted {
		t.Fatal("runner acted before the game started")
	}
}

func TestRunnerActWithNilContextAndThinkDelay(t *testing.T) {
	eng, runner := newRunnerFixture(t)
	runner.persona.ThinkDelay = time.Millisecond
	submit(t, eng, command.TypeJoinGame, "alice", "join-a", 0,
		command.JoinGamePayload{DisplayName: "Alice"})
	submit(t, eng, command.TypeJoinGame, "bot", "join-b", 1,
		command.JoinGamePayload{DisplayName: "Bot", Scripted: true})
	submit(t, eng, command.TypeMarkReady, "alice", "ready-a", 2, nil)
	submit(t, eng, command.TypeMarkReady, "bot", "ready-b", 3, nil)

	acted, err := runner.Act(nil) //nolint:staticcheck // nil context tolerance is part of the contract
	if err != nil {
		t.Fatalf("Act(nil) error = %v, want nil", err)
	}
	if !acted {
		t.Fatal("runner held the turn but did not act")
	}
}

func TestRunnerPlaysUntilTurnPasses(t *testing.T) {
	eng, runner := newRunnerFixture(t)
	submit(t, eng, command.TypeJoinGame, "alice", "join-a", 0,
		command.JoinGamePayload{DisplayName: "Alice"})
	submit(t, eng, command.TypeJoinGame, "bot", "join-b", 1,
		command.JoinGamePayload{DisplayName: "Bot", Scripted: true})
	submit(t, eng, command.TypeMarkReady, "alice", "ready-a", 2, nil)
	submit(t, eng, command.TypeMarkReady, "bot", "ready-b", 3, nil)

	// Alice dealt, so the bot holds the upcard decision.
	before, err := eng.State(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("State() error = %v, want nil", err)
	}
	if before.CurrentActorID != "bot" {
		t.Fatalf("CurrentActorID = %s, want bot", before.CurrentActorID)
	}

	if err := runner.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v, want nil", err)
	}

	after, err := eng.State(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("State() error = %v, want nil", err)
	}
	if after.CurrentActorID == "bot" {
		t.Fatalf("runner stopped while still holding the turn in phase %s", after.Phase)
	}
	if after.Version <= before.Version {
		t.Fatalf("Version = %d, want progress past %d", after.Version, before.Version)
	}
	if bot := after.Player("bot"); bot != nil && len(bot.Hand) != 10 {
		t.Fatalf("bot hand size = %d, want 10 after a completed turn", len(bot.Hand))
	}
}
