package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/rules"
	"github.com/louisbranch/meldtable/internal/game/state"
	apperrors "github.com/louisbranch/meldtable/internal/platform/errors"
	"github.com/louisbranch/meldtable/internal/storage"
	"github.com/louisbranch/meldtable/internal/storage/memory"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eventRegistry, err := event.NewGameRegistry()
	if err != nil {
		t.Fatalf("build event registry: %v", err)
	}
	commandRegistry, err := command.NewGameRegistry()
	if err != nil {
		t.Fatalf("build command registry: %v", err)
	}
	store := memory.New(eventRegistry)
	opts = append([]Option{
		WithDecider(rules.NewDecider(func() (int64, error) { return 42, nil })),
		WithLogger(log.New(io.Discard, "", 0)),
	}, opts...)
	engine, err := New(store, commandRegistry, opts...)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine
}

func playerCmd(gameID string, typ command.Type, actorID, requestID string, version uint64, payload any) command.Command {
	cmd := command.Command{
		GameID:          gameID,
		Type:            typ,
		ActorType:       command.ActorTypePlayer,
		ActorID:         actorID,
		RequestID:       requestID,
		ExpectedVersion: version,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		cmd.PayloadJSON = raw
	}
	return cmd
}

func mustSubmit(t *testing.T, e *Engine, cmd command.Command) Result {
	t.Helper()
	result, err := e.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Submit(%s) error = %v, want nil", cmd.Type, err)
	}
	return result
}

// startGame seats alice and bob and marks both ready, leaving the game at
// the upcard decision with bob (non-dealer) to act. Returns the version.
func startGame(t *testing.T, e *Engine, gameID string) uint64 {
	t.Helper()
	mustSubmit(t, e, playerCmd(gameID, command.TypeJoinGame, "alice", "join-a", 0,
		command.JoinGamePayload{DisplayName: "Alice"}))
	mustSubmit(t, e, playerCmd(gameID, command.TypeJoinGame, "bob", "join-b", 1,
		command.JoinGamePayload{DisplayName: "Bob"}))
	mustSubmit(t, e, playerCmd(gameID, command.TypeMarkReady, "alice", "ready-a", 2, nil))
	result := mustSubmit(t, e, playerCmd(gameID, command.TypeMarkReady, "bob", "ready-b", 3, nil))
	return result.State.Version
}

func TestSubmitLifecycle(t *testing.T) {
	e := newTestEngine(t)

	version := startGame(t, e, "game-1")
	if version != 5 {
		t.Fatalf("version after start = %d, want 5", version)
	}

	current, err := e.State(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("State() error = %v, want nil", err)
	}
	if current.Phase != state.PhaseUpcardDecision {
		t.Fatalf("Phase = %s, want %s", current.Phase, state.PhaseUpcardDecision)
	}
	if current.CurrentActorID != "bob" {
		t.Fatalf("CurrentActorID = %s, want bob", current.CurrentActorID)
	}
	if current.DealerID != "alice" {
		t.Fatalf("DealerID = %s, want alice", current.DealerID)
	}

	events, err := e.Events(context.Background(), "game-1", 0)
	if err != nil {
		t.Fatalf("Events() error = %v, want nil", err)
	}
	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	for i, evt := range events {
		if evt.Seq != uint64(i+1) {
			t.Fatalf("events[%d].Seq = %d, want %d", i, evt.Seq, i+1)
		}
	}
	if events[4].Type != event.TypeGameStarted {
		t.Fatalf("events[4].Type = %s, want %s", events[4].Type, event.TypeGameStarted)
	}
	if events[4].ActorType != event.ActorTypeSystem {
		t.Fatalf("start event actor type = %s, want system", events[4].ActorType)
	}
}

func TestSubmitIdempotentRetry(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "game-1")

	pass := playerCmd("game-1", command.TypePassUpcard, "bob", "pass-b", 5, nil)
	first := mustSubmit(t, e, pass)
	if first.Replayed {
		t.Fatal("first submission reported as replayed")
	}

	// Retrying the same request id must return the original event without a
	// second append, even at a stale expected version.
	retry := pass
	retry.ExpectedVersion = 99
	replayed := mustSubmit(t, e, retry)
	if !replayed.Replayed {
		t.Fatal("retry was not detected as a replay")
	}
	if len(replayed.Events) != 1 || replayed.Events[0].Seq != first.Events[0].Seq {
		t.Fatalf("replayed events = %+v, want original seq %d", replayed.Events, first.Events[0].Seq)
	}
	if replayed.State.Version != first.State.Version {
		t.Fatalf("replay moved the version: %d != %d", replayed.State.Version, first.State.Version)
	}
}

func TestSubmitVersionConflict(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "game-1")

	_, err := e.Submit(context.Background(),
		playerCmd("game-1", command.TypePassUpcard, "bob", "pass-stale", 3, nil))
	var conflict *storage.VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Submit() error = %v, want *VersionConflictError", err)
	}
	if conflict.ServerVersion != 5 {
		t.Fatalf("ServerVersion = %d, want 5", conflict.ServerVersion)
	}
}

func TestSubmitRejectionAppendsNothing(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "game-1")

	// Alice is not the current actor during the upcard decision.
	_, err := e.Submit(context.Background(),
		playerCmd("game-1", command.TypePassUpcard, "alice", "pass-a", 5, nil))
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("Submit() error = %v, want *apperrors.Error", err)
	}
	if domainErr.Code != apperrors.CodeNotYourTurn {
		t.Fatalf("Code = %s, want %s", domainErr.Code, apperrors.CodeNotYourTurn)
	}

	current, err := e.State(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("State() error = %v, want nil", err)
	}
	if current.Version != 5 {
		t.Fatalf("Version = %d, want 5 after rejection", current.Version)
	}
}

func TestConcurrentSubmissionsOneWinner(t *testing.T) {
	e := newTestEngine(t)
	startGame(t, e, "game-1")

	const racers = 4
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := playerCmd("game-1", command.TypePassUpcard, "bob",
				"pass-"+string(rune('a'+i)), 5, nil)
			_, results[i] = e.Submit(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		var conflict *storage.VersionConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	current, err := e.State(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("State() error = %v, want nil", err)
	}
	if current.Version != 6 {
		t.Fatalf("Version = %d, want 6", current.Version)
	}
}

func TestSnapshotMaintenanceAndReplayVerification(t *testing.T) {
	e := newTestEngine(t, WithSnapshotInterval(5))
	startGame(t, e, "game-1")

	// Crossing the interval at version 5 saved a snapshot; play a few more
	// moves so replay has a tail past it.
	mustSubmit(t, e, playerCmd("game-1", command.TypePassUpcard, "bob", "pass-b", 5, nil))
	mustSubmit(t, e, playerCmd("game-1", command.TypePassUpcard, "alice", "pass-a", 6, nil))

	report, err := e.VerifyReplay(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("VerifyReplay() error = %v, want nil", err)
	}
	if !report.Match {
		t.Fatalf("replay mismatch: scratch %s vs snapshot %s", report.ScratchHash, report.SnapshotHash)
	}
	if report.Version != 7 {
		t.Fatalf("report.Version = %d, want 7", report.Version)
	}
}

func TestStateUnknownGame(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.State(context.Background(), "no-such-game")
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("State() error = %v, want *apperrors.Error", err)
	}
	if domainErr.Code != apperrors.CodeNotFound {
		t.Fatalf("Code = %s, want %s", domainErr.Code, apperrors.CodeNotFound)
	}
}

func TestCreateGameMintsUniqueIDs(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.CreateGame(context.Background())
	if err != nil {
		t.Fatalf("CreateGame() error = %v, want nil", err)
	}
	second, err := e.CreateGame(context.Background())
	if err != nil {
		t.Fatalf("CreateGame() error = %v, want nil", err)
	}
	if first == "" || first == second {
		t.Fatalf("ids %q and %q are not unique", first, second)
	}
}
