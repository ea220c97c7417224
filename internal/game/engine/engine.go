// Package engine orchestrates command handling for games.
//
// The engine is the single write path: it validates the command envelope,
// serializes submissions per game, answers idempotent retries from the
// journal, runs the rules decider, and appends accepted events under the
// optimistic version check. Reads come from the same replay pipeline used
// for writes, so clients and the decider always see the same state.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/meldtable/internal/game/command"
	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/game/rules"
	"github.com/louisbranch/meldtable/internal/game/state"
	apperrors "github.com/louisbranch/meldtable/internal/platform/errors"
	"github.com/louisbranch/meldtable/internal/platform/id"
	"github.com/louisbranch/meldtable/internal/storage"
)

// DefaultSnapshotInterval is how many journal events pass between snapshots.
const DefaultSnapshotInterval = 20

// Engine coordinates command validation, decision, and persistence.
type Engine struct {
	store            storage.Store
	commands         *command.Registry
	decider          *rules.Decider
	logger           *log.Logger
	tracer           trace.Tracer
	locks            *keyMutex
	snapshotInterval uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSnapshotInterval overrides the snapshot cadence.
func WithSnapshotInterval(interval uint64) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.snapshotInterval = interval
		}
	}
}

// WithDecider overrides the rules decider, mainly for fixed-seed tests.
func WithDecider(decider *rules.Decider) Option {
	return func(e *Engine) { e.decider = decider }
}

// New creates an engine over the given store.
func New(store storage.Store, commands *command.Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if commands == nil {
		return nil, fmt.Errorf("command registry is required")
	}
	e := &Engine{
		store:            store,
		commands:         commands,
		decider:          rules.NewDecider(nil),
		logger:           log.Default(),
		tracer:           otel.Tracer("meldtable/engine"),
		locks:            newKeyMutex(),
		snapshotInterval: DefaultSnapshotInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Result captures the outcome of an accepted or replayed submission.
type Result struct {
	// Events are the journal events this submission produced. On an
	// idempotent replay this holds the originally stored anchor event.
	Events []event.Event
	// State is the game state after the events, as seen by the journal tail.
	State *state.GameState
	// Replayed reports whether the request id had already been processed.
	Replayed bool
}

// CreateGame mints a fresh game id. The journal stays empty until the first
// join; an untouched game is indistinguishable from one that never existed.
func (e *Engine) CreateGame(ctx context.Context) (string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	gameID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("mint game id: %w", err)
	}
	return gameID, nil
}

// Submit runs one command through validation, decision, and append.
//
// Outcomes:
//   - accepted: events appended, Result carries them and the new state
//   - idempotent replay: Result carries the original event, Replayed=true
//   - version conflict: *storage.VersionConflictError
//   - rule rejection: *apperrors.Error carrying the rejection code
func (e *Engine) Submit(ctx context.Context, cmd command.Command) (Result, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}
	if e == nil || e.store == nil {
		return Result{}, fmt.Errorf("engine is not configured")
	}

	validated, err := e.commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, err
	}
	cmd = validated

	ctx, span := e.tracer.Start(ctx, "engine.Submit",
		trace.WithAttributes(
			attribute.String("game.id", cmd.GameID),
			attribute.String("command.type", string(cmd.Type)),
		))
	defer span.End()

	unlock := e.locks.lock(cmd.GameID)
	defer unlock()

	if cmd.RequestID != "" {
		original, err := e.store.EventByRequestID(ctx, cmd.GameID, cmd.RequestID)
		if err == nil {
			span.SetAttributes(attribute.Bool("command.replayed", true))
			current, err := e.loadState(ctx, cmd.GameID)
			if err != nil {
				return Result{}, err
			}
			return Result{Events: []event.Event{original}, State: current, Replayed: true}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return Result{}, fmt.Errorf("look up request id: %w", err)
		}
	}

	current, err := e.loadState(ctx, cmd.GameID)
	if err != nil {
		return Result{}, err
	}
	if cmd.ExpectedVersion != current.Version {
		return Result{}, &storage.VersionConflictError{
			GameID:          cmd.GameID,
			ExpectedVersion: cmd.ExpectedVersion,
			ServerVersion:   current.Version,
		}
	}

	decision, err := e.decider.Decide(current, cmd)
	if err != nil {
		return Result{}, fmt.Errorf("decide command: %w", err)
	}
	if len(decision.Rejections) > 0 {
		rejection := decision.Rejections[0]
		span.SetAttributes(attribute.String("command.rejection", rejection.Code))
		return Result{}, apperrors.New(apperrors.Code(rejection.Code), rejection.Message)
	}
	if len(decision.Events) == 0 {
		return Result{}, fmt.Errorf("decision produced no events and no rejections")
	}

	before := current.Version
	stored, err := e.store.AppendBatch(ctx, decision.Events, cmd.ExpectedVersion)
	if err != nil {
		return Result{}, err
	}
	if err := current.ApplyAll(stored); err != nil {
		return Result{}, fmt.Errorf("fold appended events: %w", err)
	}
	e.maybeSnapshot(ctx, current, before)

	span.SetAttributes(attribute.Int64("game.version", int64(current.Version)))
	return Result{Events: stored, State: current}, nil
}

// State replays a game to its current tail.
func (e *Engine) State(ctx context.Context, gameID string) (*state.GameState, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("engine is not configured")
	}
	current, err := e.loadState(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if current.Version == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "game not found",
			map[string]string{"gameId": gameID})
	}
	return current, nil
}

// Events returns a game's journal from fromVersion (exclusive) to the tail.
func (e *Engine) Events(ctx context.Context, gameID string, fromVersion uint64) ([]event.Event, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("engine is not configured")
	}
	return e.store.EventsSince(ctx, gameID, fromVersion)
}

// GameIDs lists every game with at least one journal event.
func (e *Engine) GameIDs(ctx context.Context) ([]string, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("engine is not configured")
	}
	return e.store.GameIDs(ctx)
}

// ReplayReport summarizes a replay verification run.
type ReplayReport struct {
	GameID       string `json:"gameId"`
	Version      uint64 `json:"version"`
	ScratchHash  string `json:"scratchHash"`
	SnapshotHash string `json:"snapshotHash"`
	Match        bool   `json:"match"`
}

// VerifyReplay folds the journal from scratch and through the snapshot path
// and compares the resulting state hashes. A mismatch means a snapshot has
// diverged from the journal and must be discarded.
func (e *Engine) VerifyReplay(ctx context.Context, gameID string) (ReplayReport, error) {
	if e == nil || e.store == nil {
		return ReplayReport{}, fmt.Errorf("engine is not configured")
	}

	events, err := e.store.AllEvents(ctx, gameID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("load journal: %w", err)
	}
	scratch, err := state.Replay(gameID, events)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay from scratch: %w", err)
	}
	scratchHash, err := scratch.Hash()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("hash scratch state: %w", err)
	}

	cached, err := e.loadState(ctx, gameID)
	if err != nil {
		return ReplayReport{}, err
	}
	cachedHash, err := cached.Hash()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("hash snapshot state: %w", err)
	}

	return ReplayReport{
		GameID:       gameID,
		Version:      scratch.Version,
		ScratchHash:  scratchHash,
		SnapshotHash: cachedHash,
		Match:        scratchHash == cachedHash,
	}, nil
}

// loadState rebuilds game state from the newest usable snapshot plus the
// journal tail. A snapshot that fails to decode is treated as absent; the
// journal alone is always sufficient.
func (e *Engine) loadState(ctx context.Context, gameID string) (*state.GameState, error) {
	current := state.New(gameID)

	snap, err := e.store.LatestSnapshot(ctx, gameID)
	switch {
	case err == nil:
		restored := state.New(gameID)
		if err := json.Unmarshal(snap.StateJSON, restored); err != nil {
			e.logger.Printf("game %s: snapshot at seq %d is unreadable, replaying from scratch: %v",
				gameID, snap.Seq, err)
		} else {
			current = restored
			current.Version = snap.Seq
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	tail, err := e.store.EventsSince(ctx, gameID, current.Version)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if err := current.ApplyAll(tail); err != nil {
		return nil, fmt.Errorf("replay events: %w", err)
	}
	return current, nil
}

// maybeSnapshot saves a snapshot when the journal crossed an interval
// boundary. Snapshot failures are logged and swallowed; replay never
// depends on them.
func (e *Engine) maybeSnapshot(ctx context.Context, current *state.GameState, beforeVersion uint64) {
	if current.Version/e.snapshotInterval == beforeVersion/e.snapshotInterval {
		return
	}
	stateJSON, err := json.Marshal(current)
	if err != nil {
		e.logger.Printf("game %s: encode snapshot at seq %d: %v", current.GameID, current.Version, err)
		return
	}
	hash, err := current.Hash()
	if err != nil {
		e.logger.Printf("game %s: hash snapshot at seq %d: %v", current.GameID, current.Version, err)
		return
	}
	err = e.store.SaveSnapshot(ctx, storage.Snapshot{
		GameID:    current.GameID,
		Seq:       current.Version,
		StateJSON: stateJSON,
		StateHash: hash,
	})
	if err != nil {
		e.logger.Printf("game %s: save snapshot at seq %d: %v", current.GameID, current.Version, err)
	}
}

// ConflictMetadata renders a version conflict as response metadata.
func ConflictMetadata(conflict *storage.VersionConflictError) map[string]string {
	return map[string]string{
		"serverVersion": strconv.FormatUint(conflict.ServerVersion, 10),
	}
}
