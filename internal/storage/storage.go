// Package storage defines the persistence boundary for game journals and
// snapshots.
//
// The event journal is the single source of truth; everything else in the
// system is derived from it. Only Append and AppendBatch may write events,
// and both run the optimistic version check, so there is no write path that
// can bypass concurrency control.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/meldtable/internal/game/event"
	apperrors "github.com/louisbranch/meldtable/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// VersionConflictError reports that an append lost the optimistic version
// race: the journal tail moved past the caller's expected version. It is an
// expected recoverable outcome, not a fault; callers resync against
// ServerVersion and retry.
type VersionConflictError struct {
	GameID          string
	ExpectedVersion uint64
	ServerVersion   uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict for game %s: expected %d, server at %d",
		e.GameID, e.ExpectedVersion, e.ServerVersion)
}

// Snapshot is a materialized game state checkpoint derived from the journal.
// Snapshots are accelerators for replay, not the source of authority: a
// missing or stale snapshot only costs replay time.
type Snapshot struct {
	GameID    string
	Seq       uint64
	StateJSON []byte
	StateHash string
	CreatedAt time.Time
}

// EventStore owns the append-only journal boundary.
type EventStore interface {
	// Append atomically appends one event at expectedVersion+1. It returns
	// the stored event with sequence, id, and timestamp assigned. A stale
	// expected version returns *VersionConflictError. A request id already
	// present in the journal returns the originally stored event with no
	// second append, regardless of payload.
	Append(ctx context.Context, evt event.Event, expectedVersion uint64) (event.Event, error)
	// AppendBatch appends several events of one decision contiguously under
	// a single version check. Idempotency is anchored on the first event's
	// request id.
	AppendBatch(ctx context.Context, events []event.Event, expectedVersion uint64) ([]event.Event, error)
	// EventByRequestID returns the event appended for a request id, or
	// ErrNotFound.
	EventByRequestID(ctx context.Context, gameID, requestID string) (event.Event, error)
	// EventsSince returns events with sequence greater than fromVersion,
	// ascending.
	EventsSince(ctx context.Context, gameID string, fromVersion uint64) ([]event.Event, error)
	// EventsInRange returns events with fromSeq <= sequence <= toSeq,
	// ascending.
	EventsInRange(ctx context.Context, gameID string, fromSeq, toSeq uint64) ([]event.Event, error)
	// AllEvents returns a game's full journal in sequence order.
	AllEvents(ctx context.Context, gameID string) ([]event.Event, error)
	// TailVersion returns the latest sequence number for a game, 0 when the
	// journal is empty.
	TailVersion(ctx context.Context, gameID string) (uint64, error)
	// GameIDs lists every game with at least one event.
	GameIDs(ctx context.Context) ([]string, error)
}

// SnapshotStore persists replay checkpoints.
type SnapshotStore interface {
	// SaveSnapshot upserts a snapshot by (game id, seq) and prunes older
	// snapshots past the retention cap.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// LatestSnapshot returns the newest snapshot for a game, or ErrNotFound.
	LatestSnapshot(ctx context.Context, gameID string) (Snapshot, error)
	// SnapshotAtOrBelow returns the newest snapshot with seq <= maxSeq, or
	// ErrNotFound.
	SnapshotAtOrBelow(ctx context.Context, gameID string, maxSeq uint64) (Snapshot, error)
}

// Store is the composite persistence interface the engine wires against.
type Store interface {
	EventStore
	SnapshotStore
	Close() error
}
