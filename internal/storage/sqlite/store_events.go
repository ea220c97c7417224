package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/platform/id"
	"github.com/louisbranch/meldtable/internal/storage"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = "game_id, seq, event_id, timestamp, event_type, actor_type, actor_id, request_id, payload_json"

// Append atomically appends one event at expectedVersion+1.
//
// The whole check-and-append runs inside a single transaction: read the
// cached tail, compare it against the caller's expected version, insert at
// tail+1, and advance the tail. SQLite serializes writers, so no two
// concurrent appends can both observe the same tail and both commit.
func (s *Store) Append(ctx context.Context, evt event.Event, expectedVersion uint64) (event.Event, error) {
	stored, err := s.AppendBatch(ctx, []event.Event{evt}, expectedVersion)
	if err != nil {
		return event.Event{}, err
	}
	return stored[0], nil
}

// AppendBatch appends the events of one decision contiguously under a
// single version check. When the anchor request id is already in the
// journal the batch is an idempotent replay: the originally stored anchor
// event is returned alone and nothing is appended.
func (s *Store) AppendBatch(ctx context.Context, events []event.Event, expectedVersion uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event is required")
	}

	gameID := strings.TrimSpace(events[0].GameID)
	validated := make([]event.Event, len(events))
	for i, evt := range events {
		if strings.TrimSpace(evt.GameID) != gameID {
			return nil, fmt.Errorf("event %d belongs to game %q, batch is for %q", i, evt.GameID, gameID)
		}
		v, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if v.ID == "" {
			newID, err := id.NewID()
			if err != nil {
				return nil, fmt.Errorf("generate event id: %w", err)
			}
			v.ID = newID
		}
		validated[i] = v
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	requestID := validated[0].RequestID
	if requestID != "" {
		original, err := eventByRequestIDTx(ctx, tx, gameID, requestID)
		if err == nil {
			return []event.Event{original}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	tail, err := tailVersionTx(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	if tail != expectedVersion {
		return nil, &storage.VersionConflictError{
			GameID:          gameID,
			ExpectedVersion: expectedVersion,
			ServerVersion:   tail,
		}
	}

	for i := range validated {
		validated[i].Seq = tail + uint64(i) + 1
		evt := validated[i]
		_, err := tx.ExecContext(ctx,
			"INSERT INTO game_events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			evt.GameID, int64(evt.Seq), evt.ID, toMillis(evt.Timestamp),
			string(evt.Type), string(evt.ActorType), evt.ActorID, evt.RequestID, evt.PayloadJSON,
		)
		if err != nil {
			// The unique request index backstops idempotency when two
			// retries race past the pre-check.
			if isConstraintError(err) && requestID != "" {
				original, lookupErr := s.EventByRequestID(ctx, gameID, requestID)
				if lookupErr == nil {
					return []event.Event{original}, nil
				}
			}
			return nil, fmt.Errorf("append event: %w", err)
		}
	}

	newTail := tail + uint64(len(validated))
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO game_tails (game_id, version) VALUES (?, ?) ON CONFLICT (game_id) DO UPDATE SET version = excluded.version",
		gameID, int64(newTail),
	); err != nil {
		return nil, fmt.Errorf("advance tail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return validated, nil
}

// EventByRequestID returns the event appended for a request id.
func (s *Store) EventByRequestID(ctx context.Context, gameID, requestID string) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(requestID) == "" {
		return event.Event{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM game_events WHERE game_id = ? AND request_id = ?",
		gameID, requestID,
	)
	return scanEvent(row)
}

// EventsSince returns events with sequence greater than fromVersion.
func (s *Store) EventsSince(ctx context.Context, gameID string, fromVersion uint64) ([]event.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM game_events WHERE game_id = ? AND seq > ? ORDER BY seq ASC",
		gameID, int64(fromVersion),
	)
}

// EventsInRange returns events with fromSeq <= sequence <= toSeq.
func (s *Store) EventsInRange(ctx context.Context, gameID string, fromSeq, toSeq uint64) ([]event.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM game_events WHERE game_id = ? AND seq >= ? AND seq <= ? ORDER BY seq ASC",
		gameID, int64(fromSeq), int64(toSeq),
	)
}

// AllEvents returns a game's full journal in sequence order.
func (s *Store) AllEvents(ctx context.Context, gameID string) ([]event.Event, error) {
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM game_events WHERE game_id = ? ORDER BY seq ASC",
		gameID,
	)
}

// TailVersion returns the latest sequence number for a game.
func (s *Store) TailVersion(ctx context.Context, gameID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	return tailVersionTx(ctx, tx, gameID)
}

// GameIDs lists every game with at least one event.
func (s *Store) GameIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT game_id FROM game_tails ORDER BY game_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list game ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var gameID string
		if err := rows.Scan(&gameID); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, gameID)
	}
	return ids, rows.Err()
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func tailVersionTx(ctx context.Context, tx *sql.Tx, gameID string) (uint64, error) {
	var version int64
	err := tx.QueryRowContext(ctx,
		"SELECT version FROM game_tails WHERE game_id = ?", gameID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read tail version: %w", err)
	}
	return uint64(version), nil
}

func eventByRequestIDTx(ctx context.Context, tx *sql.Tx, gameID, requestID string) (event.Event, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM game_events WHERE game_id = ? AND request_id = ?",
		gameID, requestID,
	)
	return scanEvent(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var (
		evt       event.Event
		seq       int64
		timestamp int64
		eventType string
		actorType string
	)
	err := row.Scan(&evt.GameID, &seq, &evt.ID, &timestamp, &eventType, &actorType,
		&evt.ActorID, &evt.RequestID, &evt.PayloadJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
