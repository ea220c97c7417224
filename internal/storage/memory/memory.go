// Package memory provides an in-process storage.Store used by tests and by
// server runs that do not need durability. It honors the same version check
// and request id idempotency contract as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/platform/id"
	"github.com/louisbranch/meldtable/internal/storage"
)

const defaultSnapshotRetention = 3

// Store keeps journals and snapshots in maps guarded by a single mutex.
type Store struct {
	mu                sync.Mutex
	registry          *event.Registry
	events            map[string][]event.Event
	snapshots         map[string][]storage.Snapshot
	snapshotRetention int
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshotRetention overrides how many snapshots are kept per game.
func WithSnapshotRetention(retention int) Option {
	return func(s *Store) {
		if retention > 0 {
			s.snapshotRetention = retention
		}
	}
}

// New creates an empty in-memory store. Events appended through it are
// validated against the registry the same way the SQLite store validates.
func New(registry *event.Registry, opts ...Option) *Store {
	s := &Store{
		registry:          registry,
		events:            make(map[string][]event.Event),
		snapshots:         make(map[string][]storage.Snapshot),
		snapshotRetention: defaultSnapshotRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) guard(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Append appends a single event under the optimistic version check.
func (s *Store) Append(ctx context.Context, evt event.Event, expectedVersion uint64) (event.Event, error) {
	stored, err := s.AppendBatch(ctx, []event.Event{evt}, expectedVersion)
	if err != nil {
		return event.Event{}, err
	}
	return stored[0], nil
}

// AppendBatch appends the events of one decision contiguously. The version
// check and the request id replay check both run under the store mutex, so
// concurrent submitters serialize exactly as they would on the database.
func (s *Store) AppendBatch(ctx context.Context, events []event.Event, expectedVersion uint64) ([]event.Event, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event is required")
	}

	gameID := strings.TrimSpace(events[0].GameID)
	for i := range events {
		if strings.TrimSpace(events[i].GameID) != gameID {
			return nil, fmt.Errorf("batch events must share a game id")
		}
	}

	prepared := make([]event.Event, 0, len(events))
	for _, evt := range events {
		validated, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return nil, fmt.Errorf("validate event: %w", err)
		}
		if validated.ID == "" {
			newID, err := id.NewID()
			if err != nil {
				return nil, fmt.Errorf("assign event id: %w", err)
			}
			validated.ID = newID
		}
		prepared = append(prepared, validated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	requestID := strings.TrimSpace(prepared[0].RequestID)
	if requestID != "" {
		for _, existing := range s.events[gameID] {
			if existing.RequestID == requestID {
				return []event.Event{cloneEvent(existing)}, nil
			}
		}
	}

	tail := uint64(len(s.events[gameID]))
	if tail != expectedVersion {
		return nil, &storage.VersionConflictError{
			GameID:          gameID,
			ExpectedVersion: expectedVersion,
			ServerVersion:   tail,
		}
	}

	stored := make([]event.Event, 0, len(prepared))
	for i, evt := range prepared {
		evt.Seq = tail + uint64(i) + 1
		s.events[gameID] = append(s.events[gameID], cloneEvent(evt))
		stored = append(stored, evt)
	}
	return stored, nil
}

// EventByRequestID returns the event appended for a request id.
func (s *Store) EventByRequestID(ctx context.Context, gameID, requestID string) (event.Event, error) {
	if err := s.guard(ctx); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, evt := range s.events[strings.TrimSpace(gameID)] {
		if evt.RequestID == strings.TrimSpace(requestID) && evt.RequestID != "" {
			return cloneEvent(evt), nil
		}
	}
	return event.Event{}, storage.ErrNotFound
}

// EventsSince returns events with sequence greater than fromVersion.
func (s *Store) EventsSince(ctx context.Context, gameID string, fromVersion uint64) ([]event.Event, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Event
	for _, evt := range s.events[strings.TrimSpace(gameID)] {
		if evt.Seq > fromVersion {
			out = append(out, cloneEvent(evt))
		}
	}
	return out, nil
}

// EventsInRange returns events with fromSeq <= seq <= toSeq.
func (s *Store) EventsInRange(ctx context.Context, gameID string, fromSeq, toSeq uint64) ([]event.Event, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Event
	for _, evt := range s.events[strings.TrimSpace(gameID)] {
		if evt.Seq >= fromSeq && evt.Seq <= toSeq {
			out = append(out, cloneEvent(evt))
		}
	}
	return out, nil
}

// AllEvents returns the entire journal for a game in order.
func (s *Store) AllEvents(ctx context.Context, gameID string) ([]event.Event, error) {
	return s.EventsSince(ctx, gameID, 0)
}

// TailVersion returns the latest sequence for a game, 0 when empty.
func (s *Store) TailVersion(ctx context.Context, gameID string) (uint64, error) {
	if err := s.guard(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.events[strings.TrimSpace(gameID)])), nil
}

// GameIDs lists games with at least one event, sorted for stable output.
func (s *Store) GameIDs(ctx context.Context) ([]string, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.events))
	for gameID, journal := range s.events {
		if len(journal) > 0 {
			ids = append(ids, gameID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveSnapshot upserts a snapshot by (game id, seq) and prunes past the
// retention cap.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	gameID := strings.TrimSpace(snap.GameID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	if snap.Seq == 0 {
		return fmt.Errorf("snapshot seq is required")
	}
	snap.GameID = gameID
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.snapshots[gameID]
	replaced := false
	for i := range existing {
		if existing[i].Seq == snap.Seq {
			existing[i] = cloneSnapshot(snap)
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, cloneSnapshot(snap))
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Seq < existing[j].Seq })
	if len(existing) > s.snapshotRetention {
		existing = existing[len(existing)-s.snapshotRetention:]
	}
	s.snapshots[gameID] = existing
	return nil
}

// LatestSnapshot returns the newest snapshot for a game.
func (s *Store) LatestSnapshot(ctx context.Context, gameID string) (storage.Snapshot, error) {
	if err := s.guard(ctx); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.snapshots[strings.TrimSpace(gameID)]
	if len(snaps) == 0 {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	return cloneSnapshot(snaps[len(snaps)-1]), nil
}

// SnapshotAtOrBelow returns the newest snapshot with seq <= maxSeq.
func (s *Store) SnapshotAtOrBelow(ctx context.Context, gameID string, maxSeq uint64) (storage.Snapshot, error) {
	if err := s.guard(ctx); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.snapshots[strings.TrimSpace(gameID)]
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Seq <= maxSeq {
			return cloneSnapshot(snaps[i]), nil
		}
	}
	return storage.Snapshot{}, storage.ErrNotFound
}

// Close releases nothing but satisfies storage.Store.
func (s *Store) Close() error {
	return nil
}

func cloneEvent(evt event.Event) event.Event {
	out := evt
	if evt.PayloadJSON != nil {
		out.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
	}
	return out
}

func cloneSnapshot(snap storage.Snapshot) storage.Snapshot {
	out := snap
	if snap.StateJSON != nil {
		out.StateJSON = append([]byte(nil), snap.StateJSON...)
	}
	return out
}
