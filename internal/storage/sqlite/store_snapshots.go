package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/meldtable/internal/storage"
)

// SaveSnapshot upserts a snapshot by (game id, seq) and prunes beyond the
// retention cap.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snapshot.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if snapshot.Seq == 0 {
		return fmt.Errorf("snapshot seq is required")
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_snapshots (game_id, seq, state_json, state_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (game_id, seq) DO UPDATE SET
		   state_json = excluded.state_json,
		   state_hash = excluded.state_hash,
		   created_at = excluded.created_at`,
		snapshot.GameID, int64(snapshot.Seq), snapshot.StateJSON, snapshot.StateHash, toMillis(snapshot.CreatedAt),
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM game_snapshots WHERE game_id = ? AND seq NOT IN (
		   SELECT seq FROM game_snapshots WHERE game_id = ? ORDER BY seq DESC LIMIT ?
		 )`,
		snapshot.GameID, snapshot.GameID, s.snapshotRetention,
	); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for a game.
func (s *Store) LatestSnapshot(ctx context.Context, gameID string) (storage.Snapshot, error) {
	return s.querySnapshot(ctx,
		"SELECT game_id, seq, state_json, state_hash, created_at FROM game_snapshots WHERE game_id = ? ORDER BY seq DESC LIMIT 1",
		gameID,
	)
}

// SnapshotAtOrBelow returns the newest snapshot with seq <= maxSeq.
func (s *Store) SnapshotAtOrBelow(ctx context.Context, gameID string, maxSeq uint64) (storage.Snapshot, error) {
	return s.querySnapshot(ctx,
		"SELECT game_id, seq, state_json, state_hash, created_at FROM game_snapshots WHERE game_id = ? AND seq <= ? ORDER BY seq DESC LIMIT 1",
		gameID, int64(maxSeq),
	)
}

func (s *Store) querySnapshot(ctx context.Context, query string, args ...any) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var (
		snapshot  storage.Snapshot
		seq       int64
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(
		&snapshot.GameID, &seq, &snapshot.StateJSON, &snapshot.StateHash, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	snapshot.Seq = uint64(seq)
	snapshot.CreatedAt = fromMillis(createdAt)
	return snapshot, nil
}
