package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoredSnapshot is the last serialized state sent for one context.
type StoredSnapshot struct {
	ID         string
	Context    string
	Digest     string
	Payload    string
	CapturedAt time.Time
}

// StoreSnapshot stores or replaces the snapshot for context.
func (s *Store) StoreSnapshot(context, digest, payload string) error {
	id := uuid.New().String()
	capturedAt := time.Now().UTC().UnixMilli()

	_, err := s.db.Exec(`
		INSERT INTO snapshots (id, context, digest, payload, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(context) DO UPDATE SET
			id = excluded.id,
			digest = excluded.digest,
			payload = excluded.payload,
			captured_at = excluded.captured_at
	`, id, context, digest, payload, capturedAt)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot last stored for context.
func (s *Store) GetSnapshot(context string) (*StoredSnapshot, error) {
	var snap StoredSnapshot
	var capturedAt int64
	err := s.db.QueryRow(`
		SELECT id, context, digest, payload, captured_at
		FROM snapshots
		WHERE context = ?
	`, context).Scan(&snap.ID, &snap.Context, &snap.Digest, &snap.Payload, &capturedAt)
	if err != nil {
		return nil, err
	}
	snap.CapturedAt = time.UnixMilli(capturedAt).UTC()
	return &snap, nil
}

// ListSnapshotContexts returns the contexts that have a stored snapshot.
func (s *Store) ListSnapshotContexts() ([]string, error) {
	rows, err := s.db.Query(`SELECT context FROM snapshots ORDER BY context`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
