package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xonecas/spire-advisor/internal/advice"
)

// AdviceEntry is one finished request in the advice log. Code is empty for
// successful requests.
type AdviceEntry struct {
	ID        string
	RequestID string
	Context   string
	Label     string
	Reason    string
	Auto      bool
	Provider  string
	Digest    string
	Code      string
	Summary   string
	Items     []advice.Item
	Raw       string
	Latency   time.Duration
	CreatedAt time.Time
}

// Failed reports whether the entry records a failure.
func (e *AdviceEntry) Failed() bool {
	return e.Code != ""
}

// RecordAdvice appends an entry to the log. A missing ID or timestamp is
// filled in.
func (s *Store) RecordAdvice(e *AdviceEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	items := e.Items
	if items == nil {
		items = []advice.Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO advice_log (id, request_id, context, label, reason, auto, provider, digest, code, summary, items, raw, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RequestID, e.Context, e.Label, e.Reason, e.Auto, e.Provider, e.Digest,
		e.Code, e.Summary, string(itemsJSON), e.Raw, e.Latency.Milliseconds(), e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert advice: %w", err)
	}
	return nil
}

// RecentAdvice returns the most recent limit entries, oldest first.
func (s *Store) RecentAdvice(limit int) ([]*AdviceEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, request_id, context, label, reason, auto, provider, digest, code, summary, items, raw, latency_ms, created_at
		FROM advice_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query advice: %w", err)
	}
	defer rows.Close()

	var entries []*AdviceEntry
	for rows.Next() {
		var e AdviceEntry
		var itemsJSON string
		var latencyMs, createdMs int64
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Context, &e.Label, &e.Reason, &e.Auto, &e.Provider,
			&e.Digest, &e.Code, &e.Summary, &itemsJSON, &e.Raw, &latencyMs, &createdMs); err != nil {
			return nil, fmt.Errorf("scan advice: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsJSON), &e.Items); err != nil {
			return nil, fmt.Errorf("decode items of %s: %w", e.ID, err)
		}
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// CountAdvice returns the number of logged entries.
func (s *Store) CountAdvice() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM advice_log`).Scan(&count)
	return count, err
}

// PruneAdvice keeps only the newest keep entries and returns how many were
// deleted.
func (s *Store) PruneAdvice(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM advice_log
		WHERE id NOT IN (
			SELECT id FROM advice_log ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune advice: %w", err)
	}
	return res.RowsAffected()
}
