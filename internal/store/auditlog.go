package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InteractionRecord is one append-only audit entry for a knowledge
// retrieval or synthesis call.
type InteractionRecord struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Kind      string         `json:"kind"`
	Query     string         `json:"query"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata"`
}

// AppendInteraction writes one audit record. The log is append-only; records
// are never updated or deleted by the application.
func (db *DB) AppendInteraction(ctx context.Context, kind, query, summary string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO interaction_log (id, created_at, kind, query, summary, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC().Format(time.RFC3339), kind, query, summary, string(meta),
	)
	return err
}

// RecentInteractions returns the newest audit records, up to limit.
func (db *DB) RecentInteractions(ctx context.Context, limit int) ([]InteractionRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, created_at, kind, query, summary, metadata
		 FROM interaction_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InteractionRecord
	for rows.Next() {
		var r InteractionRecord
		var createdAt, meta string
		if err := rows.Scan(&r.ID, &createdAt, &r.Kind, &r.Query, &r.Summary, &meta); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		_ = json.Unmarshal([]byte(meta), &r.Metadata)
		out = append(out, r)
	}
	return out, rows.Err()
}
