package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Snippet is a stored unit of synthesized knowledge about the user.
type Snippet struct {
	ID              string         `json:"id"`
	Topic           string         `json:"topic"`
	Content         string         `json:"content"`
	Source          string         `json:"source"`
	Confidence      float64        `json:"confidence"`
	RelatedEntities map[string]any `json:"related_entities"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// InsertSnippet stores a new snippet.
func (db *DB) InsertSnippet(ctx context.Context, s Snippet) error {
	entities, err := json.Marshal(s.RelatedEntities)
	if err != nil {
		return fmt.Errorf("encoding related entities: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO knowledge_snippets (id, topic, content, source, confidence, related_entities, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Topic, s.Content, s.Source, s.Confidence, string(entities),
		s.LastUpdated.UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateSnippet replaces content, confidence, and related entities of an
// existing snippet and refreshes its timestamp.
func (db *DB) UpdateSnippet(ctx context.Context, s Snippet) error {
	entities, err := json.Marshal(s.RelatedEntities)
	if err != nil {
		return fmt.Errorf("encoding related entities: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`UPDATE knowledge_snippets
		 SET content = ?, confidence = ?, related_entities = ?, last_updated = ?
		 WHERE id = ?`,
		s.Content, s.Confidence, string(entities),
		s.LastUpdated.UTC().Format(time.RFC3339), s.ID,
	)
	return err
}

// ListSnippets returns up to limit snippets, most recently updated first.
func (db *DB) ListSnippets(ctx context.Context, limit int) ([]Snippet, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, topic, content, source, confidence, related_entities, last_updated
		 FROM knowledge_snippets ORDER BY last_updated DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnippets(rows)
}

// FindSnippetsByTopic returns snippets whose topic contains the given string,
// case-insensitive, up to limit.
func (db *DB) FindSnippetsByTopic(ctx context.Context, topic string, limit int) ([]Snippet, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, topic, content, source, confidence, related_entities, last_updated
		 FROM knowledge_snippets
		 WHERE instr(lower(topic), lower(?)) > 0
		 ORDER BY last_updated DESC LIMIT ?`, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnippets(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSnippets(rows rowScanner) ([]Snippet, error) {
	var out []Snippet
	for rows.Next() {
		var s Snippet
		var entities, updated string
		if err := rows.Scan(&s.ID, &s.Topic, &s.Content, &s.Source, &s.Confidence, &entities, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(entities), &s.RelatedEntities); err != nil {
			return nil, fmt.Errorf("decoding related entities for %s: %w", s.ID, err)
		}
		t, err := time.Parse(time.RFC3339, updated)
		if err != nil {
			// CURRENT_TIMESTAMP default writes "2006-01-02 15:04:05".
			t, err = time.Parse("2006-01-02 15:04:05", updated)
			if err != nil {
				return nil, fmt.Errorf("parsing last_updated for %s: %w", s.ID, err)
			}
		}
		s.LastUpdated = t
		out = append(out, s)
	}
	return out, rows.Err()
}
