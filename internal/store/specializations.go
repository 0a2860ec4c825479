package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stewardbot/steward/internal/core"
)

// GetSpecialization returns the persona with the given name.
// Returns nil, nil if not found.
func (db *DB) GetSpecialization(ctx context.Context, name string) (*core.Specialization, error) {
	var s core.Specialization
	err := db.QueryRowContext(ctx,
		`SELECT name, instructions, protected FROM specializations WHERE name = ?`, name,
	).Scan(&s.Name, &s.Instructions, &s.Protected)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSpecializations returns all personas ordered by name.
func (db *DB) ListSpecializations(ctx context.Context) ([]core.Specialization, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, instructions, protected FROM specializations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Specialization
	for rows.Next() {
		var s core.Specialization
		if err := rows.Scan(&s.Name, &s.Instructions, &s.Protected); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetSpecialization creates or updates a persona. Protected seeds keep their
// protected flag; their instructions may still be updated.
func (db *DB) SetSpecialization(ctx context.Context, name, instructions string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO specializations (name, instructions) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET instructions = excluded.instructions`,
		name, instructions,
	)
	return err
}

// DeleteSpecialization removes a persona. Protected personas cannot be removed.
func (db *DB) DeleteSpecialization(ctx context.Context, name string) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM specializations WHERE name = ? AND protected = 0`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("specialization %q not found or protected", name)
	}
	return nil
}
