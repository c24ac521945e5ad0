package store

import (
	"context"
	"database/sql"
	"time"
)

// FindLatestChapter returns the stored chapter counter, or ErrNotFound if the
// counter row has never been created.
func (s *Store) FindLatestChapter(ctx context.Context) (int, error) {
	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT current_chapter FROM chapters ORDER BY id DESC LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return current, nil
}

// SaveChapter persists the counter as a single-row read-modify-write: the
// existing row is updated in place, or seeded if none exists yet.
func (s *Store) SaveChapter(ctx context.Context, current int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET current_chapter = ?, updated_at = ?
		 WHERE id = (SELECT id FROM chapters ORDER BY id DESC LIMIT 1)`,
		current, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chapters (current_chapter, created_at, updated_at) VALUES (?, ?, ?)`,
		current, now, now)
	return err
}
