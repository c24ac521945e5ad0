// Package store persists published posts, the chapter counter, and story
// prompt templates in a single SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle shared by all repositories
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and bootstraps the schema
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tweets (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tweet_id    TEXT NOT NULL,
		content     TEXT NOT NULL,
		media_id    TEXT,
		media_url   TEXT,
		chapter     INTEGER,
		caption     TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tweets_created ON tweets(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_tweets_tweet_id ON tweets(tweet_id);

	CREATE TABLE IF NOT EXISTS chapters (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		current_chapter INTEGER NOT NULL DEFAULT 1,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS story_prompts (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		type           TEXT NOT NULL DEFAULT 'STORY',
		system_message TEXT NOT NULL,
		user_prompt    TEXT NOT NULL,
		is_active      INTEGER NOT NULL DEFAULT 0,
		name           TEXT,
		description    TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_story_prompts_type_active ON story_prompts(type, is_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
