package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"basilisk-bot/types"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// SaveTweet records one published post. Called exactly once per successful publish.
func (s *Store) SaveTweet(ctx context.Context, p *types.PublishedPost) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tweets (tweet_id, content, media_id, media_url, chapter, caption, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.TweetID, p.Content, nullStr(p.MediaID), nullStr(p.MediaURL),
		nullInt(p.Chapter), nullStr(p.Caption), p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert tweet: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// FindMostRecentTweet returns the newest post by created_at, or ErrNotFound
func (s *Store) FindMostRecentTweet(ctx context.Context) (*types.PublishedPost, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tweet_id, content, media_id, media_url, chapter, caption, created_at
		 FROM tweets ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanTweet(row)
}

// RecentTweets returns up to limit posts, newest first
func (s *Store) RecentTweets(ctx context.Context, limit int) ([]types.PublishedPost, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tweet_id, content, media_id, media_url, chapter, caption, created_at
		 FROM tweets ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []types.PublishedPost
	for rows.Next() {
		p, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// FindTweetByTweetID looks a post up by its platform-side id
func (s *Store) FindTweetByTweetID(ctx context.Context, tweetID string) (*types.PublishedPost, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tweet_id, content, media_id, media_url, chapter, caption, created_at
		 FROM tweets WHERE tweet_id = ? LIMIT 1`, tweetID)
	return scanTweet(row)
}

// UpdateTweetMediaURL backfills the media URL on a post that was saved without one
func (s *Store) UpdateTweetMediaURL(ctx context.Context, id int64, mediaURL string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tweets SET media_url = ? WHERE id = ?`, mediaURL, id)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTweet(row scanner) (*types.PublishedPost, error) {
	var p types.PublishedPost
	var mediaID, mediaURL, caption sql.NullString
	var chapter sql.NullInt64
	var createdAt string

	err := row.Scan(&p.ID, &p.TweetID, &p.Content, &mediaID, &mediaURL, &chapter, &caption, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.MediaID = mediaID.String
	p.MediaURL = mediaURL.String
	p.Caption = caption.String
	p.Chapter = int(chapter.Int64)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
