// Package ledger keeps the durable "next chapter" counter and reconciles it
// against the chapter numbers that actually made it onto the platform.
package ledger

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strconv"

	"basilisk-bot/apperr"
	"basilisk-bot/store"
	"basilisk-bot/types"
)

// ChapterRepo is the durable counter storage the ledger writes through
type ChapterRepo interface {
	FindLatestChapter(ctx context.Context) (int, error)
	SaveChapter(ctx context.Context, current int) error
}

// PostFinder exposes the published-post history used for reconciliation
type PostFinder interface {
	FindMostRecentTweet(ctx context.Context) (*types.PublishedPost, error)
}

// Ledger reserves and reconciles chapter numbers
type Ledger struct {
	chapters ChapterRepo
	posts    PostFinder
}

// New creates a Ledger over the given repositories
func New(chapters ChapterRepo, posts PostFinder) *Ledger {
	return &Ledger{chapters: chapters, posts: posts}
}

// captionChapter matches the chapter number embedded in a post caption,
// format "Chapter N: <title>".
var captionChapter = regexp.MustCompile(`Chapter (\d+):`)

// ReserveNext reads the counter, increments it, persists, and returns the new
// value. A missing or unreadable counter seeds chapter 1 rather than blocking
// the run; a persistence failure aborts it — the caller must not generate
// content for a chapter number that was never durably reserved.
func (l *Ledger) ReserveNext(ctx context.Context) (int, error) {
	next := 1
	current, err := l.chapters.FindLatestChapter(ctx)
	switch {
	case err == nil:
		next = current + 1
	case errors.Is(err, store.ErrNotFound):
		// first use, seed to 1
	default:
		log.Printf("[ledger] Warning: counter read failed: %v — seeding chapter 1", err)
	}

	if err := l.chapters.SaveChapter(ctx, next); err != nil {
		return 0, apperr.New(apperr.TypeLedger, "persist reserved chapter", err)
	}
	return next, nil
}

// Reconcile returns max(stored counter, chapter parsed from the most recent
// published post) and persists the result when it raises the counter. It never
// lowers the counter and never fails: every read error degrades to a safe
// default, since bookkeeping must not prevent content generation.
func (l *Ledger) Reconcile(ctx context.Context) int {
	stored := 1
	current, err := l.chapters.FindLatestChapter(ctx)
	switch {
	case err == nil:
		stored = current
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Printf("[ledger] Warning: counter read failed during reconcile: %v", err)
	}

	post, err := l.posts.FindMostRecentTweet(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[ledger] Warning: post history read failed: %v — keeping counter %d", err, stored)
		}
		return stored
	}

	published := parseChapter(post)
	if published <= stored {
		return stored
	}

	log.Printf("[ledger] Counter %d behind published chapter %d — raising", stored, published)
	if err := l.chapters.SaveChapter(ctx, published); err != nil {
		log.Printf("[ledger] Warning: could not persist reconciled chapter %d: %v", published, err)
	}
	return published
}

// parseChapter extracts the chapter number from a post, preferring the caption
// over the recorded chapter column.
func parseChapter(post *types.PublishedPost) int {
	if m := captionChapter.FindStringSubmatch(post.Caption); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n
		}
	}
	return post.Chapter
}
