package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"basilisk-bot/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndFindMostRecentTweet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := &types.PublishedPost{
		TweetID:   "100",
		Content:   "first story",
		MediaID:   "m1",
		Chapter:   3,
		Caption:   "Chapter 3: X",
		CreatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	newer := &types.PublishedPost{
		TweetID:   "200",
		Content:   "second story",
		MediaID:   "m2",
		Chapter:   5,
		Caption:   "Chapter 5: Y",
		CreatedAt: time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	if err := s.SaveTweet(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := s.SaveTweet(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}

	got, err := s.FindMostRecentTweet(ctx)
	if err != nil {
		t.Fatalf("find most recent: %v", err)
	}
	if got.TweetID != "200" {
		t.Errorf("expected tweet 200, got %s", got.TweetID)
	}
	if got.Chapter != 5 || got.Caption != "Chapter 5: Y" {
		t.Errorf("unexpected chapter/caption: %d %q", got.Chapter, got.Caption)
	}
}

func TestFindMostRecentTweetEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindMostRecentTweet(context.Background())
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTweetMediaURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &types.PublishedPost{TweetID: "1", Content: "c", MediaID: "m"}
	if err := s.SaveTweet(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.UpdateTweetMediaURL(ctx, p.ID, "https://video.example/1.mp4"); err != nil {
		t.Fatalf("update media url: %v", err)
	}
	got, err := s.FindTweetByTweetID(ctx, "1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.MediaURL != "https://video.example/1.mp4" {
		t.Errorf("media url not backfilled: %q", got.MediaURL)
	}
}

func TestChapterCounterRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.FindLatestChapter(ctx); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty counter, got %v", err)
	}

	if err := s.SaveChapter(ctx, 4); err != nil {
		t.Fatalf("save chapter: %v", err)
	}
	if err := s.SaveChapter(ctx, 5); err != nil {
		t.Fatalf("save chapter again: %v", err)
	}

	got, err := s.FindLatestChapter(ctx)
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if got != 5 {
		t.Errorf("expected counter 5, got %d", got)
	}
}

func TestActivatePromptDeactivatesSameTypeOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	story1 := &types.PromptTemplate{Type: types.PostTypeStory, SystemMessage: "s1", UserPrompt: "u1", IsActive: true}
	terror := &types.PromptTemplate{Type: types.PostTypeTerror, SystemMessage: "s2", UserPrompt: "u2", IsActive: true}
	if err := s.CreateStoryPrompt(ctx, story1); err != nil {
		t.Fatalf("create story1: %v", err)
	}
	if err := s.CreateStoryPrompt(ctx, terror); err != nil {
		t.Fatalf("create terror: %v", err)
	}

	// Activating a second STORY prompt must deactivate story1 but leave terror alone
	story2 := &types.PromptTemplate{Type: types.PostTypeStory, SystemMessage: "s3", UserPrompt: "u3", IsActive: true}
	if err := s.CreateStoryPrompt(ctx, story2); err != nil {
		t.Fatalf("create story2: %v", err)
	}

	active, err := s.ActiveStoryPrompt(ctx, types.PostTypeStory)
	if err != nil {
		t.Fatalf("active story prompt: %v", err)
	}
	if active.ID != story2.ID {
		t.Errorf("expected story2 active, got id %d", active.ID)
	}

	activeTerror, err := s.ActiveStoryPrompt(ctx, types.PostTypeTerror)
	if err != nil {
		t.Fatalf("active terror prompt: %v", err)
	}
	if activeTerror.ID != terror.ID {
		t.Errorf("terror prompt should stay active, got id %d", activeTerror.ID)
	}

	all, err := s.ListStoryPrompts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	activeStories := 0
	for _, p := range all {
		if p.Type == types.PostTypeStory && p.IsActive {
			activeStories++
		}
	}
	if activeStories != 1 {
		t.Errorf("expected exactly one active STORY prompt, got %d", activeStories)
	}
}

func TestUpdateStoryPromptActivation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &types.PromptTemplate{Type: types.PostTypeStory, SystemMessage: "a", UserPrompt: "a", IsActive: true}
	b := &types.PromptTemplate{Type: types.PostTypeStory, SystemMessage: "b", UserPrompt: "b"}
	s.CreateStoryPrompt(ctx, a)
	s.CreateStoryPrompt(ctx, b)

	on, off := true, false
	if _, err := s.UpdateStoryPrompt(ctx, b.ID, &types.PromptUpdate{IsActive: &on}); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, err := s.ActiveStoryPrompt(ctx, types.PostTypeStory)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != b.ID {
		t.Errorf("expected b active after update, got %d", active.ID)
	}

	// An update that leaves IsActive unset must not change activation.
	updated, err := s.UpdateStoryPrompt(ctx, b.ID, &types.PromptUpdate{Name: "renamed"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsActive {
		t.Error("activation flipped by an update that did not set is_active")
	}

	// Explicit false deactivates.
	updated, err = s.UpdateStoryPrompt(ctx, b.ID, &types.PromptUpdate{IsActive: &off})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Error("expected b inactive after explicit deactivation")
	}
	if _, err := s.ActiveStoryPrompt(ctx, types.PostTypeStory); err != ErrNotFound {
		t.Errorf("expected no active STORY prompt after deactivation, got %v", err)
	}
}

func TestDeleteStoryPrompt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &types.PromptTemplate{Type: types.PostTypeStory, SystemMessage: "x", UserPrompt: "y"}
	s.CreateStoryPrompt(ctx, p)

	if err := s.DeleteStoryPrompt(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteStoryPrompt(ctx, p.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}
