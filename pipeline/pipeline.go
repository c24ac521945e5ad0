// Package pipeline sequences one content run: reserve chapter, generate text,
// synthesize speech, compose video, publish, record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"basilisk-bot/apperr"
	"basilisk-bot/store"
	"basilisk-bot/story"
	"basilisk-bot/types"
)

// ChapterLedger reserves and reconciles chapter numbers
type ChapterLedger interface {
	ReserveNext(ctx context.Context) (int, error)
	Reconcile(ctx context.Context) int
}

// PromptSource provides the active prompt template for a content type
type PromptSource interface {
	ActiveStoryPrompt(ctx context.Context, t types.PostType) (*types.PromptTemplate, error)
}

// TextGenerator produces narration and a title for a chapter
type TextGenerator interface {
	Generate(ctx context.Context, tmpl *types.PromptTemplate, chapter int) (*types.GeneratedContent, error)
}

// SpeechSynthesizer converts narration text to audio
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// MediaComposer turns narration audio into a publishable video
type MediaComposer interface {
	Compose(ctx context.Context, audio []byte) ([]byte, error)
}

// Platform uploads media and creates posts
type Platform interface {
	UploadMedia(ctx context.Context, media []byte, mimeType string) (string, error)
	CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error)
}

// PostRecorder persists the record of a published post
type PostRecorder interface {
	SaveTweet(ctx context.Context, p *types.PublishedPost) error
}

// Runner executes runs strictly sequentially, stage by stage, with no retries.
// Concurrent runs are not serialized here; overlapping triggers race on the
// chapter ledger (known limitation).
type Runner struct {
	ledger    ChapterLedger
	prompts   PromptSource
	generator TextGenerator
	speech    SpeechSynthesizer
	composer  MediaComposer
	platform  Platform
	posts     PostRecorder
}

// New wires a Runner from its collaborators
func New(ledger ChapterLedger, prompts PromptSource, generator TextGenerator,
	speech SpeechSynthesizer, composer MediaComposer, platform Platform, posts PostRecorder) *Runner {
	return &Runner{
		ledger:    ledger,
		prompts:   prompts,
		generator: generator,
		speech:    speech,
		composer:  composer,
		platform:  platform,
		posts:     posts,
	}
}

// Run executes one full run and always returns a structured result; errors
// never escape this boundary.
func (r *Runner) Run(ctx context.Context, t types.PostType) *types.RunResult {
	result, err := r.run(ctx, t)
	if err != nil {
		log.Printf("[pipeline] ❌ Run failed: %v", err)
		return &types.RunResult{
			Success:   false,
			Message:   err.Error(),
			ErrorCode: string(apperr.TypeOf(err)),
		}
	}
	return result
}

func (r *Runner) run(ctx context.Context, t types.PostType) (*types.RunResult, error) {
	if t == "" {
		t = types.PostTypeStory
	}
	if !t.Valid() {
		return nil, apperr.Newf(apperr.TypeGeneration, "unknown content type %q", t)
	}

	log.Printf("[pipeline] Starting %s run", t)

	// Self-heal the counter against what actually made it onto the platform,
	// then durably reserve this run's chapter number.
	r.ledger.Reconcile(ctx)
	chapter, err := r.ledger.ReserveNext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve chapter: %w", err)
	}
	log.Printf("[pipeline] Reserved chapter %d", chapter)

	tmpl := r.activeTemplate(ctx, t)

	content, err := r.generator.Generate(ctx, tmpl, chapter)
	if err != nil {
		return nil, fmt.Errorf("generate chapter %d: %w", chapter, err)
	}
	caption := fmt.Sprintf("Chapter %d: %s", chapter, content.Title)

	audio, err := r.speech.Synthesize(ctx, content.Narration)
	if err != nil {
		return nil, fmt.Errorf("synthesize chapter %d: %w", chapter, err)
	}

	video, err := r.composer.Compose(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("compose chapter %d: %w", chapter, err)
	}

	mediaID, err := r.platform.UploadMedia(ctx, video, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("upload chapter %d: %w", chapter, err)
	}

	tweetID, err := r.platform.CreatePost(ctx, caption, []string{mediaID})
	if err != nil {
		// The uploaded media is now orphaned on the platform; no
		// compensating delete is attempted.
		return nil, fmt.Errorf("create post for chapter %d (media %s): %w", chapter, mediaID, err)
	}

	post := &types.PublishedPost{
		TweetID: tweetID,
		Content: content.Narration,
		MediaID: mediaID,
		Chapter: chapter,
		Caption: caption,
	}
	if err := r.posts.SaveTweet(ctx, post); err != nil {
		// The platform-side post exists without a local record; the next
		// run's reconciliation recovers the chapter counter from its caption.
		return nil, apperr.New(apperr.TypeLedger,
			fmt.Sprintf("record published post %s", tweetID), err)
	}

	log.Printf("[pipeline] ✅ Chapter %d published: post %s, media %s", chapter, tweetID, mediaID)
	return &types.RunResult{
		Success: true,
		TweetID: tweetID,
		MediaID: mediaID,
		Chapter: chapter,
		Caption: caption,
		Content: content.Narration,
		Message: "story video uploaded and posted successfully",
	}, nil
}

// activeTemplate fetches the active prompt template for the content type,
// falling back to the built-in default when none is active or the store is
// unreadable.
func (r *Runner) activeTemplate(ctx context.Context, t types.PostType) *types.PromptTemplate {
	tmpl, err := r.prompts.ActiveStoryPrompt(ctx, t)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[pipeline] Warning: prompt lookup failed: %v — using default template", err)
		} else {
			log.Printf("[pipeline] No active %s template — using default", t)
		}
		return story.DefaultTemplate(t)
	}
	return tmpl
}
