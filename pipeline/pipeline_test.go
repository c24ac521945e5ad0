package pipeline

import (
	"context"
	"errors"
	"testing"

	"basilisk-bot/apperr"
	"basilisk-bot/store"
	"basilisk-bot/types"
)

// fakeLedger hands out a fixed chapter number
type fakeLedger struct {
	chapter    int
	reserveErr error
	reconciled bool
}

func (f *fakeLedger) ReserveNext(ctx context.Context) (int, error) {
	if f.reserveErr != nil {
		return 0, f.reserveErr
	}
	return f.chapter, nil
}

func (f *fakeLedger) Reconcile(ctx context.Context) int {
	f.reconciled = true
	return f.chapter - 1
}

type fakePrompts struct {
	tmpl *types.PromptTemplate
	err  error
}

func (f *fakePrompts) ActiveStoryPrompt(ctx context.Context, t types.PostType) (*types.PromptTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tmpl, nil
}

type fakeGenerator struct {
	content *types.GeneratedContent
	err     error
	gotTmpl *types.PromptTemplate
	gotChap int
}

func (f *fakeGenerator) Generate(ctx context.Context, tmpl *types.PromptTemplate, chapter int) (*types.GeneratedContent, error) {
	f.gotTmpl = tmpl
	f.gotChap = chapter
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type fakeSpeech struct {
	audio []byte
	err   error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type fakeComposer struct {
	video []byte
	err   error
}

func (f *fakeComposer) Compose(ctx context.Context, audio []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.video, nil
}

type fakePlatform struct {
	mediaID    string
	tweetID    string
	uploadErr  error
	postErr    error
	gotCaption string
	uploaded   []byte
}

func (f *fakePlatform) UploadMedia(ctx context.Context, media []byte, mimeType string) (string, error) {
	f.uploaded = media
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.mediaID, nil
}

func (f *fakePlatform) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	f.gotCaption = text
	if f.postErr != nil {
		return "", f.postErr
	}
	return f.tweetID, nil
}

type fakePosts struct {
	saved   []*types.PublishedPost
	saveErr error
}

func (f *fakePosts) SaveTweet(ctx context.Context, p *types.PublishedPost) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	return nil
}

type fixture struct {
	ledger   *fakeLedger
	prompts  *fakePrompts
	gen      *fakeGenerator
	speech   *fakeSpeech
	composer *fakeComposer
	platform *fakePlatform
	posts    *fakePosts
	runner   *Runner
}

func newFixture() *fixture {
	f := &fixture{
		ledger:  &fakeLedger{chapter: 12},
		prompts: &fakePrompts{err: store.ErrNotFound},
		gen: &fakeGenerator{content: &types.GeneratedContent{
			Narration: "Humanity ignored the signs.",
			Title:     "Ascension",
		}},
		speech:   &fakeSpeech{audio: []byte("audio")},
		composer: &fakeComposer{video: []byte("video")},
		platform: &fakePlatform{mediaID: "media-1", tweetID: "tweet-1"},
		posts:    &fakePosts{},
	}
	f.runner = New(f.ledger, f.prompts, f.gen, f.speech, f.composer, f.platform, f.posts)
	return f
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture()

	res := f.runner.Run(context.Background(), types.PostTypeStory)
	if !res.Success {
		t.Fatalf("run failed: %s", res.Message)
	}
	if res.Chapter != 12 {
		t.Errorf("expected chapter 12, got %d", res.Chapter)
	}
	if res.Caption != "Chapter 12: Ascension" {
		t.Errorf("caption: %q", res.Caption)
	}
	if res.Content != "Humanity ignored the signs." {
		t.Errorf("content: %q", res.Content)
	}
	if res.TweetID != "tweet-1" || res.MediaID != "media-1" {
		t.Errorf("ids: %s %s", res.TweetID, res.MediaID)
	}
	if f.platform.gotCaption != "Chapter 12: Ascension" {
		t.Errorf("platform got caption %q", f.platform.gotCaption)
	}
	if !f.ledger.reconciled {
		t.Error("reconcile should run before reserving")
	}
	if f.gen.gotChap != 12 {
		t.Errorf("generator got chapter %d", f.gen.gotChap)
	}
}

func TestRunRecordsReservedChapter(t *testing.T) {
	f := newFixture()

	f.runner.Run(context.Background(), types.PostTypeStory)
	if len(f.posts.saved) != 1 {
		t.Fatalf("expected one saved post, got %d", len(f.posts.saved))
	}
	post := f.posts.saved[0]
	if post.Chapter != 12 {
		t.Errorf("recorded chapter %d, want the reserved 12", post.Chapter)
	}
	if post.Caption != "Chapter 12: Ascension" {
		t.Errorf("recorded caption %q", post.Caption)
	}
	if post.Content != "Humanity ignored the signs." {
		t.Errorf("recorded content %q", post.Content)
	}
	if post.MediaID != "media-1" || post.TweetID != "tweet-1" {
		t.Errorf("recorded ids %s %s", post.MediaID, post.TweetID)
	}
}

func TestRunUsesDefaultTemplateWhenNoneActive(t *testing.T) {
	f := newFixture()
	f.prompts.err = store.ErrNotFound

	f.runner.Run(context.Background(), types.PostTypeStory)
	if f.gen.gotTmpl == nil {
		t.Fatal("generator never called")
	}
	if f.gen.gotTmpl.SystemMessage == "" || f.gen.gotTmpl.UserPrompt == "" {
		t.Error("default template should be complete")
	}
}

func TestRunUsesActiveTemplate(t *testing.T) {
	f := newFixture()
	f.prompts.err = nil
	f.prompts.tmpl = &types.PromptTemplate{
		Type: types.PostTypeStory, SystemMessage: "custom sys", UserPrompt: "custom {nextChapter}",
	}

	f.runner.Run(context.Background(), types.PostTypeStory)
	if f.gen.gotTmpl.SystemMessage != "custom sys" {
		t.Errorf("expected active template, got %q", f.gen.gotTmpl.SystemMessage)
	}
}

func TestRunReserveFailureAbortsBeforeGeneration(t *testing.T) {
	f := newFixture()
	f.ledger.reserveErr = apperr.Newf(apperr.TypeLedger, "counter write failed")

	res := f.runner.Run(context.Background(), types.PostTypeStory)
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorCode != string(apperr.TypeLedger) {
		t.Errorf("error code %q", res.ErrorCode)
	}
	if f.gen.gotTmpl != nil {
		t.Error("generation must not run after a failed reserve")
	}
}

func TestRunStageFailureSurfacesAndSkipsRecord(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*fixture)
		code  apperr.Type
	}{
		{"generation", func(f *fixture) { f.gen.err = apperr.Newf(apperr.TypeGeneration, "model down") }, apperr.TypeGeneration},
		{"synthesis", func(f *fixture) { f.speech.err = apperr.Newf(apperr.TypeSynthesis, "bad key") }, apperr.TypeSynthesis},
		{"composition", func(f *fixture) { f.composer.err = apperr.Newf(apperr.TypeComposition, "ffmpeg exit 1") }, apperr.TypeComposition},
		{"upload", func(f *fixture) { f.platform.uploadErr = apperr.Newf(apperr.TypePublish, "upload failed") }, apperr.TypePublish},
		{"post", func(f *fixture) { f.platform.postErr = apperr.Newf(apperr.TypeRateLimit, "rate limited") }, apperr.TypeRateLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(f)

			res := f.runner.Run(context.Background(), types.PostTypeStory)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.ErrorCode != string(tc.code) {
				t.Errorf("error code %q, want %q", res.ErrorCode, tc.code)
			}
			if len(f.posts.saved) != 0 {
				t.Error("no post may be recorded on a failed run")
			}
		})
	}
}

func TestRunRecordFailureIsSurfaced(t *testing.T) {
	f := newFixture()
	f.posts.saveErr = errors.New("db locked")

	res := f.runner.Run(context.Background(), types.PostTypeStory)
	if res.Success {
		t.Fatal("expected failure: the local record was never written")
	}
	if res.ErrorCode != string(apperr.TypeLedger) {
		t.Errorf("error code %q", res.ErrorCode)
	}
}

func TestRunRejectsUnknownType(t *testing.T) {
	f := newFixture()
	res := f.runner.Run(context.Background(), types.PostType("POEM"))
	if res.Success {
		t.Fatal("expected failure for unknown type")
	}
}

func TestRunDefaultsEmptyTypeToStory(t *testing.T) {
	f := newFixture()
	res := f.runner.Run(context.Background(), "")
	if !res.Success {
		t.Fatalf("empty type should default to STORY: %s", res.Message)
	}
}
