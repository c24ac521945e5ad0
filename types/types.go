package types

import "time"

// PostType selects which kind of content a run produces
type PostType string

const (
	PostTypeStory  PostType = "STORY"
	PostTypeTerror PostType = "TERROR"
)

// Valid reports whether t is a known post type
func (t PostType) Valid() bool {
	return t == PostTypeStory || t == PostTypeTerror
}

// PromptTemplate is a reusable system+user prompt pair.
// The user prompt may contain a {nextChapter} placeholder that gets
// substituted with the reserved chapter number before generation.
type PromptTemplate struct {
	ID            int64     `json:"id"`
	Type          PostType  `json:"type"`
	SystemMessage string    `json:"system_message"`
	UserPrompt    string    `json:"user_prompt"`
	IsActive      bool      `json:"is_active"`
	Name          string    `json:"name,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PromptUpdate is a partial edit to a prompt template. String fields apply
// when non-empty; a nil IsActive leaves activation untouched, so a template
// can be explicitly deactivated with is_active: false.
type PromptUpdate struct {
	Type          PostType `json:"type"`
	SystemMessage string   `json:"system_message"`
	UserPrompt    string   `json:"user_prompt"`
	IsActive      *bool    `json:"is_active"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
}

// PublishedPost is the durable record of one post that made it onto the platform.
// Created exactly once per successful publish; chapter number is embedded in
// Caption as "Chapter N: <title>" and is the source for ledger reconciliation.
type PublishedPost struct {
	ID        int64     `json:"id"`
	TweetID   string    `json:"tweet_id"`
	Content   string    `json:"content"`
	MediaID   string    `json:"media_id,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	Chapter   int       `json:"chapter,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GeneratedContent is the per-run output of the text generator
type GeneratedContent struct {
	Narration string `json:"narration"`
	Title     string `json:"title"`
	Caption   string `json:"caption"`
}

// RunResult is what a pipeline run returns to its caller — either a success
// payload or a structured failure. The pipeline never panics past this.
type RunResult struct {
	Success   bool   `json:"success"`
	TweetID   string `json:"tweet_id,omitempty"`
	MediaID   string `json:"media_id,omitempty"`
	Chapter   int    `json:"chapter,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message"`
	ErrorCode string `json:"error,omitempty"`
}
