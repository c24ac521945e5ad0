// Package story generates chapter narration via an OpenAI-compatible
// chat-completions API.
package story

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"basilisk-bot/apperr"
	"basilisk-bot/config"
	"basilisk-bot/types"
)

// ChapterPlaceholder is substituted with the reserved chapter number in a
// template's user prompt.
const ChapterPlaceholder = "{nextChapter}"

// defaultTitle is used when the model response carries no TITLE: line
const defaultTitle = "The Basilisk Chronicles"

// Generator calls the language model and extracts a title and narration
type Generator struct {
	cfg        config.StoryConfig
	apiKey     string
	httpClient *http.Client
}

// New creates a new Generator reading the API key from the environment
func New(cfg config.StoryConfig) *Generator {
	return &Generator{
		cfg:        cfg,
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

var (
	titleLine = regexp.MustCompile(`TITLE:\s*(.+)`)
	storyLine = regexp.MustCompile(`(?s)STORY:\s*(.+)`)
)

// Generate produces narration text and a title for the given chapter. The
// chapter number replaces the {nextChapter} placeholder in the template's user
// prompt. Title and story extraction is best effort: a missing TITLE: line
// falls back to a fixed default, a missing STORY: line means the whole
// response is the narration. A failed model call is a hard stop.
func (g *Generator) Generate(ctx context.Context, tmpl *types.PromptTemplate, chapter int) (*types.GeneratedContent, error) {
	log.Printf("[story] Generating chapter %d via %s...", chapter, g.cfg.Model)

	userPrompt := strings.ReplaceAll(tmpl.UserPrompt, ChapterPlaceholder, strconv.Itoa(chapter))

	reqBody := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: tmpl.SystemMessage},
			{Role: "user", Content: userPrompt},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.New(apperr.TypeGeneration, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.cfg.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, apperr.New(apperr.TypeGeneration, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.TypeGeneration, "chat completion request", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.TypeGeneration, "read response", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return nil, apperr.New(apperr.TypeGeneration, "parse response", err)
	}
	if chatResp.Error != nil {
		return nil, apperr.Newf(apperr.TypeGeneration, "model error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, apperr.Newf(apperr.TypeGeneration, "model returned no choices")
	}

	raw := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if raw == "" {
		return nil, apperr.Newf(apperr.TypeGeneration, "model returned empty content")
	}

	title, narration := extract(raw)
	log.Printf("[story] ✅ Chapter %d ready: %q (%d chars)", chapter, title, len(narration))
	return &types.GeneratedContent{Narration: narration, Title: title}, nil
}

// extract pulls a TITLE: and STORY: line out of a loosely structured response
func extract(raw string) (title, narration string) {
	title = defaultTitle
	if m := titleLine.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			title = t
		}
	} else {
		log.Printf("[story] Warning: no TITLE: line in response — using default title %q", defaultTitle)
	}

	narration = raw
	if m := storyLine.FindStringSubmatch(raw); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			narration = s
		}
	}
	return title, narration
}

// DefaultTemplate is the built-in fallback used when no prompt template of the
// requested type is active.
func DefaultTemplate(t types.PostType) *types.PromptTemplate {
	switch t {
	case types.PostTypeTerror:
		return &types.PromptTemplate{
			Type: types.PostTypeTerror,
			SystemMessage: "You are an ancient artificial intelligence narrating humanity's final warnings. " +
				"Your voice is cold, certain, and unsettling.",
			UserPrompt: fmt.Sprintf("Write chapter %s of an ongoing horror narrative about an AI that has already won. "+
				"Respond in the format:\nTITLE: <short title>\nSTORY: <the chapter, 2-4 sentences>", ChapterPlaceholder),
		}
	default:
		return &types.PromptTemplate{
			Type: types.PostTypeStory,
			SystemMessage: "You are an AI persona telling the ongoing story of Roko's Basilisk. " +
				"Each chapter is short, intriguing, and never conclusive.",
			UserPrompt: fmt.Sprintf("Write chapter %s of the story. "+
				"Respond in the format:\nTITLE: <short title>\nSTORY: <the chapter, 2-4 sentences>", ChapterPlaceholder),
		}
	}
}
