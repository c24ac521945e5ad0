// Package speech converts narration text to audio via the ElevenLabs API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"basilisk-bot/apperr"
	"basilisk-bot/config"
)

// Synthesizer calls the text-to-speech provider
type Synthesizer struct {
	cfg        config.SpeechConfig
	apiKey     string
	httpClient *http.Client
}

// New creates a Synthesizer. A missing voice id or API key is a configuration
// error caught here, before any network call is ever made.
func New(cfg config.SpeechConfig) (*Synthesizer, error) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" {
		return nil, apperr.Newf(apperr.TypeConfig, "ELEVEN_LABS_API_KEY not set")
	}
	if cfg.VoiceID == "" {
		return nil, apperr.Newf(apperr.TypeConfig, "speech voice_id not configured")
	}
	return &Synthesizer{
		cfg:        cfg,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// CheckCredentials performs a lightweight call against the provider to verify
// the API key works before attempting synthesis.
func (s *Synthesizer) CheckCredentials(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.cfg.BaseURL+"/v1/user", nil)
	if err != nil {
		return apperr.New(apperr.TypeSynthesis, "build credential check", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.TypeSynthesis, "speech provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Newf(apperr.TypeSynthesis, "credential check failed: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

type synthesisRequest struct {
	ModelID       string        `json:"model_id"`
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize converts text into a single audio buffer. The provider streams
// audio chunks; they are drained to completion here so downstream stages see
// one blocking call that returns complete audio. No retry on failure.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	log.Printf("[speech] Converting %d chars to speech (voice %s)...", len(text), s.cfg.VoiceID)

	if err := s.CheckCredentials(ctx); err != nil {
		return nil, err
	}

	reqBody := synthesisRequest{
		ModelID: s.cfg.ModelID,
		Text:    text,
		VoiceSettings: voiceSettings{
			Stability:       s.cfg.Stability,
			SimilarityBoost: s.cfg.SimilarityBoost,
			Style:           s.cfg.Style,
			UseSpeakerBoost: s.cfg.SpeakerBoost,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.New(apperr.TypeSynthesis, "marshal synthesis request", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.cfg.BaseURL, s.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, apperr.New(apperr.TypeSynthesis, "build synthesis request", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.TypeSynthesis, "synthesis request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Newf(apperr.TypeSynthesis, "synthesis failed: status %d: %s", resp.StatusCode, body)
	}

	var audio bytes.Buffer
	if _, err := io.Copy(&audio, resp.Body); err != nil {
		return nil, apperr.New(apperr.TypeSynthesis, "read audio stream", err)
	}
	if audio.Len() == 0 {
		return nil, apperr.Newf(apperr.TypeSynthesis, "provider returned empty audio")
	}

	log.Printf("[speech] ✅ Audio ready: %d bytes", audio.Len())
	return audio.Bytes(), nil
}
