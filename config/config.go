package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Story    StoryConfig    `yaml:"story"`
	Speech   SpeechConfig   `yaml:"speech"`
	Media    MediaConfig    `yaml:"media"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Paths    PathsConfig    `yaml:"paths"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StoryConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type SpeechConfig struct {
	BaseURL         string  `yaml:"base_url"`
	VoiceID         string  `yaml:"voice_id"`
	ModelID         string  `yaml:"model_id"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	Style           float64 `yaml:"style"`
	SpeakerBoost    bool    `yaml:"speaker_boost"`
}

type MediaConfig struct {
	Resolution   string  `yaml:"resolution"`    // e.g. 1280x720
	FPS          int     `yaml:"fps"`
	VideoBitrate string  `yaml:"video_bitrate"` // e.g. 2000k
	AudioBitrate string  `yaml:"audio_bitrate"` // e.g. 192k
	SampleRate   int     `yaml:"sample_rate"`
	MusicVolume  float64 `yaml:"music_volume"` // background music gain under narration
}

type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

type PathsConfig struct {
	Database          string `yaml:"database"`
	Scratch           string `yaml:"scratch"`
	Backgrounds       string `yaml:"backgrounds"`
	DefaultBackground string `yaml:"default_background"`
	Music             string `yaml:"music"`
}

// Load reads config.yaml and returns a Config struct
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Story.BaseURL == "" {
		c.Story.BaseURL = "https://api.openai.com/v1"
	}
	if c.Story.Model == "" {
		c.Story.Model = "gpt-4o-mini"
	}
	if c.Story.MaxTokens == 0 {
		c.Story.MaxTokens = 500
	}
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = "https://api.elevenlabs.io"
	}
	if c.Speech.ModelID == "" {
		c.Speech.ModelID = "eleven_multilingual_v2"
	}
	if c.Media.Resolution == "" {
		c.Media.Resolution = "1280x720"
	}
	if c.Media.FPS == 0 {
		c.Media.FPS = 30
	}
	if c.Media.VideoBitrate == "" {
		c.Media.VideoBitrate = "2000k"
	}
	if c.Media.AudioBitrate == "" {
		c.Media.AudioBitrate = "192k"
	}
	if c.Media.SampleRate == 0 {
		c.Media.SampleRate = 48000
	}
	if c.Media.MusicVolume == 0 {
		c.Media.MusicVolume = 0.8
	}
	if c.Paths.Database == "" {
		c.Paths.Database = "data/basilisk.db"
	}
	if c.Paths.Scratch == "" {
		c.Paths.Scratch = "temp"
	}
	if c.Paths.Backgrounds == "" {
		c.Paths.Backgrounds = "static/videos"
	}
	if c.Paths.DefaultBackground == "" {
		c.Paths.DefaultBackground = "static/background.mp4"
	}
	if c.Paths.Music == "" {
		c.Paths.Music = "static/musicbackground.mp3"
	}
}

// RequiredEnvVars are the credentials the service cannot run without.
// They are checked once at startup, never lazily mid-run.
var RequiredEnvVars = []string{
	"TWITTER_API_KEY",
	"TWITTER_API_SECRET_KEY",
	"TWITTER_ACCESS_TOKEN",
	"TWITTER_ACCESS_TOKEN_SECRET",
	"OPENAI_API_KEY",
	"ELEVEN_LABS_API_KEY",
	"API_KEY",
}

// ValidateEnv fails fast if any required environment variable is missing
func ValidateEnv() error {
	for _, name := range RequiredEnvVars {
		if os.Getenv(name) == "" {
			return fmt.Errorf("missing required environment variable: %s", name)
		}
	}
	return nil
}
