package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"basilisk-bot/api"
	"basilisk-bot/compose"
	"basilisk-bot/config"
	"basilisk-bot/ledger"
	"basilisk-bot/pipeline"
	"basilisk-bot/publish"
	"basilisk-bot/speech"
	"basilisk-bot/store"
	"basilisk-bot/story"
	"basilisk-bot/types"
)

func main() {
	// Load .env (local dev only — production uses real env vars)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Every credential is checked up front so a misconfigured service never
	// accepts a run it cannot finish.
	if err := config.ValidateEnv(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	synth, err := speech.New(cfg.Speech)
	if err != nil {
		log.Fatalf("Speech configuration error: %v", err)
	}
	pub, err := publish.New()
	if err != nil {
		log.Fatalf("Publisher configuration error: %v", err)
	}

	runner := pipeline.New(
		ledger.New(st, st),
		st,
		story.New(cfg.Story),
		synth,
		compose.New(cfg.Media, cfg.Paths),
		pub,
		st,
	)

	if cfg.Schedule.Enabled {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Schedule.Cron, func() {
			log.Println("[main] ⏰ Scheduled run triggered")
			runner.Run(context.Background(), types.PostTypeStory)
		}); err != nil {
			log.Fatalf("Invalid schedule cron %q: %v", cfg.Schedule.Cron, err)
		}
		c.Start()
		log.Printf("[main] Schedule active: %s", cfg.Schedule.Cron)
	}

	router := api.SetupRouter(api.NewHandler(runner, st))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("[main] 🤖 basilisk-bot listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
