package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/api"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/db"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/gate"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
	redisdb "github.com/bigsadcarousel/email-personalisation-agent/internal/redis"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/session"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

func main() {
	// API keys and the admin password hash live in the environment
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := db.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}

	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute

	var (
		counter  api.CounterAdmin
		sessions session.Store
	)
	if cfg.Redis.Addr != "" {
		rdb := redisdb.NewClient(cfg)
		counter = usage.NewRedisCounterStore(rdb, usage.DefaultCounterName)
		sessions = session.NewRedisStore(rdb, sessionTTL)
		log.Printf("[Main] sessions and run counter backed by redis at %s", cfg.Redis.Addr)
	} else {
		counter = usage.NewGormCounterStore(db.DB, usage.DefaultCounterName)
		mem := session.NewMemoryStore(sessionTTL)
		mem.StartJanitor(context.Background())
		sessions = mem
		log.Printf("[Main] sessions in memory, run counter in the database")
	}

	scraper := scrape.NewReadabilityScraper(
		time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second,
		cfg.Scraper.UserAgent,
		cfg.Scraper.MaxPageSizeMB,
	)

	chunkModel := ""
	if len(cfg.LLMs) > 0 {
		chunkModel = cfg.LLMs[0].Name
	}
	chunker := scrape.NewChunker(chunkModel, scrape.DefaultChunkTokens, scrape.DefaultChunkOverlap)

	deps := api.Deps{
		Scraper:  scraper,
		Chunker:  chunker,
		LLM:      llm.NewClient(2 * time.Minute),
		Sessions: sessions,
		Gate: gate.New(counter, gate.Limits{
			SessionQuestions: cfg.Limits.SessionQuestions,
			GlobalRuns:       cfg.Limits.GlobalRuns,
		}),
		Counter: counter,
		Usage:   usage.NewLogger(db.DB, cfg.Usage.LogCSV, cfg.Usage.FeedbackCSV),
	}

	r := api.SetupRouter(cfg, deps)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Starting server on %s%s\n", addr, cfg.Server.Subpath)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
