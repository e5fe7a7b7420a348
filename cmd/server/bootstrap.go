package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ai-trading-agent/internal/eod"
	"ai-trading-agent/internal/eod/eodobs"
	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/llm"
	"ai-trading-agent/internal/llm/llmobs"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/market"
	"ai-trading-agent/internal/news"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	initializeEOD()

	return nil
}

// initializeEOD wraps the daily summarizer with observability
func initializeEOD() {
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeDecider builds the LLM decider with observability. Without an API
// key the decider still works through its rule-based fallback.
func initializeDecider(ctx context.Context, cfg *store.Config) (interfaces.Decider, interfaces.ChatCompleter) {
	completer := llm.NewChatClient(cfg)

	switch cfg.LLM.Provider {
	case "OPENAI":
		if os.Getenv("OPENAI_API_KEY") == "" {
			logger.Warn(ctx, "OPENAI_API_KEY not set - decisions fall back to price momentum rules")
		}
	case "CLAUDE":
		if os.Getenv("CLAUDE_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			logger.Warn(ctx, "CLAUDE_API_KEY not set - decisions fall back to price momentum rules")
		}
	default:
		logger.Warn(ctx, "Unknown LLM provider - decisions fall back to price momentum rules",
			"provider", cfg.LLM.Provider)
	}

	return llmobs.Wrap(llm.NewDecider(completer)), completer
}

// initializeMarket builds the quote service with the configured cache TTL.
func initializeMarket(cfg *store.Config) *market.Service {
	return market.NewService(time.Duration(cfg.Market.CacheSeconds) * time.Second)
}

// newsServiceConfig maps the app config onto the news service settings.
func newsServiceConfig(cfg *store.Config) *news.ServiceConfig {
	sc := news.DefaultServiceConfig()
	sc.MaxArticles = cfg.News.MaxArticles
	sc.CacheDuration = time.Duration(cfg.News.CacheSeconds) * time.Second
	return sc
}
