package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-trading-agent/internal/engine"
	"ai-trading-agent/internal/eod"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/news"
	"ai-trading-agent/internal/onboarding"
	"ai-trading-agent/internal/portfolio"
	"ai-trading-agent/internal/server"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/ws"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	st, err := storage.Open(cfg.Portfolio.DBPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open database", err, "path", cfg.Portfolio.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	decider, completer := initializeDecider(ctx, cfg)

	mkt := initializeMarket(cfg)
	nws := news.NewService(st, news.NewSentimentAnalyzer(completer), newsServiceConfig(cfg))
	pf := portfolio.NewService(st, cfg.Portfolio.InitialBudget)
	hub := ws.NewHub()
	eng := engine.New(cfg, mkt, nws, decider, pf, st, hub)
	ob := onboarding.NewService(completer, st)

	srv := server.New(cfg, mkt, nws, decider, pf, eng, ob, st, hub)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()
	go func() {
		for range eodTick.C {
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeToday(); err == nil && p != "" {
					logger.Info(ctx, "Daily summary CSV written", "path", p)
				}
			}
		}
	}()

	go func() {
		logger.Info(ctx, "Server listening", "addr", cfg.Server.Addr, "mode", cfg.Engine.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Server failed", err)
			sigc <- syscall.SIGTERM
		}
	}()

	<-sigc
	logger.Info(ctx, "Shutting down...")
	if p, err := eod.SummarizeToday(); err == nil && p != "" {
		logger.Info(ctx, "Daily summary CSV written", "path", p)
	}

	if err := eng.Stop(); err != nil && !errors.Is(err, engine.ErrNotRunning) {
		logger.Warn(ctx, "Engine did not stop cleanly", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(ctx, "Graceful shutdown failed", err)
	}

	_ = trace.Shutdown(shutdownCtx)
	_ = logger.Shutdown(shutdownCtx)
}
