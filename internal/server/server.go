package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-trading-agent/internal/engine"
	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/news"
	"ai-trading-agent/internal/onboarding"
	"ai-trading-agent/internal/portfolio"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/types"
	"ai-trading-agent/internal/ws"
)

// MarketService is the quote surface the handlers depend on.
type MarketService interface {
	interfaces.QuoteProvider
	SearchCompanies(ctx context.Context, query string, limit int) ([]types.CompanyMatch, error)
}

// Server owns the HTTP surface and wires requests into the services.
type Server struct {
	cfg        *store.Config
	market     MarketService
	news       *news.Service
	decider    interfaces.Decider
	portfolio  *portfolio.Service
	engine     *engine.Engine
	onboarding *onboarding.Service
	store      *storage.Store
	hub        *ws.Hub
}

func New(cfg *store.Config, mkt MarketService, nws *news.Service, decider interfaces.Decider,
	pf *portfolio.Service, eng *engine.Engine, ob *onboarding.Service, st *storage.Store, hub *ws.Hub) *Server {
	return &Server{
		cfg:        cfg,
		market:     mkt,
		news:       nws,
		decider:    decider,
		portfolio:  pf,
		engine:     eng,
		onboarding: ob,
		store:      st,
		hub:        hub,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/trading", func(r chi.Router) {
			r.Get("/stocks", s.handleBatchStocks)
			r.Get("/stocks/{symbol}", s.handleStock)
			r.Post("/analyze/{symbol}", s.handleAnalyze)
			r.Post("/execute", s.handleExecute)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.handlePortfolio)
			r.Get("/history", s.handleHistory)
			r.Post("/reset", s.handleReset)
		})

		r.Route("/news", func(r chi.Router) {
			r.Get("/", s.handleFinancialNews)
			r.Get("/stock/{symbol}", s.handleStockNews)
			r.Get("/search", s.handleNewsSearch)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/ai-decisions", s.handleDecisions)
			r.Get("/news-analysis", s.handleNewsAnalysis)
			r.Get("/portfolio-performance", s.handlePerformance)
			r.Get("/sentiment-summary", s.handleSentimentSummary)
			r.Get("/trading-insights", s.handleInsights)
			r.Get("/price-indicators/{symbol}", s.handlePriceIndicators)
			r.Post("/mark-executed/{id}", s.handleMarkExecuted)
		})

		r.Route("/automated-trading", func(r chi.Router) {
			r.Post("/start", s.handleEngineStart)
			r.Post("/stop", s.handleEngineStop)
			r.Get("/status", s.handleEngineStatus)
			r.Put("/config", s.handleEngineConfig)
			r.Get("/symbols", s.handleGetSymbols)
			r.Put("/symbols", s.handleSetSymbols)
			r.Post("/symbols/add", s.handleAddSymbol)
			r.Delete("/symbols/{symbol}", s.handleRemoveSymbol)
			r.Get("/recent-activity", s.handleRecentActivity)
			r.Post("/execute-manual-analysis", s.handleManualAnalysis)
			r.Get("/mode", s.handleGetMode)
			r.Post("/mode", s.handleSetMode)
			r.Put("/confidence-threshold", s.handleConfidenceThreshold)
		})

		r.Get("/search/companies", s.handleCompanySearch)

		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
			r.Post("/save-preferences", s.handleSavePreferences)
			r.Get("/preferences", s.handleGetPreferences)
		})
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "ai-trading-agent",
		"status":  "running",
		"version": "1.0.0",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"engine_running": s.engine.IsRunning(),
		"ws_clients":     s.hub.ClientCount(),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		logger.Debug(r.Context(), "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.Server.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
