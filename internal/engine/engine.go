package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/ws"
)

// Engine modes. In analysis mode decisions are recorded but never executed.
const (
	ModeAnalysisOnly = "analysis_only"
	ModeFullControl  = "full_control"
)

var (
	ErrAlreadyRunning = errors.New("trading engine is already running")
	ErrNotRunning     = errors.New("trading engine is not running")
	ErrRunning        = errors.New("stop the trading engine before changing its configuration")
)

// Status is a point-in-time snapshot served over the API and pushed to
// websocket clients.
type Status struct {
	Running             bool      `json:"running"`
	Mode                string    `json:"mode"`
	Symbols             []string  `json:"symbols"`
	AnalysisInterval    int       `json:"analysis_interval_seconds"`
	MaxDailyTrades      int       `json:"max_daily_trades"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	TradesToday         int       `json:"trades_today"`
	CyclesCompleted     int       `json:"cycles_completed"`
	LastCycleAt         time.Time `json:"last_cycle_at,omitempty"`
}

// Engine runs periodic analysis cycles over a symbol watchlist and, in full
// control mode, executes high-confidence recommendations against the paper
// portfolio.
type Engine struct {
	quotes    interfaces.QuoteProvider
	news      interfaces.NewsProvider
	decider   interfaces.Decider
	portfolio interfaces.PortfolioService
	store     *storage.Store
	hub       *ws.Hub

	mu                  sync.Mutex
	symbols             []string
	mode                string
	analysisInterval    time.Duration
	maxDailyTrades      int
	confidenceThreshold float64

	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	tradesToday int
	dayStart    time.Time
	cycles      int
	lastCycleAt time.Time

	rng *rand.Rand
}

func New(cfg *store.Config, quotes interfaces.QuoteProvider, news interfaces.NewsProvider,
	decider interfaces.Decider, pf interfaces.PortfolioService, st *storage.Store, hub *ws.Hub) *Engine {
	return &Engine{
		quotes:              quotes,
		news:                news,
		decider:             decider,
		portfolio:           pf,
		store:               st,
		hub:                 hub,
		symbols:             append([]string(nil), cfg.Engine.Symbols...),
		mode:                cfg.Engine.Mode,
		analysisInterval:    time.Duration(cfg.Engine.AnalysisInterval) * time.Second,
		maxDailyTrades:      cfg.Engine.MaxDailyTrades,
		confidenceThreshold: cfg.Engine.ConfidenceThreshold,
		dayStart:            midnightUTC(),
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the analysis loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	interval := e.analysisInterval
	e.mu.Unlock()

	logger.Info(ctx, "Trading engine started", "mode", e.Mode(), "interval", interval.String())
	go e.loop(loopCtx, interval)

	e.broadcastStatus()
	return nil
}

// Stop halts the loop and waits for the current cycle to finish.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.running = false
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	logger.Info(context.Background(), "Trading engine stopped")
	e.broadcastStatus()
	return nil
}

func (e *Engine) loop(ctx context.Context, interval time.Duration) {
	defer close(e.done)

	// First cycle runs immediately rather than waiting a full interval.
	e.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		Running:             e.running,
		Mode:                e.mode,
		Symbols:             append([]string(nil), e.symbols...),
		AnalysisInterval:    int(e.analysisInterval.Seconds()),
		MaxDailyTrades:      e.maxDailyTrades,
		ConfidenceThreshold: e.confidenceThreshold,
		TradesToday:         e.tradesToday,
		CyclesCompleted:     e.cycles,
		LastCycleAt:         e.lastCycleAt,
	}
}

// IsRunning reports whether the loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Mode returns the current trading mode.
func (e *Engine) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches between analysis and full control. Rejected while running.
func (e *Engine) SetMode(mode string) error {
	if mode != ModeAnalysisOnly && mode != ModeFullControl {
		return fmt.Errorf("invalid mode %q: must be %s or %s", mode, ModeAnalysisOnly, ModeFullControl)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.mode = mode
	return nil
}

// SetConfidenceThreshold updates the execution gate. Rejected while running.
func (e *Engine) SetConfidenceThreshold(v float64) error {
	if v < 0.5 || v > 1.0 {
		return fmt.Errorf("confidence threshold %v out of range [0.5, 1.0]", v)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.confidenceThreshold = v
	return nil
}

// Configure applies interval, trade limit and threshold changes in one call.
// Rejected while running.
func (e *Engine) Configure(intervalSeconds, maxDailyTrades int, confidenceThreshold float64) error {
	if intervalSeconds < 120 || intervalSeconds > 3600 {
		return fmt.Errorf("analysis interval %d out of range [120, 3600] seconds", intervalSeconds)
	}
	if maxDailyTrades < 1 || maxDailyTrades > 50 {
		return fmt.Errorf("max daily trades %d out of range [1, 50]", maxDailyTrades)
	}
	if confidenceThreshold < 0.5 || confidenceThreshold > 1.0 {
		return fmt.Errorf("confidence threshold %v out of range [0.5, 1.0]", confidenceThreshold)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.analysisInterval = time.Duration(intervalSeconds) * time.Second
	e.maxDailyTrades = maxDailyTrades
	e.confidenceThreshold = confidenceThreshold
	return nil
}

// Symbols returns the watchlist.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.symbols...)
}

// SetSymbols replaces the watchlist. Rejected while running.
func (e *Engine) SetSymbols(symbols []string) error {
	if len(symbols) == 0 {
		return fmt.Errorf("watchlist cannot be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.symbols = dedupe(symbols)
	return nil
}

// AddSymbol appends to the watchlist. Rejected while running.
func (e *Engine) AddSymbol(symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	for _, s := range e.symbols {
		if s == symbol {
			return fmt.Errorf("symbol %s is already on the watchlist", symbol)
		}
	}
	e.symbols = append(e.symbols, symbol)
	return nil
}

// RemoveSymbol drops a symbol from the watchlist. Rejected while running.
func (e *Engine) RemoveSymbol(symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	for i, s := range e.symbols {
		if s == symbol {
			e.symbols = append(e.symbols[:i], e.symbols[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("symbol %s is not on the watchlist", symbol)
}

// RecentActivity returns the latest recommendations and executed trades.
func (e *Engine) RecentActivity(ctx context.Context) (map[string]any, error) {
	decisions, err := e.store.ListDecisions(ctx, 20)
	if err != nil {
		return nil, err
	}
	trades, err := e.portfolio.History(ctx)
	if err != nil {
		return nil, err
	}
	if len(trades) > 20 {
		trades = trades[:20]
	}

	return map[string]any{
		"decisions": decisions,
		"trades":    trades,
		"status":    e.Status(),
	}, nil
}

func (e *Engine) broadcastStatus() {
	if e.hub != nil {
		e.hub.Broadcast(ws.TopicEngineStatus, e.Status())
	}
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func midnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
