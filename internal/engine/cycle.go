package engine

import (
	"context"
	"math"
	"time"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/tradelog"
	"ai-trading-agent/internal/types"
	"ai-trading-agent/internal/ws"
)

// symbolsPerCycle bounds how many watchlist symbols are analyzed each cycle
// so a cycle stays well under the analysis interval.
const symbolsPerCycle = 2

// buyCashCapRatio caps any automated buy at this share of available cash.
const buyCashCapRatio = 0.9

func (e *Engine) runCycle(ctx context.Context) {
	if _, err := e.RunAnalysisCycle(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Analysis cycle failed", err)
	}
}

// RunAnalysisCycle analyzes current holdings plus a random sample of the
// watchlist and returns the recommendations made. Held positions are analyzed
// first so exits are considered before new entries.
func (e *Engine) RunAnalysisCycle(ctx context.Context) ([]types.TradeDecision, error) {
	ctx, span := trace.StartSpan(ctx, "analysis-cycle")
	defer span.End()

	e.resetDailyCounter()

	held, err := e.portfolio.HeldSymbols(ctx)
	if err != nil {
		return nil, err
	}

	prices := e.fetchPrices(ctx, held)
	pf, err := e.portfolio.Get(ctx, prices)
	if err != nil {
		return nil, err
	}
	pctx := &interfaces.PortfolioContext{
		CashBalance: pf.CashBalance,
		TotalValue:  pf.TotalValue,
		Holdings:    pf.Holdings,
	}

	heldSet := make(map[string]bool, len(held))
	for _, s := range held {
		heldSet[s] = true
	}

	targets := append(append([]string(nil), held...), e.sampleWatchlist(held)...)
	logger.Info(ctx, "Starting analysis cycle", "held", len(held), "targets", len(targets))

	var decisions []types.TradeDecision
	for _, symbol := range targets {
		if ctx.Err() != nil {
			break
		}

		decision, err := e.analyzeSymbol(ctx, symbol, pctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "Symbol analysis failed", err, "symbol", symbol)
			continue
		}
		decisions = append(decisions, *decision)

		e.maybeExecute(ctx, decision, pctx, heldSet[symbol])
	}

	e.mu.Lock()
	e.cycles++
	e.lastCycleAt = time.Now().UTC()
	e.mu.Unlock()

	e.broadcastStatus()
	logger.Info(ctx, "Analysis cycle completed", "decisions", len(decisions))
	return decisions, nil
}

// analyzeSymbol fetches market data and news, asks the decider and persists
// the recommendation.
func (e *Engine) analyzeSymbol(ctx context.Context, symbol string, pctx *interfaces.PortfolioContext) (*types.TradeDecision, error) {
	stock, err := e.quotes.GetStockInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := e.store.RecordPrice(ctx, *stock); err != nil {
		logger.Warn(ctx, "Failed to record price snapshot", "symbol", symbol, "error", err)
	}
	if e.hub != nil {
		e.hub.Broadcast(ws.TopicMarketData, stock)
	}

	items, err := e.news.GetStockNews(ctx, symbol, 5)
	if err != nil {
		logger.Warn(ctx, "News unavailable for analysis", "symbol", symbol, "error", err)
		items = nil
	}

	decision, err := e.decider.Decide(ctx, *stock, items, pctx)
	if err != nil {
		return nil, err
	}

	id, err := e.store.InsertDecision(ctx, decision)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist decision", err, "symbol", symbol)
	} else {
		decision.ID = id
	}

	if e.hub != nil {
		e.hub.Broadcast(ws.TopicAIDecisions, decision)
	}
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     decision.Symbol,
		Action:     decision.Action,
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
		Price:      decision.SuggestedPrice,
		KeyFactors: decision.KeyFactors,
	})
	return &decision, nil
}

// maybeExecute turns a recommendation into a paper trade when the engine is
// in full control, the confidence gate passes and the daily limit allows it.
// Held positions are only eligible for sells; adding to a position requires a
// manual order.
func (e *Engine) maybeExecute(ctx context.Context, d *types.TradeDecision, pctx *interfaces.PortfolioContext, held bool) {
	if d.Action == types.ActionHold || d.Quantity <= 0 {
		return
	}
	if held && d.Action == types.ActionBuy {
		logger.Info(ctx, "Skipping buy on held position", "symbol", d.Symbol)
		return
	}

	e.mu.Lock()
	mode := e.mode
	threshold := e.confidenceThreshold
	limitReached := e.tradesToday >= e.maxDailyTrades
	e.mu.Unlock()

	if mode != ModeFullControl {
		return
	}
	if d.Confidence < threshold {
		logger.Info(ctx, "Decision below confidence threshold, not executing",
			"symbol", d.Symbol, "confidence", d.Confidence, "threshold", threshold)
		return
	}
	if limitReached {
		logger.Warn(ctx, "Daily trade limit reached, not executing", "symbol", d.Symbol)
		return
	}

	quantity := d.Quantity
	switch d.Action {
	case types.ActionBuy:
		maxAffordable := int(math.Floor(pctx.CashBalance * buyCashCapRatio / d.SuggestedPrice))
		if quantity > maxAffordable {
			quantity = maxAffordable
		}
	case types.ActionSell:
		heldQty := 0
		for _, h := range pctx.Holdings {
			if h.Symbol == d.Symbol {
				heldQty = h.Quantity
				break
			}
		}
		if quantity > heldQty {
			quantity = heldQty
		}
	}
	if quantity <= 0 {
		logger.Info(ctx, "No executable quantity for decision", "symbol", d.Symbol, "action", d.Action)
		return
	}

	if err := e.portfolio.ExecuteTrade(ctx, d.Symbol, d.Action, quantity, d.SuggestedPrice, d.ID); err != nil {
		logger.ErrorWithErr(ctx, "Automated trade failed", err, "symbol", d.Symbol, "action", d.Action)
		return
	}

	e.mu.Lock()
	e.tradesToday++
	e.mu.Unlock()

	// Refresh the in-cycle context so later symbols see the new balances.
	if pf, err := e.portfolio.Get(ctx, map[string]float64{d.Symbol: d.SuggestedPrice}); err == nil {
		pctx.CashBalance = pf.CashBalance
		pctx.TotalValue = pf.TotalValue
		pctx.Holdings = pf.Holdings

		if e.hub != nil {
			e.hub.Broadcast(ws.TopicPortfolio, pf)
		}
	}

	if e.hub != nil {
		e.hub.Broadcast(ws.TopicTrades, map[string]any{
			"symbol":      d.Symbol,
			"action":      d.Action,
			"quantity":    quantity,
			"price":       d.SuggestedPrice,
			"decision_id": d.ID,
		})
	}
}

// sampleWatchlist picks up to symbolsPerCycle random watchlist entries that
// are not already held.
func (e *Engine) sampleWatchlist(held []string) []string {
	heldSet := make(map[string]bool, len(held))
	for _, s := range held {
		heldSet[s] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	candidates := make([]string, 0, len(e.symbols))
	for _, s := range e.symbols {
		if !heldSet[s] {
			candidates = append(candidates, s)
		}
	}
	e.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > symbolsPerCycle {
		candidates = candidates[:symbolsPerCycle]
	}
	return candidates
}

// fetchPrices resolves current prices for valuation, skipping failures.
func (e *Engine) fetchPrices(ctx context.Context, symbols []string) map[string]float64 {
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		info, err := e.quotes.GetStockInfo(ctx, s)
		if err != nil {
			logger.Warn(ctx, "Price unavailable for valuation", "symbol", s, "error", err)
			continue
		}
		prices[s] = info.CurrentPrice
	}
	return prices
}

// resetDailyCounter zeroes the trade counter when the UTC day rolls over.
func (e *Engine) resetDailyCounter() {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := midnightUTC()
	if today.After(e.dayStart) {
		e.dayStart = today
		e.tradesToday = 0
	}
}
