package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/market"
	"ai-trading-agent/internal/tradelog"
	"ai-trading-agent/internal/types"
	"ai-trading-agent/internal/ws"
)

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.market.GetStockInfo(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			writeError(w, http.StatusNotFound, "symbol not found: "+symbol)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "market data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBatchStocks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}

	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		sym, err := market.NormalizeSymbol(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		symbols = append(symbols, sym)
	}

	infos, err := s.market.GetMultipleStocks(r.Context(), symbols)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "market data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": infos})
}

// handleAnalyze runs a one-off AI analysis for a symbol without executing.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stock, err := s.market.GetStockInfo(ctx, symbol)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			writeError(w, http.StatusNotFound, "symbol not found: "+symbol)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "market data unavailable: "+err.Error())
		return
	}

	items, err := s.news.GetStockNews(ctx, symbol, 5)
	if err != nil {
		items = nil
	}

	pctx, err := s.portfolioContext(ctx, symbol, stock.CurrentPrice)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	decision, err := s.decider.Decide(ctx, *stock, items, pctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if id, err := s.store.InsertDecision(ctx, decision); err == nil {
		decision.ID = id
	}
	s.hub.Broadcast(ws.TopicAIDecisions, decision)
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     decision.Symbol,
		Action:     decision.Action,
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
		Price:      decision.SuggestedPrice,
		KeyFactors: decision.KeyFactors,
	})

	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var order types.TradeOrder
	if err := decodeJSON(r, &order); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	symbol, err := market.NormalizeSymbol(order.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action := strings.ToLower(strings.TrimSpace(order.Action))
	if action != types.ActionBuy && action != types.ActionSell {
		writeError(w, http.StatusBadRequest, "action must be 'buy' or 'sell'")
		return
	}
	if order.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	// The quote source must know the symbol even when the order carries its
	// own price.
	stock, err := s.market.GetStockInfo(ctx, symbol)
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			writeError(w, http.StatusNotFound, "symbol not found: "+symbol)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "market data unavailable: "+err.Error())
		return
	}
	price := order.Price
	if price <= 0 {
		price = stock.CurrentPrice
	}

	if err := s.portfolio.ExecuteTrade(ctx, symbol, action, order.Quantity, price, order.DecisionID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pf, err := s.portfolio.Get(ctx, map[string]float64{symbol: price})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.hub.Broadcast(ws.TopicPortfolio, pf)
	s.hub.Broadcast(ws.TopicTrades, map[string]any{
		"symbol":      symbol,
		"action":      action,
		"quantity":    order.Quantity,
		"price":       price,
		"decision_id": order.DecisionID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "trade executed",
		"symbol":    symbol,
		"action":    action,
		"quantity":  order.Quantity,
		"price":     price,
		"portfolio": pf,
	})
}

// portfolioContext snapshots the portfolio for the decider, pricing the
// analyzed symbol at its live quote.
func (s *Server) portfolioContext(ctx context.Context, symbol string, price float64) (*interfaces.PortfolioContext, error) {
	pf, err := s.portfolio.Get(ctx, map[string]float64{symbol: price})
	if err != nil {
		return nil, err
	}
	return &interfaces.PortfolioContext{
		CashBalance: pf.CashBalance,
		TotalValue:  pf.TotalValue,
		Holdings:    pf.Holdings,
	}, nil
}
