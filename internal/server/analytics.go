package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-trading-agent/internal/market"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/ta"
)

// daysCutoff parses the days query parameter into a time floor; zero time
// means no floor.
func daysCutoff(r *http.Request) time.Time {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return time.Time{}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().AddDate(0, 0, -n)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 50, 200)
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	cutoff := daysCutoff(r)

	rows, err := s.store.ListDecisions(r.Context(), 200)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]storage.DecisionRow, 0, limit)
	for _, row := range rows {
		if symbol != "" && row.Symbol != symbol {
			continue
		}
		if !cutoff.IsZero() && row.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": out})
}

func (s *Server) handleNewsAnalysis(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 50, 200)

	rows, err := s.store.ListNewsAnalysis(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": rows})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pf, err := s.portfolio.Get(ctx, nil)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	trades, err := s.portfolio.History(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	buys, sells := 0, 0
	for _, t := range trades {
		switch t.Action {
		case "buy":
			buys++
		case "sell":
			sells++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cash_balance":        pf.CashBalance,
		"total_value":         pf.TotalValue,
		"profit_loss":         pf.ProfitLoss,
		"profit_loss_percent": pf.ProfitLossPercent,
		"holdings_count":      len(pf.Holdings),
		"total_trades":        len(trades),
		"buy_trades":          buys,
		"sell_trades":         sells,
	})
}

func (s *Server) handleSentimentSummary(w http.ResponseWriter, r *http.Request) {
	cutoff := daysCutoff(r)

	rows, err := s.store.ListNewsAnalysis(r.Context(), 200)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	counts := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
	var scoreSum float64
	analyzed := 0
	for _, row := range rows {
		if !cutoff.IsZero() && row.AnalyzedAt.Before(cutoff) {
			continue
		}
		counts[row.Sentiment]++
		scoreSum += row.Score
		analyzed++
	}
	avg := 0.0
	if analyzed > 0 {
		avg = scoreSum / float64(analyzed)
	}

	overall := "neutral"
	if counts["positive"] > counts["negative"] {
		overall = "positive"
	} else if counts["negative"] > counts["positive"] {
		overall = "negative"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"articles_analyzed": analyzed,
		"positive":          counts["positive"],
		"negative":          counts["negative"],
		"neutral":           counts["neutral"],
		"average_score":     avg,
		"overall_sentiment": overall,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.store.ListDecisions(ctx, 200)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	actions := map[string]int{"buy": 0, "sell": 0, "hold": 0}
	executed := 0
	var confidenceSum float64
	bySymbol := map[string]int{}
	for _, row := range rows {
		actions[row.Action]++
		if row.WasExecuted {
			executed++
		}
		confidenceSum += row.Confidence
		bySymbol[row.Symbol]++
	}
	avgConfidence := 0.0
	if len(rows) > 0 {
		avgConfidence = confidenceSum / float64(len(rows))
	}

	tradesToday, err := s.store.CountDecisionsSince(ctx, midnight(time.Now().UTC()))
	if err != nil {
		tradesToday = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_decisions":     len(rows),
		"buy_decisions":       actions["buy"],
		"sell_decisions":      actions["sell"],
		"hold_decisions":      actions["hold"],
		"executed_decisions":  executed,
		"average_confidence":  avgConfidence,
		"decisions_by_symbol": bySymbol,
		"decisions_today":     tradesToday,
	})
}

// handlePriceIndicators computes technical indicators from stored price
// snapshots. Snapshots accumulate as symbols get analyzed, so a fresh database
// reports insufficient history.
func (s *Server) handlePriceIndicators(w http.ResponseWriter, r *http.Request) {
	symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.store.PriceHistory(r.Context(), symbol, 100)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(points) == 0 {
		writeError(w, http.StatusNotFound, "no recorded prices for symbol: "+symbol)
		return
	}

	// Oldest first for the indicator math.
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[len(points)-1-i] = p.Price
	}

	resp := map[string]any{
		"symbol":     symbol,
		"samples":    len(prices),
		"latest":     prices[len(prices)-1],
		"change_pct": nanToNil(ta.ChangePercent(prices)),
		"sma_20":     nanToNil(ta.SMA(prices, 20)),
		"rsi_14":     nanToNil(ta.RSI(prices, 14)),
		"volatility": nanToNil(ta.StdDev(prices, 20)),
	}
	mid, up, low := ta.Bollinger(prices, 20, 2)
	resp["bollinger"] = map[string]any{
		"mid": nanToNil(mid), "upper": nanToNil(up), "lower": nanToNil(low),
	}

	writeJSON(w, http.StatusOK, resp)
}

func nanToNil(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func (s *Server) handleMarkExecuted(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid decision id")
		return
	}

	if err := s.store.MarkDecisionExecuted(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "decision marked as executed", "decision_id": id})
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
