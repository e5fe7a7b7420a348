package server

import (
	"net/http"

	"ai-trading-agent/internal/ws"
)

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	held, err := s.portfolio.HeldSymbols(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	prices := make(map[string]float64, len(held))
	if len(held) > 0 {
		infos, err := s.market.GetMultipleStocks(ctx, held)
		if err == nil {
			for _, info := range infos {
				prices[info.Symbol] = info.CurrentPrice
			}
		}
	}

	pf, err := s.portfolio.Get(ctx, prices)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	trades, err := s.portfolio.History(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.portfolio.Reset(ctx); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pf, err := s.portfolio.Get(ctx, nil)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.hub.Broadcast(ws.TopicPortfolio, pf)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "portfolio reset",
		"portfolio": pf,
	})
}
