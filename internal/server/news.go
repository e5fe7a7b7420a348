package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ai-trading-agent/internal/market"
)

func limitParam(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) handleFinancialNews(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 10, 50)

	items, err := s.news.GetFinancialNews(r.Context(), "", limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "news unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": items})
}

func (s *Server) handleStockNews(w http.ResponseWriter, r *http.Request) {
	symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := limitParam(r, 10, 50)

	items, err := s.news.GetStockNews(r.Context(), symbol, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "news unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "articles": items})
}

func (s *Server) handleNewsSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	limit := limitParam(r, 10, 50)

	items, err := s.news.GetFinancialNews(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "news unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "articles": items})
}
