package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ai-trading-agent/internal/market"
)

// writeEngineError maps engine errors to 400. Every error from the engine's
// control surface is caused by the request, not the server.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) handleEngineStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "automated trading started",
		"status":  s.engine.Status(),
	})
}

func (s *Server) handleEngineStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "automated trading stopped",
		"status":  s.engine.Status(),
	})
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleEngineConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AnalysisIntervalSeconds int     `json:"analysis_interval_seconds"`
		MaxDailyTrades          int     `json:"max_daily_trades"`
		ConfidenceThreshold     float64 `json:"confidence_threshold"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.engine.Configure(body.AnalysisIntervalSeconds, body.MaxDailyTrades, body.ConfidenceThreshold); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "configuration updated",
		"status":  s.engine.Status(),
	})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.engine.Symbols()})
}

func (s *Server) handleSetSymbols(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbols []string `json:"symbols"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	normalized := make([]string, 0, len(body.Symbols))
	for _, raw := range body.Symbols {
		sym, err := market.NormalizeSymbol(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		normalized = append(normalized, sym)
	}

	if err := s.engine.SetSymbols(normalized); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.engine.Symbols()})
}

func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sym, err := market.NormalizeSymbol(body.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.AddSymbol(sym); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.engine.Symbols()})
}

func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	sym, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.RemoveSymbol(sym); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.engine.Symbols()})
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.engine.RecentActivity(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

// handleManualAnalysis runs one analysis cycle immediately regardless of the
// engine schedule.
func (s *Server) handleManualAnalysis(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.engine.RunAnalysisCycle(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "analysis cycle completed",
		"decisions": decisions,
	})
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mode": s.engine.Mode()})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.engine.SetMode(body.Mode); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": s.engine.Mode()})
}

func (s *Server) handleConfidenceThreshold(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConfidenceThreshold float64 `json:"confidence_threshold"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.engine.SetConfidenceThreshold(body.ConfidenceThreshold); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "confidence threshold updated",
		"status":  s.engine.Status(),
	})
}
