package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"ai-trading-agent/internal/engine"
	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/market"
	"ai-trading-agent/internal/news"
	"ai-trading-agent/internal/onboarding"
	"ai-trading-agent/internal/portfolio"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/store"
	"ai-trading-agent/internal/types"
	"ai-trading-agent/internal/ws"
)

const testBudget = 1000000.0

type stubQuotes struct {
	price   float64
	unknown map[string]bool
}

func (s *stubQuotes) GetStockInfo(ctx context.Context, symbol string) (*types.StockInfo, error) {
	if s.unknown[symbol] {
		return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotFound, symbol)
	}
	return &types.StockInfo{Symbol: symbol, CurrentPrice: s.price}, nil
}

func (s *stubQuotes) GetMultipleStocks(ctx context.Context, symbols []string) ([]types.StockInfo, error) {
	out := make([]types.StockInfo, 0, len(symbols))
	for _, sym := range symbols {
		if s.unknown[sym] {
			continue
		}
		out = append(out, types.StockInfo{Symbol: sym, CurrentPrice: s.price})
	}
	return out, nil
}

func (s *stubQuotes) SearchCompanies(ctx context.Context, query string, limit int) ([]types.CompanyMatch, error) {
	return nil, nil
}

type stubNews struct{}

func (s *stubNews) GetFinancialNews(ctx context.Context, query string, limit int) ([]types.NewsItem, error) {
	return nil, nil
}

func (s *stubNews) GetStockNews(ctx context.Context, symbol string, limit int) ([]types.NewsItem, error) {
	return nil, nil
}

type stubDecider struct{}

func (s *stubDecider) Decide(ctx context.Context, stock types.StockInfo, items []types.NewsItem, pctx *interfaces.PortfolioContext) (types.TradeDecision, error) {
	return types.TradeDecision{
		Symbol:         stock.Symbol,
		Action:         types.ActionHold,
		Confidence:     0.5,
		Reasoning:      "no clear signal",
		SuggestedPrice: stock.CurrentPrice,
	}, nil
}

type stubCompleter struct {
	reply string
}

func (s *stubCompleter) Complete(ctx context.Context, messages []types.ChatMessage) (string, error) {
	return s.reply, nil
}

type fixture struct {
	server  *Server
	handler http.Handler
	store   *storage.Store
	eng     *engine.Engine
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	st, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &store.Config{}
	cfg.Server.CORSOrigin = "http://localhost:5173"
	cfg.Portfolio.InitialBudget = testBudget
	cfg.Engine.Symbols = []string{"AAPL", "MSFT"}
	cfg.Engine.Mode = "analysis_only"
	cfg.Engine.AnalysisInterval = 300
	cfg.Engine.MaxDailyTrades = 10
	cfg.Engine.ConfidenceThreshold = 0.75

	pf := portfolio.NewService(st, testBudget)
	hub := ws.NewHub()
	mkt := &stubQuotes{price: 100, unknown: map[string]bool{"ZZZZ": true}}
	eng := engine.New(cfg, mkt, &stubNews{}, &stubDecider{}, pf, st, hub)
	ob := onboarding.NewService(&stubCompleter{reply: "Tell me about your goals."}, st)
	nws := news.NewService(st, nil, nil)

	srv := New(cfg, mkt, nws, &stubDecider{}, pf, eng, ob, st, hub)
	return &fixture{server: srv, handler: srv.Router(), store: st, eng: eng}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestRootAndHealth(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	var health map[string]any
	decodeBody(t, rec, &health)
	if health["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
}

func TestPortfolioLifecycle(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/portfolio/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pf types.Portfolio
	decodeBody(t, rec, &pf)
	if pf.CashBalance != testBudget {
		t.Errorf("Expected initial cash %.2f, got %.2f", testBudget, pf.CashBalance)
	}

	order := types.TradeOrder{Symbol: "AAPL", Action: "buy", Quantity: 10, Price: 150}
	rec = f.do(t, http.MethodPost, "/api/trading/execute", order)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/portfolio/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var hist struct {
		Trades []types.TradeRecord `json:"trades"`
	}
	decodeBody(t, rec, &hist)
	if len(hist.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(hist.Trades))
	}
	if hist.Trades[0].Symbol != "AAPL" || hist.Trades[0].Quantity != 10 {
		t.Errorf("Unexpected trade record: %+v", hist.Trades[0])
	}

	rec = f.do(t, http.MethodPost, "/api/portfolio/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/portfolio/", nil)
	decodeBody(t, rec, &pf)
	if pf.CashBalance != testBudget {
		t.Errorf("Expected cash restored to %.2f after reset, got %.2f", testBudget, pf.CashBalance)
	}
	if len(pf.Holdings) != 0 {
		t.Errorf("Expected no holdings after reset, got %d", len(pf.Holdings))
	}
}

func TestExecuteRejectsBadOrders(t *testing.T) {
	f := newTestServer(t)

	cases := []struct {
		name  string
		order types.TradeOrder
	}{
		{"invalid action", types.TradeOrder{Symbol: "AAPL", Action: "short", Quantity: 5, Price: 100}},
		{"zero quantity", types.TradeOrder{Symbol: "AAPL", Action: "buy", Quantity: 0, Price: 100}},
		{"bad symbol", types.TradeOrder{Symbol: "not a symbol!", Action: "buy", Quantity: 5, Price: 100}},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/api/trading/execute", tc.order)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		var body map[string]string
		decodeBody(t, rec, &body)
		if body["detail"] == "" {
			t.Errorf("%s: expected detail message in error body", tc.name)
		}
	}
}

func TestExecuteInsufficientFunds(t *testing.T) {
	f := newTestServer(t)

	order := types.TradeOrder{Symbol: "AAPL", Action: "buy", Quantity: 1000000, Price: 500}
	rec := f.do(t, http.MethodPost, "/api/trading/execute", order)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/trading/execute",
		types.TradeOrder{Symbol: "AAPL", Action: "sell", Quantity: 5, Price: 100})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 selling shares never bought, got %d", rec.Code)
	}
}

func TestExecuteUnknownSymbolRejected(t *testing.T) {
	f := newTestServer(t)

	// A client-supplied price must not bypass the quote lookup.
	order := types.TradeOrder{Symbol: "ZZZZ", Action: "buy", Quantity: 10, Price: 100}
	rec := f.do(t, http.MethodPost, "/api/trading/execute", order)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown symbol, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/portfolio/history", nil)
	var hist struct {
		Trades []types.TradeRecord `json:"trades"`
	}
	decodeBody(t, rec, &hist)
	if len(hist.Trades) != 0 {
		t.Errorf("Expected no trades recorded, got %d", len(hist.Trades))
	}
}

func TestBatchStocksRequiresSymbols(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/trading/stocks", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without symbols param, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/trading/stocks?symbols=bad%20symbol", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed symbol, got %d", rec.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/analytics/ai-decisions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var decisions struct {
		Decisions []storage.DecisionRow `json:"decisions"`
	}
	decodeBody(t, rec, &decisions)
	if len(decisions.Decisions) != 0 {
		t.Errorf("Expected no decisions yet, got %d", len(decisions.Decisions))
	}

	rec = f.do(t, http.MethodGet, "/api/analytics/portfolio-performance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var perf map[string]any
	decodeBody(t, rec, &perf)
	if perf["total_value"].(float64) != testBudget {
		t.Errorf("Expected total value %.2f, got %v", testBudget, perf["total_value"])
	}

	rec = f.do(t, http.MethodGet, "/api/analytics/sentiment-summary", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/analytics/mark-executed/99999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown decision, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/analytics/mark-executed/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestMarkExecutedRoundTrip(t *testing.T) {
	f := newTestServer(t)

	id, err := f.store.InsertDecision(context.Background(), types.TradeDecision{
		Symbol: "AAPL", Action: "buy", Confidence: 0.8, Quantity: 5, SuggestedPrice: 150,
	})
	if err != nil {
		t.Fatalf("Failed to seed decision: %v", err)
	}

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/analytics/mark-executed/%d", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rows, err := f.store.ListDecisions(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to list decisions: %v", err)
	}
	if len(rows) != 1 || !rows[0].WasExecuted {
		t.Errorf("Expected decision %d marked executed, got %+v", id, rows)
	}
}

func TestEngineControlEndpoints(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/automated-trading/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status engine.Status
	decodeBody(t, rec, &status)
	if status.Running {
		t.Error("Expected engine stopped initially")
	}

	rec = f.do(t, http.MethodPut, "/api/automated-trading/config", map[string]any{
		"analysis_interval_seconds": 60,
		"max_daily_trades":          10,
		"confidence_threshold":      0.75,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for interval below minimum, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/automated-trading/config", map[string]any{
		"analysis_interval_seconds": 600,
		"max_daily_trades":          5,
		"confidence_threshold":      0.8,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/automated-trading/mode", map[string]string{"mode": "yolo"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid mode, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/automated-trading/mode", map[string]string{"mode": "full_control"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/automated-trading/mode", nil)
	var mode map[string]string
	decodeBody(t, rec, &mode)
	if mode["mode"] != "full_control" {
		t.Errorf("Expected full_control mode, got %s", mode["mode"])
	}

	rec = f.do(t, http.MethodPut, "/api/automated-trading/confidence-threshold",
		map[string]float64{"confidence_threshold": 0.3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for threshold below range, got %d", rec.Code)
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/automated-trading/symbols", nil)
	var body struct {
		Symbols []string `json:"symbols"`
	}
	decodeBody(t, rec, &body)
	if len(body.Symbols) != 2 {
		t.Fatalf("Expected 2 seed symbols, got %v", body.Symbols)
	}

	rec = f.do(t, http.MethodPost, "/api/automated-trading/symbols/add", map[string]string{"symbol": "nvda"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &body)
	if len(body.Symbols) != 3 || body.Symbols[2] != "NVDA" {
		t.Errorf("Expected NVDA appended uppercase, got %v", body.Symbols)
	}

	rec = f.do(t, http.MethodPost, "/api/automated-trading/symbols/add", map[string]string{"symbol": "NVDA"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 adding duplicate symbol, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/automated-trading/symbols/NVDA", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/api/automated-trading/symbols/NVDA", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 removing absent symbol, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/automated-trading/symbols", map[string][]string{"symbols": {}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty watchlist, got %d", rec.Code)
	}
}

func TestConfigRejectedWhileRunning(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/automated-trading/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 starting engine, got %d: %s", rec.Code, rec.Body.String())
	}
	defer f.eng.Stop()

	rec = f.do(t, http.MethodPost, "/api/automated-trading/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 starting twice, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/automated-trading/config", map[string]any{
		"analysis_interval_seconds": 600,
		"max_daily_trades":          5,
		"confidence_threshold":      0.8,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 configuring running engine, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/automated-trading/stop", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 stopping engine, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/automated-trading/stop", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 stopping stopped engine, got %d", rec.Code)
	}
}

func TestManualAnalysisCycle(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/automated-trading/execute-manual-analysis", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Decisions []types.TradeDecision `json:"decisions"`
	}
	decodeBody(t, rec, &body)
	if len(body.Decisions) == 0 {
		t.Error("Expected at least one decision from manual cycle")
	}
	for _, d := range body.Decisions {
		if d.Action != types.ActionHold {
			t.Errorf("Expected hold decisions from stub, got %s for %s", d.Action, d.Symbol)
		}
	}
}

func TestOnboardingEndpoints(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/onboarding/chat", map[string]any{"messages": []types.ChatMessage{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty messages, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/onboarding/chat", map[string]any{
		"messages": []types.ChatMessage{{Role: "user", Content: "Hi, I want to start investing"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chat onboarding.ChatResult
	decodeBody(t, rec, &chat)
	if chat.Reply == "" {
		t.Error("Expected a non-empty reply")
	}
	if chat.Complete {
		t.Error("Expected onboarding incomplete after one message")
	}

	prefs := types.Preferences{RiskTolerance: "conservative", TimeHorizon: "long"}
	rec = f.do(t, http.MethodPost, "/api/onboarding/save-preferences", prefs)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/onboarding/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got types.Preferences
	decodeBody(t, rec, &got)
	if got.RiskTolerance != "conservative" || got.TimeHorizon != "long" {
		t.Errorf("Expected saved preferences back, got %+v", got)
	}
}

func TestPriceIndicators(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/analytics/price-indicators/AAPL", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with no recorded prices, got %d", rec.Code)
	}

	for i := 0; i < 30; i++ {
		info := types.StockInfo{Symbol: "AAPL", CurrentPrice: 100 + float64(i)}
		if err := f.store.RecordPrice(context.Background(), info); err != nil {
			t.Fatalf("Failed to record price: %v", err)
		}
	}

	rec = f.do(t, http.MethodGet, "/api/analytics/price-indicators/AAPL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["samples"].(float64) != 30 {
		t.Errorf("Expected 30 samples, got %v", body["samples"])
	}
	if body["rsi_14"] == nil {
		t.Error("Expected RSI with 30 samples")
	}
	if rsi := body["rsi_14"].(float64); rsi != 100 {
		t.Errorf("Expected RSI 100 for monotonic rise, got %v", rsi)
	}
}

func TestCompanySearchRequiresQuery(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/api/search/companies", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without query, got %d", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(t, http.MethodOptions, "/api/portfolio/", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Expected configured CORS origin, got %q", got)
	}
}
