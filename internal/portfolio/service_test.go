package portfolio

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/types"
)

const testBudget = 1000000.0

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewService(store, testBudget)
}

func TestGetInitializesPortfolio(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if p.CashBalance != testBudget {
		t.Errorf("Expected cash %v, got %v", testBudget, p.CashBalance)
	}
	if p.TotalValue != testBudget {
		t.Errorf("Expected total value %v, got %v", testBudget, p.TotalValue)
	}
	if len(p.Holdings) != 0 {
		t.Errorf("Expected no holdings, got %d", len(p.Holdings))
	}
	if p.ProfitLoss != 0 {
		t.Errorf("Expected zero profit/loss, got %v", p.ProfitLoss)
	}
}

func TestBuyUpdatesCashAndHoldings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 150, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	p, err := svc.Get(ctx, map[string]float64{"AAPL": 150})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if p.CashBalance != testBudget-1500 {
		t.Errorf("Expected cash %v, got %v", testBudget-1500, p.CashBalance)
	}
	if len(p.Holdings) != 1 {
		t.Fatalf("Expected 1 holding, got %d", len(p.Holdings))
	}
	h := p.Holdings[0]
	if h.Symbol != "AAPL" || h.Quantity != 10 || h.AvgPrice != 150 {
		t.Errorf("Unexpected holding: %+v", h)
	}
	// Buying at the current price leaves total value unchanged
	if math.Abs(p.TotalValue-testBudget) > 1e-6 {
		t.Errorf("Expected total value %v, got %v", testBudget, p.TotalValue)
	}
}

func TestBuyComputesWeightedAverage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 100, 0); err != nil {
		t.Fatalf("First buy failed: %v", err)
	}
	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 200, 0); err != nil {
		t.Fatalf("Second buy failed: %v", err)
	}

	p, err := svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if len(p.Holdings) != 1 {
		t.Fatalf("Expected 1 holding, got %d", len(p.Holdings))
	}
	h := p.Holdings[0]
	if h.Quantity != 20 {
		t.Errorf("Expected 20 shares, got %d", h.Quantity)
	}
	if math.Abs(h.AvgPrice-150) > 1e-6 {
		t.Errorf("Expected weighted average 150, got %v", h.AvgPrice)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.ExecuteTrade(ctx, "BRK-A", types.ActionBuy, 10, 700000, 0)
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	// The failed trade must not touch the balance
	p, err := svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.CashBalance != testBudget {
		t.Errorf("Expected cash unchanged at %v, got %v", testBudget, p.CashBalance)
	}
	if len(p.Holdings) != 0 {
		t.Errorf("Expected no holdings after rejected buy, got %d", len(p.Holdings))
	}
}

func TestSellReducesAndRemovesHolding(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 10, 300, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := svc.ExecuteTrade(ctx, "MSFT", types.ActionSell, 4, 310, 0); err != nil {
		t.Fatalf("Partial sell failed: %v", err)
	}

	p, err := svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(p.Holdings) != 1 || p.Holdings[0].Quantity != 6 {
		t.Fatalf("Expected 6 shares remaining, got %+v", p.Holdings)
	}

	if err := svc.ExecuteTrade(ctx, "MSFT", types.ActionSell, 6, 310, 0); err != nil {
		t.Fatalf("Final sell failed: %v", err)
	}

	p, err = svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(p.Holdings) != 0 {
		t.Errorf("Expected holding removed at zero quantity, got %+v", p.Holdings)
	}

	expectedCash := testBudget - 10*300 + 10*310
	if math.Abs(p.CashBalance-expectedCash) > 1e-6 {
		t.Errorf("Expected cash %v, got %v", expectedCash, p.CashBalance)
	}
}

func TestSellInsufficientShares(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// No position at all
	err := svc.ExecuteTrade(ctx, "TSLA", types.ActionSell, 1, 250, 0)
	if !errors.Is(err, storage.ErrInsufficientShares) {
		t.Errorf("Expected ErrInsufficientShares, got %v", err)
	}

	// Position smaller than the order
	if err := svc.ExecuteTrade(ctx, "TSLA", types.ActionBuy, 5, 250, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	err = svc.ExecuteTrade(ctx, "TSLA", types.ActionSell, 6, 250, 0)
	if !errors.Is(err, storage.ErrInsufficientShares) {
		t.Errorf("Expected ErrInsufficientShares, got %v", err)
	}
}

func TestExecuteTradeValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", "short", 1, 100, 0); err == nil {
		t.Error("Expected error for invalid action")
	}
	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 0, 100, 0); err == nil {
		t.Error("Expected error for zero quantity")
	}
	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 1, 0, 0); err == nil {
		t.Error("Expected error for zero price")
	}
}

func TestPortfolioValueInvariant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 150, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := svc.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 5, 300, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	prices := map[string]float64{"AAPL": 160, "MSFT": 290}
	p, err := svc.Get(ctx, prices)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Total value must equal cash plus holdings at current prices
	expected := p.CashBalance + 10*160 + 5*290
	if math.Abs(p.TotalValue-expected) > 1e-6 {
		t.Errorf("Expected total value %v, got %v", expected, p.TotalValue)
	}
}

func TestHistoryRecordsTrades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 150, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionSell, 5, 160, 0); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	history, err := svc.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(history))
	}
	// Newest first
	if history[0].Action != types.ActionSell || history[0].TotalValue != 800 {
		t.Errorf("Unexpected latest trade: %+v", history[0])
	}
	if history[1].Action != types.ActionBuy || history[1].TotalValue != 1500 {
		t.Errorf("Unexpected first trade: %+v", history[1])
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 10, 150, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	p, err := svc.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.CashBalance != testBudget || len(p.Holdings) != 0 {
		t.Errorf("Expected fresh portfolio after reset, got %+v", p)
	}

	history, err := svc.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history after reset, got %d trades", len(history))
	}
}

func TestHeldSymbols(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.ExecuteTrade(ctx, "MSFT", types.ActionBuy, 1, 300, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := svc.ExecuteTrade(ctx, "AAPL", types.ActionBuy, 1, 150, 0); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	symbols, err := svc.HeldSymbols(ctx)
	if err != nil {
		t.Fatalf("HeldSymbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("Expected [AAPL MSFT], got %v", symbols)
	}
}
