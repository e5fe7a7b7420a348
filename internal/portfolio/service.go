package portfolio

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/tradelog"
	"ai-trading-agent/internal/types"
)

// Service manages the single paper-trading portfolio. The row is created
// lazily with the configured initial budget on first access.
type Service struct {
	store         *storage.Store
	initialBudget float64
}

func NewService(store *storage.Store, initialBudget float64) *Service {
	return &Service{
		store:         store,
		initialBudget: initialBudget,
	}
}

// Get returns the portfolio valued at the supplied current prices. Holdings
// with no price available fall back to their average cost.
func (s *Service) Get(ctx context.Context, currentPrices map[string]float64) (*types.Portfolio, error) {
	row, err := s.store.EnsurePortfolio(ctx, storage.DefaultPortfolioID, s.initialBudget)
	if err != nil {
		return nil, err
	}

	holdingRows, err := s.store.ListHoldings(ctx, storage.DefaultPortfolioID)
	if err != nil {
		return nil, err
	}

	total := decimal.NewFromFloat(row.CashBalance)
	holdings := make([]types.Holding, 0, len(holdingRows))
	for _, h := range holdingRows {
		price := h.AvgPrice
		if p, ok := currentPrices[h.Symbol]; ok && p > 0 {
			price = p
		}

		qty := decimal.NewFromInt(int64(h.Quantity))
		value := decimal.NewFromFloat(price).Mul(qty)
		cost := decimal.NewFromFloat(h.AvgPrice).Mul(qty)

		valueF, _ := value.Float64()
		plF, _ := value.Sub(cost).Float64()

		holdings = append(holdings, types.Holding{
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			AvgPrice:     h.AvgPrice,
			CurrentPrice: price,
			Value:        valueF,
			ProfitLoss:   plF,
		})
		total = total.Add(value)
	}

	totalF, _ := total.Float64()
	if err := s.store.SetTotalValue(ctx, storage.DefaultPortfolioID, totalF); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist portfolio total value", err)
	}

	initial := decimal.NewFromFloat(s.initialBudget)
	pl := total.Sub(initial)
	plF, _ := pl.Float64()
	plPct := 0.0
	if !initial.IsZero() {
		plPct, _ = pl.Div(initial).Mul(decimal.NewFromInt(100)).Float64()
	}

	return &types.Portfolio{
		CashBalance:       row.CashBalance,
		TotalValue:        totalF,
		Holdings:          holdings,
		ProfitLoss:        plF,
		ProfitLossPercent: plPct,
	}, nil
}

// ExecuteTrade applies a buy or sell at the given price and records the trade.
// A non-zero decisionID marks the originating recommendation as executed.
func (s *Service) ExecuteTrade(ctx context.Context, symbol, action string, quantity int, price float64, decisionID int64) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	if _, err := s.store.EnsurePortfolio(ctx, storage.DefaultPortfolioID, s.initialBudget); err != nil {
		return err
	}

	var rec *types.TradeRecord
	var err error
	switch action {
	case types.ActionBuy:
		rec, err = s.store.Buy(ctx, storage.DefaultPortfolioID, symbol, quantity, price)
	case types.ActionSell:
		rec, err = s.store.Sell(ctx, storage.DefaultPortfolioID, symbol, quantity, price)
	default:
		return fmt.Errorf("invalid action %q: must be buy or sell", action)
	}
	if err != nil {
		return err
	}

	if err := s.store.RecordPrice(ctx, types.StockInfo{Symbol: symbol, CurrentPrice: price}); err != nil {
		logger.Warn(ctx, "Failed to record price snapshot", "symbol", symbol, "error", err)
	}

	if decisionID > 0 {
		if err := s.store.MarkDecisionExecuted(ctx, decisionID); err != nil {
			logger.Warn(ctx, "Failed to mark decision executed", "decision_id", decisionID, "error", err)
		}
	}

	logger.Trade(ctx, symbol, action, quantity, price, fmt.Sprintf("%d", rec.ID))
	_ = tradelog.Append(tradelog.Entry{
		Symbol:     symbol,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		TotalValue: rec.TotalValue,
		DecisionID: decisionID,
	})
	return nil
}

// History returns recent trades, newest first.
func (s *Service) History(ctx context.Context) ([]types.TradeRecord, error) {
	if _, err := s.store.EnsurePortfolio(ctx, storage.DefaultPortfolioID, s.initialBudget); err != nil {
		return nil, err
	}
	return s.store.ListTrades(ctx, storage.DefaultPortfolioID, 100)
}

// Reset wipes trades and holdings and restores the initial budget.
func (s *Service) Reset(ctx context.Context) error {
	return s.store.ResetPortfolio(ctx, storage.DefaultPortfolioID, s.initialBudget)
}

// HeldSymbols lists symbols with open positions.
func (s *Service) HeldSymbols(ctx context.Context) ([]string, error) {
	holdings, err := s.store.ListHoldings(ctx, storage.DefaultPortfolioID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	return symbols, nil
}

var _ interfaces.PortfolioService = (*Service)(nil)
