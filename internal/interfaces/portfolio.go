package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

type PortfolioService interface {
	Get(ctx context.Context, currentPrices map[string]float64) (*types.Portfolio, error)
	ExecuteTrade(ctx context.Context, symbol, action string, quantity int, price float64, decisionID int64) error
	History(ctx context.Context) ([]types.TradeRecord, error)
	Reset(ctx context.Context) error
	HeldSymbols(ctx context.Context) ([]string, error)
}
