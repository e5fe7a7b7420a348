package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

type QuoteProvider interface {
	GetStockInfo(ctx context.Context, symbol string) (*types.StockInfo, error)
	GetMultipleStocks(ctx context.Context, symbols []string) ([]types.StockInfo, error)
}
