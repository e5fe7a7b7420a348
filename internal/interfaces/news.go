package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

type NewsProvider interface {
	GetFinancialNews(ctx context.Context, query string, limit int) ([]types.NewsItem, error)
	GetStockNews(ctx context.Context, symbol string, limit int) ([]types.NewsItem, error)
}
