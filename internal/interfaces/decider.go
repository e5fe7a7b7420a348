package interfaces

import (
	"context"

	"ai-trading-agent/internal/types"
)

// PortfolioContext is the portfolio state handed to the decider alongside
// market data and news.
type PortfolioContext struct {
	CashBalance float64
	TotalValue  float64
	Holdings    []types.Holding
}

type Decider interface {
	Decide(ctx context.Context, stock types.StockInfo, news []types.NewsItem, portfolio *PortfolioContext) (types.TradeDecision, error)
}

// ChatCompleter runs a free-form chat completion, used by the onboarding
// conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []types.ChatMessage) (string, error)
}
