package llmobs

import (
	"context"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/trace"
	"ai-trading-agent/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

// Compile-time interface check
var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

// Decide requests a trading decision and records it on the active span
func (od *observableDecider) Decide(
	ctx context.Context,
	stock types.StockInfo,
	news []types.NewsItem,
	portfolio *interfaces.PortfolioContext,
) (types.TradeDecision, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Decide")
	defer span.End()

	logger.Debug(ctx, "Requesting trading decision",
		"symbol", stock.Symbol,
		"price", stock.CurrentPrice,
		"change_percent", stock.ChangePercent,
		"news_items", len(news),
	)

	decision, err := od.decider.Decide(ctx, stock, news, portfolio)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to get trading decision", err,
			"symbol", stock.Symbol,
			"price", stock.CurrentPrice,
		)
		return types.TradeDecision{}, err
	}

	logger.Info(ctx, "Trading decision received",
		"symbol", decision.Symbol,
		"action", decision.Action,
		"quantity", decision.Quantity,
		"confidence", decision.Confidence,
	)

	return decision, nil
}
