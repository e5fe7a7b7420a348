package llm

import (
	"context"
	"fmt"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/types"
)

// Momentum thresholds for the rule-based fallback.
const (
	buyThresholdPct  = 2.0
	sellThresholdPct = -3.0
)

// RuleDecider is a deterministic momentum strategy used when no LLM is
// reachable. It keeps the service functional offline.
type RuleDecider struct{}

func NewRuleDecider() *RuleDecider {
	return &RuleDecider{}
}

func (d *RuleDecider) Decide(_ context.Context, stock types.StockInfo, _ []types.NewsItem, _ *interfaces.PortfolioContext) (types.TradeDecision, error) {
	action := types.ActionHold
	reasoning := fmt.Sprintf("Price change of %.2f%% is within the neutral band", stock.ChangePercent)

	switch {
	case stock.ChangePercent > buyThresholdPct:
		action = types.ActionBuy
		reasoning = fmt.Sprintf("Positive momentum: price up %.2f%% today", stock.ChangePercent)
	case stock.ChangePercent < sellThresholdPct:
		action = types.ActionSell
		reasoning = fmt.Sprintf("Negative momentum: price down %.2f%% today", stock.ChangePercent)
	}

	quantity := 0
	if action != types.ActionHold {
		quantity = 10
	}

	return types.TradeDecision{
		Symbol:         stock.Symbol,
		Action:         action,
		Quantity:       quantity,
		Confidence:     0.6,
		Reasoning:      reasoning,
		SuggestedPrice: stock.CurrentPrice,
		KeyFactors:     []string{"price_momentum"},
	}, nil
}
