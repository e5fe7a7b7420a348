package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/types"
)

// Position sizing for model suggestions. A buy percentage is taken against a
// notional position, a sell percentage against a notional share lot.
const (
	buyNotionalUSD = 10000.0
	sellLotShares  = 100.0
)

const deciderSystemPrompt = "You are an expert stock trading advisor. " +
	"Analyze the provided market data, news and portfolio state, then respond ONLY with valid JSON."

const deciderSchema = `{
  "action": "buy|sell|hold",
  "confidence": 0.0 to 1.0,
  "quantity_percentage": 0 to 100,
  "reasoning": "brief explanation",
  "key_factors": ["factor1", "factor2"]
}`

// Decider asks the configured chat model for a trade recommendation and falls
// back to momentum rules when the model is unreachable.
type Decider struct {
	completer interfaces.ChatCompleter
	fallback  *RuleDecider
}

func NewDecider(completer interfaces.ChatCompleter) *Decider {
	return &Decider{
		completer: completer,
		fallback:  NewRuleDecider(),
	}
}

// rawDecision matches the JSON the model is asked to produce.
type rawDecision struct {
	Action             string   `json:"action"`
	Confidence         float64  `json:"confidence"`
	QuantityPercentage float64  `json:"quantity_percentage"`
	Reasoning          string   `json:"reasoning"`
	KeyFactors         []string `json:"key_factors"`
}

func (d *Decider) Decide(ctx context.Context, stock types.StockInfo, news []types.NewsItem, portfolio *interfaces.PortfolioContext) (types.TradeDecision, error) {
	raw, err := d.completer.Complete(ctx, []types.ChatMessage{
		{Role: "system", Content: deciderSystemPrompt},
		{Role: "user", Content: buildDecisionPrompt(stock, news, portfolio)},
	})
	if err != nil {
		logger.Warn(ctx, "LLM unavailable, using rule-based decision", "symbol", stock.Symbol, "error", err)
		return d.fallback.Decide(ctx, stock, news, portfolio)
	}

	decision, err := parseDecision(raw, stock)
	if err != nil {
		logger.Warn(ctx, "Unparseable LLM decision, using rule-based decision", "symbol", stock.Symbol, "error", err)
		return d.fallback.Decide(ctx, stock, news, portfolio)
	}

	logger.Decision(ctx, decision.Symbol, decision.Action, decision.Confidence, decision.Reasoning)
	return decision, nil
}

func buildDecisionPrompt(stock types.StockInfo, news []types.NewsItem, portfolio *interfaces.PortfolioContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Stock: %s\nCurrent price: $%.2f\nChange today: %.2f%%\nVolume: %d\n",
		stock.Symbol, stock.CurrentPrice, stock.ChangePercent, stock.Volume)
	if stock.MarketCap != nil {
		fmt.Fprintf(&sb, "Market cap: $%.0f\n", *stock.MarketCap)
	}

	sb.WriteString("\nRecent news:\n")
	count := 0
	for _, item := range news {
		if count >= 5 {
			break
		}
		fmt.Fprintf(&sb, "- %s", item.Title)
		if item.Sentiment != "" {
			fmt.Fprintf(&sb, " [%s]", item.Sentiment)
		}
		sb.WriteString("\n")
		count++
	}
	if count == 0 {
		sb.WriteString("- no recent news available\n")
	}

	if portfolio != nil {
		fmt.Fprintf(&sb, "\nPortfolio: cash $%.2f, total value $%.2f\n",
			portfolio.CashBalance, portfolio.TotalValue)
		for _, h := range portfolio.Holdings {
			fmt.Fprintf(&sb, "- holding %s: %d shares at avg $%.2f\n", h.Symbol, h.Quantity, h.AvgPrice)
		}
	}

	fmt.Fprintf(&sb, "\nShould I buy, sell, or hold %s right now?\nRespond ONLY with JSON matching:\n%s",
		stock.Symbol, deciderSchema)
	return sb.String()
}

// parseDecision repairs and decodes the model output, clamps fields into
// range and converts the percentage into a share quantity.
func parseDecision(text string, stock types.StockInfo) (types.TradeDecision, error) {
	repaired, err := jsonrepair.JSONRepair(extractJSONObject(text))
	if err != nil {
		return types.TradeDecision{}, fmt.Errorf("repair decision JSON: %w", err)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return types.TradeDecision{}, fmt.Errorf("parse decision JSON: %w", err)
	}

	action := strings.ToLower(strings.TrimSpace(raw.Action))
	switch action {
	case types.ActionBuy, types.ActionSell, types.ActionHold:
	default:
		action = types.ActionHold
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return types.TradeDecision{
		Symbol:         stock.Symbol,
		Action:         action,
		Quantity:       suggestedQuantity(action, raw.QuantityPercentage, stock.CurrentPrice),
		Confidence:     confidence,
		Reasoning:      raw.Reasoning,
		SuggestedPrice: stock.CurrentPrice,
		KeyFactors:     raw.KeyFactors,
	}, nil
}

// extractJSONObject strips any prose the model wrapped around the object.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// suggestedQuantity converts a percentage suggestion into whole shares.
func suggestedQuantity(action string, pct, price float64) int {
	if action == types.ActionHold {
		return 0
	}
	if pct <= 0 || pct > 100 {
		pct = 10
	}

	var shares float64
	switch action {
	case types.ActionBuy:
		if price <= 0 {
			return 1
		}
		shares = math.Floor(pct / 100 * buyNotionalUSD / price)
	case types.ActionSell:
		shares = math.Floor(pct / 100 * sellLotShares)
	}

	if shares < 1 {
		return 1
	}
	return int(shares)
}
