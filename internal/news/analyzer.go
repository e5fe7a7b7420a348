package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"ai-trading-agent/internal/interfaces"
	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/types"
)

// SentimentAnalyzer classifies headlines as positive, negative or neutral.
// It asks the configured LLM first and falls back to keyword scoring when the
// model is unavailable or returns garbage.
type SentimentAnalyzer struct {
	completer interfaces.ChatCompleter
}

// SentimentResult is one scored article.
type SentimentResult struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

func NewSentimentAnalyzer(completer interfaces.ChatCompleter) *SentimentAnalyzer {
	return &SentimentAnalyzer{completer: completer}
}

// AnalyzeItems scores each article. Items come back in input order with the
// Sentiment field filled in.
func (a *SentimentAnalyzer) AnalyzeItems(ctx context.Context, items []types.NewsItem) []SentimentResult {
	results := make([]SentimentResult, len(items))

	batch, err := a.analyzeBatchLLM(ctx, items)
	if err == nil && len(batch) == len(items) {
		return batch
	}
	if err != nil {
		logger.Warn(ctx, "LLM sentiment analysis unavailable, using keyword scoring", "error", err)
	}

	for i, item := range items {
		results[i] = keywordSentiment(item.Title + " " + item.Description)
	}
	return results
}

func (a *SentimentAnalyzer) analyzeBatchLLM(ctx context.Context, items []types.NewsItem) ([]SentimentResult, error) {
	if a.completer == nil {
		return nil, fmt.Errorf("no completer configured")
	}
	if len(items) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Classify the sentiment of each financial headline for an investor.\n")
	sb.WriteString("Respond ONLY with a JSON array, one object per headline, in the same order, ")
	sb.WriteString(`matching: [{"sentiment": "positive|negative|neutral", "score": -1.0 to 1.0}]` + "\n\nHeadlines:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item.Title)
	}

	raw, err := a.completer.Complete(ctx, []types.ChatMessage{
		{Role: "system", Content: "You are a financial news sentiment classifier. Respond ONLY with valid JSON."},
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		return nil, err
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair sentiment JSON: %w", err)
	}

	var results []SentimentResult
	if err := json.Unmarshal([]byte(repaired), &results); err != nil {
		return nil, fmt.Errorf("parse sentiment JSON: %w", err)
	}

	for i := range results {
		results[i].Sentiment = normalizeSentiment(results[i].Sentiment)
		if results[i].Score > 1 {
			results[i].Score = 1
		}
		if results[i].Score < -1 {
			results[i].Score = -1
		}
	}
	return results, nil
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "bullish":
		return "positive"
	case "negative", "bearish":
		return "negative"
	default:
		return "neutral"
	}
}

var (
	positiveWords = []string{"surge", "rally", "gain", "beat", "record", "growth", "upgrade", "profit", "strong", "soar", "jump", "bullish"}
	negativeWords = []string{"fall", "drop", "loss", "miss", "downgrade", "lawsuit", "recall", "decline", "weak", "plunge", "slump", "bearish", "cut"}
)

// keywordSentiment is the offline fallback scorer.
func keywordSentiment(text string) SentimentResult {
	lower := strings.ToLower(text)

	score := 0.0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.25
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.25
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}

	sentiment := "neutral"
	if score >= 0.25 {
		sentiment = "positive"
	} else if score <= -0.25 {
		sentiment = "negative"
	}
	return SentimentResult{Sentiment: sentiment, Score: score}
}
