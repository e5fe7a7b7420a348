package market

import (
	"context"
	"fmt"
	"strings"

	"ai-trading-agent/internal/types"
)

// popularCompanies backs the company search endpoint. Matches are checked
// against the live quote source so unknown tickers never reach the trade path.
var popularCompanies = []struct {
	Symbol string
	Name   string
}{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com Inc."},
	{"TSLA", "Tesla Inc."},
	{"META", "Meta Platforms Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"NFLX", "Netflix Inc."},
	{"AMD", "Advanced Micro Devices Inc."},
	{"INTC", "Intel Corporation"},
	{"CRM", "Salesforce Inc."},
	{"ORCL", "Oracle Corporation"},
	{"ADBE", "Adobe Inc."},
	{"PYPL", "PayPal Holdings Inc."},
	{"DIS", "The Walt Disney Company"},
	{"V", "Visa Inc."},
	{"MA", "Mastercard Incorporated"},
	{"JPM", "JPMorgan Chase & Co."},
	{"BAC", "Bank of America Corporation"},
	{"WFC", "Wells Fargo & Company"},
	{"GS", "The Goldman Sachs Group Inc."},
	{"BRK-B", "Berkshire Hathaway Inc."},
	{"JNJ", "Johnson & Johnson"},
	{"PFE", "Pfizer Inc."},
	{"KO", "The Coca-Cola Company"},
	{"PEP", "PepsiCo Inc."},
	{"WMT", "Walmart Inc."},
	{"HD", "The Home Depot Inc."},
	{"NKE", "NIKE Inc."},
	{"MCD", "McDonald's Corporation"},
	{"SBUX", "Starbucks Corporation"},
	{"UNH", "UnitedHealth Group Incorporated"},
	{"CVX", "Chevron Corporation"},
	{"XOM", "Exxon Mobil Corporation"},
}

// NormalizeSymbol upper-cases and validates a ticker. Valid symbols are 1 to
// 10 characters of letters, digits, dots and dashes.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	if len(symbol) > 10 {
		return "", fmt.Errorf("invalid symbol %q: too long", symbol)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return "", fmt.Errorf("invalid symbol %q: unexpected character %q", symbol, r)
		}
	}
	return symbol, nil
}

// SearchCompanies matches a free-text query against the popular company table
// by ticker or name, then decorates matches with a live price where one is
// available.
func (s *Service) SearchCompanies(ctx context.Context, query string, limit int) ([]types.CompanyMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	upper := strings.ToUpper(query)
	lower := strings.ToLower(query)

	var matches []types.CompanyMatch
	for _, c := range popularCompanies {
		if strings.Contains(c.Symbol, upper) || strings.Contains(strings.ToLower(c.Name), lower) {
			matches = append(matches, types.CompanyMatch{Symbol: c.Symbol, Name: c.Name})
			if len(matches) >= limit {
				break
			}
		}
	}

	// A query that looks like a ticker but is not in the table still gets a
	// live probe, so less common symbols remain searchable.
	if len(matches) == 0 {
		if sym, err := NormalizeSymbol(query); err == nil {
			if info, err := s.GetStockInfo(ctx, sym); err == nil {
				matches = append(matches, types.CompanyMatch{
					Symbol:       sym,
					Name:         sym,
					CurrentPrice: info.CurrentPrice,
				})
			}
		}
		return matches, nil
	}

	for i := range matches {
		info, err := s.GetStockInfo(ctx, matches[i].Symbol)
		if err != nil {
			continue
		}
		matches[i].CurrentPrice = info.CurrentPrice
	}
	return matches, nil
}
