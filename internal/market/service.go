package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/piquette/finance-go/equity"

	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/types"
)

// ErrSymbolNotFound is returned when the quote source has no data for a
// symbol. Handlers map it to a 404.
var ErrSymbolNotFound = errors.New("symbol not found")

// Service serves stock quotes from Yahoo Finance with a short TTL cache so a
// dashboard polling the same symbols does not hammer the upstream.
type Service struct {
	cache *quoteCache
}

func NewService(cacheTTL time.Duration) *Service {
	return &Service{
		cache: newQuoteCache(cacheTTL),
	}
}

// GetStockInfo returns the current quote for one symbol.
func (s *Service) GetStockInfo(ctx context.Context, symbol string) (*types.StockInfo, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	if info, ok := s.cache.get(symbol); ok {
		return info, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := equity.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	info := &types.StockInfo{
		Symbol:        symbol,
		CurrentPrice:  q.RegularMarketPrice,
		Volume:        int64(q.RegularMarketVolume),
		ChangePercent: q.RegularMarketChangePercent,
	}
	if q.MarketCap > 0 {
		mc := float64(q.MarketCap)
		info.MarketCap = &mc
	}

	s.cache.set(symbol, info)
	return info, nil
}

// GetMultipleStocks fetches quotes for several symbols. Symbols that fail to
// resolve are skipped rather than failing the whole batch.
func (s *Service) GetMultipleStocks(ctx context.Context, symbols []string) ([]types.StockInfo, error) {
	out := make([]types.StockInfo, 0, len(symbols))
	for _, sym := range symbols {
		info, err := s.GetStockInfo(ctx, sym)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Warn(ctx, "Skipping symbol in batch quote", "symbol", sym, "error", err)
			continue
		}
		out = append(out, *info)
	}
	return out, nil
}

// quoteCache keeps recent quotes behind an RWMutex with a background sweep of
// expired entries.
type quoteCache struct {
	mu   sync.RWMutex
	data map[string]*quoteEntry
	ttl  time.Duration
}

type quoteEntry struct {
	info      *types.StockInfo
	timestamp time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	c := &quoteCache{
		data: make(map[string]*quoteEntry),
		ttl:  ttl,
	}
	go c.cleanupLoop()
	return c
}

func (c *quoteCache) get(symbol string) (*types.StockInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[symbol]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.info, true
}

func (c *quoteCache) set(symbol string, info *types.StockInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[symbol] = &quoteEntry{
		info:      info,
		timestamp: time.Now(),
	}
}

func (c *quoteCache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *quoteCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for symbol, entry := range c.data {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.data, symbol)
		}
	}
}
