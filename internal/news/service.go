package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/storage"
	"ai-trading-agent/internal/types"
)

// Service serves financial news with a TTL cache. Articles come from NewsAPI
// when a key is configured, Google News scraping as a fallback, and bundled
// sample headlines when both are unavailable so the dashboard never renders
// empty.
type Service struct {
	client   *APIClient
	scraper  *Scraper
	analyzer *SentimentAnalyzer
	store    *storage.Store
	cache    *newsCache
	cfg      *ServiceConfig
}

// ServiceConfig configures the news service.
type ServiceConfig struct {
	MaxArticles   int
	CacheDuration time.Duration
	FetchTimeout  time.Duration
}

func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxArticles:   10,
		CacheDuration: 10 * time.Minute,
		FetchTimeout:  15 * time.Second,
	}
}

// newsCache stores article lists keyed by query.
type newsCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	items     []types.NewsItem
	timestamp time.Time
}

func newNewsCache(ttl time.Duration) *newsCache {
	cache := &newsCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}
	go cache.cleanupLoop()
	return cache
}

func (c *newsCache) get(key string) ([]types.NewsItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.items, true
}

func (c *newsCache) set(key string, items []types.NewsItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		items:     items,
		timestamp: time.Now(),
	}
}

func (c *newsCache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *newsCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.data, key)
		}
	}
}

// NewService creates the news service. The analyzer may be nil when no LLM is
// configured; sentiment then comes from keyword scoring.
func NewService(store *storage.Store, analyzer *SentimentAnalyzer, cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	return &Service{
		client:   NewAPIClient(cfg.FetchTimeout),
		scraper:  NewScraper(cfg.FetchTimeout),
		analyzer: analyzer,
		store:    store,
		cache:    newNewsCache(cfg.CacheDuration),
		cfg:      cfg,
	}
}

// GetFinancialNews returns general market news for a free-text query.
func (s *Service) GetFinancialNews(ctx context.Context, query string, limit int) ([]types.NewsItem, error) {
	if query == "" {
		query = "stock market"
	}
	return s.fetch(ctx, query, "", limit)
}

// GetStockNews returns news scoped to a single symbol.
func (s *Service) GetStockNews(ctx context.Context, symbol string, limit int) ([]types.NewsItem, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return s.fetch(ctx, symbol+" stock", symbol, limit)
}

func (s *Service) fetch(ctx context.Context, query, symbol string, limit int) ([]types.NewsItem, error) {
	if limit <= 0 || limit > s.cfg.MaxArticles {
		limit = s.cfg.MaxArticles
	}

	cacheKey := fmt.Sprintf("%s|%d", query, limit)
	if cached, ok := s.cache.get(cacheKey); ok {
		return cached, nil
	}

	items, err := s.client.Everything(ctx, query, limit)
	if err != nil {
		logger.Warn(ctx, "NewsAPI unavailable, trying Google News", "query", query, "error", err)
		items, err = s.scraper.ScrapeGoogleNews(ctx, query, limit)
	}
	if err != nil || len(items) == 0 {
		if err != nil {
			logger.Warn(ctx, "News sources unavailable, serving sample headlines", "query", query, "error", err)
		}
		items = sampleNews(symbol, limit)
	}

	items = s.annotate(ctx, symbol, items)
	s.cache.set(cacheKey, items)
	return items, nil
}

// annotate scores sentiment per article and persists the analysis rows that
// back the analytics endpoints.
func (s *Service) annotate(ctx context.Context, symbol string, items []types.NewsItem) []types.NewsItem {
	if s.analyzer == nil {
		return items
	}

	results := s.analyzer.AnalyzeItems(ctx, items)
	for i := range items {
		if i >= len(results) {
			break
		}
		items[i].Sentiment = results[i].Sentiment

		if s.store == nil {
			continue
		}
		row := storage.NewsAnalysisRow{
			Symbol:    symbol,
			Title:     items[i].Title,
			Source:    items[i].Source,
			URL:       items[i].URL,
			Sentiment: results[i].Sentiment,
			Score:     results[i].Score,
		}
		if err := s.store.InsertNewsAnalysis(ctx, row); err != nil {
			logger.ErrorWithErr(ctx, "Failed to persist news analysis", err, "title", items[i].Title)
		}
	}
	return items
}

// sampleNews backs the dashboard when no live source is reachable.
func sampleNews(symbol string, limit int) []types.NewsItem {
	subject := "Markets"
	if symbol != "" {
		subject = symbol
	}

	now := time.Now().UTC()
	samples := []types.NewsItem{
		{
			Title:       fmt.Sprintf("%s steady as investors weigh earnings season", subject),
			Description: "Major indexes traded in a narrow range while traders parsed quarterly results.",
			URL:         "https://example.com/markets-steady",
			PublishedAt: now.Add(-2 * time.Hour),
			Source:      "Sample Wire",
		},
		{
			Title:       fmt.Sprintf("Analysts split on %s outlook for the quarter", subject),
			Description: "Sell-side targets diverge amid mixed macro signals and uneven guidance.",
			URL:         "https://example.com/analyst-outlook",
			PublishedAt: now.Add(-5 * time.Hour),
			Source:      "Sample Wire",
		},
		{
			Title:       "Fed commentary keeps rate-cut bets in play",
			Description: "Futures markets continue to price easing later this year.",
			URL:         "https://example.com/fed-commentary",
			PublishedAt: now.Add(-8 * time.Hour),
			Source:      "Sample Wire",
		},
	}
	if limit < len(samples) {
		samples = samples[:limit]
	}
	return samples
}
