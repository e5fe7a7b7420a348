package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"ai-trading-agent/internal/logger"
	"ai-trading-agent/internal/types"
)

// Scraper pulls headlines from Google News when the NewsAPI key is missing or
// the API request fails.
type Scraper struct {
	timeout time.Duration
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{timeout: timeout}
}

// ScrapeGoogleNews searches Google News for recent headlines about a query.
func (s *Scraper) ScrapeGoogleNews(ctx context.Context, query string, maxArticles int) ([]types.NewsItem, error) {
	if maxArticles <= 0 {
		maxArticles = 10
	}

	items := []types.NewsItem{}

	c := colly.NewCollector(
		colly.AllowedDomains("news.google.com", "www.google.com"),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(items) >= maxArticles {
			return
		}

		title := strings.TrimSpace(e.ChildText("h3, h4"))
		link := e.ChildAttr("a", "href")
		if title == "" || link == "" {
			return
		}

		// Google News links are relative redirect paths.
		if strings.HasPrefix(link, "./articles/") {
			link = "https://news.google.com" + link[1:]
		}

		items = append(items, types.NewsItem{
			Title:       title,
			URL:         link,
			Source:      "Google News",
			PublishedAt: time.Now().UTC(),
		})
	})

	searchQuery := url.QueryEscape(query + " stock news")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en-US&gl=US&ceid=US:en", searchQuery)

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("scrape google news: %w", err)
	}
	c.Wait()

	logger.Info(ctx, "Google News scraping completed", "query", query, "articles", len(items))
	return items, nil
}
