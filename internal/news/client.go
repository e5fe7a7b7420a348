package news

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"ai-trading-agent/internal/types"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// ErrNoAPIKey signals a missing NEWS_API_KEY so callers can fall back to the
// scraper or sample data instead of failing the request.
var ErrNoAPIKey = errors.New("NEWS_API_KEY missing")

// APIClient fetches articles from NewsAPI.
type APIClient struct {
	http *resty.Client
}

func NewAPIClient(timeout time.Duration) *APIClient {
	client := resty.New().
		SetBaseURL(newsAPIBaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &APIClient{http: client}
}

type newsAPIResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Everything queries the NewsAPI everything endpoint for articles from the
// last 24 hours, newest first.
func (c *APIClient) Everything(ctx context.Context, query string, limit int) ([]types.NewsItem, error) {
	apiKey := os.Getenv("NEWS_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var result newsAPIResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"language": "en",
			"sortBy":   "publishedAt",
			"from":     time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
			"pageSize": fmt.Sprintf("%d", limit),
			"apiKey":   apiKey,
		}).
		SetResult(&result).
		Get("/everything")
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("newsapi http %d: %s", resp.StatusCode(), result.Message)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %s: %s", result.Code, result.Message)
	}

	items := make([]types.NewsItem, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.Title == "" {
			continue
		}
		items = append(items, types.NewsItem{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      a.Source.Name,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}
