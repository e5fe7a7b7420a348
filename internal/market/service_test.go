package market

import (
	"testing"
	"time"

	"ai-trading-agent/internal/types"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "aapl", "AAPL", false},
		{"trims whitespace", "  msft ", "MSFT", false},
		{"class share", "brk-b", "BRK-B", false},
		{"dotted", "bf.b", "BF.B", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", "ABCDEFGHIJK", "", true},
		{"punctuation", "AAPL;DROP", "", true},
		{"spaces inside", "AA PL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestQuoteCacheGetSet(t *testing.T) {
	cache := newQuoteCache(1 * time.Hour)

	if _, ok := cache.get("AAPL"); ok {
		t.Error("Expected cache miss for empty cache")
	}

	info := &types.StockInfo{Symbol: "AAPL", CurrentPrice: 187.5}
	cache.set("AAPL", info)

	got, ok := cache.get("AAPL")
	if !ok {
		t.Fatal("Expected cache hit after set")
	}
	if got.CurrentPrice != 187.5 {
		t.Errorf("Expected price 187.5, got %v", got.CurrentPrice)
	}
}

func TestQuoteCacheExpiration(t *testing.T) {
	cache := newQuoteCache(50 * time.Millisecond)

	cache.set("TSLA", &types.StockInfo{Symbol: "TSLA", CurrentPrice: 250})
	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.get("TSLA"); ok {
		t.Error("Expected cache miss after TTL expiry")
	}

	cache.cleanup()

	cache.mu.RLock()
	count := len(cache.data)
	cache.mu.RUnlock()
	if count != 0 {
		t.Errorf("Expected 0 cache entries after cleanup, got %d", count)
	}
}
