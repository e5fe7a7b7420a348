package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr       string `yaml:"addr"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`
	Portfolio struct {
		InitialBudget float64 `yaml:"initial_budget"`
		DBPath        string  `yaml:"db_path"`
	} `yaml:"portfolio"`
	Market struct {
		CacheSeconds int `yaml:"cache_seconds"`
	} `yaml:"market"`
	News struct {
		MaxArticles  int `yaml:"max_articles"`
		CacheSeconds int `yaml:"cache_seconds"`
	} `yaml:"news"`
	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"llm"`
	Engine struct {
		Symbols             []string `yaml:"symbols"`
		Mode                string   `yaml:"mode"`
		AnalysisInterval    int      `yaml:"analysis_interval_seconds"`
		MaxDailyTrades      int      `yaml:"max_daily_trades"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	} `yaml:"engine"`
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	if c.Portfolio.InitialBudget <= 0 {
		return fmt.Errorf("portfolio.initial_budget must be positive, got %.2f", c.Portfolio.InitialBudget)
	}
	if c.Engine.Mode != "analysis_only" && c.Engine.Mode != "full_control" {
		return fmt.Errorf("engine.mode must be 'analysis_only' or 'full_control', got '%s'", c.Engine.Mode)
	}
	if len(c.Engine.Symbols) == 0 {
		return errors.New("engine.symbols cannot be empty")
	}
	if c.Engine.AnalysisInterval < 120 || c.Engine.AnalysisInterval > 3600 {
		return fmt.Errorf("engine.analysis_interval_seconds must be between 120 and 3600, got %d", c.Engine.AnalysisInterval)
	}
	if c.Engine.MaxDailyTrades < 1 || c.Engine.MaxDailyTrades > 50 {
		return fmt.Errorf("engine.max_daily_trades must be between 1 and 50, got %d", c.Engine.MaxDailyTrades)
	}
	if c.Engine.ConfidenceThreshold < 0.5 || c.Engine.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("engine.confidence_threshold must be between 0.5 and 1.0, got %.2f", c.Engine.ConfidenceThreshold)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)
	applyEnvOverrides(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8001"
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "http://localhost:5173"
	}
	if c.Portfolio.InitialBudget == 0 {
		c.Portfolio.InitialBudget = 1000000
	}
	if c.Portfolio.DBPath == "" {
		c.Portfolio.DBPath = "ai_trading.db"
	}
	if c.Market.CacheSeconds == 0 {
		c.Market.CacheSeconds = 180
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 10
	}
	if c.News.CacheSeconds == 0 {
		c.News.CacheSeconds = 600
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "OPENAI"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = "analysis_only"
	}
	if c.Engine.AnalysisInterval == 0 {
		c.Engine.AnalysisInterval = 300
	}
	if c.Engine.MaxDailyTrades == 0 {
		c.Engine.MaxDailyTrades = 10
	}
	if c.Engine.ConfidenceThreshold == 0 {
		c.Engine.ConfidenceThreshold = 0.75
	}
	if len(c.Engine.Symbols) == 0 {
		c.Engine.Symbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META", "JPM", "V", "JNJ"}
	}
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("TRADING_SYMBOLS"); v != "" {
		var syms []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
				syms = append(syms, s)
			}
		}
		if len(syms) > 0 {
			c.Engine.Symbols = syms
		}
	}
	if v := os.Getenv("INITIAL_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Portfolio.InitialBudget = f
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.Portfolio.DBPath = v
	}
}
