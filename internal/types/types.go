package types

import "time"

// Trade actions as stored and served over the API.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

type StockInfo struct {
	Symbol        string   `json:"symbol"`
	CurrentPrice  float64  `json:"current_price"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	Volume        int64    `json:"volume"`
	ChangePercent float64  `json:"change_percent"`
}

type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Sentiment   string    `json:"sentiment,omitempty"`
}

type TradeDecision struct {
	ID             int64    `json:"decision_id,omitempty"`
	Symbol         string   `json:"symbol"`
	Action         string   `json:"action"`
	Quantity       int      `json:"quantity"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	SuggestedPrice float64  `json:"suggested_price"`
	KeyFactors     []string `json:"key_factors,omitempty"`
}

type TradeOrder struct {
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price,omitempty"`
	DecisionID int64   `json:"decision_id,omitempty"`
}

type Holding struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	ProfitLoss   float64 `json:"profit_loss"`
}

type Portfolio struct {
	CashBalance       float64   `json:"cash_balance"`
	TotalValue        float64   `json:"total_value"`
	Holdings          []Holding `json:"holdings"`
	ProfitLoss        float64   `json:"profit_loss"`
	ProfitLossPercent float64   `json:"profit_loss_percent"`
}

type TradeRecord struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	TotalValue float64   `json:"total_value"`
	Timestamp  time.Time `json:"timestamp"`
}

type Preferences struct {
	RiskTolerance    string   `json:"risk_tolerance"`
	InvestmentGoals  []string `json:"investment_goals"`
	TimeHorizon      string   `json:"time_horizon"`
	Sectors          []string `json:"sectors_of_interest"`
	BudgetRange      string   `json:"budget_range"`
	ExperienceLevel  string   `json:"experience_level"`
	AutomatedTrading string   `json:"automated_trading_preference"`
}

type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type CompanyMatch struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Exchange     string  `json:"exchange,omitempty"`
	CurrentPrice float64 `json:"current_price,omitempty"`
}
