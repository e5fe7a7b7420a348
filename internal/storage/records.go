package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ai-trading-agent/internal/types"
)

type DecisionRow struct {
	ID                int64     `json:"id"`
	Symbol            string    `json:"symbol"`
	Action            string    `json:"action"`
	Confidence        float64   `json:"confidence"`
	Reasoning         string    `json:"reasoning"`
	SuggestedPrice    float64   `json:"suggested_price"`
	SuggestedQuantity int       `json:"suggested_quantity"`
	WasExecuted       bool      `json:"was_executed"`
	CreatedAt         time.Time `json:"created_at"`
}

type NewsAnalysisRow struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol,omitempty"`
	Title      string    `json:"title"`
	Source     string    `json:"source,omitempty"`
	URL        string    `json:"url,omitempty"`
	Sentiment  string    `json:"sentiment"`
	Score      float64   `json:"score"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type PricePoint struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *Store) InsertDecision(ctx context.Context, d types.TradeDecision) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_decisions (symbol, action, confidence, reasoning, suggested_price, suggested_quantity)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.Symbol, d.Action, d.Confidence, d.Reasoning, d.SuggestedPrice, d.Quantity)
	if err != nil {
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("decision id: %w", err)
	}
	return id, nil
}

func (s *Store) MarkDecisionExecuted(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ai_decisions SET was_executed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark decision executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark decision executed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, limit int) ([]DecisionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, action, confidence, reasoning, suggested_price, suggested_quantity, was_executed, created_at
		 FROM ai_decisions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var d DecisionRow
		var executed int
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Action, &d.Confidence, &d.Reasoning,
			&d.SuggestedPrice, &d.SuggestedQuantity, &executed, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.WasExecuted = executed != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CountDecisionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_decisions WHERE created_at >= ?`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

func (s *Store) InsertNewsAnalysis(ctx context.Context, r NewsAnalysisRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO news_analysis (symbol, title, source, url, sentiment, score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Symbol, r.Title, r.Source, r.URL, r.Sentiment, r.Score)
	if err != nil {
		return fmt.Errorf("insert news analysis: %w", err)
	}
	return nil
}

func (s *Store) ListNewsAnalysis(ctx context.Context, limit int) ([]NewsAnalysisRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, title, source, url, sentiment, score, analyzed_at
		 FROM news_analysis ORDER BY analyzed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list news analysis: %w", err)
	}
	defer rows.Close()

	var out []NewsAnalysisRow
	for rows.Next() {
		var r NewsAnalysisRow
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Title, &r.Source, &r.URL, &r.Sentiment, &r.Score, &r.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan news analysis: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RecordPrice(ctx context.Context, info types.StockInfo) error {
	var marketCap any
	if info.MarketCap != nil {
		marketCap = *info.MarketCap
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_prices (symbol, price, market_cap, volume, change_percent)
		 VALUES (?, ?, ?, ?, ?)`,
		info.Symbol, info.CurrentPrice, marketCap, info.Volume, info.ChangePercent)
	if err != nil {
		return fmt.Errorf("record price: %w", err)
	}
	return nil
}

func (s *Store) PriceHistory(ctx context.Context, symbol string, limit int) ([]PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, price, recorded_at FROM stock_prices
		 WHERE symbol = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Symbol, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePreferences upserts the single-user preference row. Goal and sector
// lists are stored as JSON arrays.
func (s *Store) SavePreferences(ctx context.Context, userID int64, p types.Preferences) error {
	goals, err := json.Marshal(p.InvestmentGoals)
	if err != nil {
		return fmt.Errorf("encode goals: %w", err)
	}
	sectors, err := json.Marshal(p.Sectors)
	if err != nil {
		return fmt.Errorf("encode sectors: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences
		 (user_id, risk_tolerance, investment_goals, time_horizon, sectors_of_interest,
		  budget_range, experience_level, automated_trading_preference)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   risk_tolerance = excluded.risk_tolerance,
		   investment_goals = excluded.investment_goals,
		   time_horizon = excluded.time_horizon,
		   sectors_of_interest = excluded.sectors_of_interest,
		   budget_range = excluded.budget_range,
		   experience_level = excluded.experience_level,
		   automated_trading_preference = excluded.automated_trading_preference,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, p.RiskTolerance, string(goals), p.TimeHorizon, string(sectors),
		p.BudgetRange, p.ExperienceLevel, p.AutomatedTrading)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID int64) (*types.Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT risk_tolerance, investment_goals, time_horizon, sectors_of_interest,
		        budget_range, experience_level, automated_trading_preference
		 FROM user_preferences WHERE user_id = ?`, userID)

	var p types.Preferences
	var goals, sectors string
	err := row.Scan(&p.RiskTolerance, &goals, &p.TimeHorizon, &sectors,
		&p.BudgetRange, &p.ExperienceLevel, &p.AutomatedTrading)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	if err := json.Unmarshal([]byte(goals), &p.InvestmentGoals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	if err := json.Unmarshal([]byte(sectors), &p.Sectors); err != nil {
		return nil, fmt.Errorf("decode sectors: %w", err)
	}
	return &p, nil
}
