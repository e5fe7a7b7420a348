package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ai-trading-agent/internal/types"
)

// DefaultPortfolioID is the single paper-trading portfolio row.
const DefaultPortfolioID = 1

type PortfolioRow struct {
	ID          int64
	CashBalance float64
	TotalValue  float64
}

type HoldingRow struct {
	Symbol   string
	Quantity int
	AvgPrice float64
}

// EnsurePortfolio creates the portfolio row with the initial budget when it
// does not exist yet, and returns the current row either way.
func (s *Store) EnsurePortfolio(ctx context.Context, id int64, initialBudget float64) (*PortfolioRow, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO portfolios (id, cash_balance, total_value) VALUES (?, ?, ?)`,
		id, initialBudget, initialBudget)
	if err != nil {
		return nil, fmt.Errorf("ensure portfolio: %w", err)
	}
	return s.GetPortfolio(ctx, id)
}

func (s *Store) GetPortfolio(ctx context.Context, id int64) (*PortfolioRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, cash_balance, total_value FROM portfolios WHERE id = ?`, id)

	var p PortfolioRow
	if err := row.Scan(&p.ID, &p.CashBalance, &p.TotalValue); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return &p, nil
}

func (s *Store) SetTotalValue(ctx context.Context, id int64, totalValue float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE portfolios SET total_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		totalValue, id)
	if err != nil {
		return fmt.Errorf("set total value: %w", err)
	}
	return nil
}

func (s *Store) ListHoldings(ctx context.Context, portfolioID int64) ([]HoldingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, avg_price FROM holdings WHERE portfolio_id = ? ORDER BY symbol`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []HoldingRow
	for rows.Next() {
		var h HoldingRow
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Buy debits cash, upserts the holding with a weighted average cost basis and
// records the trade, all in one transaction. Returns ErrInsufficientFunds when
// the cash balance cannot cover the order.
func (s *Store) Buy(ctx context.Context, portfolioID int64, symbol string, quantity int, price float64) (*types.TradeRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin buy tx: %w", err)
	}
	defer tx.Rollback()

	var cash float64
	err = tx.QueryRowContext(ctx,
		`SELECT cash_balance FROM portfolios WHERE id = ?`, portfolioID).Scan(&cash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cash balance: %w", err)
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
	if decimal.NewFromFloat(cash).LessThan(cost) {
		return nil, ErrInsufficientFunds
	}

	costF, _ := cost.Float64()
	newCash, _ := decimal.NewFromFloat(cash).Sub(cost).Float64()

	if _, err := tx.ExecContext(ctx,
		`UPDATE portfolios SET cash_balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newCash, portfolioID); err != nil {
		return nil, fmt.Errorf("debit cash: %w", err)
	}

	var prevQty int
	var prevAvg float64
	err = tx.QueryRowContext(ctx,
		`SELECT quantity, avg_price FROM holdings WHERE portfolio_id = ? AND symbol = ?`,
		portfolioID, symbol).Scan(&prevQty, &prevAvg)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO holdings (portfolio_id, symbol, quantity, avg_price) VALUES (?, ?, ?, ?)`,
			portfolioID, symbol, quantity, price); err != nil {
			return nil, fmt.Errorf("insert holding: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read holding: %w", err)
	default:
		prevCost := decimal.NewFromFloat(prevAvg).Mul(decimal.NewFromInt(int64(prevQty)))
		totalQty := prevQty + quantity
		newAvg, _ := prevCost.Add(cost).Div(decimal.NewFromInt(int64(totalQty))).Float64()
		if _, err := tx.ExecContext(ctx,
			`UPDATE holdings SET quantity = ?, avg_price = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE portfolio_id = ? AND symbol = ?`,
			totalQty, newAvg, portfolioID, symbol); err != nil {
			return nil, fmt.Errorf("update holding: %w", err)
		}
	}

	rec, err := insertTradeTx(ctx, tx, portfolioID, symbol, types.ActionBuy, quantity, price, costF)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit buy: %w", err)
	}
	return rec, nil
}

// Sell credits cash and reduces or removes the holding. Returns
// ErrInsufficientShares when the holding cannot cover the order.
func (s *Store) Sell(ctx context.Context, portfolioID int64, symbol string, quantity int, price float64) (*types.TradeRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sell tx: %w", err)
	}
	defer tx.Rollback()

	var prevQty int
	var prevAvg float64
	err = tx.QueryRowContext(ctx,
		`SELECT quantity, avg_price FROM holdings WHERE portfolio_id = ? AND symbol = ?`,
		portfolioID, symbol).Scan(&prevQty, &prevAvg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInsufficientShares
		}
		return nil, fmt.Errorf("read holding: %w", err)
	}
	if prevQty < quantity {
		return nil, ErrInsufficientShares
	}

	proceeds := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
	proceedsF, _ := proceeds.Float64()

	var cash float64
	if err := tx.QueryRowContext(ctx,
		`SELECT cash_balance FROM portfolios WHERE id = ?`, portfolioID).Scan(&cash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cash balance: %w", err)
	}
	newCash, _ := decimal.NewFromFloat(cash).Add(proceeds).Float64()

	if _, err := tx.ExecContext(ctx,
		`UPDATE portfolios SET cash_balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newCash, portfolioID); err != nil {
		return nil, fmt.Errorf("credit cash: %w", err)
	}

	if prevQty == quantity {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE portfolio_id = ? AND symbol = ?`,
			portfolioID, symbol); err != nil {
			return nil, fmt.Errorf("delete holding: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE holdings SET quantity = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE portfolio_id = ? AND symbol = ?`,
			prevQty-quantity, portfolioID, symbol); err != nil {
			return nil, fmt.Errorf("update holding: %w", err)
		}
	}

	rec, err := insertTradeTx(ctx, tx, portfolioID, symbol, types.ActionSell, quantity, price, proceedsF)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sell: %w", err)
	}
	return rec, nil
}

func insertTradeTx(ctx context.Context, tx *sql.Tx, portfolioID int64, symbol, action string, quantity int, price, totalValue float64) (*types.TradeRecord, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO trades (portfolio_id, symbol, action, quantity, price, total_value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		portfolioID, symbol, action, quantity, price, totalValue)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("trade id: %w", err)
	}

	var executedAt time.Time
	if err := tx.QueryRowContext(ctx,
		`SELECT executed_at FROM trades WHERE id = ?`, id).Scan(&executedAt); err != nil {
		return nil, fmt.Errorf("read trade timestamp: %w", err)
	}

	return &types.TradeRecord{
		ID:         id,
		Symbol:     symbol,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		TotalValue: totalValue,
		Timestamp:  executedAt,
	}, nil
}

func (s *Store) ListTrades(ctx context.Context, portfolioID int64, limit int) ([]types.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, action, quantity, price, total_value, executed_at
		 FROM trades WHERE portfolio_id = ? ORDER BY executed_at DESC, id DESC LIMIT ?`,
		portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []types.TradeRecord
	for rows.Next() {
		var t types.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Action, &t.Quantity, &t.Price, &t.TotalValue, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResetPortfolio wipes holdings and trades and restores the initial budget.
func (s *Store) ResetPortfolio(ctx context.Context, portfolioID int64, initialBudget float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM holdings WHERE portfolio_id = ?`, portfolioID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trades WHERE portfolio_id = ?`, portfolioID); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO portfolios (id, cash_balance, total_value) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cash_balance = excluded.cash_balance,
		 total_value = excluded.total_value, updated_at = CURRENT_TIMESTAMP`,
		portfolioID, initialBudget, initialBudget); err != nil {
		return fmt.Errorf("reset portfolio row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
