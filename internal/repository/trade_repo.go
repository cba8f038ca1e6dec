package repository

import (
	"context"
	"fmt"

	"ledger-service/internal/domain"
)

type TradeRepo struct {
	db DBTX
}

// Create inserts t and fills its ID and CreatedAt.
func (r *TradeRepo) Create(ctx context.Context, t *domain.Trade) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO trades (username, symbol, side, amount, percent, profit, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`, t.Username, t.Symbol, t.Side, t.Amount, t.Percent, t.Profit, t.Result,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (r *TradeRepo) List(ctx context.Context, filter domain.TradeFilter) ([]*domain.Trade, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, username, symbol, side, amount, percent, profit, result, created_at
		FROM trades
		WHERE ($1::text = '' OR username = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, filter.Username, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.Username, &t.Symbol, &t.Side, &t.Amount, &t.Percent, &t.Profit, &t.Result, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}
