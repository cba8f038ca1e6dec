package repository

import (
	"context"
	"fmt"
	"time"

	"ledger-service/internal/domain"
)

type ReportRepo struct {
	db DBTX
}

// ============================================================================
// STATISTICS OPERATIONS
// ============================================================================

func (r *ReportRepo) Summary(ctx context.Context, from, to time.Time) (*domain.Summary, error) {
	s := &domain.Summary{From: from, To: to}

	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, kind, status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM fund_requests
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day, kind, status
		ORDER BY day, kind, status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("fund request stats: %w", err)
	}
	for rows.Next() {
		var st domain.FundRequestStat
		if err := rows.Scan(&st.Day, &st.Kind, &st.Status, &st.Count, &st.Total); err != nil {
			rows.Close()
			return nil, err
		}
		s.FundRequests = append(s.FundRequests, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, kind, status, COUNT(*)
		FROM verifications
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day, kind, status
		ORDER BY day, kind, status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("verification stats: %w", err)
	}
	for rows.Next() {
		var st domain.VerificationStat
		if err := rows.Scan(&st.Day, &st.Kind, &st.Status, &st.Count); err != nil {
			rows.Close()
			return nil, err
		}
		s.Verifications = append(s.Verifications, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT
			date_trunc('day', created_at) AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE result = 'win'),
			COUNT(*) FILTER (WHERE result = 'lose'),
			COALESCE(SUM(profit), 0)
		FROM trades
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("trade stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.TradeStat
		if err := rows.Scan(&st.Day, &st.Trades, &st.Wins, &st.Losses, &st.TotalProfit); err != nil {
			return nil, err
		}
		s.Trades = append(s.Trades, st)
	}
	return s, rows.Err()
}
