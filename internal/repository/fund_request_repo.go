package repository

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"
	xerrors "ledger-service/shared/utils/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// FundRequestRepo stores deposits and withdrawals in one table keyed by kind.
type FundRequestRepo struct {
	db     DBTX
	logger *zap.Logger
}

const fundRequestColumns = `id, kind, username, currency, network, amount, address, proof_url, status, created_at, updated_at`

// ============================================================================
// CREATE OPERATIONS
// ============================================================================

func (r *FundRequestRepo) Create(ctx context.Context, fr *domain.FundRequest) error {
	if fr.Status == "" {
		fr.Status = domain.StatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO fund_requests (kind, username, currency, network, amount, address, proof_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, fr.Kind, fr.Username, fr.Currency, fr.Network, fr.Amount, fr.Address, fr.ProofURL, fr.Status,
	).Scan(&fr.ID, &fr.CreatedAt, &fr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert %s request: %w", fr.Kind, err)
	}

	r.logger.Info("fund request created",
		zap.Int64("id", fr.ID),
		zap.String("kind", string(fr.Kind)),
		zap.String("username", fr.Username),
		zap.Float64("amount", fr.Amount))
	return nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

func (r *FundRequestRepo) GetForUpdate(ctx context.Context, kind domain.FundKind, id int64) (*domain.FundRequest, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+fundRequestColumns+`
		FROM fund_requests
		WHERE id = $1 AND kind = $2
		FOR UPDATE
	`, id, kind)

	fr, err := scanFundRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get %s request: %w", kind, err)
	}
	return fr, nil
}

func (r *FundRequestRepo) List(ctx context.Context, filter domain.FundRequestFilter) ([]*domain.FundRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+fundRequestColumns+`
		FROM fund_requests
		WHERE ($1::text = '' OR kind = $1)
		  AND ($2::text = '' OR username = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, string(filter.Kind), filter.Username, string(filter.Status), normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list fund requests: %w", err)
	}
	defer rows.Close()

	var out []*domain.FundRequest
	for rows.Next() {
		fr, err := scanFundRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// ============================================================================
// UPDATE OPERATIONS
// ============================================================================

func (r *FundRequestRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error {
	result, err := r.db.Exec(ctx, `
		UPDATE fund_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("update fund request status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrAlreadyFinalized
	}

	r.logger.Info("fund request status updated",
		zap.Int64("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// ============================================================================
// SCAN HELPER FUNCTIONS
// ============================================================================

func scanFundRequest(row pgx.Row) (*domain.FundRequest, error) {
	var fr domain.FundRequest
	err := row.Scan(
		&fr.ID,
		&fr.Kind,
		&fr.Username,
		&fr.Currency,
		&fr.Network,
		&fr.Amount,
		&fr.Address,
		&fr.ProofURL,
		&fr.Status,
		&fr.CreatedAt,
		&fr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fr, nil
}
