package repository

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"
	xerrors "ledger-service/shared/utils/errors"

	"github.com/jackc/pgx/v5"
)

type AccountRepo struct {
	db DBTX
}

const accountColumns = `id, username, balance, created_at, updated_at`

func (r *AccountRepo) Create(ctx context.Context, username string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (username, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
		RETURNING `+accountColumns,
		username,
	).Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == xerrors.PGUniqueViolation {
			return nil, xerrors.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// AdjustBalance relies on the row lock taken by UPDATE, so concurrent
// adjustments to one account serialize and none are lost.
func (r *AccountRepo) AdjustBalance(ctx context.Context, username string, delta float64) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE username = $2
		RETURNING `+accountColumns,
		delta, username,
	).Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		if xerrors.ParsePGErrorCode(err) == xerrors.PGNumericValueOutRange {
			return nil, fmt.Errorf("%w: balance out of range", xerrors.ErrInvalidAmount)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}
