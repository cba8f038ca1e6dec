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

type VerificationRepo struct {
	db     DBTX
	logger *zap.Logger
}

const verificationColumns = `id, kind, username, full_name, document_type, document_number,
	front_url, back_url, selfie_url, status, created_at, updated_at`

func (r *VerificationRepo) Create(ctx context.Context, v *domain.Verification) error {
	if v.Status == "" {
		v.Status = domain.StatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO verifications
			(kind, username, full_name, document_type, document_number, front_url, back_url, selfie_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, v.Kind, v.Username, v.FullName, v.DocumentType, v.DocumentNumber, v.FrontURL, v.BackURL, v.SelfieURL, v.Status,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert %s verification: %w", v.Kind, err)
	}
	return nil
}

func (r *VerificationRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Verification, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+verificationColumns+`
		FROM verifications
		WHERE id = $1
		FOR UPDATE
	`, id)

	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get verification: %w", err)
	}
	return v, nil
}

// Latest breaks created_at ties by id so the most recent insert wins.
func (r *VerificationRepo) Latest(ctx context.Context, username string, kind domain.VerificationKind) (*domain.Verification, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+verificationColumns+`
		FROM verifications
		WHERE username = $1 AND kind = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, username, kind)

	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("latest verification: %w", err)
	}
	return v, nil
}

func (r *VerificationRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error {
	result, err := r.db.Exec(ctx, `
		UPDATE verifications
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("update verification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrAlreadyFinalized
	}

	r.logger.Info("verification status updated",
		zap.Int64("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func (r *VerificationRepo) List(ctx context.Context, filter domain.VerificationFilter) ([]*domain.Verification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+verificationColumns+`
		FROM verifications
		WHERE ($1::text = '' OR kind = $1)
		  AND ($2::text = '' OR username = $2)
		  AND ($3::text = '' OR status = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, string(filter.Kind), filter.Username, string(filter.Status), normalizeLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVerification(row pgx.Row) (*domain.Verification, error) {
	var v domain.Verification
	err := row.Scan(
		&v.ID, &v.Kind, &v.Username, &v.FullName, &v.DocumentType, &v.DocumentNumber,
		&v.FrontURL, &v.BackURL, &v.SelfieURL, &v.Status, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
