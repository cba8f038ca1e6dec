package repository

import (
	"context"
	"time"

	"ledger-service/internal/domain"
)

type AccountRepository interface {
	Create(ctx context.Context, username string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	// AdjustBalance adds delta to the balance in a single atomic step and returns the updated row.
	AdjustBalance(ctx context.Context, username string, delta float64) (*domain.Account, error)
	List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error)
}

type TradeRepository interface {
	Create(ctx context.Context, t *domain.Trade) error
	List(ctx context.Context, filter domain.TradeFilter) ([]*domain.Trade, error)
}

type FundRequestRepository interface {
	Create(ctx context.Context, fr *domain.FundRequest) error
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, kind domain.FundKind, id int64) (*domain.FundRequest, error)
	// UpdateStatus moves the row from `from` to `to`. ErrAlreadyFinalized when the row is no longer in `from`.
	UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error
	List(ctx context.Context, filter domain.FundRequestFilter) ([]*domain.FundRequest, error)
}

type VerificationRepository interface {
	Create(ctx context.Context, v *domain.Verification) error
	GetForUpdate(ctx context.Context, id int64) (*domain.Verification, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error
	// Latest returns the newest record of kind for username, ErrNotFound when there is none.
	Latest(ctx context.Context, username string, kind domain.VerificationKind) (*domain.Verification, error)
	List(ctx context.Context, filter domain.VerificationFilter) ([]*domain.Verification, error)
}

type ReportRepository interface {
	Summary(ctx context.Context, from, to time.Time) (*domain.Summary, error)
}

// Store is the storage handle injected into every usecase.
type Store interface {
	Accounts() AccountRepository
	Trades() TradeRepository
	FundRequests() FundRequestRepository
	Verifications() VerificationRepository
	Reports() ReportRepository

	// InTx runs fn against a transactional Store. Any error from fn rolls back every write made through tx.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// SideStore holds the process-wide favored side.
type SideStore interface {
	Get(ctx context.Context) (domain.Side, error)
	Set(ctx context.Context, side domain.Side) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
