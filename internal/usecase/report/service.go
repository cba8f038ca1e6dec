package report

import (
	"context"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
	xerrors "ledger-service/shared/utils/errors"
)

const maxRange = 366 * 24 * time.Hour

type Service struct {
	store repository.Store
	now   func() time.Time
}

func New(store repository.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Summary aggregates by UTC day over [from, to). Zero bounds default to the last 30 days.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*domain.Summary, error) {
	if to.IsZero() {
		to = s.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	if from.IsZero() {
		from = to.Add(-30 * 24 * time.Hour)
	}
	if !from.Before(to) || to.Sub(from) > maxRange {
		return nil, xerrors.ErrInvalidInput
	}
	return s.store.Reports().Summary(ctx, from.UTC(), to.UTC())
}
