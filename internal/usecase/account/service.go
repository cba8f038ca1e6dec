package account

import (
	"context"
	"strings"

	"ledger-service/internal/domain"
	"ledger-service/internal/metrics"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/usecase/common"
	xerrors "ledger-service/shared/utils/errors"

	"go.uber.org/zap"
)

type Service struct {
	store  repository.Store
	events *common.Events
	logger *zap.Logger
}

func New(store repository.Store, events *common.Events, logger *zap.Logger) *Service {
	return &Service{store: store, events: events, logger: logger}
}

func (s *Service) Create(ctx context.Context, username string) (*domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, xerrors.ErrInvalidInput
	}

	acc, err := s.store.Accounts().Create(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created", zap.String("username", username), zap.Int64("id", acc.ID))
	return acc, nil
}

func (s *Service) Get(ctx context.Context, username string) (*domain.Account, error) {
	if strings.TrimSpace(username) == "" {
		return nil, xerrors.ErrInvalidInput
	}
	return s.store.Accounts().GetByUsername(ctx, username)
}

func (s *Service) List(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error) {
	return s.store.Accounts().List(ctx, filter)
}

// Adjust applies an operator balance change. delta may be negative to debit.
func (s *Service) Adjust(ctx context.Context, username, delta string) (*domain.Account, error) {
	if strings.TrimSpace(username) == "" {
		return nil, xerrors.ErrInvalidInput
	}
	d, err := domain.ParseDelta(delta)
	if err != nil {
		return nil, err
	}

	amount := d.InexactFloat64()
	acc, err := s.store.Accounts().AdjustBalance(ctx, username, amount)
	if err != nil {
		return nil, err
	}

	metrics.BalanceAdjustments.WithLabelValues("admin").Inc()
	s.logger.Info("balance adjusted by operator",
		zap.String("username", username),
		zap.Float64("delta", amount),
		zap.Float64("balance", acc.Balance))

	balance := acc.Balance
	s.events.Emit(ctx, &pub.Event{
		EventType:  pub.EventBalanceAdjusted,
		Username:   username,
		RecordType: "account",
		RecordID:   acc.ID,
		Amount:     amount,
		Balance:    &balance,
	})
	s.events.Balance(username, acc.Balance)
	return acc, nil
}
