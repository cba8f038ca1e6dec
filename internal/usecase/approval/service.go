package approval

import (
	"context"
	"errors"
	"strings"

	"ledger-service/internal/domain"
	"ledger-service/internal/metrics"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/usecase/common"
	xerrors "ledger-service/shared/utils/errors"

	"go.uber.org/zap"
)

type Policy struct {
	// WithdrawalDebitOnApprove debits the account when a withdrawal is approved.
	WithdrawalDebitOnApprove bool
}

type Service struct {
	store  repository.Store
	policy Policy
	events *common.Events
	logger *zap.Logger
}

func New(store repository.Store, policy Policy, events *common.Events, logger *zap.Logger) *Service {
	return &Service{store: store, policy: policy, events: events, logger: logger}
}

// record is the shape shared by fund requests and verifications during a transition.
type record struct {
	username string
	status   domain.Status
	amount   float64
}

// SetStatus moves a record to status. A record leaves pending (or any non-terminal label) at most once:
// repeating the terminal status is a no-op, a different terminal status is ErrAlreadyFinalized.
// An unknown id is not an error and reports Found=false.
func (s *Service) SetStatus(ctx context.Context, recordType string, id int64, status string) (*domain.Transition, error) {
	rt, ok := domain.ParseRecordType(strings.ToLower(strings.TrimSpace(recordType)))
	if !ok {
		return nil, xerrors.ErrInvalidInput
	}
	next := domain.Status(strings.TrimSpace(status))
	if next == "" || id <= 0 {
		return nil, xerrors.ErrInvalidInput
	}

	tr := &domain.Transition{RecordType: rt, ID: id, To: next}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		rec, err := s.lock(ctx, tx, rt, id)
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		tr.Found = true
		tr.From = rec.status
		tr.Username = rec.username

		if rec.status.IsTerminal() {
			if rec.status == next {
				return nil
			}
			return xerrors.ErrAlreadyFinalized
		}

		if err := s.update(ctx, tx, rt, id, rec.status, next); err != nil {
			return err
		}
		tr.Changed = true

		delta, ok := s.balanceEffect(rt, next, rec.amount)
		if !ok {
			return nil
		}
		acc, err := tx.Accounts().AdjustBalance(ctx, rec.username, delta)
		if err != nil {
			return err
		}
		balance := acc.Balance
		tr.Balance = &balance
		return nil
	})

	outcome := "changed"
	switch {
	case err != nil:
		outcome = xerrors.Kind(err)
	case !tr.Found:
		outcome = "not_found"
	case !tr.Changed:
		outcome = "noop"
	}
	metrics.RequestTransitions.WithLabelValues(string(rt), string(next), outcome).Inc()

	if err != nil {
		s.logger.Warn("status change rejected",
			zap.String("record_type", string(rt)),
			zap.Int64("id", id),
			zap.String("from", string(tr.From)),
			zap.String("to", string(next)),
			zap.Error(err))
		return nil, err
	}
	if !tr.Found {
		s.logger.Warn("status change for unknown record",
			zap.String("record_type", string(rt)),
			zap.Int64("id", id))
		return tr, nil
	}
	if !tr.Changed {
		return tr, nil
	}

	s.logger.Info("request status changed",
		zap.String("record_type", string(rt)),
		zap.Int64("id", id),
		zap.String("username", tr.Username),
		zap.String("from", string(tr.From)),
		zap.String("to", string(next)))

	s.events.Emit(ctx, &pub.Event{
		EventType:  pub.EventRequestStatusChange,
		Username:   tr.Username,
		RecordType: string(rt),
		RecordID:   id,
		Status:     string(next),
		Balance:    tr.Balance,
		Metadata:   map[string]interface{}{"from": string(tr.From)},
	})
	if tr.Balance != nil {
		metrics.BalanceAdjustments.WithLabelValues(string(rt)).Inc()
		s.events.Balance(tr.Username, *tr.Balance)
	}
	return tr, nil
}

func (s *Service) balanceEffect(rt domain.RecordType, next domain.Status, amount float64) (float64, bool) {
	if next != domain.StatusApproved {
		return 0, false
	}
	switch rt {
	case domain.RecordDeposit:
		return amount, true
	case domain.RecordWithdrawal:
		if s.policy.WithdrawalDebitOnApprove {
			return -amount, true
		}
	}
	return 0, false
}

func (s *Service) lock(ctx context.Context, tx repository.Store, rt domain.RecordType, id int64) (*record, error) {
	if rt == domain.RecordVerification {
		v, err := tx.Verifications().GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		return &record{username: v.Username, status: v.Status}, nil
	}

	fr, err := tx.FundRequests().GetForUpdate(ctx, rt, id)
	if err != nil {
		return nil, err
	}
	return &record{username: fr.Username, status: fr.Status, amount: fr.Amount}, nil
}

func (s *Service) update(ctx context.Context, tx repository.Store, rt domain.RecordType, id int64, from, to domain.Status) error {
	if rt == domain.RecordVerification {
		return tx.Verifications().UpdateStatus(ctx, id, from, to)
	}
	return tx.FundRequests().UpdateStatus(ctx, id, from, to)
}
