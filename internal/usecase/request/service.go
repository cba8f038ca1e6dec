package request

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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service accepts deposit, withdrawal and verification submissions. Every record starts pending.
type Service struct {
	store  repository.Store
	events *common.Events
	logger *zap.Logger
}

func New(store repository.Store, events *common.Events, logger *zap.Logger) *Service {
	return &Service{store: store, events: events, logger: logger}
}

func required(fields ...string) error {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return xerrors.ErrInvalidInput
		}
	}
	return nil
}

func (s *Service) requireAccount(ctx context.Context, username string) error {
	_, err := s.store.Accounts().GetByUsername(ctx, username)
	return err
}

// ============================================================================
// FUND REQUESTS
// ============================================================================

// ValidateDeposit runs every SubmitDeposit check without writing, so callers can
// reject a request before storing its proof file.
func (s *Service) ValidateDeposit(ctx context.Context, in domain.DepositInput) error {
	_, err := s.checkDeposit(ctx, in)
	return err
}

func (s *Service) checkDeposit(ctx context.Context, in domain.DepositInput) (decimal.Decimal, error) {
	if err := required(in.Username, in.Currency, in.Network); err != nil {
		return decimal.Zero, err
	}
	amount, err := domain.ParseAmount(in.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.requireAccount(ctx, in.Username); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (s *Service) SubmitDeposit(ctx context.Context, in domain.DepositInput) (*domain.Submission, error) {
	amount, err := s.checkDeposit(ctx, in)
	if err != nil {
		return nil, err
	}

	fr := &domain.FundRequest{
		Kind:     domain.RecordDeposit,
		Username: in.Username,
		Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
		Network:  strings.TrimSpace(in.Network),
		Amount:   amount.InexactFloat64(),
		ProofURL: in.ProofURL,
		Status:   domain.StatusPending,
	}
	if err := s.store.FundRequests().Create(ctx, fr); err != nil {
		return nil, err
	}
	s.submitted(ctx, fr.Kind, fr.ID, fr.Username, fr.Amount)
	return &domain.Submission{ID: fr.ID, Status: fr.Status}, nil
}

func (s *Service) SubmitWithdrawal(ctx context.Context, in domain.WithdrawalInput) (*domain.Submission, error) {
	if err := required(in.Username, in.Currency, in.Network, in.Address); err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, in.Username); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.Address)
	fr := &domain.FundRequest{
		Kind:     domain.RecordWithdrawal,
		Username: in.Username,
		Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
		Network:  strings.TrimSpace(in.Network),
		Amount:   amount.InexactFloat64(),
		Address:  &address,
		Status:   domain.StatusPending,
	}
	if err := s.store.FundRequests().Create(ctx, fr); err != nil {
		return nil, err
	}
	s.submitted(ctx, fr.Kind, fr.ID, fr.Username, fr.Amount)
	return &domain.Submission{ID: fr.ID, Status: fr.Status}, nil
}

func (s *Service) ListFundRequests(ctx context.Context, filter domain.FundRequestFilter) ([]*domain.FundRequest, error) {
	return s.store.FundRequests().List(ctx, filter)
}

// ============================================================================
// VERIFICATIONS
// ============================================================================

func (s *Service) SubmitPrimaryVerification(ctx context.Context, in domain.PrimaryVerificationInput) (*domain.Submission, error) {
	if err := required(in.Username, in.FullName, in.DocumentType, in.DocumentNumber); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, in.Username); err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(in.FullName)
	docType := strings.TrimSpace(in.DocumentType)
	docNumber := strings.TrimSpace(in.DocumentNumber)
	v := &domain.Verification{
		Kind:           domain.VerificationPrimary,
		Username:       in.Username,
		FullName:       &fullName,
		DocumentType:   &docType,
		DocumentNumber: &docNumber,
		Status:         domain.StatusPending,
	}
	return s.createVerification(ctx, v)
}

func (s *Service) SubmitAdvancedVerification(ctx context.Context, in domain.AdvancedVerificationInput) (*domain.Submission, error) {
	if err := required(in.Username, in.FrontURL, in.BackURL, in.SelfieURL); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, in.Username); err != nil {
		return nil, err
	}

	v := &domain.Verification{
		Kind:      domain.VerificationAdvanced,
		Username:  in.Username,
		FrontURL:  &in.FrontURL,
		BackURL:   &in.BackURL,
		SelfieURL: &in.SelfieURL,
		Status:    domain.StatusPending,
	}
	return s.createVerification(ctx, v)
}

func (s *Service) createVerification(ctx context.Context, v *domain.Verification) (*domain.Submission, error) {
	if err := s.store.Verifications().Create(ctx, v); err != nil {
		return nil, err
	}
	s.submitted(ctx, domain.RecordVerification, v.ID, v.Username, 0)
	return &domain.Submission{ID: v.ID, Status: v.Status}, nil
}

// VerificationStatus reports the newest record of each kind. Older records never win.
func (s *Service) VerificationStatus(ctx context.Context, username string) (*domain.VerificationStatus, error) {
	if err := required(username); err != nil {
		return nil, err
	}

	out := &domain.VerificationStatus{}
	for _, kind := range []domain.VerificationKind{domain.VerificationPrimary, domain.VerificationAdvanced} {
		v, err := s.store.Verifications().Latest(ctx, username, kind)
		if errors.Is(err, xerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		status := v.Status
		if kind == domain.VerificationPrimary {
			out.Primary = &status
		} else {
			out.Advanced = &status
		}
	}
	return out, nil
}

func (s *Service) ListVerifications(ctx context.Context, filter domain.VerificationFilter) ([]*domain.Verification, error) {
	return s.store.Verifications().List(ctx, filter)
}

func (s *Service) submitted(ctx context.Context, rt domain.RecordType, id int64, username string, amount float64) {
	metrics.RequestsSubmitted.WithLabelValues(string(rt)).Inc()
	s.logger.Info("request submitted",
		zap.String("record_type", string(rt)),
		zap.Int64("id", id),
		zap.String("username", username))

	s.events.Emit(ctx, &pub.Event{
		EventType:  pub.EventRequestSubmitted,
		Username:   username,
		RecordType: string(rt),
		RecordID:   id,
		Status:     string(domain.StatusPending),
		Amount:     amount,
	})
}
