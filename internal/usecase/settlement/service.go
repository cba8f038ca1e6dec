package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	sides  repository.SideStore
	events *common.Events
	logger *zap.Logger
}

func New(store repository.Store, sides repository.SideStore, events *common.Events, logger *zap.Logger) *Service {
	return &Service{store: store, sides: sides, events: events, logger: logger}
}

// Settle decides the trade against one snapshot of the favored side, then records
// the trade and applies its profit to the balance in a single transaction.
func (s *Service) Settle(ctx context.Context, req domain.TradeRequest) (*domain.Settlement, error) {
	start := time.Now()

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, xerrors.ErrInvalidInput
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	side, ok := domain.ParseSide(req.Side)
	if !ok {
		return nil, xerrors.ErrInvalidSide
	}
	percent := domain.ParsePercent(req.Percent)

	favored, err := s.sides.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("favored side: %w", err)
	}

	result, profit := domain.Outcome(side, favored, amount, percent)
	if !domain.Finite(profit) {
		return nil, xerrors.ErrInvalidAmount
	}
	trade := &domain.Trade{
		Username: username,
		Symbol:   req.Symbol,
		Side:     side,
		Amount:   amount.InexactFloat64(),
		Percent:  percent.InexactFloat64(),
		Profit:   profit.InexactFloat64(),
		Result:   result,
	}

	var acc *domain.Account
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Trades().Create(ctx, trade); err != nil {
			return err
		}
		updated, err := tx.Accounts().AdjustBalance(ctx, username, trade.Profit)
		if err != nil {
			return err
		}
		acc = updated
		return nil
	})
	if err != nil {
		s.logger.Warn("trade settlement aborted",
			zap.String("username", username),
			zap.String("side", string(side)),
			zap.Error(err))
		return nil, err
	}

	metrics.TradesSettled.WithLabelValues(string(result)).Inc()
	metrics.BalanceAdjustments.WithLabelValues("trade").Inc()
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("trade settled",
		zap.Int64("trade_id", trade.ID),
		zap.String("username", username),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(side)),
		zap.String("favored", string(favored)),
		zap.String("result", string(result)),
		zap.Float64("profit", trade.Profit))

	balance := acc.Balance
	s.events.Emit(ctx, &pub.Event{
		EventType:  pub.EventTradeSettled,
		Username:   username,
		RecordType: "trade",
		RecordID:   trade.ID,
		Status:     string(result),
		Amount:     trade.Amount,
		Profit:     trade.Profit,
		Balance:    &balance,
		Metadata:   map[string]interface{}{"symbol": trade.Symbol, "side": trade.Side},
	})
	s.events.Balance(username, balance)

	return &domain.Settlement{
		Trade:   trade,
		Result:  result,
		Profit:  trade.Profit,
		Balance: balance,
	}, nil
}

func (s *Service) ListTrades(ctx context.Context, filter domain.TradeFilter) ([]*domain.Trade, error) {
	return s.store.Trades().List(ctx, filter)
}

func (s *Service) FavoredSide(ctx context.Context) (domain.Side, error) {
	return s.sides.Get(ctx)
}

func (s *Service) SetFavoredSide(ctx context.Context, side string) (domain.Side, error) {
	parsed, ok := domain.ParseSide(side)
	if !ok {
		return "", xerrors.ErrInvalidSide
	}
	if err := s.sides.Set(ctx, parsed); err != nil {
		return "", err
	}
	s.logger.Info("favored side changed", zap.String("side", string(parsed)))
	return parsed, nil
}
