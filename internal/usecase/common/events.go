package common

import (
	"context"
	"time"

	"ledger-service/internal/metrics"
	"ledger-service/internal/pub"

	"go.uber.org/zap"
)

type BalanceNotifier interface {
	NotifyBalance(username string, balance float64)
}

// Events fans committed ledger changes out to the event bus and live websocket clients.
// Failures here are logged and counted; they never undo a committed write.
type Events struct {
	publisher pub.Publisher
	backend   string
	notifier  BalanceNotifier
	logger    *zap.Logger
}

func NewEvents(publisher pub.Publisher, backend string, notifier BalanceNotifier, logger *zap.Logger) *Events {
	if publisher == nil {
		publisher = pub.NopPublisher{}
		backend = "nop"
	}
	return &Events{publisher: publisher, backend: backend, notifier: notifier, logger: logger}
}

func (e *Events) Emit(ctx context.Context, ev *pub.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.publisher.Publish(ctx, ev); err != nil {
		metrics.EventPublishErrors.WithLabelValues(e.backend).Inc()
		e.logger.Error("failed to publish ledger event",
			zap.String("event_type", ev.EventType),
			zap.String("username", ev.Username),
			zap.Int64("record_id", ev.RecordID),
			zap.Error(err))
	}
}

func (e *Events) Balance(username string, balance float64) {
	if e.notifier != nil {
		e.notifier.NotifyBalance(username, balance)
	}
}
