package pub

import (
	"context"
	"time"

	"ledger-service/shared/utils/id"
)

const (
	LedgerEventsChannel = "ledger_events"

	EventTradeSettled        = "trade.settled"
	EventRequestSubmitted    = "request.submitted"
	EventRequestStatusChange = "request.status_changed"
	EventBalanceAdjusted     = "balance.adjusted"
)

type Event struct {
	ID         string                 `json:"id"`
	EventType  string                 `json:"event_type"`
	Username   string                 `json:"username"`
	RecordType string                 `json:"record_type,omitempty"` // trade, deposit, withdrawal, verification
	RecordID   int64                  `json:"record_id,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Amount     float64                `json:"amount,omitempty"`
	Profit     float64                `json:"profit,omitempty"`
	Balance    *float64               `json:"balance,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Publisher delivers committed ledger events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

func stamp(event *Event) {
	if event.ID == "" {
		event.ID = id.EventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event *Event) error {
	stamp(event)
	return nil
}

func (NopPublisher) Close() error { return nil }
