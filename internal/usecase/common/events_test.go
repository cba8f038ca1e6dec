package common

import (
	"context"
	"errors"
	"testing"

	"ledger-service/internal/pub"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, *pub.Event) error {
	p.calls++
	return errors.New("bus down")
}

func (p *failingPublisher) Close() error { return nil }

type recordingNotifier struct{ balances map[string]float64 }

func (n *recordingNotifier) NotifyBalance(username string, balance float64) {
	n.balances[username] = balance
}

func TestEmitLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := &failingPublisher{}
	e := NewEvents(p, "test", nil, zap.New(core))

	e.Emit(context.Background(), &pub.Event{EventType: pub.EventTradeSettled, Username: "alice"})

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish ledger event").Len())
}

func TestEmitSurvivesCanceledRequestContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	e := NewEvents(publisherFunc(func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	}), "test", nil, zap.NewNop())
	e.Emit(ctx, &pub.Event{EventType: pub.EventBalanceAdjusted})

	assert.NoError(t, seen)
}

func TestBalanceNotifies(t *testing.T) {
	n := &recordingNotifier{balances: map[string]float64{}}
	e := NewEvents(nil, "", n, zap.NewNop())
	e.Balance("bob", 12)
	assert.Equal(t, float64(12), n.balances["bob"])

	NewEvents(nil, "", nil, zap.NewNop()).Balance("bob", 1)
}

type publisherFunc func(ctx context.Context) error

func (f publisherFunc) Publish(ctx context.Context, _ *pub.Event) error { return f(ctx) }
func (f publisherFunc) Close() error                                 { return nil }
