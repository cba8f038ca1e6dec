package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_trades_settled_total",
			Help: "Total number of settled trades by result",
		},
		[]string{"result"},
	)

	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_settlement_duration_seconds",
			Help:    "Duration of trade settlement including the storage transaction",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
		},
	)

	RequestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_submitted_total",
			Help: "Total number of deposit, withdrawal and verification submissions",
		},
		[]string{"record_type"},
	)

	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_request_transitions_total",
			Help: "Operator status changes by record type and outcome",
		},
		[]string{"record_type", "status", "outcome"},
	)

	BalanceAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_balance_adjustments_total",
			Help: "Balance changes by source",
		},
		[]string{"source"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_event_publish_errors_total",
			Help: "Ledger events that could not be published",
		},
		[]string{"backend"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
