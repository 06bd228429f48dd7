package steamtrade

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts confirmation and trade activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	confirmationOps     *prometheus.CounterVec
	confirmationRetries *prometheus.CounterVec
	tradeActions        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		confirmationOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamtrade",
			Name:      "confirmation_ops_total",
			Help:      "Mobile confirmation operations by op and result.",
		}, []string{"op", "result"}),
		confirmationRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamtrade",
			Name:      "confirmation_retries_total",
			Help:      "Retried mobile confirmation attempts by op.",
		}, []string{"op"}),
		tradeActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steamtrade",
			Name:      "trade_actions_total",
			Help:      "Trade offer actions by action and result.",
		}, []string{"action", "result"}),
	}

	if reg != nil {
		reg.MustRegister(m.confirmationOps, m.confirmationRetries, m.tradeActions)
	}

	return m
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeConfirmation(op string, err error) {
	if m == nil {
		return
	}
	m.confirmationOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) observeConfirmationRetry(op string) {
	if m == nil {
		return
	}
	m.confirmationRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) observeTrade(action string, err error) {
	if m == nil {
		return
	}
	m.tradeActions.WithLabelValues(action, resultLabel(err)).Inc()
}
