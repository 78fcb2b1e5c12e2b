package simpledb

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for statement duration (in seconds)
var defaultBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type metrics struct {
	statements       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	transactions     *prometheus.CounterVec
	openTransactions prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simpledb",
				Name:      "statements_total",
				Help:      "Executed statements by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "simpledb",
				Name:      "statement_duration_seconds",
				Help:      "Statement execution time including connection acquisition",
				Buckets:   defaultBuckets,
			},
			[]string{"op"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simpledb",
				Name:      "transactions_total",
				Help:      "Transaction boundary events",
			},
			[]string{"event"},
		),
		openTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "simpledb",
				Name:      "open_transactions",
				Help:      "Transactions currently bound to a session",
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.statements, err = register(reg, m.statements); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.transactions, err = register(reg, m.transactions); err != nil {
		return nil, err
	}
	if m.openTransactions, err = register(reg, m.openTransactions); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. When an identical collector is already registered
// (several SimpleDB instances sharing one registry) the existing one is used.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, fmt.Errorf("simpledb: register metrics: %w", err)
}

func (m *metrics) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.statements.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) txEvent(event string) {
	m.transactions.WithLabelValues(event).Inc()
	switch event {
	case "start":
		m.openTransactions.Inc()
	case "commit", "rollback":
		m.openTransactions.Dec()
	}
}
