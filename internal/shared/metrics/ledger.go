package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerCollectors agrupa as métricas das operações do ledger
type LedgerCollectors struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewLedgerCollectors cria e registra as métricas no registerer informado
func NewLedgerCollectors(reg prometheus.Registerer) *LedgerCollectors {
	c := &LedgerCollectors{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "operações do ledger por resultado",
		}, []string{"op", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "latência das operações do ledger",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(c.Operations, c.Duration)
	return c
}

// Observe registra uma operação concluída; outcome é "ok" ou o código do erro
func (c *LedgerCollectors) Observe(op, outcome string, started time.Time) {
	c.Operations.WithLabelValues(op, outcome).Inc()
	c.Duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
