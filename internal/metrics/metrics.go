// Package metrics содержит метрики Prometheus для активаций депозитов,
// начислений комиссий и построения дерева рефералов.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	gatherer prometheus.Gatherer

	activations      *prometheus.CounterVec
	commissionLevels *prometheus.CounterVec
	commissionPaid   prometheus.Counter
	walkStops        *prometheus.CounterVec
	treeBuilds       *prometheus.CounterVec
	treeNodes        prometheus.Histogram
	treeDuration     prometheus.Histogram
}

// New регистрирует метрики в reg. В тестах удобно передавать prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deposit_activations_total",
				Help: "Количество попыток активации депозита",
			},
			[]string{"result"}, // ok, incomplete, failed
		),
		commissionLevels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_levels_total",
				Help: "Количество обработанных уровней реферальной цепочки",
			},
			[]string{"status"}, // paid, skipped, failed
		),
		commissionPaid: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_paid_amount_total",
				Help: "Сумма начисленных реферальных комиссий",
			},
		),
		walkStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_walk_stops_total",
				Help: "Причины завершения прохода по реферальной цепочке",
			},
			[]string{"reason"},
		),
		treeBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_tree_builds_total",
				Help: "Количество построений дерева рефералов",
			},
			[]string{"result"}, // ok, truncated, failed
		),
		treeNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "referral_tree_nodes",
				Help:    "Размер построенного дерева рефералов",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
		treeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "referral_tree_build_seconds",
				Help:    "Время построения дерева рефералов",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(
		m.activations,
		m.commissionLevels,
		m.commissionPaid,
		m.walkStops,
		m.treeBuilds,
		m.treeNodes,
		m.treeDuration,
	)
	return m
}

// Handler отдаёт метрики из реестра в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Activation(result string) {
	m.activations.WithLabelValues(result).Inc()
}

func (m *Metrics) CommissionLevel(status string, amount decimal.Decimal) {
	m.commissionLevels.WithLabelValues(status).Inc()
	if status == "paid" && amount.IsPositive() {
		m.commissionPaid.Add(amount.InexactFloat64())
	}
}

func (m *Metrics) WalkStopped(reason string) {
	m.walkStops.WithLabelValues(reason).Inc()
}

func (m *Metrics) TreeBuilt(result string, nodes int, took time.Duration) {
	m.treeBuilds.WithLabelValues(result).Inc()
	m.treeNodes.Observe(float64(nodes))
	m.treeDuration.Observe(took.Seconds())
}
