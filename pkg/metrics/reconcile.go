package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks replay throughput, drift and reclamation.
type ReconcileMetrics struct {
	eventsApplied  *prometheus.CounterVec
	replayDuration *prometheus.HistogramVec
	drift          *prometheus.GaugeVec
	healOutcomes   *prometheus.CounterVec
	ordersExpired  prometheus.Counter
	unitsReleased  prometheus.Counter
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	m := &ReconcileMetrics{
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_applied_total",
			Help:      "Ledger events folded by replay mode.",
		}, []string{"mode"}),
		replayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "duration_seconds",
			Help:      "Wall time of replay runs by mode.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"mode"}),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "drift_violations",
			Help:      "Violations found by the most recent drift check.",
		}, []string{"entity_type"}),
		healOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "heal_outcomes_total",
			Help:      "Auto-heal results by status.",
		}, []string{"status"}),
		ordersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "orders_expired_total",
			Help:      "Pending orders expired by the reclaimer.",
		}),
		unitsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaim",
			Name:      "units_released_total",
			Help:      "Reserved units returned to availability by the reclaimer.",
		}),
	}
	reg.MustRegister(m.eventsApplied, m.replayDuration, m.drift, m.healOutcomes, m.ordersExpired, m.unitsReleased)
	return m
}

func (m *ReconcileMetrics) ObserveReplay(mode string, events int, elapsed time.Duration) {
	if m == nil || m.eventsApplied == nil {
		return
	}
	label := normalizeLabel(mode)
	m.eventsApplied.WithLabelValues(label).Add(float64(events))
	m.replayDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// SetDrift overwrites the drift gauge for every entity type present in counts.
func (m *ReconcileMetrics) SetDrift(counts map[string]int) {
	if m == nil || m.drift == nil {
		return
	}
	for entityType, count := range counts {
		m.drift.WithLabelValues(normalizeLabel(entityType)).Set(float64(count))
	}
}

func (m *ReconcileMetrics) IncHealOutcome(status string) {
	if m == nil || m.healOutcomes == nil {
		return
	}
	m.healOutcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *ReconcileMetrics) AddReclaimed(orders int, units int64) {
	if m == nil || m.ordersExpired == nil {
		return
	}
	m.ordersExpired.Add(float64(orders))
	m.unitsReleased.Add(float64(units))
}
