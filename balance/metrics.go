package balance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Adjustments         prometheus.Counter
	PersistFailures     prometheus.Counter
	StreamReadFailures  *prometheus.CounterVec
	IntegrityViolations prometheus.Counter
	Reconciliations     *prometheus.CounterVec
	DriftCorrections    prometheus.Counter
	GuardDenials        *prometheus.CounterVec
	LastReconciled      prometheus.Gauge
}

// NewMetrics builds the engine collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Adjustments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "adjustments_total",
			Help:      "Total incremental balance adjustments applied.",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "persist_failures_total",
			Help:      "Total failed writes of the project balance.",
		}),
		StreamReadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "stream_read_failures_total",
			Help:      "Total transaction stream reads that failed during aggregation.",
		}, []string{"stream"}),
		IntegrityViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "integrity_violations_total",
			Help:      "Total records clamped during aggregation.",
		}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "reconciliations_total",
			Help:      "Total reconciliation runs by outcome.",
		}, []string{"outcome"}),
		DriftCorrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "drift_corrections_total",
			Help:      "Total reconciliations whose drift exceeded the tolerance.",
		}),
		GuardDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "guard_denials_total",
			Help:      "Total debits refused by the affordability guard.",
		}, []string{"reason"}),
		LastReconciled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "obra",
			Subsystem: "balance",
			Name:      "last_reconciled_timestamp_seconds",
			Help:      "Unix time of the last reconciliation that persisted a balance.",
		}),
	}
}
