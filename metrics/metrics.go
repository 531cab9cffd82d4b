package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quest_ledger"

// Metrics groups the ledger's prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AuthAttempts     *prometheus.CounterVec
	XPAwarded        *prometheus.CounterVec
	CheckIns         *prometheus.CounterVec
	StorageConflicts prometheus.Counter
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Signature verification attempts by result.",
		}, []string{"result"}),
		XPAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "XP credited to identities by source.",
		}, []string{"source"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Daily check-in attempts by result.",
		}, []string{"result"}),
		StorageConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_conflicts_total",
			Help:      "Optimistic concurrency conflicts that forced a retry.",
		}),
	}

	for _, c := range []prometheus.Collector{m.AuthAttempts, m.XPAwarded, m.CheckIns, m.StorageConflicts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveAuth(result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveXP(source string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.XPAwarded.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) ObserveCheckIn(result string) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.StorageConflicts.Inc()
}
