package revisionable

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts recorder activity. A nil *Metrics records nothing.
type Metrics struct {
	written     *prometheus.CounterVec
	pruned      prometheus.Counter
	skipped     *prometheus.CounterVec
	actorErrors prometheus.Counter
}

// NewMetrics registers the recorder collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		written: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revisionable",
			Name:      "revisions_written_total",
			Help:      "Revisions written, by lifecycle event.",
		}, []string{"event"}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "revisionable",
			Name:      "revisions_pruned_total",
			Help:      "Revisions deleted by history limit cleanup.",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revisionable",
			Name:      "batches_skipped_total",
			Help:      "Revision batches not written, by reason.",
		}, []string{"reason"}),
		actorErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "revisionable",
			Name:      "actor_errors_total",
			Help:      "Actor resolution failures reported to the error sink.",
		}),
	}
}

func (m *Metrics) observeWritten(event string, n int) {
	if m == nil {
		return
	}
	m.written.WithLabelValues(event).Add(float64(n))
}

func (m *Metrics) observePruned(n int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(n))
}

func (m *Metrics) observeSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeActorError() {
	if m == nil {
		return
	}
	m.actorErrors.Inc()
}
