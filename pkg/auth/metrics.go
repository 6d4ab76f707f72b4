package auth

import (
	"github.com/prometheus/client_golang/prometheus"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// Metrics holds the Prometheus collectors for verification, key
// resolution and gate decisions. A nil *Metrics records nothing, so
// components take one optionally.
type Metrics struct {
	verifications *prometheus.CounterVec
	keyFetches    *prometheus.CounterVec
	decisions     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_verifications_total",
			Help:      "Token verifications by validation mode and outcome.",
		}, []string{"mode", "outcome"}),
		keyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "key_fetches_total",
			Help:      "Signing key set fetches by endpoint and result.",
		}, []string{"endpoint", "result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "gate_decisions_total",
			Help:      "Authorization gate decisions by gate and outcome.",
		}, []string{"gate", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.verifications, m.keyFetches, m.decisions)
	}
	return m
}

// outcome is "accepted" for a nil error and the taxonomy reason otherwise.
func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	return sserr.FromError(err).Code.Reason()
}

func (m *Metrics) observeVerification(mode string, err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(mode, outcome(err)).Inc()
}

func (m *Metrics) observeKeyFetch(endpoint, result string) {
	if m == nil {
		return
	}
	m.keyFetches.WithLabelValues(endpoint, result).Inc()
}

func (m *Metrics) observeDecision(gate string, err error) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(gate, outcome(err)).Inc()
}
