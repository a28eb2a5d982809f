package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	PolicyPublic  = "public"
	PolicyPrivate = "private"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

type SponsorshipMetrics interface {
	// IncSponsorAttempt counts one pm_sponsorUserOperation attempt.
	IncSponsorAttempt(policy, status string)
	// IncSponsorFallback counts resolutions that had to use the private policy.
	IncSponsorFallback()
}

// PaymasterMetrics contains the prometheus collectors of the sponsorship flow.
type PaymasterMetrics struct {
	numSponsorAttempts  *prometheus.CounterVec
	numSponsorFallbacks prometheus.Counter
}

const apNamespace = "ap"

func NewPaymasterMetrics(reg prometheus.Registerer) *PaymasterMetrics {
	return &PaymasterMetrics{
		numSponsorAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: "paymaster",
				Name:      "num_sponsor_attempts_total",
				Help:      "The number of pm_sponsorUserOperation calls by sponsorship policy and outcome",
			}, []string{"policy", "status"}),

		numSponsorFallbacks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: "paymaster",
				Name:      "num_sponsor_fallbacks_total",
				Help:      "The number of sponsorships where no public policy applied and the private policy was tried",
			}),
	}
}

func (m *PaymasterMetrics) IncSponsorAttempt(policy, status string) {
	m.numSponsorAttempts.WithLabelValues(policy, status).Inc()
}

func (m *PaymasterMetrics) IncSponsorFallback() {
	m.numSponsorFallbacks.Inc()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncSponsorAttempt(policy, status string) {}
func (NoopMetrics) IncSponsorFallback()                     {}
