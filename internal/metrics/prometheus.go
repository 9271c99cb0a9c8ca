package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_tokens_issued_total",
		Help: "Total number of access/refresh token pairs issued.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_tokens_refreshed_total",
		Help: "Total number of access tokens rotated from a refresh token.",
	})
	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_tokens_revoked_total",
		Help: "Total number of tokens explicitly revoked.",
	})
	TokenVerificationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_token_verification_failures_total",
		Help: "Total number of token verification failures by reason.",
	}, []string{"reason"})
	IdempotencyReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_idempotency_replays_total",
		Help: "Total number of requests answered from the idempotency cache.",
	})
	IdempotencyConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_idempotency_conflicts_total",
		Help: "Total number of duplicate requests rejected while the original was still in flight.",
	})
	RevocationFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_revocation_fallback_total",
		Help: "Total number of revocation checks served from the in-process fallback.",
	})
)

// Register registers the custom Prometheus metrics.
// It should be called once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := []prometheus.Collector{
		TokensIssuedTotal,
		TokensRefreshedTotal,
		TokensRevokedTotal,
		TokenVerificationFailuresTotal,
		IdempotencyReplaysTotal,
		IdempotencyConflictsTotal,
		RevocationFallbackTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register Prometheus metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
