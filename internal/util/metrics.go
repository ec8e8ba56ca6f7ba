package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_notifications_total",
		Help: "Total payment gateway notifications received, by outcome",
	}, []string{"outcome"})

	WebhookSignatureFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total notifications rejected for invalid signature",
	})

	WebhookStaleNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_stale_notifications_total",
		Help: "Total verified notifications skipped as older than the applied state",
	})

	SubscriptionActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscription_activations_total",
		Help: "Total subscriptions activated by verified notifications",
	})

	SubscriptionExpirationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_expirations_total",
		Help: "Total subscriptions expired, by gateway status",
	}, []string{"reason"})

	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Total checkout sessions created, by plan",
	}, []string{"plan"})

	AuditsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audits_generated_total",
		Help: "Total audits generated, by type",
	}, []string{"type"})

	AuditQuotaRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_quota_rejected_total",
		Help: "Total audit requests rejected by the free-tier quota",
	})

	ModelRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_request_latency_seconds",
		Help:    "Latency of generative model calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"prompt"})

	ModelRequestFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_request_failures_total",
		Help: "Total failed generative model calls",
	}, []string{"prompt"})

	CommandsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_completed_total",
		Help: "Total commands verified as completed",
	})

	CommandsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_failed_total",
		Help: "Total commands expired by the sweeper",
	})

	ExecutionClaimsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execution_claims_rejected_total",
		Help: "Total execution proofs judged invalid",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
