package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokenExchanges counts refresh exchanges by outcome: success, discarded or the
	// failure reason.
	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_token_exchanges_total",
		Help: "Total number of refresh token exchanges by result",
	}, []string{"result"})
	RequestRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foodctl_request_retries_total",
		Help: "Total number of requests re-issued after a successful refresh",
	})
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_requests_total",
		Help: "Total number of API requests sent, by method and status code",
	}, []string{"method", "code"})
	SessionEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_session_ended_total",
		Help: "Total number of sessions ended, by reason (logout or expired)",
	}, []string{"reason"})

	// Dev server metrics
	DevServerTokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_devserver_tokens_issued_total",
		Help: "Total number of tokens issued by the dev server, by token type",
	}, []string{"type"})
	DevServerAuthFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_devserver_auth_failures_total",
		Help: "Total number of rejected credentials at the dev server, by reason",
	}, []string{"reason"})

	// Audit metrics
	AuditEventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foodctl_audit_events_processed_total",
		Help: "Total number of audit events written to the audit sink",
	})
	AuditEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foodctl_audit_events_dropped_total",
		Help: "Total number of audit events dropped because the queue was full",
	})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodctl_audit_sink_errors_total",
		Help: "Total number of failed audit sink writes, by sink and error type",
	}, []string{"sink", "error_type"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodctl_audit_sink_write_seconds",
		Help:    "Latency of audit sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(TokenExchanges)
	prometheus.MustRegister(RequestRetries)
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(SessionEnded)
	prometheus.MustRegister(DevServerTokensIssued)
	prometheus.MustRegister(DevServerAuthFailures)
	prometheus.MustRegister(AuditEventsProcessed)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkLatency)
}

// MetricsHandler returns the HTTP handler for the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
