package deluge

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deluge",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC exchanges by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deluge",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "JSON-RPC exchange duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	sessionLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deluge",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "auth.login attempts by outcome.",
		},
		[]string{"outcome"},
	)
	sessionRenewals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deluge",
			Subsystem: "session",
			Name:      "renewals_total",
			Help:      "Calls retried after the server reported an expired session.",
		},
	)
)

// RegisterMetrics registers the client collectors with reg. Collectors are
// shared by every Client in the process, so register them once.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{rpcCalls, rpcDuration, sessionLogins, sessionRenewals} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func recordCall(method string, err error, duration time.Duration) {
	rpcCalls.WithLabelValues(method, outcome(err)).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func recordLogin(err error) {
	sessionLogins.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return "transport_error"
	}

	switch GetErrorCode(err) {
	case ErrorCodeNone:
		return "success"
	case ErrorCodeAuthFailure:
		return "rejected"
	case ErrorCodeNotAuthenticated:
		return "not_authenticated"
	case ErrorCodeAPI:
		return "api_error"
	case ErrorCodeInvalidResponse:
		return "invalid_response"
	default:
		return "transport_error"
	}
}
