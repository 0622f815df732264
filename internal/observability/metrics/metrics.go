// Package metrics holds the prometheus collectors for session, handshake and
// registry activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const defaultService = "portseal"

var (
	sessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portseal_session_operations_total",
			Help: "Session encrypt/decrypt operations by result.",
		},
		[]string{"service", "op", "result"},
	)

	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portseal_handshakes_total",
			Help: "X3DH handshakes by role and result.",
		},
		[]string{"service", "role", "result"},
	)

	preKeyClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portseal_prekey_claims_total",
			Help: "Pre-key bundle claims by result.",
		},
		[]string{"service", "result"},
	)

	registryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portseal_registry_request_duration_seconds",
			Help:    "Duration of registry HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)
)

// Curried views used by callers. They work before MustRegister is called;
// the samples are simply not exported.
var (
	SessionOperationsTotal         = sessionOperations.MustCurryWith(prometheus.Labels{"service": defaultService})
	HandshakesTotal                = handshakes.MustCurryWith(prometheus.Labels{"service": defaultService})
	PreKeyClaimsTotal              = preKeyClaims.MustCurryWith(prometheus.Labels{"service": defaultService})
	RegistryRequestDurationSeconds = registryRequestDuration.MustCurryWith(prometheus.Labels{"service": defaultService})
)

// MustRegister binds the service label and registers every collector with
// the default registry. Call it once per process.
func MustRegister(serviceName string) {
	labels := prometheus.Labels{"service": serviceName}
	SessionOperationsTotal = sessionOperations.MustCurryWith(labels)
	HandshakesTotal = handshakes.MustCurryWith(labels)
	PreKeyClaimsTotal = preKeyClaims.MustCurryWith(labels)
	RegistryRequestDurationSeconds = registryRequestDuration.MustCurryWith(labels)

	prometheus.MustRegister(
		sessionOperations,
		handshakes,
		preKeyClaims,
		registryRequestDuration,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
