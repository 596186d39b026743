// Package observability holds the Prometheus collectors shared by the client and sandbox.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeConnectivity = "connectivity"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_client",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Outbound API calls grouped by route and outcome.",
	}, []string{"route", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gym_client",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Latency of outbound API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_client",
		Subsystem: "controller",
		Name:      "dropped_calls_total",
		Help:      "Calls ignored because the same operation was already in flight.",
	}, []string{"component"})

	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_client",
		Subsystem: "auth",
		Name:      "transitions_total",
		Help:      "Auth flow transitions grouped by target phase.",
	}, []string{"phase"})

	sandboxReservationsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gym_sandbox",
		Subsystem: "reservations",
		Name:      "confirmed",
		Help:      "Number of confirmed reservations held by the sandbox API.",
	})

	sandboxOTPCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_sandbox",
		Subsystem: "otp",
		Name:      "verifications_total",
		Help:      "OTP verification attempts grouped by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(requestCounter, requestDuration, droppedCounter, transitionCounter, sandboxReservationsGauge, sandboxOTPCounter)
}

// RecordRequest counts an API call and observes its latency.
func RecordRequest(route, outcome string, elapsed time.Duration) {
	requestCounter.WithLabelValues(route, outcome).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordDropped counts a call skipped by an in-flight guard.
func RecordDropped(component string) {
	droppedCounter.WithLabelValues(component).Inc()
}

// RecordTransition counts an auth flow transition.
func RecordTransition(phase string) {
	transitionCounter.WithLabelValues(phase).Inc()
}

// RecordSandboxReservations sets the confirmed reservation gauge.
func RecordSandboxReservations(confirmed int) {
	sandboxReservationsGauge.Set(float64(confirmed))
}

// RecordSandboxOTP counts an OTP verification outcome.
func RecordSandboxOTP(result string) {
	sandboxOTPCounter.WithLabelValues(result).Inc()
}
