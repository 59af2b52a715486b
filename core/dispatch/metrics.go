package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchRequests  *prometheus.CounterVec
	rejectionReasons  *prometheus.CounterVec
	validationLatency prometheus.Histogram
	enqueueFailures   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram, prometheus.Counter) {
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brew_dispatch_requests_total",
			Help: "Number of brew dispatch requests by outcome",
		},
		[]string{"outcome"},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brew_dispatch_rejections_total",
			Help: "Number of validation failures by reason",
		},
		[]string{"reason"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brew_dispatch_validation_seconds",
			Help:    "Time spent loading state and validating a brew request",
			Buckets: prometheus.DefBuckets,
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brew_dispatch_enqueue_failures_total",
			Help: "Number of validated jobs that could not be enqueued",
		},
	)
	return req, rej, lat, fail
}

func init() {
	dispatchRequests, rejectionReasons, validationLatency, enqueueFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchRequests, rejectionReasons, validationLatency, enqueueFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchRequests, rejectionReasons, validationLatency, enqueueFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
