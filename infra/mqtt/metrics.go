package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	publishSuccess *prometheus.CounterVec
	publishFailure *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	suc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publish_success_total",
			Help: "Number of MQTT publishes confirmed by the broker",
		},
		[]string{"kind"},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publish_failure_total",
			Help: "Number of MQTT publishes abandoned after retries",
		},
		[]string{"kind"},
	)
	return suc, fail
}

func init() {
	publishSuccess, publishFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers publish metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(publishSuccess, publishFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	publishSuccess, publishFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
