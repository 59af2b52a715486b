package metrics

import (
	"fmt"
	"strings"

	"github.com/kilianp07/teabrew/core/factory"
)

// sinks maps a config type ("prometheus", "influx", "nop") to its
// constructor. infra/metrics fills it from init.
var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to the metrics.sinks
// config section.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinks.Types() }

// NewMetricsSink builds the sink that receives dispatch decisions, votes,
// favourite and container syncs and machine state. No config yields a
// NopSink; several are combined in a MultiSink in config order.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %d (%s): %w, known types: %s",
				i, c.Type, err, strings.Join(SinkTypes(), ", "))
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	default:
		return NewMultiSink(built...), nil
	}
}
