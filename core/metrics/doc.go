// Package metrics defines the sink interfaces used to record dispatch
// outcomes, votes, machine synchronisation and machine telemetry. Sinks are
// created from configuration through a factory registry; infra/metrics
// registers the "nop", "prometheus" and "influx" types. When several sinks
// are configured they are combined in a MultiSink.
package metrics
