package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/teabrew/core/metrics"
)

// PromSink records dispatch, vote, sync and machine state samples in
// Prometheus metrics.
type PromSink struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	score      *prometheus.GaugeVec
	votes      *prometheus.GaugeVec
	syncs      *prometheus.CounterVec
	water      *prometheus.GaugeVec
	connected  *prometheus.GaugeVec
	mugReady   *prometheus.GaugeVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately, see Serve.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machine_dispatches_total",
			Help: "Dispatch requests per machine and result",
		}, []string{"machine_id", "accepted"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "machine_dispatch_duration_seconds",
			Help:    "Time from request to validation result or enqueue",
			Buckets: prometheus.DefBuckets,
		}, []string{"machine_id"}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recipe_score",
			Help: "Mean vote score of a recipe",
		}, []string{"recipe_id"}),
		votes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recipe_votes",
			Help: "Number of votes cast on a recipe",
		}, []string{"recipe_id"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machine_syncs_total",
			Help: "State pushes to machines",
		}, []string{"kind", "failed"}),
		water: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "machine_water_quantity",
			Help: "Last reported water quantity",
		}, []string{"machine_id"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "machine_connected",
			Help: "1 when the machine last reported connected",
		}, []string{"machine_id"}),
		mugReady: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "machine_mug_ready",
			Help: "1 when the machine last reported a mug in place",
		}, []string{"machine_id"}),
	}
	var err error
	if s.dispatches, err = register(reg, s.dispatches); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, s.score); err != nil {
		return nil, err
	}
	if s.votes, err = register(reg, s.votes); err != nil {
		return nil, err
	}
	if s.syncs, err = register(reg, s.syncs); err != nil {
		return nil, err
	}
	if s.water, err = register(reg, s.water); err != nil {
		return nil, err
	}
	if s.connected, err = register(reg, s.connected); err != nil {
		return nil, err
	}
	if s.mugReady, err = register(reg, s.mugReady); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch counts the dispatch and observes its duration.
func (s *PromSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	s.dispatches.WithLabelValues(rec.MachineID, strconv.FormatBool(rec.Accepted)).Inc()
	s.duration.WithLabelValues(rec.MachineID).Observe(rec.Duration.Seconds())
	return nil
}

// RecordVote sets the recipe score and vote count gauges.
func (s *PromSink) RecordVote(rec coremetrics.VoteRecord) error {
	id := strconv.FormatInt(rec.RecipeID, 10)
	s.score.WithLabelValues(id).Set(rec.Mean)
	s.votes.WithLabelValues(id).Set(float64(rec.Votes))
	return nil
}

// RecordSync counts a state push.
func (s *PromSink) RecordSync(rec coremetrics.SyncRecord) error {
	s.syncs.WithLabelValues(rec.Kind, strconv.FormatBool(rec.Failed)).Inc()
	return nil
}

// RecordMachineState sets the machine status gauges.
func (s *PromSink) RecordMachineState(rec coremetrics.MachineStateRecord) error {
	m := rec.Machine
	s.water.WithLabelValues(m.ID).Set(m.Water)
	s.connected.WithLabelValues(m.ID).Set(boolGauge(m.Connected))
	s.mugReady.WithLabelValues(m.ID).Set(boolGauge(m.MugReady))
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
