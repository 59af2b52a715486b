package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/infra/logger"
)

// InfluxConfig holds the InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch, vote, sync and machine state points to an
// InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDispatch writes one dispatch_event point.
func (s *InfluxSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	p := write.NewPointWithMeasurement("dispatch_event").
		AddTag("machine_id", rec.MachineID).
		AddTag("recipe_id", strconv.FormatInt(rec.RecipeID, 10)).
		AddTag("accepted", strconv.FormatBool(rec.Accepted)).
		AddTag("component", "dispatch_manager").
		AddField("reasons", len(rec.Reasons)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	if len(rec.Reasons) > 0 {
		p = p.AddField("detail", strings.Join(rec.Reasons, "; "))
	}
	return s.write(p)
}

// RecordVote writes the recipe mean after a vote.
func (s *InfluxSink) RecordVote(rec coremetrics.VoteRecord) error {
	p := write.NewPointWithMeasurement("recipe_vote").
		AddTag("recipe_id", strconv.FormatInt(rec.RecipeID, 10)).
		AddTag("created", strconv.FormatBool(rec.Created)).
		AddField("score", rec.Score).
		AddField("mean", round3(rec.Mean)).
		AddField("votes", rec.Votes).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordSync writes a machine_sync point.
func (s *InfluxSink) RecordSync(rec coremetrics.SyncRecord) error {
	p := write.NewPointWithMeasurement("machine_sync").
		AddTag("machine_id", rec.MachineID).
		AddTag("kind", rec.Kind).
		AddField("failed", rec.Failed).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordMachineState writes a snapshot of a machine.
func (s *InfluxSink) RecordMachineState(rec coremetrics.MachineStateRecord) error {
	m := rec.Machine
	p := write.NewPointWithMeasurement("machine_state").
		AddTag("machine_id", m.ID).
		AddTag("context", rec.Context).
		AddField("connected", m.Connected).
		AddField("mug_ready", m.MugReady).
		AddField("water_quantity", round3(m.Water)).
		SetTime(rec.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
