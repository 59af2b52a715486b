// Package telemetry keeps machine status current from the messages machines
// publish over MQTT, either pushed on their own or in answer to a poll.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/teabrew/config"
	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/monitoring"
	coremqtt "github.com/kilianp07/teabrew/core/mqtt"
	"github.com/kilianp07/teabrew/infra/logger"
	infmqtt "github.com/kilianp07/teabrew/infra/mqtt"
)

// StatusStore reads and writes machine status.
type StatusStore interface {
	Get(ctx context.Context, machineID string) (model.Machine, error)
	UpdateStatus(ctx context.Context, m model.Machine) error
}

// Manager collects telemetry from machines either via push or polling.
type Manager struct {
	cfg   config.TelemetryConfig
	cli   paho.Client
	store StatusStore
	sink  coremetrics.MachineStateRecorder
	log   logger.Logger

	respCh chan telemetryMessage

	mu    sync.Mutex
	known map[string]struct{}

	pollReq     prometheus.Counter
	pollResp    prometheus.Counter
	pollTimeout prometheus.Counter
	lastCollect prometheus.Gauge
	latency     prometheus.Histogram
}

type telemetryMessage struct {
	MachineID string
	Payload   []byte
	Arrived   time.Time
}

// NewManager connects to MQTT and prepares telemetry collection. reg may be
// nil, in which case prometheus.DefaultRegisterer is used.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, store StatusStore, sink coremetrics.MachineStateRecorder, reg prometheus.Registerer) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("telemetry: nil status store")
	}
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := newManager(cfg, cli, store, sink)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pollReq, m.pollResp, m.pollTimeout, m.lastCollect, m.latency)
	return m, nil
}

func newManager(cfg config.TelemetryConfig, cli paho.Client, store StatusStore, sink coremetrics.MachineStateRecorder) *Manager {
	return &Manager{
		cfg:         cfg,
		cli:         cli,
		store:       store,
		sink:        sink,
		log:         logger.New("telemetry"),
		respCh:      make(chan telemetryMessage, 100),
		known:       make(map[string]struct{}),
		pollReq:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollResp:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_responses_total", Help: "Number of telemetry poll responses"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of machines that did not answer a poll"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of telemetry collection", Buckets: prometheus.DefBuckets}),
	}
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	mode := strings.ToLower(m.cfg.Mode)
	if mode == "" {
		mode = "push"
	}
	if mode == "push" || mode == "hybrid" {
		topic := coremqtt.Wildcard(m.cfg.StatePrefix)
		if token := m.cli.Subscribe(topic, 0, m.onPush); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe state: %v", token.Error())
		}
	}
	if mode == "pull" || mode == "hybrid" {
		topic := coremqtt.Wildcard(m.cfg.ResponsePrefix)
		if token := m.cli.Subscribe(topic, 0, m.onResponse); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe response: %v", token.Error())
		}
		go m.pollLoop(ctx)
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	defer monitoring.Recover()
	if err := m.process(context.Background(), msg.Payload(), msg.Topic(), "push"); err != nil {
		m.log.Errorf("push decode: %v", err)
	}
}

// onResponse must not block: paho runs handlers on its router goroutine,
// which also delivers push state in hybrid mode.
func (m *Manager) onResponse(_ paho.Client, msg paho.Message) {
	resp := telemetryMessage{MachineID: coremqtt.MachineIDFromTopic(msg.Topic()), Payload: msg.Payload(), Arrived: time.Now()}
	select {
	case m.respCh <- resp:
	default:
		m.log.Warnf("poll response from %s dropped, buffer full", resp.MachineID)
	}
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer monitoring.Recover()
	ticker := time.NewTicker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// doPoll asks every machine for its status. Machines seen before that do
// not answer before the timeout are marked disconnected.
func (m *Manager) doPoll(ctx context.Context) {
	start := time.Now()
	m.mu.Lock()
	expected := make(map[string]struct{}, len(m.known))
	for id := range m.known {
		expected[id] = struct{}{}
	}
	m.mu.Unlock()

	// Answers to earlier polls or unsolicited ones are stale.
	for drained := false; !drained; {
		select {
		case <-m.respCh:
		default:
			drained = true
		}
	}

	m.pollReq.Inc()
	token := m.cli.Publish(m.cfg.RequestTopic, 0, false, []byte("poll"))
	token.Wait()
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	for {
		select {
		case resp := <-m.respCh:
			if err := m.process(ctx, resp.Payload, resp.MachineID, "poll"); err != nil {
				m.log.Errorf("poll decode: %v", err)
			} else {
				m.pollResp.Inc()
				m.latency.Observe(time.Since(start).Seconds())
				m.lastCollect.SetToCurrentTime()
				delete(expected, resp.MachineID)
			}
		case <-timeout.C:
			for id := range expected {
				m.pollTimeout.Inc()
				m.markDisconnected(ctx, id)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) markDisconnected(ctx context.Context, id string) {
	cur, err := m.store.Get(ctx, id)
	if err != nil || !cur.Connected {
		return
	}
	cur.Connected = false
	if err := m.store.UpdateStatus(ctx, cur); err != nil {
		m.log.Errorf("mark %s disconnected: %v", id, err)
		return
	}
	m.log.Warnf("machine %s did not answer poll, marked disconnected", id)
}

type stateMessage struct {
	MachineID string   `json:"machine_id"`
	Connected *bool    `json:"connected"`
	MugReady  *bool    `json:"mug_ready"`
	Water     *float64 `json:"water_quantity"`
	TS        *int64   `json:"ts"`
}

// process applies a state message on top of the stored status. Absent
// fields keep their stored value. topic may be a full topic or a bare
// machine ID.
func (m *Manager) process(ctx context.Context, payload []byte, topic, source string) error {
	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.MachineID == "" {
		msg.MachineID = coremqtt.MachineIDFromTopic(topic)
	}
	if msg.MachineID == "" {
		return fmt.Errorf("state message without machine id")
	}
	cur, err := m.store.Get(ctx, msg.MachineID)
	if errors.Is(err, model.ErrNotFound) {
		m.log.Warnf("telemetry from unknown machine %s ignored", msg.MachineID)
		return nil
	}
	if err != nil {
		return err
	}
	// A machine that reports is connected unless it says otherwise.
	cur.Connected = true
	if msg.Connected != nil {
		cur.Connected = *msg.Connected
	}
	if msg.MugReady != nil {
		cur.MugReady = *msg.MugReady
	}
	if msg.Water != nil {
		cur.Water = *msg.Water
		if cur.Water < 0 {
			cur.Water = 0
		}
	}
	if err := m.store.UpdateStatus(ctx, cur); err != nil {
		return fmt.Errorf("update %s: %w", cur.ID, err)
	}
	m.mu.Lock()
	m.known[cur.ID] = struct{}{}
	m.mu.Unlock()

	ts := time.Now()
	if msg.TS != nil {
		ts = time.Unix(*msg.TS, 0)
	}
	if m.sink != nil {
		if err := m.sink.RecordMachineState(coremetrics.MachineStateRecord{Machine: cur, Context: source, Time: ts}); err != nil {
			m.log.Errorf("machine state metrics: %v", err)
		}
	}
	return nil
}
