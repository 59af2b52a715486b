package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/logger"
	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/core/model"
	coremqtt "github.com/kilianp07/teabrew/core/mqtt"
	inflogger "github.com/kilianp07/teabrew/infra/logger"
)

// SimulatedMachine connects to MQTT, brews the jobs it receives and reports
// its status.
type SimulatedMachine struct {
	ID          string
	Broker      string
	TopicPrefix string
	Interval    time.Duration
	MugDelay    time.Duration
	Strategy    BrewStrategy
	Tank        *Tank
	Sink        coremetrics.MachineStateRecorder
	Log         logger.Logger

	client   paho.Client
	jobs     chan dispatch.Job
	mu       sync.Mutex
	mugReady bool
	layout   inventory.Layout
	brewed   int
	failed   int
}

type statePayload struct {
	MachineID string  `json:"machine_id"`
	Connected bool    `json:"connected"`
	MugReady  bool    `json:"mug_ready"`
	Water     float64 `json:"water_quantity"`
	TS        int64   `json:"ts"`
}

func (m *SimulatedMachine) stateTopic() string {
	return coremqtt.Sub(coremqtt.Sub(m.TopicPrefix, "state"), m.ID)
}

func (m *SimulatedMachine) init() {
	if m.Log == nil {
		m.Log = inflogger.NopLogger{}
	}
	if m.Strategy == nil {
		m.Strategy = FixedBrew{}
	}
	if m.Tank == nil {
		m.Tank = &Tank{}
	}
	if m.jobs == nil {
		m.jobs = make(chan dispatch.Job, 16)
	}
}

// Run connects to the broker and serves jobs until ctx is done.
func (m *SimulatedMachine) Run(ctx context.Context) error {
	m.init()
	offline, _ := json.Marshal(struct {
		MachineID string `json:"machine_id"`
		Connected bool   `json:"connected"`
	}{MachineID: m.ID})
	cli, err := mqttClientFactory(m.Broker, "sim-"+m.ID, m.stateTopic(), offline)
	if err != nil {
		return err
	}
	m.client = cli
	subs := map[string]paho.MessageHandler{
		coremqtt.MachineTopic(m.TopicPrefix, m.ID, coremqtt.KindBrew):       m.onBrew,
		coremqtt.MachineTopic(m.TopicPrefix, m.ID, coremqtt.KindContainers): m.onContainers,
		coremqtt.Sub(m.TopicPrefix, "poll"):                                 m.onPoll,
	}
	for topic, h := range subs {
		if token := cli.Subscribe(topic, 1, h); token.Wait() && token.Error() != nil {
			cli.Disconnect(250)
			return token.Error()
		}
	}
	go m.worker(ctx)

	interval := m.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.publishState(m.stateTopic())
	for {
		select {
		case <-ticker.C:
			m.publishState(m.stateTopic())
		case <-ctx.Done():
			token := cli.Publish(m.stateTopic(), 1, false, offline)
			token.WaitTimeout(time.Second)
			cli.Disconnect(250)
			return nil
		}
	}
}

func (m *SimulatedMachine) onBrew(_ paho.Client, msg paho.Message) {
	var job dispatch.Job
	if err := json.Unmarshal(msg.Payload(), &job); err != nil {
		m.Log.Errorf("%s: decode job: %v", m.ID, err)
		return
	}
	if job.MachineID != "" && job.MachineID != m.ID {
		return
	}
	select {
	case m.jobs <- job:
	default:
		m.Log.Warnf("%s: job queue full, dropping job %s", m.ID, job.ID)
	}
}

func (m *SimulatedMachine) onContainers(_ paho.Client, msg paho.Message) {
	var l inventory.Layout
	if err := json.Unmarshal(msg.Payload(), &l); err != nil {
		m.Log.Errorf("%s: decode containers: %v", m.ID, err)
		return
	}
	m.mu.Lock()
	m.layout = l
	m.mu.Unlock()
}

func (m *SimulatedMachine) onPoll(paho.Client, paho.Message) {
	m.publishState(coremqtt.Sub(coremqtt.Sub(m.TopicPrefix, "response"), m.ID))
}

func (m *SimulatedMachine) worker(ctx context.Context) {
	for {
		select {
		case job := <-m.jobs:
			m.brew(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// brew runs one job. The machine consumes the recipe only when the strategy
// reports success, then waits MugDelay for a fresh mug.
func (m *SimulatedMachine) brew(ctx context.Context, job dispatch.Job) {
	m.mu.Lock()
	ready := m.mugReady
	m.mu.Unlock()
	if !ready {
		m.Log.Warnf("%s: no mug for job %s", m.ID, job.ID)
		m.countFailure()
		return
	}
	if !m.Strategy.Brew(ctx, job) {
		m.Log.Warnf("%s: brew failed for job %s", m.ID, job.ID)
		m.countFailure()
		return
	}

	m.mu.Lock()
	consume(m.layout.TeaContainers, func(cs []model.Container) (model.Container, bool) {
		return brew.FindTea(job.Recipe.TeaID, cs)
	}, job.Recipe.HerbAmount)
	for _, ing := range job.Recipe.Ingredients {
		consume(m.layout.IngredientContainers, func(cs []model.Container) (model.Container, bool) {
			return brew.FindIngredient(ing.IngredientID, cs)
		}, ing.Amount)
	}
	m.mugReady = false
	m.brewed++
	m.mu.Unlock()
	drawn := m.Tank.Draw(job.Portion)
	m.Log.Infow("brewed", map[string]any{"machine_id": m.ID, "job_id": job.ID, "water_ml": drawn})
	m.publishState(m.stateTopic())

	go func() {
		if sleep(ctx, m.MugDelay) {
			m.mu.Lock()
			m.mugReady = true
			m.mu.Unlock()
			m.publishState(m.stateTopic())
		}
	}()
}

func (m *SimulatedMachine) countFailure() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

// consume deducts amount from the container find selects.
func consume(cs []model.Container, find func([]model.Container) (model.Container, bool), amount float64) {
	c, ok := find(cs)
	if !ok {
		return
	}
	for i := range cs {
		if cs[i].Slot == c.Slot {
			cs[i].Amount -= amount
			if cs[i].Amount < 0 {
				cs[i].Amount = 0
			}
			return
		}
	}
}

func (m *SimulatedMachine) snapshot() statePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return statePayload{
		MachineID: m.ID,
		Connected: true,
		MugReady:  m.mugReady,
		Water:     m.Tank.Level(),
		TS:        time.Now().Unix(),
	}
}

func (m *SimulatedMachine) publishState(topic string) {
	if m.client == nil {
		return
	}
	st := m.snapshot()
	payload, err := json.Marshal(st)
	if err != nil {
		m.Log.Errorf("%s: marshal state: %v", m.ID, err)
		return
	}
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		m.Log.Warnf("%s: state publish timeout", m.ID)
		return
	}
	if err := token.Error(); err != nil {
		m.Log.Errorf("%s: publish state: %v", m.ID, err)
		return
	}
	if m.Sink != nil {
		rec := coremetrics.MachineStateRecord{
			Machine: model.Machine{ID: m.ID, Connected: st.Connected, MugReady: st.MugReady, Water: st.Water},
			Context: "simulator",
			Time:    time.Unix(st.TS, 0),
		}
		if err := m.Sink.RecordMachineState(rec); err != nil {
			m.Log.Errorf("%s: record state: %v", m.ID, err)
		}
	}
}
