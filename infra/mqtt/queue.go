package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/machine"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/monitoring"
	coremqtt "github.com/kilianp07/teabrew/core/mqtt"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/infra/logger"
)

var (
	_ dispatch.Queue          = (*PahoQueue)(nil)
	_ machine.ContainerSyncer = (*PahoQueue)(nil)
	_ recipe.FavouriteSyncer  = (*PahoQueue)(nil)
)

// PahoQueue publishes brew jobs and machine state syncs over MQTT.
//
// Publishing is fire-and-forget: a call returns once the message is handed
// to the client. Broker confirmation, retries with exponential backoff and
// failure reporting happen on a background goroutine.
type PahoQueue struct {
	cli        pahoClient
	prefix     string
	cfg        Config
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	now        func() time.Time

	// mu orders wg.Add against wg.Wait; closed rejects publishes after Close.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPahoQueue connects to the MQTT broker. Topics are rooted at prefix.
func NewPahoQueue(cfg Config, prefix string) (*PahoQueue, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_queue")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PahoQueue{
		cli:        c,
		prefix:     prefix,
		cfg:        cfg,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:    time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
		now:        time.Now,
	}, nil
}

// Enqueue publishes job on the machine's brew topic.
func (q *PahoQueue) Enqueue(_ context.Context, job dispatch.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	topic := coremqtt.MachineTopic(q.prefix, job.MachineID, coremqtt.KindBrew)
	return q.publish(coremqtt.KindBrew, topic, false, payload, map[string]string{
		"machine_id": job.MachineID,
		"job_id":     job.ID,
	})
}

type containersMessage struct {
	MachineID string `json:"machine_id"`
	inventory.Layout
	SentAt time.Time `json:"sent_at"`
}

// SyncContainers publishes the container layout as a retained message so
// the machine receives the latest state when it reconnects.
func (q *PahoQueue) SyncContainers(_ context.Context, machineID string, l inventory.Layout) error {
	payload, err := json.Marshal(containersMessage{MachineID: machineID, Layout: l, SentAt: q.now()})
	if err != nil {
		return err
	}
	topic := coremqtt.MachineTopic(q.prefix, machineID, coremqtt.KindContainers)
	return q.publish(coremqtt.KindContainers, topic, true, payload, map[string]string{"machine_id": machineID})
}

type favouritesMessage struct {
	MachineID string         `json:"machine_id"`
	Recipes   []model.Recipe `json:"recipes"`
	SentAt    time.Time      `json:"sent_at"`
}

// SyncFavourites publishes the favourite recipes as a retained message.
func (q *PahoQueue) SyncFavourites(_ context.Context, machineID string, rs []model.Recipe) error {
	if rs == nil {
		rs = []model.Recipe{}
	}
	payload, err := json.Marshal(favouritesMessage{MachineID: machineID, Recipes: rs, SentAt: q.now()})
	if err != nil {
		return err
	}
	topic := coremqtt.MachineTopic(q.prefix, machineID, coremqtt.KindFavourites)
	return q.publish(coremqtt.KindFavourites, topic, true, payload, map[string]string{"machine_id": machineID})
}

func (q *PahoQueue) publish(kind, topic string, retained bool, payload []byte, tags map[string]string) error {
	if !q.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return coremqtt.ErrNotConnected
	}
	q.wg.Add(1)
	q.mu.Unlock()
	qos := q.cfg.qos(kind)
	token := q.cli.Publish(topic, qos, retained, payload)
	go q.confirm(token, kind, topic, qos, retained, payload, tags)
	return nil
}

// confirm waits for the broker and republishes on failure.
func (q *PahoQueue) confirm(token paho.Token, kind, topic string, qos byte, retained bool, payload []byte, tags map[string]string) {
	defer q.wg.Done()
	defer monitoring.Recover()

	err := q.wait(token)
	for attempt := 0; err != nil && attempt < q.maxRetries; attempt++ {
		q.logger.Warnf("publish to %s attempt %d failed: %v", topic, attempt+1, err)
		time.Sleep(q.backoff * time.Duration(1<<attempt))
		err = q.wait(q.cli.Publish(topic, qos, retained, payload))
	}
	if err != nil {
		publishFailure.WithLabelValues(kind).Inc()
		q.logger.Errorf("publish to %s abandoned: %v", topic, err)
		t := map[string]string{"module": "mqtt", "topic": topic}
		for k, v := range tags {
			t[k] = v
		}
		monitoring.CaptureException(err, t)
		return
	}
	publishSuccess.WithLabelValues(kind).Inc()
	q.logger.Debugf("published to %s", topic)
}

func (q *PahoQueue) wait(token paho.Token) error {
	if !token.WaitTimeout(q.timeout) {
		return coremqtt.ErrPublishTimeout
	}
	return token.Error()
}

// Flush blocks until every in-flight publish is confirmed or abandoned.
// Publishes started during Flush wait for it to return.
func (q *PahoQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.wg.Wait()
}

// Close flushes pending publishes and disconnects from the broker. Later
// publishes fail with coremqtt.ErrNotConnected.
func (q *PahoQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.wg.Wait()
	q.mu.Unlock()
	if q.cli != nil && q.cli.IsConnected() {
		q.cli.Disconnect(250)
	}
	return nil
}
