package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/app"
	"github.com/kilianp07/teabrew/config"
	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/factory"
	"github.com/kilianp07/teabrew/core/model"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// organisation, bucket and token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func call(t *testing.T, base, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, base+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(httpx.UserHeader, "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return resp.StatusCode, data
}

// Test_E2E_BrewFlow runs the whole service against real InfluxDB and
// Mosquitto instances: a machine reports its status over MQTT, a brew is
// requested over HTTP, the job reaches the machine topic and the decision is
// written to InfluxDB.
func Test_E2E_BrewFlow(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	started := time.Now()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, mqttURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", mqttURL)

	influx := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer influx.Close()
	if err := influx.SetupBucket(ctx); err != nil {
		t.Fatalf("setup bucket: %v", err)
	}

	cfg := config.Default()
	cfg.MQTT.Broker = mqttURL
	cfg.MQTT.ClientID = "teabrew-e2e"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Telemetry.Enabled = true
	cfg.Metrics.Sinks = []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = svc.Run(runCtx) }()
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	machineCli := paho.NewClient(paho.NewClientOptions().AddBroker(mqttURL).SetClientID("kettle"))
	if token := machineCli.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("machine connect: %v", token.Error())
	}
	defer machineCli.Disconnect(100)
	jobs := make(chan []byte, 1)
	if token := machineCli.Subscribe("machine/kettle/brew", 1, func(_ paho.Client, m paho.Message) { jobs <- m.Payload() }); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	if code, body := call(t, srv.URL, http.MethodPost, "/api/machines", `{"machine_id":"kettle"}`); code != http.StatusCreated {
		t.Fatalf("provision: %d %s", code, body)
	}
	if code, body := call(t, srv.URL, http.MethodPut, "/api/machines/kettle/containers/1", `{"tea":3,"amount":100}`); code != http.StatusOK {
		t.Fatalf("container: %d %s", code, body)
	}
	code, body := call(t, srv.URL, http.MethodPost, "/api/recipes", `{"recipe_name":"Sencha","tea_type":3,"tea_portion":200}`)
	if code != http.StatusCreated {
		t.Fatalf("recipe: %d %s", code, body)
	}
	var r model.Recipe
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatal(err)
	}

	// the machine reports itself ready until the service sees it
	deadline := time.Now().Add(30 * time.Second)
	for {
		machineCli.Publish("machine/state/kettle", 1, false, `{"connected":true,"mug_ready":true,"water_quantity":900}`).Wait()
		_, body := call(t, srv.URL, http.MethodGet, "/api/machines/kettle", "")
		var m model.Machine
		if json.Unmarshal(body, &m) == nil && m.Connected && m.MugReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("telemetry never reached the service: %s", body)
		}
		time.Sleep(200 * time.Millisecond)
	}

	code, body = call(t, srv.URL, http.MethodPost, "/api/brew", fmt.Sprintf(`{"recipe_id":%d}`, r.ID))
	if code != http.StatusOK {
		t.Fatalf("brew: %d %s", code, body)
	}
	select {
	case payload := <-jobs:
		var job dispatch.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.MachineID != "kettle" || job.Recipe.ID != r.ID || job.Portion != 200 {
			t.Fatalf("unexpected job %+v", job)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("job never reached the machine")
	}

	deadline = time.Now().Add(30 * time.Second)
	for {
		n, err := influx.CountPoints(ctx, "dispatch_event", "5m")
		if err == nil && n > 0 {
			t.Logf("Influx returned %d dispatch points", n)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no dispatch points in Influx: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	dir := t.TempDir()
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: "Test_E2E_BrewFlow", Time: time.Since(started).Seconds()}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
