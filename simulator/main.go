// Command simulator runs a fleet of fake tea machines against an MQTT broker.
// Each machine brews the jobs it receives, reports its status and answers
// status polls.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/infra/metrics"
)

func main() {
	cfg := parseFlags()
	log := logger.New("simulator")
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if cfg.InfluxURL != "" {
		sink = metrics.NewInfluxSinkWithFallback(metrics.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
	}
	recorder, _ := sink.(coremetrics.MachineStateRecorder)

	var tmpl map[string]MachineTemplate
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err == nil {
			tmpl, err = LoadTemplates(data)
		}
		if err != nil {
			log.Errorf("template file: %v", err)
			os.Exit(2)
		}
	}

	machines := GenerateFleet(FleetConfig{
		Size:     cfg.Count,
		IDPrefix: cfg.IDPrefix,
		WaterML:  cfg.WaterML,
		TankML:   cfg.TankML,
	}, tmpl)
	strat := FlakyBrew{Duration: cfg.BrewTime, FailRate: cfg.FailRate}
	runMachines(ctx, machines, cfg, strat, recorder, log)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.IntVar(&cfg.Count, "count", 1, "number of machines")
	flag.StringVar(&cfg.IDPrefix, "id-prefix", "tea", "machine id prefix")
	flag.StringVar(&cfg.TopicPrefix, "topic-prefix", "machine", "MQTT topic prefix")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "status publish interval")
	flag.DurationVar(&cfg.BrewTime, "brew-time", 5*time.Second, "time taken by one brew")
	flag.DurationVar(&cfg.MugDelay, "mug-delay", 10*time.Second, "time until a fresh mug is placed")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0, "brew failure probability")
	flag.Float64Var(&cfg.WaterML, "water", 1000, "initial water quantity")
	flag.Float64Var(&cfg.TankML, "tank", 1500, "water tank capacity")
	flag.StringVar(&cfg.TemplateFile, "template-file", "", "per-machine overrides (JSON)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level")
	flag.StringVar(&cfg.InfluxURL, "influx-url", "", "InfluxDB URL")
	flag.StringVar(&cfg.InfluxToken, "influx-token", "", "InfluxDB token")
	flag.StringVar(&cfg.InfluxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&cfg.InfluxBucket, "influx-bucket", "", "InfluxDB bucket")
	flag.Parse()
	return cfg
}

func runMachines(ctx context.Context, machines []*SimulatedMachine, cfg Config, strat BrewStrategy, sink coremetrics.MachineStateRecorder, log logger.Logger) {
	var wg sync.WaitGroup
	for _, m := range machines {
		m.Broker = cfg.Broker
		m.TopicPrefix = cfg.TopicPrefix
		m.Interval = cfg.Interval
		m.MugDelay = cfg.MugDelay
		m.Strategy = strat
		m.Sink = sink
		m.Log = log
		wg.Add(1)
		go func(m *SimulatedMachine) {
			defer wg.Done()
			if err := m.Run(ctx); err != nil {
				log.Errorf("%s: %v", m.ID, err)
			}
		}(m)
	}
	wg.Wait()
}
