// Package app wires the stores, queues, services and HTTP API of teabrew
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/teabrew/api"
	"github.com/kilianp07/teabrew/app/plugins"
	"github.com/kilianp07/teabrew/config"
	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/machine"
	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	coremon "github.com/kilianp07/teabrew/core/monitoring"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/infra/metrics"
	"github.com/kilianp07/teabrew/infra/monitoring"
	"github.com/kilianp07/teabrew/infra/mqtt"
	"github.com/kilianp07/teabrew/infra/telemetry"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// Queue delivers jobs and machine state.
type Queue interface {
	dispatch.Queue
	machine.ContainerSyncer
	recipe.FavouriteSyncer
	Close() error
}

// Service orchestrates the dispatch manager, the vote aggregator and the
// machine and recipe services.
type Service struct {
	Manager  *dispatch.Manager
	Votes    *vote.Aggregator
	Machines *machine.Service
	Recipes  *recipe.Service

	cfg       *config.Config
	store     plugins.Store
	queue     Queue
	sink      coremetrics.MetricsSink
	telemetry *telemetry.Manager
	bus       *eventbus.Bus
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := plugins.OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	svc := &Service{cfg: cfg, store: store, sink: sink, bus: eventbus.New(), log: logg}
	if err := svc.init(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init() error {
	cfg := s.cfg
	if cfg.MQTT.Broker != "" {
		q, err := mqtt.NewPahoQueue(cfg.MQTT, cfg.Dispatch.TopicPrefix)
		if err != nil {
			return fmt.Errorf("mqtt queue: %w", err)
		}
		s.queue = q
	} else {
		s.log.Warnf("no mqtt broker configured, jobs are kept in memory")
		s.queue = mqtt.NewRecordingQueue()
	}

	s.Machines = machine.NewService(s.store, s.queue, s.bus, logger.New("machine"))
	s.Recipes = recipe.NewService(s.store, s.Machines, s.queue, s.bus, logger.New("recipe"))
	votes, err := vote.NewAggregator(s.store, s.bus, logger.New("vote"))
	if err != nil {
		return err
	}
	s.Votes = votes.WithRecipes(s.store)

	mgr, err := dispatch.NewManager(
		s.store,
		inventory.NewReader(s.store),
		s.queue,
		brew.NewValidator(cfg.Dispatch.WaterOverhead),
		s.sink,
		s.bus,
		logger.New("dispatch"),
	)
	if err != nil {
		return fmt.Errorf("dispatch manager: %w", err)
	}
	s.Manager = mgr
	logStore, err := logging.Open(cfg.Dispatch.Log)
	if err != nil {
		return fmt.Errorf("dispatch log: %w", err)
	}
	if logStore != nil {
		mgr.SetLogStore(logStore)
	}

	if cfg.Telemetry.Enabled {
		rec, ok := s.sink.(coremetrics.MachineStateRecorder)
		if !ok {
			rec = coremetrics.NopSink{}
		}
		tm, err := telemetry.NewManager(cfg.MQTT, cfg.Telemetry, s.Machines, rec, nil)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		s.telemetry = tm
	}
	return nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	var logs logging.LogStore
	if s.Manager != nil {
		logs = s.Manager.LogStore()
	}
	return api.NewRouter(api.Deps{
		Recipes:    s.Recipes,
		Votes:      s.Votes,
		Machines:   s.Machines,
		Dispatcher: s.Manager,
		Logs:       logs,
		LogToken:   s.cfg.HTTP.LogToken,
		Log:        logger.New("http"),
	})
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.telemetry != nil {
		go s.telemetry.Start(ctx)
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.bus != nil {
		s.bus.Close()
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
