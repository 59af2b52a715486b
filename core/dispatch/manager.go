package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
	"github.com/kilianp07/teabrew/core/events"
	"github.com/kilianp07/teabrew/core/logger"
	"github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// Manager validates brew requests and enqueues the accepted ones.
type Manager struct {
	recipes   RecipeSource
	snapshots SnapshotSource
	validator brew.Validator
	queue     Queue
	logger    logger.Logger
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus
	store     logging.LogStore
	now       func() time.Time
	newID     func() string
	mu        sync.Mutex
}

// NewManager creates a new manager. sink and bus may be nil.
func NewManager(recipes RecipeSource, snapshots SnapshotSource, queue Queue, validator brew.Validator, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if recipes == nil || snapshots == nil || queue == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if validator.WaterOverhead <= 0 {
		validator = brew.NewValidator(0)
	}
	return &Manager{
		recipes:   recipes,
		snapshots: snapshots,
		validator: validator,
		queue:     queue,
		logger:    log,
		metrics:   sink,
		bus:       bus,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// SetLogStore configures the store used to persist dispatch decisions.
func (m *Manager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// LogStore returns the configured log store, or nil.
func (m *Manager) LogStore() logging.LogStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store
}

// Close releases the log store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Dispatch validates req and, when every check passes, enqueues one job.
//
// A missing recipe or machine is returned as an error wrapping
// model.ErrNotFound. A failed validation is a StatusRejected outcome with a
// nil error; nothing is enqueued in that case.
func (m *Manager) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	start := m.now()
	recipe, err := m.recipes.Recipe(ctx, req.RecipeID)
	if errors.Is(err, model.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: %d", ErrRecipeNotFound, req.RecipeID)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("recipe %d: %w", req.RecipeID, err)
	}
	if req.UserID != 0 && !recipe.VisibleTo(req.UserID) {
		return Outcome{}, fmt.Errorf("%w: %d", ErrRecipeNotFound, req.RecipeID)
	}
	portion := recipe.Portion
	if req.Portion != nil {
		portion = *req.Portion
	}
	if portion <= 0 {
		return Outcome{}, fmt.Errorf("%w: portion must be positive", model.ErrInvalid)
	}
	snap, err := m.snapshots.Snapshot(ctx, req.MachineID)
	if err != nil {
		return Outcome{}, err
	}

	report := m.validator.Validate(recipe, portion, snap)
	validationLatency.Observe(time.Since(start).Seconds())
	if !report.OK() {
		out := Outcome{Status: StatusRejected, Report: report, Portion: portion}
		dispatchRequests.WithLabelValues(string(StatusRejected)).Inc()
		for _, f := range report.Failures {
			rejectionReasons.WithLabelValues(string(f.Reason)).Inc()
		}
		m.logger.Infow("brew rejected", map[string]any{
			"machine_id": req.MachineID, "recipe_id": req.RecipeID, "reasons": report.Messages(),
		})
		m.finish(ctx, req, out, nil, start)
		return out, nil
	}

	job := Job{
		ID:         m.newID(),
		MachineID:  req.MachineID,
		Recipe:     recipe.Clone(),
		Portion:    portion,
		EnqueuedAt: m.now(),
	}
	if err := m.queue.Enqueue(ctx, job); err != nil {
		enqueueFailures.Inc()
		dispatchRequests.WithLabelValues("error").Inc()
		m.logger.Errorf("enqueue job %s for %s: %v", job.ID, job.MachineID, err)
		m.finish(ctx, req, Outcome{Status: StatusRejected, Report: report, Portion: portion}, err, start)
		return Outcome{}, fmt.Errorf("%w: %v", ErrEnqueue, err)
	}
	out := Outcome{Status: StatusAccepted, Report: report, JobID: job.ID, Portion: portion}
	dispatchRequests.WithLabelValues(string(StatusAccepted)).Inc()
	m.logger.Infow("brew enqueued", map[string]any{
		"job_id": job.ID, "machine_id": job.MachineID, "recipe_id": recipe.ID, "portion": portion,
	})
	m.finish(ctx, req, out, nil, start)
	return out, nil
}

// finish records the decision in metrics, on the bus and in the log store.
func (m *Manager) finish(ctx context.Context, req Request, out Outcome, enqueueErr error, start time.Time) {
	now := m.now()
	reasons := out.Report.Messages()
	if err := m.metrics.RecordDispatch(metrics.DispatchRecord{
		MachineID: req.MachineID,
		RecipeID:  req.RecipeID,
		Accepted:  out.Accepted(),
		Reasons:   reasons,
		Duration:  now.Sub(start),
		Time:      now,
	}); err != nil {
		m.logger.Errorf("dispatch metrics error: %v", err)
	}
	if m.bus != nil {
		m.bus.Publish(events.DispatchEvent{
			JobID:     out.JobID,
			MachineID: req.MachineID,
			RecipeID:  req.RecipeID,
			Accepted:  out.Accepted(),
			Reasons:   reasons,
			Err:       enqueueErr,
			Duration:  now.Sub(start),
			Time:      now,
		})
	}
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return
	}
	rec := logging.LogRecord{
		Timestamp: now,
		JobID:     out.JobID,
		MachineID: req.MachineID,
		RecipeID:  req.RecipeID,
		Portion:   out.Portion,
		Accepted:  out.Accepted(),
		Reasons:   reasons,
	}
	if enqueueErr != nil {
		rec.Error = enqueueErr.Error()
	}
	if err := store.Append(ctx, rec); err != nil {
		m.logger.Errorf("dispatch log append: %v", err)
	}
}
