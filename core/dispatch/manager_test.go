package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
	"github.com/kilianp07/teabrew/core/events"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

func id(v int64) *int64 { return &v }

type recipeMap map[int64]model.Recipe

func (m recipeMap) Recipe(_ context.Context, rid int64) (model.Recipe, error) {
	r, ok := m[rid]
	if !ok {
		return model.Recipe{}, model.ErrNotFound
	}
	return r, nil
}

type machineMap map[string]inventory.Snapshot

func (m machineMap) Snapshot(_ context.Context, mid string) (inventory.Snapshot, error) {
	s, ok := m[mid]
	if !ok {
		return inventory.Snapshot{}, model.ErrNotFound
	}
	return s, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, j Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, j)
	return nil
}

type recordingSink struct{ recs []metrics.DispatchRecord }

func (s *recordingSink) RecordDispatch(r metrics.DispatchRecord) error {
	s.recs = append(s.recs, r)
	return nil
}

type memLog struct{ recs []logging.LogRecord }

func (m *memLog) Append(_ context.Context, r logging.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}
func (m *memLog) Query(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	return m.recs, nil
}
func (m *memLog) Close() error { return nil }

func greenTeaRecipe() model.Recipe {
	return model.Recipe{
		ID: 7, Name: "morning", TeaID: 1, HerbAmount: 15, Portion: 200,
		Ingredients: []model.RecipeIngredient{{IngredientID: 10, Name: "honey", Amount: 5}},
	}
}

func readyMachine() inventory.Snapshot {
	return inventory.Snapshot{
		Machine: model.Machine{ID: "m1", Connected: true, MugReady: true, Water: 1000},
		Layout: inventory.Layout{
			TeaContainers:        []model.Container{{Slot: 1, TeaID: id(1), Amount: 100}, {Slot: 2}},
			IngredientContainers: []model.Container{{Slot: 3, IngredientID: id(10), Amount: 50}, {Slot: 4}},
		},
	}
}

type fixture struct {
	mgr   *Manager
	queue *recordingQueue
	sink  *recordingSink
	log   *memLog
	snaps machineMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { ResetMetrics(nil) })
	f := &fixture{
		queue: &recordingQueue{},
		sink:  &recordingSink{},
		log:   &memLog{},
		snaps: machineMap{"m1": readyMachine()},
	}
	mgr, err := NewManager(recipeMap{7: greenTeaRecipe()}, f.snaps, f.queue, brew.NewValidator(0), f.sink, nil, logger.NopLogger{})
	require.NoError(t, err)
	mgr.SetLogStore(f.log)
	mgr.newID = func() string { return "job-1" }
	f.mgr = mgr
	return f
}

func TestNewManagerRejectsNil(t *testing.T) {
	_, err := NewManager(nil, machineMap{}, &recordingQueue{}, brew.Validator{}, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
}

func TestDispatchEnqueuesOnceWithRecipeSnapshot(t *testing.T) {
	f := newFixture(t)

	out, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1"})
	require.NoError(t, err)
	assert.True(t, out.Accepted())
	assert.Equal(t, "job-1", out.JobID)
	assert.True(t, out.Report.OK())

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, "m1", job.MachineID)
	assert.Equal(t, greenTeaRecipe(), job.Recipe)
	assert.Equal(t, 200.0, job.Portion)
	assert.False(t, job.EnqueuedAt.IsZero())

	require.Len(t, f.sink.recs, 1)
	assert.True(t, f.sink.recs[0].Accepted)
	require.Len(t, f.log.recs, 1)
	assert.Equal(t, "job-1", f.log.recs[0].JobID)
	assert.Equal(t, 1.0, testutil.ToFloat64(dispatchRequests.WithLabelValues("accepted")))
}

func TestDispatchPortionOverride(t *testing.T) {
	f := newFixture(t)
	portion := 300.0

	out, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1", Portion: &portion})
	require.NoError(t, err)
	assert.Equal(t, 300.0, out.Portion)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, 300.0, f.queue.jobs[0].Portion)

	zero := 0.0
	_, err = f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1", Portion: &zero})
	assert.ErrorIs(t, err, model.ErrInvalid)
	assert.Len(t, f.queue.jobs, 1)
}

func TestDispatchRejectedReportsEveryReason(t *testing.T) {
	f := newFixture(t)
	f.snaps["m1"] = inventory.Snapshot{
		Machine: model.Machine{ID: "m1", Connected: false, MugReady: false, Water: 100},
		Layout: inventory.Layout{
			TeaContainers:        []model.Container{{Slot: 1, TeaID: id(1), Amount: 5}},
			IngredientContainers: []model.Container{},
		},
	}

	out, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.Empty(t, out.JobID)
	assert.Equal(t, []string{
		"Machine is not connected.",
		"Mug is not ready.",
		"Not enough tea herbs in container.",
		"Ingredient: honey, of required amount: 5, is not available in your machine.",
		"Not enough water.",
	}, out.Report.Messages())
	assert.Empty(t, f.queue.jobs)

	require.Len(t, f.log.recs, 1)
	assert.False(t, f.log.recs[0].Accepted)
	assert.Len(t, f.log.recs[0].Reasons, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(rejectionReasons.WithLabelValues(string(brew.ReasonWaterInsufficient))))
}

func TestDispatchPrivateRecipeVisibility(t *testing.T) {
	f := newFixture(t)
	r := greenTeaRecipe()
	r.AuthorID = 1
	f.mgr.recipes = recipeMap{7: r}

	_, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1", UserID: 2})
	assert.ErrorIs(t, err, ErrRecipeNotFound)
	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.log.recs)

	out, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1", UserID: 1})
	require.NoError(t, err)
	assert.True(t, out.Accepted())

	r.IsPublic = true
	f.mgr.recipes = recipeMap{7: r}
	out, err = f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1", UserID: 2})
	require.NoError(t, err)
	assert.True(t, out.Accepted())
	assert.Len(t, f.queue.jobs, 2)
}

func TestDispatchNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 404, MachineID: "m1"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, err, ErrRecipeNotFound)

	_, err = f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "ghost"})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, ErrRecipeNotFound)

	assert.Empty(t, f.queue.jobs)
	assert.Empty(t, f.log.recs)
}

func TestDispatchEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("broker down")

	_, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1"})
	assert.ErrorIs(t, err, ErrEnqueue)
	assert.Equal(t, 1.0, testutil.ToFloat64(enqueueFailures))
	require.Len(t, f.log.recs, 1)
	assert.Equal(t, "broker down", f.log.recs[0].Error)
}

func TestDispatchPublishesEvent(t *testing.T) {
	f := newFixture(t)
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	f.mgr.bus = bus

	_, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1"})
	require.NoError(t, err)

	select {
	case ev := <-sub:
		de, ok := ev.(events.DispatchEvent)
		require.True(t, ok, "unexpected event %T", ev)
		assert.Equal(t, "job-1", de.JobID)
		assert.True(t, de.Accepted)
		assert.Equal(t, int64(7), de.RecipeID)
	case <-time.After(time.Second):
		t.Fatal("no dispatch event")
	}
}

func TestDispatchValidationDoesNotMutateSnapshot(t *testing.T) {
	f := newFixture(t)
	before := readyMachine()

	_, err := f.mgr.Dispatch(context.Background(), Request{RecipeID: 7, MachineID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, before, f.snaps["m1"])
}

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	dispatchRequests.WithLabelValues("accepted").Inc()
	rejectionReasons.WithLabelValues("mug_not_ready").Inc()
	validationLatency.Observe(0.01)
	enqueueFailures.Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"brew_dispatch_requests_total",
		"brew_dispatch_rejections_total",
		"brew_dispatch_validation_seconds",
		"brew_dispatch_enqueue_failures_total",
	} {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
