package scenarios

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/infra/memory"
	"github.com/kilianp07/teabrew/infra/metrics"
	"github.com/kilianp07/teabrew/infra/mqtt"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

var errBrokerDown = errors.New("broker down")

func RunScenario(t *testing.T, sc *Scenario) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	store := memory.NewStore()
	for _, def := range sc.Machines {
		m, cs := def.ToModel()
		if err := store.Provision(ctx, m, cs); err != nil {
			t.Fatalf("provision %s: %v", def.ID, err)
		}
	}
	recipes := map[string]int64{}
	for _, def := range sc.Recipes {
		r, err := store.Create(ctx, def.ToModel())
		if err != nil {
			t.Fatalf("recipe %s: %v", def.Name, err)
		}
		recipes[def.Name] = r.ID
	}

	queue := mqtt.NewRecordingQueue()
	bus := eventbus.New()
	defer bus.Close()

	mgr, err := dispatch.NewManager(store, inventory.NewReader(store), queue, brew.NewValidator(0), sink, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	var got Expected
	got.Reasons = map[string]int{}
	for i, b := range sc.Brews {
		if sc.FailEnqueueFrom != nil && i >= *sc.FailEnqueueFrom {
			queue.Err = errBrokerDown
		}
		for id, after := range sc.DisconnectAfter {
			if i >= after {
				disconnect(ctx, t, store, id)
			}
		}
		id, ok := recipes[b.Recipe]
		if !ok {
			id = -1
		}
		out, err := mgr.Dispatch(ctx, dispatch.Request{RecipeID: id, MachineID: b.Machine, Portion: b.Portion})
		switch {
		case err != nil:
			got.Errors++
		case out.Accepted():
			got.Accepted++
		default:
			got.Rejected++
			for _, f := range out.Report.Failures {
				got.Reasons[string(f.Reason)]++
			}
		}
	}

	if got.Accepted != sc.Expected.Accepted || got.Rejected != sc.Expected.Rejected || got.Errors != sc.Expected.Errors {
		t.Errorf("scenario %s expected %d/%d/%d accepted/rejected/errors, got %d/%d/%d", sc.Name,
			sc.Expected.Accepted, sc.Expected.Rejected, sc.Expected.Errors, got.Accepted, got.Rejected, got.Errors)
	}
	for reason, n := range sc.Expected.Reasons {
		if got.Reasons[reason] != n {
			t.Errorf("scenario %s expected reason %s %d times, got %d", sc.Name, reason, n, got.Reasons[reason])
		}
	}
	if len(queue.Jobs()) != got.Accepted {
		t.Errorf("scenario %s enqueued %d jobs for %d accepted brews", sc.Name, len(queue.Jobs()), got.Accepted)
	}
	n, err := testutil.GatherAndCount(reg, "machine_dispatches_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got.Accepted+got.Rejected > 0 && n == 0 {
		t.Errorf("scenario %s recorded no dispatch metrics", sc.Name)
	}
}

func disconnect(ctx context.Context, t *testing.T, store *memory.Store, id string) {
	m, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("machine %s: %v", id, err)
	}
	m.Connected = false
	if err := store.UpdateStatus(ctx, m); err != nil {
		t.Fatalf("disconnect %s: %v", id, err)
	}
}
