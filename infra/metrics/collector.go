package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/teabrew/core/events"
	corelog "github.com/kilianp07/teabrew/core/logger"
	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// vote and sync events. Dispatch outcomes are recorded by the dispatch
// manager itself. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics_collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev, log)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event, log corelog.Logger) {
	switch e := ev.(type) {
	case events.VoteEvent:
		if r, ok := sink.(coremetrics.VoteRecorder); ok {
			err := r.RecordVote(coremetrics.VoteRecord{
				RecipeID: e.RecipeID,
				Score:    e.Score,
				Mean:     e.Mean,
				Votes:    e.Votes,
				Created:  e.Created,
				Time:     stamp(e.Time),
			})
			if err != nil {
				log.Errorf("vote metrics error: %v", err)
			}
		}
	case events.SyncEvent:
		if r, ok := sink.(coremetrics.SyncRecorder); ok {
			err := r.RecordSync(coremetrics.SyncRecord{
				MachineID: e.MachineID,
				Kind:      string(e.Kind),
				Failed:    e.Err != nil,
				Time:      stamp(e.Time),
			})
			if err != nil {
				log.Errorf("sync metrics error: %v", err)
			}
		}
	}
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
