package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/teabrew/core/events"
	coremetrics "github.com/kilianp07/teabrew/core/metrics"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

type recordingSink struct {
	coremetrics.NopSink
	mu    sync.Mutex
	votes []coremetrics.VoteRecord
	syncs []coremetrics.SyncRecord
}

func (r *recordingSink) RecordVote(rec coremetrics.VoteRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = append(r.votes, rec)
	return nil
}

func (r *recordingSink) RecordSync(rec coremetrics.SyncRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs = append(r.syncs, rec)
	return nil
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.votes), len(r.syncs)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.VoteEvent{RecipeID: 1, Score: 5, Mean: 5, Votes: 1, Created: true})
	bus.Publish(events.SyncEvent{MachineID: "m1", Kind: events.SyncContainers, Err: errors.New("offline")})
	bus.Publish(events.DispatchEvent{MachineID: "m1"})

	deadline := time.Now().Add(time.Second)
	for {
		v, s := sink.counts()
		if v == 1 && s == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("events not recorded: votes=%d syncs=%d", v, s)
		}
		time.Sleep(10 * time.Millisecond)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.syncs[0].Failed || sink.syncs[0].Kind != "containers" {
		t.Errorf("unexpected sync record %#v", sink.syncs[0])
	}
	if sink.votes[0].Time.IsZero() {
		t.Error("vote record should be stamped")
	}
}

type failingSink struct{ coremetrics.NopSink }

func (failingSink) RecordVote(coremetrics.VoteRecord) error { return errors.New("vote write") }
func (failingSink) RecordSync(coremetrics.SyncRecord) error { return errors.New("sync write") }

type errorLog struct {
	logger.NopLogger
	errs []string
}

func (l *errorLog) Errorf(format string, args ...any) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

func TestRecordLogsSinkErrors(t *testing.T) {
	log := &errorLog{}
	record(failingSink{}, events.VoteEvent{RecipeID: 1, Score: 3}, log)
	record(failingSink{}, events.SyncEvent{MachineID: "m1", Kind: events.SyncFavourites}, log)
	record(failingSink{}, events.DispatchEvent{MachineID: "m1"}, log)
	if len(log.errs) != 2 {
		t.Fatalf("expected 2 logged errors, got %v", log.errs)
	}
	if log.errs[0] != "vote metrics error: vote write" || log.errs[1] != "sync metrics error: sync write" {
		t.Fatalf("unexpected log lines %v", log.errs)
	}
}
