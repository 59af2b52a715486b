package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/kilianp07/teabrew/core/factory"
)

type recordSink struct {
	dispatches int
	votes      int
	err        error
}

func (r *recordSink) RecordDispatch(DispatchRecord) error {
	r.dispatches++
	return r.err
}

func (r *recordSink) RecordVote(VoteRecord) error {
	r.votes++
	return nil
}

// dispatchOnly does not implement VoteRecorder.
type dispatchOnly struct{ n int }

func (d *dispatchOnly) RecordDispatch(DispatchRecord) error { d.n++; return nil }

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &dispatchOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordDispatch(DispatchRecord{Accepted: true}); err != nil {
		t.Fatalf("record dispatch: %v", err)
	}
	if err := m.RecordVote(VoteRecord{Score: 4}); err != nil {
		t.Fatalf("record vote: %v", err)
	}
	if s1.dispatches != 1 || s2.n != 1 {
		t.Fatalf("dispatch not forwarded: %d %d", s1.dispatches, s2.n)
	}
	if s1.votes != 1 {
		t.Fatalf("vote not forwarded")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordDispatch(DispatchRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if s2.dispatches != 0 {
		t.Fatalf("second sink should not be called")
	}
}

func TestNewMetricsSinkDefaultsToNop(t *testing.T) {
	s, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink got %T", s)
	}
}

func TestNewMetricsSinkMulti(t *testing.T) {
	name := "test-record"
	_ = RegisterMetricsSink(name, func(map[string]any) (MetricsSink, error) { return &recordSink{}, nil })
	s, err := NewMetricsSink([]factory.ModuleConfig{{Type: name}, {Type: name}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ms, ok := s.(*MultiSink)
	if !ok || len(ms.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks got %T", s)
	}
	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: name}, {Type: "missing"}})
	if err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "metrics sink 1 (missing)") || !strings.Contains(err.Error(), name) {
		t.Fatalf("error should name the failing entry and known types: %v", err)
	}
}
