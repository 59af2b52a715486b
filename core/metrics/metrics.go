package metrics

import (
	"time"

	"github.com/kilianp07/teabrew/core/model"
)

// DispatchRecord describes one validated dispatch request.
type DispatchRecord struct {
	MachineID string
	RecipeID  int64
	Accepted  bool
	Reasons   []string
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records dispatch outcomes for observability purposes.
type MetricsSink interface {
	RecordDispatch(rec DispatchRecord) error
}

// VoteRecord describes a persisted vote and the resulting mean.
type VoteRecord struct {
	RecipeID int64
	Score    int
	Mean     float64
	Votes    int
	Created  bool
	Time     time.Time
}

// VoteRecorder records vote events.
type VoteRecorder interface {
	RecordVote(rec VoteRecord) error
}

// SyncRecord describes a state push to a machine.
type SyncRecord struct {
	MachineID string
	Kind      string
	Failed    bool
	Time      time.Time
}

// SyncRecorder records machine synchronisation events.
type SyncRecorder interface {
	RecordSync(rec SyncRecord) error
}

// MachineStateRecord is a telemetry sample reported by a machine.
type MachineStateRecord struct {
	Machine model.Machine
	Context string
	Time    time.Time
}

// MachineStateRecorder records machine telemetry samples.
type MachineStateRecorder interface {
	RecordMachineState(rec MachineStateRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch(DispatchRecord) error         { return nil }
func (NopSink) RecordVote(VoteRecord) error                 { return nil }
func (NopSink) RecordSync(SyncRecord) error                 { return nil }
func (NopSink) RecordMachineState(MachineStateRecord) error { return nil }
