package mqtt

import (
	"context"
	"sync"

	"github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/model"
)

// DefaultRecordedJobs is the number of jobs a RecordingQueue retains.
const DefaultRecordedJobs = 1000

// RecordingQueue keeps jobs and syncs in memory instead of publishing them.
// It backs the service when no broker is configured and serves as a test
// double. Only the last MaxJobs jobs are kept; syncs keep the latest value
// per machine.
type RecordingQueue struct {
	// Err, when set, is returned by every call.
	Err error
	// MaxJobs bounds the retained jobs. Zero or less keeps
	// DefaultRecordedJobs.
	MaxJobs int

	dropped    int
	mu         sync.Mutex
	jobs       []dispatch.Job
	containers map[string]inventory.Layout
	favourites map[string][]model.Recipe
}

// NewRecordingQueue creates an empty RecordingQueue.
func NewRecordingQueue() *RecordingQueue {
	return &RecordingQueue{
		containers: make(map[string]inventory.Layout),
		favourites: make(map[string][]model.Recipe),
	}
}

// Enqueue records job. Once MaxJobs is reached the oldest job is dropped.
func (r *RecordingQueue) Enqueue(_ context.Context, job dispatch.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	limit := r.MaxJobs
	if limit <= 0 {
		limit = DefaultRecordedJobs
	}
	if n := len(r.jobs) - limit + 1; n > 0 {
		clear(r.jobs[:n])
		r.jobs = append(r.jobs[:0], r.jobs[n:]...)
		r.dropped += n
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// SyncContainers stores l as the current layout of machineID.
func (r *RecordingQueue) SyncContainers(_ context.Context, machineID string, l inventory.Layout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.containers[machineID] = l
	return nil
}

// SyncFavourites stores a copy of rs as the favourites of machineID.
func (r *RecordingQueue) SyncFavourites(_ context.Context, machineID string, rs []model.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.favourites[machineID] = append([]model.Recipe(nil), rs...)
	return nil
}

// Jobs returns a copy of the enqueued jobs in order.
func (r *RecordingQueue) Jobs() []dispatch.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Job(nil), r.jobs...)
}

// Dropped returns how many jobs were discarded to respect MaxJobs.
func (r *RecordingQueue) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Containers returns the last layout synced to machineID.
func (r *RecordingQueue) Containers(machineID string) (inventory.Layout, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.containers[machineID]
	return l, ok
}

// Favourites returns the last favourites synced to machineID.
func (r *RecordingQueue) Favourites(machineID string) []model.Recipe {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.favourites[machineID]
}

// Close is a no-op.
func (r *RecordingQueue) Close() error { return nil }
