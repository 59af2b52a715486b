package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/model"
)

// ErrEnqueue is returned when a validated job could not be handed to the
// queue.
var ErrEnqueue = errors.New("enqueue failed")

// ErrRecipeNotFound wraps model.ErrNotFound when the requested recipe does
// not exist, so callers can tell it apart from an unknown machine.
var ErrRecipeNotFound = fmt.Errorf("recipe %w", model.ErrNotFound)

// Request asks for recipe RecipeID to be brewed on MachineID. A nil Portion
// selects the recipe's own portion. UserID is the acting user; a private
// recipe of another author is reported as not found. Zero skips the check
// and is reserved for operator tooling.
type Request struct {
	RecipeID  int64
	MachineID string
	Portion   *float64
	UserID    int64
}

// Job is the unit handed to a machine. Recipe is a snapshot taken at
// validation time.
type Job struct {
	ID         string       `json:"job_id"`
	MachineID  string       `json:"machine_id"`
	Recipe     model.Recipe `json:"recipe"`
	Portion    float64      `json:"portion"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// Queue delivers jobs to machines. Enqueue returns once the job has been
// handed off; it does not wait for the machine.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// RecipeSource loads recipes.
type RecipeSource interface {
	Recipe(ctx context.Context, id int64) (model.Recipe, error)
}

// SnapshotSource provides machine inventory snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context, machineID string) (inventory.Snapshot, error)
}

// Status is the result of a dispatch request.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Outcome reports what happened to a request. JobID is set only when the job
// was enqueued.
type Outcome struct {
	Status  Status      `json:"status"`
	Report  brew.Report `json:"report"`
	JobID   string      `json:"job_id,omitempty"`
	Portion float64     `json:"portion"`
}

// Accepted reports whether the job was enqueued.
func (o Outcome) Accepted() bool { return o.Status == StatusAccepted }
