package events

import "time"

// DispatchEvent is published for every dispatch request that reached the
// validator. Reasons is empty when the job was enqueued.
type DispatchEvent struct {
	JobID     string
	MachineID string
	RecipeID  int64
	Accepted  bool
	Reasons   []string
	Err       error
	Duration  time.Duration
	Time      time.Time
}
