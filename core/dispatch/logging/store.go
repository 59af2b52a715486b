// Package logging persists dispatch decisions so operators can audit which
// brew requests were accepted or rejected and why.
package logging

import (
	"context"
	"time"
)

// LogRecord captures one dispatch decision.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id,omitempty"`
	MachineID string    `json:"machine_id"`
	RecipeID  int64     `json:"recipe_id"`
	Portion   float64   `json:"portion"`
	Accepted  bool      `json:"accepted"`
	Reasons   []string  `json:"reasons,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	MachineID string
	RecipeID  int64
	Accepted  *bool
}

// Match reports whether r passes every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.MachineID != "" && r.MachineID != q.MachineID {
		return false
	}
	if q.RecipeID != 0 && r.RecipeID != q.RecipeID {
		return false
	}
	if q.Accepted != nil && r.Accepted != *q.Accepted {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
