package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/kilianp07/teabrew/core/dispatch"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// BrewStrategy decides how long a brew takes and whether it succeeds.
type BrewStrategy interface {
	Brew(ctx context.Context, job dispatch.Job) bool
}

// FixedBrew always succeeds after Duration.
type FixedBrew struct {
	Duration time.Duration
}

// Brew implements BrewStrategy.
func (f FixedBrew) Brew(ctx context.Context, _ dispatch.Job) bool {
	return sleep(ctx, f.Duration)
}

// FlakyBrew fails with probability FailRate. A failed brew consumes nothing.
type FlakyBrew struct {
	Duration time.Duration
	FailRate float64
}

// Brew implements BrewStrategy.
func (f FlakyBrew) Brew(ctx context.Context, _ dispatch.Job) bool {
	if f.FailRate > 0 && rng.Float64() < f.FailRate {
		return false
	}
	return sleep(ctx, f.Duration)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
