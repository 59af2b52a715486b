package main

import "sync"

// Tank models the water reservoir of a machine.
type Tank struct {
	CapacityML float64
	LevelML    float64
	mu         sync.Mutex
}

// Draw removes up to ml from the tank and returns the volume actually drawn.
func (t *Tank) Draw(ml float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ml <= 0 {
		return 0
	}
	if ml > t.LevelML {
		ml = t.LevelML
	}
	t.LevelML -= ml
	return ml
}

// Refill adds ml to the tank, capped at its capacity.
func (t *Tank) Refill(ml float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LevelML += ml
	if t.LevelML > t.CapacityML {
		t.LevelML = t.CapacityML
	}
	if t.LevelML < 0 {
		t.LevelML = 0
	}
}

// Level returns the current water level.
func (t *Tank) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.LevelML
}
