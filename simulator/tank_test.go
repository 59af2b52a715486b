package main

import "testing"

func TestTankDraw(t *testing.T) {
	tank := &Tank{CapacityML: 1000, LevelML: 300}
	if got := tank.Draw(200); got != 200 {
		t.Fatalf("expected 200 got %f", got)
	}
	if got := tank.Draw(200); got != 100 {
		t.Fatalf("expected partial draw of 100 got %f", got)
	}
	if tank.Level() != 0 {
		t.Fatalf("expected empty tank got %f", tank.Level())
	}
	if got := tank.Draw(-5); got != 0 {
		t.Fatalf("negative draw returned %f", got)
	}
}

func TestTankRefillCapped(t *testing.T) {
	tank := &Tank{CapacityML: 500}
	tank.Refill(800)
	if tank.Level() != 500 {
		t.Fatalf("expected 500 got %f", tank.Level())
	}
}
