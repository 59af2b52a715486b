package main

import "testing"

func TestGenerateFleetCount(t *testing.T) {
	ms := GenerateFleet(FleetConfig{Size: 5, WaterML: 500, TankML: 1000}, nil)
	if len(ms) != 5 {
		t.Fatalf("expected 5 machines, got %d", len(ms))
	}
	if ms[0].ID != "tea0001" || ms[4].ID != "tea0005" {
		t.Fatalf("unexpected ids %s %s", ms[0].ID, ms[4].ID)
	}
	if ms[2].Tank.Level() != 500 || !ms[2].mugReady {
		t.Fatalf("unexpected initial state: %v %v", ms[2].Tank.Level(), ms[2].mugReady)
	}
}

func TestGenerateFleetEmpty(t *testing.T) {
	if ms := GenerateFleet(FleetConfig{}, nil); ms != nil {
		t.Fatalf("expected no machines, got %d", len(ms))
	}
}

func TestTemplateOverride(t *testing.T) {
	tmpl, err := LoadTemplates([]byte(`{"kettle0002":{"water_quantity":50,"mug_ready":false}}`))
	if err != nil {
		t.Fatal(err)
	}
	ms := GenerateFleet(FleetConfig{Size: 3, IDPrefix: "kettle", WaterML: 800, TankML: 1000}, tmpl)
	if ms[1].Tank.Level() != 50 || ms[1].mugReady {
		t.Fatalf("template not applied: %v %v", ms[1].Tank.Level(), ms[1].mugReady)
	}
	if ms[0].Tank.Level() != 800 {
		t.Fatalf("template applied to wrong machine")
	}
}

func TestLoadTemplatesError(t *testing.T) {
	if _, err := LoadTemplates([]byte(`invalid`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigValidate(t *testing.T) {
	ok := Config{Broker: "tcp://x:1883", Count: 1, TankML: 100, WaterML: 50, Interval: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := ok
	bad.WaterML = 200
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for overfilled tank")
	}
	bad = ok
	bad.FailRate = 2
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for fail rate")
	}
}
