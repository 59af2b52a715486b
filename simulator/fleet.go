package main

import (
	"encoding/json"
	"fmt"
)

// FleetConfig holds parameters for bulk machine generation.
type FleetConfig struct {
	Size     int
	IDPrefix string
	WaterML  float64
	TankML   float64
}

// MachineTemplate overrides the generated values of one machine.
type MachineTemplate struct {
	WaterML  *float64 `json:"water_quantity"`
	MugReady *bool    `json:"mug_ready"`
}

// GenerateFleet creates Size machines with IDs <prefix>0001..<prefix>NNNN.
// Every machine starts with a mug in place.
func GenerateFleet(cfg FleetConfig, tmpl map[string]MachineTemplate) []*SimulatedMachine {
	if cfg.Size <= 0 {
		return nil
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = "tea"
	}
	ms := make([]*SimulatedMachine, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		id := fmt.Sprintf("%s%04d", prefix, i+1)
		water, mug := cfg.WaterML, true
		if t, ok := tmpl[id]; ok {
			if t.WaterML != nil {
				water = *t.WaterML
			}
			if t.MugReady != nil {
				mug = *t.MugReady
			}
		}
		tank := &Tank{CapacityML: cfg.TankML}
		tank.Refill(water)
		ms[i] = &SimulatedMachine{ID: id, Tank: tank, mugReady: mug}
	}
	return ms
}

// LoadTemplates reads per-machine overrides keyed by machine ID.
func LoadTemplates(data []byte) (map[string]MachineTemplate, error) {
	var m map[string]MachineTemplate
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
