package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker       string
	Count        int
	IDPrefix     string
	TopicPrefix  string
	Interval     time.Duration
	BrewTime     time.Duration
	MugDelay     time.Duration
	FailRate     float64
	WaterML      float64
	TankML       float64
	TemplateFile string
	LogLevel     string
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// Validate checks the simulator parameters.
func (c *Config) Validate() error {
	switch {
	case c.Broker == "":
		return fmt.Errorf("broker is required")
	case c.Count <= 0:
		return fmt.Errorf("count must be positive")
	case c.FailRate < 0 || c.FailRate > 1:
		return fmt.Errorf("fail-rate must be within [0,1]")
	case c.TankML <= 0:
		return fmt.Errorf("tank must be positive")
	case c.WaterML < 0 || c.WaterML > c.TankML:
		return fmt.Errorf("water must be within [0,%g]", c.TankML)
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive")
	}
	return nil
}
