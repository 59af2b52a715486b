package config

import (
	"fmt"
	"strings"
)

// TelemetryConfig holds configuration for the telemetry manager.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode"`
	IntervalSeconds int    `json:"interval_seconds"`
	RequestTopic    string `json:"request_topic"`
	ResponsePrefix  string `json:"response_topic_prefix"`
	StatePrefix     string `json:"state_topic_prefix"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// SetDefaults roots unset topics at prefix.
func (c *TelemetryConfig) SetDefaults(prefix string) {
	prefix = strings.TrimSuffix(prefix, "/")
	if c.Mode == "" {
		c.Mode = "push"
	}
	if c.StatePrefix == "" {
		c.StatePrefix = prefix + "/state"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = prefix + "/poll"
	}
	if c.ResponsePrefix == "" {
		c.ResponsePrefix = prefix + "/response"
	}
}

// Validate checks the mode.
func (c TelemetryConfig) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "", "push", "pull", "hybrid":
		return nil
	}
	return fmt.Errorf("telemetry.mode %q must be push, pull or hybrid", c.Mode)
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 10
	}
	return c.IntervalSeconds
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}
