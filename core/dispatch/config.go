package dispatch

import (
	"fmt"

	"github.com/kilianp07/teabrew/core/brew"
	"github.com/kilianp07/teabrew/core/dispatch/logging"
)

// DefaultTopicPrefix is the MQTT topic root under which machine jobs are
// published.
const DefaultTopicPrefix = "machine"

// Config defines dispatch-related settings.
type Config struct {
	// WaterOverhead is the water volume required on top of the portion.
	WaterOverhead float64        `json:"water_overhead"`
	TopicPrefix   string         `json:"topic_prefix"`
	Log           logging.Config `json:"log"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.WaterOverhead == 0 {
		c.WaterOverhead = brew.DefaultWaterOverhead
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	c.Log.SetDefaults()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WaterOverhead < 0 {
		return fmt.Errorf("dispatch.water_overhead must be >= 0")
	}
	return c.Log.Validate()
}
