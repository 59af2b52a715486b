package config

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// LogToken protects GET /api/dispatch/logs. Empty leaves it open.
	LogToken string `json:"log_token"`
}

// SetDefaults listens on :8080 when unset.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
