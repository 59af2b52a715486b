package config

import "fmt"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// StorageConfig selects where recipes, machines and votes are kept.
type StorageConfig struct {
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageMemory
	}
	if c.Backend == StorageSQLite && c.Path == "" {
		c.Path = "teabrew.db"
	}
}

func (c StorageConfig) Validate() error {
	switch c.Backend {
	case StorageMemory, StorageSQLite:
		return nil
	}
	return fmt.Errorf("storage.backend %q must be %s or %s", c.Backend, StorageMemory, StorageSQLite)
}
