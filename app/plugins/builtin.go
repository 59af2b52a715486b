package plugins

import (
	"github.com/kilianp07/teabrew/config"
	"github.com/kilianp07/teabrew/infra/memory"
	"github.com/kilianp07/teabrew/infra/sqlite"
)

func init() {
	RegisterStore(config.StorageMemory, func(config.StorageConfig) (Store, error) {
		return memory.NewStore(), nil
	})
	RegisterStore(config.StorageSQLite, func(cfg config.StorageConfig) (Store, error) {
		return sqlite.NewStore(cfg.Path)
	})
}
