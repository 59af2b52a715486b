// Package plugins maps configuration type names to the backends they build.
package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/teabrew/config"
	"github.com/kilianp07/teabrew/core/machine"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
)

// Store persists machines, recipes and votes.
type Store interface {
	machine.Store
	recipe.Store
	vote.Store
	Close() error
}

// StoreFactory builds a store from the storage configuration.
type StoreFactory func(cfg config.StorageConfig) (Store, error)

var Stores = map[string]StoreFactory{}

func RegisterStore(name string, f StoreFactory) { Stores[name] = f }

// OpenStore builds the store selected by cfg.Backend.
func OpenStore(cfg config.StorageConfig) (Store, error) {
	f, ok := Stores[cfg.Backend]
	if !ok {
		known := make([]string, 0, len(Stores))
		for k := range Stores {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown storage backend %q (known: %v)", cfg.Backend, known)
	}
	return f(cfg)
}
