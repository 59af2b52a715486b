package events

import "time"

// SyncKind identifies what was pushed to a machine.
type SyncKind string

const (
	SyncContainers SyncKind = "containers"
	SyncFavourites SyncKind = "favourites"
)

// SyncEvent is published when machine-side state is refreshed.
type SyncEvent struct {
	MachineID string
	Kind      SyncKind
	Err       error
	Time      time.Time
}
