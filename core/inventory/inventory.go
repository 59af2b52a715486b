// Package inventory provides point-in-time reads of a machine's container
// state. Snapshots are never locked or reserved: two readers may observe the
// same quantities and both act on them.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/teabrew/core/model"
)

// Source is the read side of the machine store.
type Source interface {
	Get(ctx context.Context, machineID string) (model.Machine, error)
	Containers(ctx context.Context, machineID string) ([]model.Container, error)
}

// Layout is the container state of one machine split into the tea and
// ingredient partitions, each ordered by slot.
type Layout struct {
	TeaContainers        []model.Container `json:"tea_containers"`
	IngredientContainers []model.Container `json:"ingredient_containers"`
}

// Snapshot couples the machine status with its container layout.
type Snapshot struct {
	Machine model.Machine `json:"machine"`
	Layout
	TakenAt time.Time `json:"taken_at"`
}

// Reader builds snapshots from a Source.
type Reader struct {
	src Source
	now func() time.Time
}

// NewReader returns a Reader backed by src.
func NewReader(src Source) *Reader {
	return &Reader{src: src, now: time.Now}
}

// Snapshot reads the machine status and containers of machineID.
func (r *Reader) Snapshot(ctx context.Context, machineID string) (Snapshot, error) {
	m, err := r.src.Get(ctx, machineID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("machine %s: %w", machineID, err)
	}
	cs, err := r.src.Containers(ctx, machineID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("containers of %s: %w", machineID, err)
	}
	return Snapshot{Machine: m, Layout: Partition(cs), TakenAt: r.now()}, nil
}

// Layout reads only the container layout of machineID.
func (r *Reader) Layout(ctx context.Context, machineID string) (Layout, error) {
	cs, err := r.src.Containers(ctx, machineID)
	if err != nil {
		return Layout{}, fmt.Errorf("containers of %s: %w", machineID, err)
	}
	return Partition(cs), nil
}

// Partition splits containers by slot range. Containers outside the known
// slots are dropped. The input slice is not modified.
func Partition(cs []model.Container) Layout {
	l := Layout{
		TeaContainers:        []model.Container{},
		IngredientContainers: []model.Container{},
	}
	for _, c := range cs {
		switch {
		case model.IsTeaSlot(c.Slot):
			l.TeaContainers = append(l.TeaContainers, c)
		case model.IsIngredientSlot(c.Slot):
			l.IngredientContainers = append(l.IngredientContainers, c)
		}
	}
	sort.SliceStable(l.TeaContainers, func(i, j int) bool { return l.TeaContainers[i].Slot < l.TeaContainers[j].Slot })
	sort.SliceStable(l.IngredientContainers, func(i, j int) bool {
		return l.IngredientContainers[i].Slot < l.IngredientContainers[j].Slot
	})
	return l
}
