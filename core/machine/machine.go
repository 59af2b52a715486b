// Package machine owns machine provisioning, container updates and status
// updates coming from telemetry. Container changes are pushed to the machine
// after they are stored.
package machine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/teabrew/core/events"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/logger"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// Store persists machines and their containers.
type Store interface {
	inventory.Source
	// Provision stores m together with its containers. It fails with
	// model.ErrConflict when the machine ID is taken.
	Provision(ctx context.Context, m model.Machine, cs []model.Container) error
	ForOwner(ctx context.Context, ownerID int64) (model.Machine, error)
	UpdateStatus(ctx context.Context, m model.Machine) error
	// UpdateContainer replaces the content of the container at c.Slot of
	// c.MachineID and returns the stored row.
	UpdateContainer(ctx context.Context, c model.Container) (model.Container, error)
}

// ContainerSyncer pushes a machine's container layout to the device.
type ContainerSyncer interface {
	SyncContainers(ctx context.Context, machineID string, l inventory.Layout) error
}

// Service applies machine rules on top of a Store.
type Service struct {
	store  Store
	reader *inventory.Reader
	syncer ContainerSyncer
	bus    eventbus.EventBus
	log    logger.Logger
	now    func() time.Time
}

// NewService creates a Service. syncer and bus may be nil.
func NewService(store Store, syncer ContainerSyncer, bus eventbus.EventBus, log logger.Logger) *Service {
	return &Service{
		store:  store,
		reader: inventory.NewReader(store),
		syncer: syncer,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// Provision creates machine id for ownerID with four empty containers. A new
// machine is disconnected, has no mug and no water until telemetry says
// otherwise.
func (s *Service) Provision(ctx context.Context, id string, ownerID int64) (model.Machine, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Machine{}, fmt.Errorf("%w: machine id is required", model.ErrInvalid)
	}
	m := model.Machine{ID: id, OwnerID: ownerID}
	if err := s.store.Provision(ctx, m, model.NewMachineContainers(id)); err != nil {
		return model.Machine{}, fmt.Errorf("provision %s: %w", id, err)
	}
	s.log.Infof("machine %s provisioned for owner %d", id, ownerID)
	return m, nil
}

// Get returns a machine by ID.
func (s *Service) Get(ctx context.Context, id string) (model.Machine, error) {
	return s.store.Get(ctx, id)
}

// ForOwner returns the machine of ownerID.
func (s *Service) ForOwner(ctx context.Context, ownerID int64) (model.Machine, error) {
	return s.store.ForOwner(ctx, ownerID)
}

// Layout returns the container layout of a machine.
func (s *Service) Layout(ctx context.Context, id string) (inventory.Layout, error) {
	return s.reader.Layout(ctx, id)
}

// UpdateContainer validates and stores c, then pushes the full layout to the
// machine. A failed push is logged and published; the update is kept.
func (s *Service) UpdateContainer(ctx context.Context, c model.Container) (model.Container, error) {
	if err := c.Validate(); err != nil {
		return model.Container{}, err
	}
	if _, err := s.store.Get(ctx, c.MachineID); err != nil {
		return model.Container{}, fmt.Errorf("machine %s: %w", c.MachineID, err)
	}
	stored, err := s.store.UpdateContainer(ctx, c)
	if err != nil {
		return model.Container{}, fmt.Errorf("update container: %w", err)
	}
	s.sync(ctx, c.MachineID)
	return stored, nil
}

// UpdateStatus stores the connection, mug and water status of a machine.
func (s *Service) UpdateStatus(ctx context.Context, m model.Machine) error {
	if m.Water < 0 {
		return fmt.Errorf("%w: negative water quantity", model.ErrInvalid)
	}
	return s.store.UpdateStatus(ctx, m)
}

func (s *Service) sync(ctx context.Context, machineID string) {
	if s.syncer == nil {
		return
	}
	l, err := s.reader.Layout(ctx, machineID)
	if err == nil {
		err = s.syncer.SyncContainers(ctx, machineID, l)
	}
	if err != nil {
		s.log.Errorf("container sync to %s: %v", machineID, err)
	}
	if s.bus != nil {
		s.bus.Publish(events.SyncEvent{MachineID: machineID, Kind: events.SyncContainers, Err: err, Time: s.now()})
	}
}
