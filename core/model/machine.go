package model

import "fmt"

// Slot numbers of the fixed container layout. Slots 1 and 2 hold tea, slots
// 3 and 4 hold ingredients on every machine.
const (
	SlotTeaFirst        = 1
	SlotTeaSecond       = 2
	SlotIngredientFirst = 3
	SlotIngredientLast  = 4

	ContainersPerMachine = 4
)

// IsTeaSlot reports whether slot belongs to the tea partition.
func IsTeaSlot(slot int) bool { return slot >= SlotTeaFirst && slot <= SlotTeaSecond }

// IsIngredientSlot reports whether slot belongs to the ingredient partition.
func IsIngredientSlot(slot int) bool {
	return slot >= SlotIngredientFirst && slot <= SlotIngredientLast
}

// Machine is the live status reported by a brewing machine.
type Machine struct {
	ID        string  `json:"machine_id"`
	OwnerID   int64   `json:"owner_id"`
	Connected bool    `json:"connected"`
	MugReady  bool    `json:"mug_ready"`
	Water     float64 `json:"water_quantity"`
}

// Container is one slot of a machine. At most one of TeaID and IngredientID
// is set.
type Container struct {
	ID           int64   `json:"id"`
	MachineID    string  `json:"machine"`
	Slot         int     `json:"container_number"`
	TeaID        *int64  `json:"tea,omitempty"`
	IngredientID *int64  `json:"ingredient,omitempty"`
	Amount       float64 `json:"amount"`
}

// HoldsTea reports whether the container holds the given tea.
func (c Container) HoldsTea(id int64) bool { return c.TeaID != nil && *c.TeaID == id }

// HoldsIngredient reports whether the container holds the given ingredient.
func (c Container) HoldsIngredient(id int64) bool {
	return c.IngredientID != nil && *c.IngredientID == id
}

// Validate checks the slot partition and the tea/ingredient exclusivity.
func (c Container) Validate() error {
	switch {
	case c.Slot < SlotTeaFirst || c.Slot > SlotIngredientLast:
		return fmt.Errorf("%w: container slot %d", ErrInvalid, c.Slot)
	case c.TeaID != nil && c.IngredientID != nil:
		return fmt.Errorf("%w: container holds both tea and ingredient", ErrInvalid)
	case c.TeaID != nil && !IsTeaSlot(c.Slot):
		return fmt.Errorf("%w: slot %d cannot hold tea", ErrInvalid, c.Slot)
	case c.IngredientID != nil && !IsIngredientSlot(c.Slot):
		return fmt.Errorf("%w: slot %d cannot hold an ingredient", ErrInvalid, c.Slot)
	case c.Amount < 0:
		return fmt.Errorf("%w: negative container amount", ErrInvalid)
	}
	return nil
}

// NewMachineContainers returns the four empty containers created when a
// machine is provisioned.
func NewMachineContainers(machineID string) []Container {
	out := make([]Container, 0, ContainersPerMachine)
	for slot := SlotTeaFirst; slot <= SlotIngredientLast; slot++ {
		out = append(out, Container{MachineID: machineID, Slot: slot})
	}
	return out
}
