// Package machines serves machine provisioning, status and container
// endpoints. A user only sees the machine they own.
package machines

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/model"
)

// Machines is the machine service used by the handlers.
type Machines interface {
	Provision(ctx context.Context, id string, ownerID int64) (model.Machine, error)
	Get(ctx context.Context, id string) (model.Machine, error)
	Layout(ctx context.Context, id string) (inventory.Layout, error)
	UpdateContainer(ctx context.Context, c model.Container) (model.Container, error)
}

// Handler groups the machine endpoints.
type Handler struct {
	machines Machines
}

// NewHandler returns the machine endpoints.
func NewHandler(m Machines) *Handler { return &Handler{machines: m} }

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/machines", h.provision)
	mux.HandleFunc("GET /api/machines/{id}", h.status)
	mux.HandleFunc("GET /api/machines/{id}/containers", h.containers)
	mux.HandleFunc("PUT /api/machines/{id}/containers/{slot}", h.updateContainer)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	var body struct {
		MachineID string `json:"machine_id"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	m, err := h.machines.Provision(r.Context(), body.MachineID, userID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

// owned loads the machine in the path and answers 404 unless the acting
// user owns it.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (model.Machine, bool) {
	userID, _ := httpx.UserID(r.Context())
	m, err := h.machines.Get(r.Context(), r.PathValue("id"))
	if err != nil && httpx.Status(err) != http.StatusNotFound {
		httpx.Error(w, err)
		return model.Machine{}, false
	}
	if err != nil || m.OwnerID != userID {
		httpx.Detail(w, http.StatusNotFound, "Machine does not exist.")
		return model.Machine{}, false
	}
	return m, true
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	m, ok := h.owned(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) containers(w http.ResponseWriter, r *http.Request) {
	m, ok := h.owned(w, r)
	if !ok {
		return
	}
	l, err := h.machines.Layout(r.Context(), m.ID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

type containerBody struct {
	TeaID        *int64  `json:"tea"`
	IngredientID *int64  `json:"ingredient"`
	Amount       float64 `json:"amount"`
}

func (h *Handler) updateContainer(w http.ResponseWriter, r *http.Request) {
	m, ok := h.owned(w, r)
	if !ok {
		return
	}
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		httpx.Detail(w, http.StatusNotFound, "Container does not exist.")
		return
	}
	var body containerBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.Amount < 0 {
		httpx.Detail(w, http.StatusBadRequest, "Amount must not be negative.")
		return
	}
	c, err := h.machines.UpdateContainer(r.Context(), model.Container{
		MachineID:    m.ID,
		Slot:         slot,
		TeaID:        body.TeaID,
		IngredientID: body.IngredientID,
		Amount:       body.Amount,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
