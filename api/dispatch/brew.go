// Package dispatch exposes brew requests and the dispatch audit log over HTTP.
package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/kilianp07/teabrew/api/httpx"
	coredispatch "github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/model"
)

// Dispatcher validates and enqueues brew requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req coredispatch.Request) (coredispatch.Outcome, error)
}

// MachineLocator resolves the machine of the acting user.
type MachineLocator interface {
	ForOwner(ctx context.Context, ownerID int64) (model.Machine, error)
}

type brewRequest struct {
	RecipeID   int64    `json:"recipe_id"`
	TeaPortion *float64 `json:"tea_portion,omitempty"`
}

// NewBrewHandler serves POST /api/brew. The recipe is brewed on the acting
// user's machine. A rejected request answers 400 with every failure message
// in order.
func NewBrewHandler(d Dispatcher, machines MachineLocator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := httpx.UserID(r.Context())
		if !ok {
			httpx.Detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		var body brewRequest
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		m, err := machines.ForOwner(r.Context(), userID)
		if errors.Is(err, model.ErrNotFound) {
			httpx.Detail(w, http.StatusNotFound, "You do not have a machine.")
			return
		}
		if err != nil {
			httpx.Error(w, err)
			return
		}
		out, err := d.Dispatch(r.Context(), coredispatch.Request{
			RecipeID:  body.RecipeID,
			MachineID: m.ID,
			Portion:   body.TeaPortion,
			UserID:    userID,
		})
		switch {
		case errors.Is(err, coredispatch.ErrRecipeNotFound):
			httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
			return
		case err != nil:
			httpx.Error(w, err)
			return
		}
		if !out.Accepted() {
			httpx.Detail(w, http.StatusBadRequest, out.Report.Messages())
			return
		}
		httpx.JSON(w, http.StatusOK, struct{}{})
	})
}
