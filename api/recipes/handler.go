// Package recipes serves recipe creation, lookup, public listing,
// favourites and votes.
package recipes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
)

// Recipes is the recipe service used by the handlers.
type Recipes interface {
	Create(ctx context.Context, r model.Recipe) (model.Recipe, error)
	Get(ctx context.Context, id int64) (model.Recipe, error)
	ListPublic(ctx context.Context, f recipe.Filter) ([]model.Recipe, error)
	Update(ctx context.Context, authorID int64, r model.Recipe) (model.Recipe, error)
	Delete(ctx context.Context, authorID, recipeID int64) error
	SetFavourite(ctx context.Context, authorID, recipeID int64, favourite bool) (model.Recipe, error)
}

// Voter applies votes.
type Voter interface {
	Vote(ctx context.Context, recipeID, userID int64, score int) (vote.Result, error)
}

// Handler groups the recipe endpoints.
type Handler struct {
	recipes Recipes
	votes   Voter
}

// NewHandler returns the recipe endpoints.
func NewHandler(recipes Recipes, votes Voter) *Handler {
	return &Handler{recipes: recipes, votes: votes}
}

// Register mounts the endpoints on mux. Every route expects httpx.WithUser
// to run first.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/recipes", h.create)
	mux.HandleFunc("GET /api/recipes", h.list)
	mux.HandleFunc("GET /api/recipes/{id}", h.get)
	mux.HandleFunc("PUT /api/recipes/{id}", h.update)
	mux.HandleFunc("DELETE /api/recipes/{id}", h.remove)
	mux.HandleFunc("PUT /api/recipes/{id}/favourite", h.favourite)
	mux.HandleFunc("POST /api/recipes/{id}/vote", h.vote)
	mux.HandleFunc("PUT /api/recipes/{id}/vote", h.vote)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	var in model.Recipe
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	in.AuthorID = userID
	out, err := h.recipes.Create(r.Context(), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

// get returns a recipe that is public or owned by the acting user. Private
// recipes of other users answer 404.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	id, ok := httpx.PathInt(r, "id")
	if !ok {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	rec, err := h.recipes.Get(r.Context(), id)
	if err != nil && httpx.Status(err) != http.StatusNotFound {
		httpx.Error(w, err)
		return
	}
	if err != nil || !rec.VisibleTo(userID) {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// update and remove are restricted to the author. Other users get the same
// 404 as for a missing recipe.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	id, ok := httpx.PathInt(r, "id")
	if !ok {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	var in model.Recipe
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	in.ID = id
	out, err := h.recipes.Update(r.Context(), userID, in)
	if httpx.Status(err) == http.StatusNotFound {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	id, ok := httpx.PathInt(r, "id")
	if !ok {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	err := h.recipes.Delete(r.Context(), userID, id)
	if httpx.Status(err) == http.StatusNotFound {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	if err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httpx.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.recipes.ListPublic(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if out == nil {
		out = []model.Recipe{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) favourite(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	id, ok := httpx.PathInt(r, "id")
	if !ok {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	var body struct {
		IsFavourite bool `json:"is_favourite"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	out, err := h.recipes.SetFavourite(r.Context(), userID, id, body.IsFavourite)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// vote creates or replaces the acting user's vote. A new vote answers 201,
// a replaced one 200; both carry the recipe's new mean.
func (h *Handler) vote(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.UserID(r.Context())
	id, ok := httpx.PathInt(r, "id")
	if !ok {
		httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
		return
	}
	var body struct {
		Score *int `json:"score"`
	}
	if err := httpx.Decode(r, &body); err != nil || body.Score == nil {
		httpx.Detail(w, http.StatusBadRequest, "Score must be an integer.")
		return
	}
	res, err := h.votes.Vote(r.Context(), id, userID, *body.Score)
	if err != nil {
		if httpx.Status(err) == http.StatusNotFound {
			httpx.Detail(w, http.StatusNotFound, "Recipe does not exist.")
			return
		}
		httpx.Error(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]float64{"score": res.Score})
}

// parseFilter reads name, tea, ingredients (comma separated), min_score and
// the <attr>_min / <attr>_max bounds of brewing_temperature, brewing_time and
// mixing_time.
func parseFilter(q url.Values) (recipe.Filter, error) {
	f := recipe.Filter{Name: q.Get("name")}
	if s := q.Get("tea"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid tea %q", s)
		}
		f.TeaID = id
	}
	if s := q.Get("ingredients"); s != "" {
		for _, part := range strings.Split(s, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return f, fmt.Errorf("invalid ingredient %q", part)
			}
			f.IngredientIDs = append(f.IngredientIDs, id)
		}
	}
	var err error
	if f.MinScore, err = optFloat(q, "min_score"); err != nil {
		return f, err
	}
	ranges := []struct {
		name string
		dst  *recipe.Range
	}{
		{"brewing_temperature", &f.BrewingTemperature},
		{"brewing_time", &f.BrewingTime},
		{"mixing_time", &f.MixingTime},
	}
	for _, rg := range ranges {
		if rg.dst.Min, err = optFloat(q, rg.name+"_min"); err != nil {
			return f, err
		}
		if rg.dst.Max, err = optFloat(q, rg.name+"_max"); err != nil {
			return f, err
		}
	}
	return f, nil
}

func optFloat(q url.Values, key string) (*float64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, s)
	}
	return &v, nil
}
