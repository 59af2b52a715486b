// Package recipe manages recipe lifecycle rules that sit next to the
// dispatch and vote cores: the per-author quota, public listing filters and
// pushing an author's favourites to their machine.
package recipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/teabrew/core/events"
	"github.com/kilianp07/teabrew/core/logger"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// MaxPerAuthor is the number of recipes an author may hold.
const MaxPerAuthor = 50

// Store persists recipes.
type Store interface {
	Recipe(ctx context.Context, id int64) (model.Recipe, error)
	Create(ctx context.Context, r model.Recipe) (model.Recipe, error)
	Update(ctx context.Context, r model.Recipe) error
	Delete(ctx context.Context, id int64) error
	CountByAuthor(ctx context.Context, authorID int64) (int, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]model.Recipe, error)
	ListPublic(ctx context.Context, f Filter) ([]model.Recipe, error)
}

// MachineLocator resolves the machine owned by a user.
type MachineLocator interface {
	ForOwner(ctx context.Context, ownerID int64) (model.Machine, error)
}

// FavouriteSyncer pushes the favourite recipes of a user to their machine.
type FavouriteSyncer interface {
	SyncFavourites(ctx context.Context, machineID string, recipes []model.Recipe) error
}

// Service applies recipe rules on top of a Store.
type Service struct {
	store    Store
	machines MachineLocator
	syncer   FavouriteSyncer
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a Service. machines, syncer and bus may be nil, in
// which case favourites are not pushed.
func NewService(store Store, machines MachineLocator, syncer FavouriteSyncer, bus eventbus.EventBus, log logger.Logger) *Service {
	return &Service{store: store, machines: machines, syncer: syncer, bus: bus, log: log, now: time.Now}
}

// Create stores a new recipe for its author. Score and votes always start at
// zero.
func (s *Service) Create(ctx context.Context, r model.Recipe) (model.Recipe, error) {
	if err := validate(r); err != nil {
		return model.Recipe{}, err
	}
	n, err := s.store.CountByAuthor(ctx, r.AuthorID)
	if err != nil {
		return model.Recipe{}, fmt.Errorf("count recipes: %w", err)
	}
	if n >= MaxPerAuthor {
		return model.Recipe{}, fmt.Errorf("%w: author %d already holds %d recipes, delete old ones first",
			model.ErrQuotaExceeded, r.AuthorID, MaxPerAuthor)
	}
	r.SetDefaults()
	r.ID = 0
	r.Score = 0
	r.Votes = 0
	r.UpdatedAt = s.now()
	return s.store.Create(ctx, r)
}

// Get returns a recipe by ID.
func (s *Service) Get(ctx context.Context, id int64) (model.Recipe, error) {
	return s.store.Recipe(ctx, id)
}

// ListPublic returns public recipes matching f, in display order.
func (s *Service) ListPublic(ctx context.Context, f Filter) ([]model.Recipe, error) {
	rs, err := s.store.ListPublic(ctx, f)
	if err != nil {
		return nil, err
	}
	Sort(rs)
	return rs, nil
}

// Update replaces the editable fields of one of the author's recipes. The
// vote tally is left untouched. Favourites are pushed again when the recipe
// is or was a favourite.
func (s *Service) Update(ctx context.Context, authorID int64, r model.Recipe) (model.Recipe, error) {
	cur, err := s.owned(ctx, authorID, r.ID)
	if err != nil {
		return model.Recipe{}, err
	}
	if err := validate(r); err != nil {
		return model.Recipe{}, err
	}
	r.SetDefaults()
	r.AuthorID = cur.AuthorID
	r.Score, r.Votes = cur.Score, cur.Votes
	r.UpdatedAt = s.now()
	if err := s.store.Update(ctx, r); err != nil {
		return model.Recipe{}, fmt.Errorf("update recipe: %w", err)
	}
	if cur.IsFavourite || r.IsFavourite {
		s.syncFavourites(ctx, authorID)
	}
	return r, nil
}

// Delete removes one of the author's recipes together with its votes.
func (s *Service) Delete(ctx context.Context, authorID, recipeID int64) error {
	cur, err := s.owned(ctx, authorID, recipeID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, recipeID); err != nil {
		return fmt.Errorf("delete recipe %d: %w", recipeID, err)
	}
	s.log.Infof("recipe %d deleted by author %d", recipeID, authorID)
	if cur.IsFavourite {
		s.syncFavourites(ctx, authorID)
	}
	return nil
}

// owned loads recipeID and fails with model.ErrNotFound when authorID did not
// write it.
func (s *Service) owned(ctx context.Context, authorID, recipeID int64) (model.Recipe, error) {
	r, err := s.store.Recipe(ctx, recipeID)
	if err != nil {
		return model.Recipe{}, err
	}
	if r.AuthorID != authorID {
		return model.Recipe{}, fmt.Errorf("recipe %d of author %d: %w", recipeID, authorID, model.ErrNotFound)
	}
	return r, nil
}

// SetFavourite toggles the favourite flag of one of the author's recipes and
// pushes the resulting favourites list to the author's machine. A failed
// push is logged; the flag change is kept.
func (s *Service) SetFavourite(ctx context.Context, authorID, recipeID int64, favourite bool) (model.Recipe, error) {
	r, err := s.owned(ctx, authorID, recipeID)
	if err != nil {
		return model.Recipe{}, err
	}
	r.IsFavourite = favourite
	r.UpdatedAt = s.now()
	if err := s.store.Update(ctx, r); err != nil {
		return model.Recipe{}, fmt.Errorf("update recipe: %w", err)
	}
	s.syncFavourites(ctx, authorID)
	return r, nil
}

func (s *Service) syncFavourites(ctx context.Context, authorID int64) {
	if s.machines == nil || s.syncer == nil {
		return
	}
	m, err := s.machines.ForOwner(ctx, authorID)
	if err != nil {
		s.log.Warnf("favourites sync skipped for author %d: %v", authorID, err)
		return
	}
	all, err := s.store.ListByAuthor(ctx, authorID)
	if err != nil {
		s.log.Errorf("favourites sync list: %v", err)
		return
	}
	favs := make([]model.Recipe, 0, len(all))
	for _, r := range all {
		if r.IsFavourite {
			favs = append(favs, r)
		}
	}
	Sort(favs)
	err = s.syncer.SyncFavourites(ctx, m.ID, favs)
	if err != nil {
		s.log.Errorf("favourites sync to %s: %v", m.ID, err)
	}
	if s.bus != nil {
		s.bus.Publish(events.SyncEvent{MachineID: m.ID, Kind: events.SyncFavourites, Err: err, Time: s.now()})
	}
}

func validate(r model.Recipe) error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: recipe name is required", model.ErrInvalid)
	case len(r.Name) > 64:
		return fmt.Errorf("%w: recipe name longer than 64 characters", model.ErrInvalid)
	case r.TeaID == 0:
		return fmt.Errorf("%w: tea type is required", model.ErrInvalid)
	case r.HerbAmount < 0 || r.Portion < 0:
		return fmt.Errorf("%w: negative amount", model.ErrInvalid)
	}
	seen := make(map[int64]bool, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.Amount <= 0 {
			return fmt.Errorf("%w: ingredient %d needs a positive amount", model.ErrInvalid, ing.IngredientID)
		}
		if seen[ing.IngredientID] {
			return fmt.Errorf("%w: ingredient %d listed twice", model.ErrInvalid, ing.IngredientID)
		}
		seen[ing.IngredientID] = true
	}
	return nil
}
