// Package memory provides an in-process Store for machines, recipes and
// votes. It is the default backend and the one used by service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/teabrew/core/machine"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
)

type voteKey struct {
	recipeID int64
	userID   int64
}

var (
	_ machine.Store = (*Store)(nil)
	_ recipe.Store  = (*Store)(nil)
	_ vote.Store    = (*Store)(nil)
)

// Store keeps all state in maps guarded by a single RWMutex.
type Store struct {
	mu            sync.RWMutex
	machines      map[string]model.Machine
	containers    map[string][]model.Container
	recipes       map[int64]model.Recipe
	votes         map[voteKey]model.Vote
	nextRecipe    int64
	nextContainer int64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		machines:   map[string]model.Machine{},
		containers: map[string][]model.Container{},
		recipes:    map[int64]model.Recipe{},
		votes:      map[voteKey]model.Vote{},
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) Provision(_ context.Context, m model.Machine, cs []model.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machines[m.ID]; ok {
		return fmt.Errorf("machine %s: %w", m.ID, model.ErrConflict)
	}
	if m.OwnerID != 0 {
		for _, other := range s.machines {
			if other.OwnerID == m.OwnerID {
				return fmt.Errorf("owner %d already has machine %s: %w", m.OwnerID, other.ID, model.ErrConflict)
			}
		}
	}
	stored := make([]model.Container, len(cs))
	for i, c := range cs {
		s.nextContainer++
		c.ID = s.nextContainer
		c.MachineID = m.ID
		stored[i] = c
	}
	s.machines[m.ID] = m
	s.containers[m.ID] = stored
	return nil
}

func (s *Store) Get(_ context.Context, machineID string) (model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[machineID]
	if !ok {
		return model.Machine{}, model.ErrNotFound
	}
	return m, nil
}

func (s *Store) ForOwner(_ context.Context, ownerID int64) (model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.machines {
		if m.OwnerID == ownerID {
			return m, nil
		}
	}
	return model.Machine{}, fmt.Errorf("machine of owner %d: %w", ownerID, model.ErrNotFound)
}

func (s *Store) UpdateStatus(_ context.Context, m model.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.machines[m.ID]
	if !ok {
		return model.ErrNotFound
	}
	cur.Connected = m.Connected
	cur.MugReady = m.MugReady
	cur.Water = m.Water
	s.machines[m.ID] = cur
	return nil
}

// Containers returns copies of the containers of a machine ordered by slot.
func (s *Store) Containers(_ context.Context, machineID string) ([]model.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.containers[machineID]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := make([]model.Container, len(cs))
	for i, c := range cs {
		out[i] = copyContainer(c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (s *Store) UpdateContainer(_ context.Context, c model.Container) (model.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.containers[c.MachineID]
	if !ok {
		return model.Container{}, model.ErrNotFound
	}
	for i := range cs {
		if cs[i].Slot != c.Slot {
			continue
		}
		c.ID = cs[i].ID
		cs[i] = copyContainer(c)
		return copyContainer(c), nil
	}
	return model.Container{}, fmt.Errorf("slot %d of %s: %w", c.Slot, c.MachineID, model.ErrNotFound)
}

func copyContainer(c model.Container) model.Container {
	if c.TeaID != nil {
		v := *c.TeaID
		c.TeaID = &v
	}
	if c.IngredientID != nil {
		v := *c.IngredientID
		c.IngredientID = &v
	}
	return c
}

func (s *Store) Recipe(_ context.Context, id int64) (model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipes[id]
	if !ok {
		return model.Recipe{}, model.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) Create(_ context.Context, r model.Recipe) (model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRecipe++
	r = r.Clone()
	r.ID = s.nextRecipe
	s.recipes[r.ID] = r
	return r.Clone(), nil
}

func (s *Store) Update(_ context.Context, r model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recipes[r.ID]
	if !ok {
		return model.ErrNotFound
	}
	// Tallies are owned by ApplyVote and SetTally.
	r = r.Clone()
	r.Score, r.Votes = cur.Score, cur.Votes
	s.recipes[r.ID] = r
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipes[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.recipes, id)
	for k := range s.votes {
		if k.recipeID == id {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *Store) CountByAuthor(_ context.Context, authorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.recipes {
		if r.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListByAuthor(_ context.Context, authorID int64) ([]model.Recipe, error) {
	return s.list(func(r model.Recipe) bool { return r.AuthorID == authorID }), nil
}

func (s *Store) ListPublic(_ context.Context, f recipe.Filter) ([]model.Recipe, error) {
	return s.list(func(r model.Recipe) bool { return r.IsPublic && f.Match(r) }), nil
}

func (s *Store) list(keep func(model.Recipe) bool) []model.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Recipe{}
	for _, r := range s.recipes {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	recipe.Sort(out)
	return out
}

func (s *Store) Tally(_ context.Context, recipeID int64) (vote.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipes[recipeID]
	if !ok {
		return vote.Tally{}, model.ErrNotFound
	}
	return vote.Tally{Score: r.Score, Votes: r.Votes}, nil
}

func (s *Store) UserVote(_ context.Context, recipeID, userID int64) (model.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[voteKey{recipeID, userID}]
	return v, ok, nil
}

// ApplyVote upserts the vote and the tally under one lock.
func (s *Store) ApplyVote(_ context.Context, v model.Vote, t vote.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[v.RecipeID]
	if !ok {
		return model.ErrNotFound
	}
	s.votes[voteKey{v.RecipeID, v.UserID}] = v
	r.Score, r.Votes = t.Score, t.Votes
	s.recipes[v.RecipeID] = r
	return nil
}

func (s *Store) Votes(_ context.Context, recipeID int64) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Vote{}
	for k, v := range s.votes {
		if k.recipeID == recipeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) SetTally(_ context.Context, recipeID int64, t vote.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[recipeID]
	if !ok {
		return model.ErrNotFound
	}
	r.Score, r.Votes = t.Score, t.Votes
	s.recipes[recipeID] = r
	return nil
}
