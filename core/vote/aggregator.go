package vote

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/teabrew/core/events"
	"github.com/kilianp07/teabrew/core/logger"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/internal/eventbus"
)

// Result is returned by Vote.
type Result struct {
	Score   float64 `json:"score"`
	Votes   int     `json:"votes"`
	Created bool    `json:"-"`
}

// RecipeSource loads recipes so votes can be restricted to the ones the
// voter may see.
type RecipeSource interface {
	Recipe(ctx context.Context, id int64) (model.Recipe, error)
}

// Aggregator applies votes to recipe tallies.
type Aggregator struct {
	store   Store
	recipes RecipeSource
	locks   *recipeLocks
	bus   eventbus.EventBus
	log   logger.Logger
	now   func() time.Time
}

// NewAggregator creates an Aggregator. bus may be nil.
func NewAggregator(store Store, bus eventbus.EventBus, log logger.Logger) (*Aggregator, error) {
	if store == nil || log == nil {
		return nil, fmt.Errorf("vote: nil parameter provided to NewAggregator")
	}
	return &Aggregator{store: store, locks: newRecipeLocks(), bus: bus, log: log, now: time.Now}, nil
}

// WithRecipes makes Vote reject private recipes of other authors with
// model.ErrNotFound.
func (a *Aggregator) WithRecipes(src RecipeSource) *Aggregator {
	a.recipes = src
	return a
}

// Vote records score as userID's vote on recipeID and returns the new mean.
// Scores outside [model.MinVoteScore, model.MaxVoteScore] fail with
// model.ErrOutOfRange before anything is read or written.
func (a *Aggregator) Vote(ctx context.Context, recipeID, userID int64, score int) (Result, error) {
	if !model.ValidScore(score) {
		return Result{}, fmt.Errorf("%w: %d not in [%d, %d]", model.ErrOutOfRange, score, model.MinVoteScore, model.MaxVoteScore)
	}
	if a.recipes != nil {
		r, err := a.recipes.Recipe(ctx, recipeID)
		if err != nil {
			return Result{}, fmt.Errorf("recipe %d: %w", recipeID, err)
		}
		if !r.VisibleTo(userID) {
			return Result{}, fmt.Errorf("recipe %d: %w", recipeID, model.ErrNotFound)
		}
	}
	unlock := a.locks.lock(recipeID)
	defer unlock()

	t, err := a.store.Tally(ctx, recipeID)
	if err != nil {
		return Result{}, fmt.Errorf("recipe %d: %w", recipeID, err)
	}
	prev, exists, err := a.store.UserVote(ctx, recipeID, userID)
	if err != nil {
		return Result{}, fmt.Errorf("vote lookup: %w", err)
	}
	var next Tally
	if exists {
		next, err = replace(t, prev.Score, score)
		if err != nil {
			return Result{}, fmt.Errorf("recipe %d: %w", recipeID, err)
		}
	} else {
		next = add(t, score)
	}
	v := model.Vote{UserID: userID, RecipeID: recipeID, Score: score}
	if err := a.store.ApplyVote(ctx, v, next); err != nil {
		return Result{}, fmt.Errorf("apply vote: %w", err)
	}
	a.log.Debugw("vote applied", map[string]any{
		"recipe_id": recipeID, "user_id": userID, "score": score,
		"mean": next.Score, "votes": next.Votes, "created": !exists,
	})
	if a.bus != nil {
		a.bus.Publish(events.VoteEvent{
			RecipeID: recipeID, UserID: userID, Score: score,
			Mean: next.Score, Votes: next.Votes, Created: !exists, Time: a.now(),
		})
	}
	return Result{Score: next.Score, Votes: next.Votes, Created: !exists}, nil
}

// Reconcile recomputes the tally of recipeID from its stored votes and
// persists it. It returns the recomputed tally.
func (a *Aggregator) Reconcile(ctx context.Context, recipeID int64) (Tally, error) {
	unlock := a.locks.lock(recipeID)
	defer unlock()

	if _, err := a.store.Tally(ctx, recipeID); err != nil {
		return Tally{}, fmt.Errorf("recipe %d: %w", recipeID, err)
	}
	votes, err := a.store.Votes(ctx, recipeID)
	if err != nil {
		return Tally{}, fmt.Errorf("list votes: %w", err)
	}
	t := Recompute(votes)
	if err := a.store.SetTally(ctx, recipeID, t); err != nil {
		return Tally{}, fmt.Errorf("set tally: %w", err)
	}
	a.log.Infof("reconciled recipe %d: mean %.3f over %d votes", recipeID, t.Score, t.Votes)
	return t, nil
}

// Recompute derives a tally from the full list of votes.
func Recompute(votes []model.Vote) Tally {
	if len(votes) == 0 {
		return Tally{}
	}
	xs := make([]float64, len(votes))
	for i, v := range votes {
		xs[i] = float64(v.Score)
	}
	return Tally{Score: stat.Mean(xs, nil), Votes: len(votes)}
}

func add(t Tally, score int) Tally {
	n := float64(t.Votes)
	return Tally{Score: (t.Score*n + float64(score)) / (n + 1), Votes: t.Votes + 1}
}

func replace(t Tally, prev, score int) (Tally, error) {
	if t.Votes < 1 {
		return Tally{}, fmt.Errorf("%w: existing vote on a recipe with no votes", model.ErrInvalid)
	}
	n := float64(t.Votes)
	return Tally{Score: (t.Score*n - float64(prev) + float64(score)) / n, Votes: t.Votes}, nil
}
