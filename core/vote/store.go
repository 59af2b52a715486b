package vote

import (
	"context"

	"github.com/kilianp07/teabrew/core/model"
)

// Tally is the aggregate score state of a recipe.
type Tally struct {
	Score float64 `json:"score"`
	Votes int     `json:"votes"`
}

// Store persists votes and recipe tallies.
type Store interface {
	// Tally returns the current tally of a recipe or model.ErrNotFound.
	Tally(ctx context.Context, recipeID int64) (Tally, error)
	// UserVote returns the vote of userID on recipeID, if any.
	UserVote(ctx context.Context, recipeID, userID int64) (model.Vote, bool, error)
	// ApplyVote upserts v and stores t as the recipe tally in one atomic step.
	ApplyVote(ctx context.Context, v model.Vote, t Tally) error
	// Votes lists every vote recorded for recipeID.
	Votes(ctx context.Context, recipeID int64) ([]model.Vote, error)
	// SetTally overwrites the recipe tally.
	SetTally(ctx context.Context, recipeID int64, t Tally) error
}
