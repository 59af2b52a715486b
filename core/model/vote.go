package model

// Vote score bounds, inclusive.
const (
	MinVoteScore = 0
	MaxVoteScore = 5
)

// Vote is the score a user gave a recipe. There is at most one per
// (UserID, RecipeID) pair.
type Vote struct {
	UserID   int64 `json:"user"`
	RecipeID int64 `json:"recipe"`
	Score    int   `json:"score"`
}

// ValidScore reports whether s lies within [MinVoteScore, MaxVoteScore].
func ValidScore(s int) bool { return s >= MinVoteScore && s <= MaxVoteScore }
