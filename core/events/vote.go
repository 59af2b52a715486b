package events

import "time"

// VoteEvent is published after a vote has been persisted.
type VoteEvent struct {
	RecipeID int64
	UserID   int64
	Score    int
	Mean     float64
	Votes    int
	Created  bool
	Time     time.Time
}
