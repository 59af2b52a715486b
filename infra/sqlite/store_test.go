package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
	"github.com/kilianp07/teabrew/infra/logger"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMachineLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Provision(ctx, model.Machine{ID: "m1", OwnerID: 3}, model.NewMachineContainers("m1")))
	assert.ErrorIs(t, s.Provision(ctx, model.Machine{ID: "m1"}, nil), model.ErrConflict)
	assert.ErrorIs(t, s.Provision(ctx, model.Machine{ID: "m2", OwnerID: 3}, nil), model.ErrConflict)
	require.NoError(t, s.Provision(ctx, model.Machine{ID: "m3"}, nil))
	require.NoError(t, s.Provision(ctx, model.Machine{ID: "m4"}, nil), "unowned machines do not conflict")

	require.NoError(t, s.UpdateStatus(ctx, model.Machine{ID: "m1", Connected: true, MugReady: true, Water: 420}))
	m, err := s.ForOwner(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Machine{ID: "m1", OwnerID: 3, Connected: true, MugReady: true, Water: 420}, m)

	tea := int64(2)
	c, err := s.UpdateContainer(ctx, model.Container{MachineID: "m1", Slot: 2, TeaID: &tea, Amount: 55})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	require.NotNil(t, c.TeaID)
	assert.Equal(t, int64(2), *c.TeaID)
	assert.Nil(t, c.IngredientID)

	cs, err := s.Containers(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, cs, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{cs[0].Slot, cs[1].Slot, cs[2].Slot, cs[3].Slot})
	assert.Equal(t, 55.0, cs[1].Amount)

	_, err = s.Containers(ctx, "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.UpdateContainer(ctx, model.Container{MachineID: "m1", Slot: 9})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.ForOwner(ctx, 99)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecipeRoundTripAndFilter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	in := model.Recipe{
		AuthorID: 1, Name: "100%_Green", TeaID: 1, HerbAmount: 15, Portion: 200,
		BrewingTemperature: 80, BrewingTime: 60, MixingTime: 15, IsPublic: true,
		Ingredients: []model.RecipeIngredient{{IngredientID: 10, Name: "honey", Amount: 5}},
	}
	created, err := s.Create(ctx, in)
	require.NoError(t, err)
	got, err := s.Recipe(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Ingredients, got.Ingredients)
	assert.True(t, got.IsPublic)

	_, err = s.Create(ctx, model.Recipe{AuthorID: 1, Name: "100 Green", TeaID: 1, IsPublic: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, model.Recipe{AuthorID: 2, Name: "hidden green", TeaID: 1})
	require.NoError(t, err)

	rs, err := s.ListPublic(ctx, recipe.Filter{Name: "100%_"})
	require.NoError(t, err)
	require.Len(t, rs, 1, "LIKE wildcards in the filter must be literal")
	assert.Equal(t, created.ID, rs[0].ID)

	rs, err = s.ListPublic(ctx, recipe.Filter{IngredientIDs: []int64{10}})
	require.NoError(t, err)
	require.Len(t, rs, 1)

	n, err := s.CountByAuthor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Recipe(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApplyVoteAtomic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r, err := s.Create(ctx, model.Recipe{AuthorID: 1, Name: "x", TeaID: 1})
	require.NoError(t, err)

	err = s.ApplyVote(ctx, model.Vote{RecipeID: 999, UserID: 1, Score: 3}, vote.Tally{Score: 3, Votes: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, ok, err := s.UserVote(ctx, 999, 1)
	require.NoError(t, err)
	assert.False(t, ok, "vote must not be stored when the recipe is missing")

	require.NoError(t, s.ApplyVote(ctx, model.Vote{RecipeID: r.ID, UserID: 1, Score: 3}, vote.Tally{Score: 3, Votes: 1}))
	require.NoError(t, s.ApplyVote(ctx, model.Vote{RecipeID: r.ID, UserID: 1, Score: 5}, vote.Tally{Score: 5, Votes: 1}))
	votes, err := s.Votes(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Vote{{UserID: 1, RecipeID: r.ID, Score: 5}}, votes)

	require.NoError(t, s.Delete(ctx, r.ID))
	votes, err = s.Votes(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestConcurrentVotesThroughAggregator(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r, err := s.Create(ctx, model.Recipe{AuthorID: 1, Name: "x", TeaID: 1})
	require.NoError(t, err)
	agg, err := vote.NewAggregator(s, nil, logger.NopLogger{})
	require.NoError(t, err)

	const users = 40
	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			_, err := agg.Vote(ctx, r.ID, int64(u), u%6)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	tally, err := s.Tally(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, users, tally.Votes)
	var sum int
	for u := 1; u <= users; u++ {
		sum += u % 6
	}
	assert.InDelta(t, float64(sum)/users, tally.Score, 1e-9)
}
