package recipe

import (
	"sort"
	"strings"

	"github.com/kilianp07/teabrew/core/model"
)

// Range bounds a numeric attribute. Nil ends are open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Filter selects public recipes. Zero fields match everything.
type Filter struct {
	// Name matches recipes whose name contains it, case-insensitively.
	Name  string
	TeaID int64
	// IngredientIDs must all be part of the recipe.
	IngredientIDs      []int64
	BrewingTemperature Range
	BrewingTime        Range
	MixingTime         Range
	MinScore           *float64
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r model.Recipe) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.TeaID != 0 && r.TeaID != f.TeaID {
		return false
	}
	for _, want := range f.IngredientIDs {
		found := false
		for _, ing := range r.Ingredients {
			if ing.IngredientID == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.BrewingTemperature.contains(r.BrewingTemperature) ||
		!f.BrewingTime.contains(r.BrewingTime) ||
		!f.MixingTime.contains(r.MixingTime) {
		return false
	}
	if f.MinScore != nil && r.Score < *f.MinScore {
		return false
	}
	return true
}

// Sort orders recipes favourites first, then by name, then by ID.
func Sort(rs []model.Recipe) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].IsFavourite != rs[j].IsFavourite {
			return rs[i].IsFavourite
		}
		if rs[i].Name != rs[j].Name {
			return rs[i].Name < rs[j].Name
		}
		return rs[i].ID < rs[j].ID
	})
}
