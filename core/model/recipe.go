package model

import "time"

// Tea is a catalogue entry for a tea type that can be loaded in a tea container.
type Tea struct {
	ID   int64  `json:"id"`
	Name string `json:"tea_name"`
}

// Ingredient is a catalogue entry for an additive loaded in an ingredient container.
type Ingredient struct {
	ID   int64  `json:"id"`
	Name string `json:"ingredient_name"`
}

// RecipeIngredient is one required additive of a recipe. Amount is expressed
// in the same unit as the container amount.
type RecipeIngredient struct {
	IngredientID int64   `json:"ingredient_id"`
	Name         string  `json:"ingredient_name"`
	Amount       float64 `json:"amount"`
}

// Recipe describes how a tea is brewed.
type Recipe struct {
	ID                 int64              `json:"id"`
	AuthorID           int64              `json:"author_id"`
	Name               string             `json:"recipe_name"`
	Description        string             `json:"description"`
	TeaID              int64              `json:"tea_type"`
	HerbAmount         float64            `json:"tea_herbs_amount"`
	Ingredients        []RecipeIngredient `json:"ingredients"`
	Portion            float64            `json:"tea_portion"`
	BrewingTemperature float64            `json:"brewing_temperature"`
	BrewingTime        float64            `json:"brewing_time"`
	MixingTime         float64            `json:"mixing_time"`
	Score              float64            `json:"score"`
	Votes              int                `json:"votes"`
	IsPublic           bool               `json:"is_public"`
	IsFavourite        bool               `json:"is_favourite"`
	UpdatedAt          time.Time          `json:"last_modification"`
}

// Default brewing parameters applied to recipes created without them.
const (
	DefaultHerbAmount         = 15
	DefaultPortion            = 200
	DefaultBrewingTemperature = 80
	DefaultBrewingTime        = 60
	DefaultMixingTime         = 15
)

// SetDefaults fills zero brewing parameters.
func (r *Recipe) SetDefaults() {
	if r.HerbAmount == 0 {
		r.HerbAmount = DefaultHerbAmount
	}
	if r.Portion == 0 {
		r.Portion = DefaultPortion
	}
	if r.BrewingTemperature == 0 {
		r.BrewingTemperature = DefaultBrewingTemperature
	}
	if r.BrewingTime == 0 {
		r.BrewingTime = DefaultBrewingTime
	}
	if r.MixingTime == 0 {
		r.MixingTime = DefaultMixingTime
	}
}

// VisibleTo reports whether userID may read, brew or vote on r.
func (r Recipe) VisibleTo(userID int64) bool {
	return r.IsPublic || r.AuthorID == userID
}

// Clone returns a deep copy so the ingredient slice is not shared.
func (r Recipe) Clone() Recipe {
	if r.Ingredients != nil {
		ing := make([]RecipeIngredient, len(r.Ingredients))
		copy(ing, r.Ingredients)
		r.Ingredients = ing
	}
	return r
}
