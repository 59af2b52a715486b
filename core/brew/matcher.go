package brew

import "github.com/kilianp07/teabrew/core/model"

// FindTea returns the first container, in slice order, holding teaID.
func FindTea(teaID int64, containers []model.Container) (model.Container, bool) {
	for _, c := range containers {
		if c.HoldsTea(teaID) {
			return c, true
		}
	}
	return model.Container{}, false
}

// FindIngredient returns the first container, in slice order, holding
// ingredientID.
func FindIngredient(ingredientID int64, containers []model.Container) (model.Container, bool) {
	for _, c := range containers {
		if c.HoldsIngredient(ingredientID) {
			return c, true
		}
	}
	return model.Container{}, false
}
