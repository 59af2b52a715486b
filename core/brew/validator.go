package brew

import (
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/model"
)

// DefaultWaterOverhead is the water consumed by a brewing cycle on top of
// the requested portion.
const DefaultWaterOverhead = 60

// Validator checks a recipe against a machine snapshot.
type Validator struct {
	WaterOverhead float64
}

// NewValidator returns a Validator with the given water overhead. A
// non-positive overhead selects DefaultWaterOverhead.
func NewValidator(waterOverhead float64) Validator {
	if waterOverhead <= 0 {
		waterOverhead = DefaultWaterOverhead
	}
	return Validator{WaterOverhead: waterOverhead}
}

// Validate runs every check and returns the accumulated report. It never
// stops at the first failure and performs no writes.
func (v Validator) Validate(r model.Recipe, portion float64, snap inventory.Snapshot) Report {
	var rep Report
	if !snap.Machine.Connected {
		rep.add(ReasonNotConnected, msgNotConnected)
	}
	if !snap.Machine.MugReady {
		rep.add(ReasonMugNotReady, msgMugNotReady)
	}
	v.checkTea(&rep, r, snap.TeaContainers)
	v.checkIngredients(&rep, r, snap.IngredientContainers)
	if snap.Machine.Water < portion+v.WaterOverhead {
		rep.add(ReasonWaterInsufficient, msgWaterInsufficient)
	}
	return rep
}

func (v Validator) checkTea(rep *Report, r model.Recipe, teas []model.Container) {
	c, ok := FindTea(r.TeaID, teas)
	if !ok {
		rep.add(ReasonTeaMissing, msgTeaMissing)
		return
	}
	if c.Amount < r.HerbAmount {
		rep.add(ReasonTeaInsufficient, msgTeaInsufficient)
	}
}

func (v Validator) checkIngredients(rep *Report, r model.Recipe, ings []model.Container) {
	for _, req := range r.Ingredients {
		c, ok := FindIngredient(req.IngredientID, ings)
		switch {
		case !ok:
			rep.add(ReasonIngredientMissing, ingredientMissingMsg(req.Name, req.Amount))
		case c.Amount < req.Amount:
			rep.add(ReasonIngredientInsufficient, msgIngredientShortfall)
		}
	}
}
