package brew

import "fmt"

// Reason classifies a readiness failure.
type Reason string

const (
	ReasonNotConnected           Reason = "not_connected"
	ReasonMugNotReady            Reason = "mug_not_ready"
	ReasonTeaMissing             Reason = "tea_missing"
	ReasonTeaInsufficient        Reason = "tea_insufficient"
	ReasonIngredientMissing      Reason = "ingredient_missing"
	ReasonIngredientInsufficient Reason = "ingredient_insufficient"
	ReasonWaterInsufficient      Reason = "water_insufficient"
)

const (
	msgNotConnected        = "Machine is not connected."
	msgMugNotReady         = "Mug is not ready."
	msgTeaMissing          = "Given tea type is not available in your tea containers."
	msgTeaInsufficient     = "Not enough tea herbs in container."
	msgIngredientShortfall = "Not enough ingredient in container."
	msgWaterInsufficient   = "Not enough water."
)

func ingredientMissingMsg(name string, amount float64) string {
	return fmt.Sprintf("Ingredient: %s, of required amount: %g, is not available in your machine.", name, amount)
}

// Failure is one reason the machine cannot brew.
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Report is the outcome of a validation. The zero value is a passing report.
type Report struct {
	Failures []Failure `json:"failures,omitempty"`
}

// OK reports whether no check failed.
func (r Report) OK() bool { return len(r.Failures) == 0 }

// Messages returns the failure messages in check order.
func (r Report) Messages() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Message
	}
	return out
}

// Has reports whether a failure with the given reason was recorded.
func (r Report) Has(reason Reason) bool {
	for _, f := range r.Failures {
		if f.Reason == reason {
			return true
		}
	}
	return false
}

func (r *Report) add(reason Reason, msg string) {
	r.Failures = append(r.Failures, Failure{Reason: reason, Message: msg})
}
