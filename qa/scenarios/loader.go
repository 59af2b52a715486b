// Package scenarios replays brew scenarios described in YAML against the
// dispatch pipeline.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/teabrew/core/model"
)

type ContainerDef struct {
	Slot       int     `yaml:"slot"`
	Tea        *int64  `yaml:"tea,omitempty"`
	Ingredient *int64  `yaml:"ingredient,omitempty"`
	Amount     float64 `yaml:"amount"`
}

type MachineDef struct {
	ID         string         `yaml:"id"`
	Owner      int64          `yaml:"owner"`
	Connected  bool           `yaml:"connected"`
	MugReady   bool           `yaml:"mug_ready"`
	Water      float64        `yaml:"water"`
	Containers []ContainerDef `yaml:"containers"`
}

// ToModel returns the machine status and its four containers. Slots absent
// from the definition stay empty.
func (m MachineDef) ToModel() (model.Machine, []model.Container) {
	cs := model.NewMachineContainers(m.ID)
	for _, def := range m.Containers {
		for i := range cs {
			if cs[i].Slot == def.Slot {
				cs[i].TeaID = def.Tea
				cs[i].IngredientID = def.Ingredient
				cs[i].Amount = def.Amount
			}
		}
	}
	return model.Machine{
		ID:        m.ID,
		OwnerID:   m.Owner,
		Connected: m.Connected,
		MugReady:  m.MugReady,
		Water:     m.Water,
	}, cs
}

type IngredientDef struct {
	ID     int64   `yaml:"id"`
	Name   string  `yaml:"name"`
	Amount float64 `yaml:"amount"`
}

type RecipeDef struct {
	Name        string          `yaml:"name"`
	Author      int64           `yaml:"author"`
	Tea         int64           `yaml:"tea"`
	Herbs       float64         `yaml:"herbs"`
	Portion     float64         `yaml:"portion"`
	Ingredients []IngredientDef `yaml:"ingredients,omitempty"`
}

func (r RecipeDef) ToModel() model.Recipe {
	out := model.Recipe{
		AuthorID:   r.Author,
		Name:       r.Name,
		TeaID:      r.Tea,
		HerbAmount: r.Herbs,
		Portion:    r.Portion,
	}
	for _, ing := range r.Ingredients {
		out.Ingredients = append(out.Ingredients, model.RecipeIngredient{IngredientID: ing.ID, Name: ing.Name, Amount: ing.Amount})
	}
	return out
}

type BrewDef struct {
	Recipe  string   `yaml:"recipe"`
	Machine string   `yaml:"machine"`
	Portion *float64 `yaml:"portion,omitempty"`
}

type Expected struct {
	Accepted int            `yaml:"accepted"`
	Rejected int            `yaml:"rejected"`
	Errors   int            `yaml:"errors"`
	Reasons  map[string]int `yaml:"reasons,omitempty"`
}

type Scenario struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description,omitempty"`
	Machines        []MachineDef   `yaml:"machines"`
	Recipes         []RecipeDef    `yaml:"recipes"`
	Brews           []BrewDef      `yaml:"brews"`
	FailEnqueueFrom *int           `yaml:"fail_enqueue_from,omitempty"`
	DisconnectAfter map[string]int `yaml:"disconnect_after,omitempty"`
	Expected        Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
