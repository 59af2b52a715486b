package brew

import (
	"testing"

	"github.com/kilianp07/teabrew/core/model"
)

func TestFindTeaFirstMatchWins(t *testing.T) {
	cs := []model.Container{
		{Slot: 1, TeaID: id(greenTea), Amount: 1},
		{Slot: 2, TeaID: id(greenTea), Amount: 100},
	}
	c, ok := FindTea(greenTea, cs)
	if !ok || c.Slot != 1 {
		t.Fatalf("expected slot 1 got %#v ok=%v", c, ok)
	}
}

func TestFindTeaIgnoresQuantity(t *testing.T) {
	cs := []model.Container{{Slot: 1, TeaID: id(blackTea), Amount: 0}}
	if _, ok := FindTea(blackTea, cs); !ok {
		t.Fatalf("empty container should still match")
	}
}

func TestFindTeaNotFound(t *testing.T) {
	cs := []model.Container{{Slot: 1}, {Slot: 2, TeaID: id(blackTea)}}
	if _, ok := FindTea(greenTea, cs); ok {
		t.Fatalf("unexpected match")
	}
}

func TestFindIngredient(t *testing.T) {
	cs := []model.Container{
		{Slot: 3, IngredientID: id(honey)},
		{Slot: 4, IngredientID: id(lemon), Amount: 9},
	}
	c, ok := FindIngredient(lemon, cs)
	if !ok || c.Slot != 4 || c.Amount != 9 {
		t.Fatalf("unexpected match %#v", c)
	}
	if _, ok := FindIngredient(milk, cs); ok {
		t.Fatalf("unexpected match for milk")
	}
}
