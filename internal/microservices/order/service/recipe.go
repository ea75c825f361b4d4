package service

import (
	"context"
	"sort"

	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

// Requirement is the total amount of one ingredient needed for a quantity of a menu item.
type Requirement struct {
	IngredientID int64
	Name         string
	Quantity     int64
}

type RecipeResolver struct{}

func (RecipeResolver) Resolve(ctx context.Context, tx repository.Tx, menuItemID int64) (models.MenuItem, error) {
	return tx.MenuItem(ctx, menuItemID)
}

// Requirements scales recipe by qty, merging repeated ingredients, ordered by ingredient id.
func (RecipeResolver) Requirements(recipe []models.Ingredient, qty int64) []Requirement {
	byID := make(map[int64]*Requirement, len(recipe))
	for _, ing := range recipe {
		if r, ok := byID[ing.IngredientID]; ok {
			r.Quantity += ing.Quantity * qty
			continue
		}
		byID[ing.IngredientID] = &Requirement{IngredientID: ing.IngredientID, Name: ing.Name, Quantity: ing.Quantity * qty}
	}
	out := make([]Requirement, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}
