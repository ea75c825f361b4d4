package service

import (
	"context"
	"slices"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

type InventoryLedger struct {
	recipes RecipeResolver
}

// CanProduce is a pure read: it reports whether branchID has stock for qty
// units of item. Unavailable or out-of-branch items cannot be produced and a
// missing inventory record fails closed.
func (l InventoryLedger) CanProduce(ctx context.Context, tx repository.Tx, item models.MenuItem, branchID, qty int64) (bool, []apperr.Shortage, error) {
	if qty <= 0 {
		return false, nil, apperr.Validation("can_produce", "quantity must be positive, got %d", qty)
	}
	if !item.Available || !item.OfferedAt(branchID) {
		return false, nil, nil
	}
	reqs := l.recipes.Requirements(item.Recipe, qty)
	recs, err := tx.Inventory(ctx, branchID, ingredientIDs(reqs), false)
	if err != nil {
		return false, nil, err
	}
	shortages := shortagesOf(item.ID, reqs, recs)
	return len(shortages) == 0, shortages, nil
}

// Consume locks the recipe's inventory rows, re-validates the stock and
// decrements it. Nothing is written when any ingredient is short. It returns
// the records that crossed into running low.
func (l InventoryLedger) Consume(ctx context.Context, tx repository.Tx, branchID, menuItemID int64, recipe []models.Ingredient, qty int64) ([]models.InventoryRecord, error) {
	reqs := l.recipes.Requirements(recipe, qty)
	recs, err := tx.Inventory(ctx, branchID, ingredientIDs(reqs), true)
	if err != nil {
		return nil, err
	}
	if shortages := shortagesOf(menuItemID, reqs, recs); len(shortages) > 0 {
		return nil, apperr.InsufficientStock("consume", shortages)
	}

	var becameLow []models.InventoryRecord
	for _, req := range reqs {
		rec := recs[req.IngredientID]
		wasLow := rec.RunningLow
		if !rec.Adjust(-req.Quantity) {
			return nil, apperr.InsufficientStock("consume", shortagesOf(menuItemID, reqs, recs))
		}
		if err := tx.SaveInventory(ctx, rec); err != nil {
			return nil, err
		}
		if rec.RunningLow && !wasLow {
			becameLow = append(becameLow, rec)
		}
	}
	return becameLow, nil
}

// Restock is the inverse of Consume for the same recipe and quantity.
func (l InventoryLedger) Restock(ctx context.Context, tx repository.Tx, branchID int64, recipe []models.Ingredient, qty int64) error {
	reqs := l.recipes.Requirements(recipe, qty)
	recs, err := tx.Inventory(ctx, branchID, ingredientIDs(reqs), true)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		rec, ok := recs[req.IngredientID]
		if !ok {
			return apperr.NotFound("restock", "no inventory record for %s at branch %d", req.Name, branchID)
		}
		rec.Adjust(req.Quantity)
		if err := tx.SaveInventory(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Lock takes the row locks of every ingredient used by recipes in a single
// ascending pass. Multi-line writes call it first so that the per-line
// Consume and Restock calls only re-read rows the transaction already holds.
func (l InventoryLedger) Lock(ctx context.Context, tx repository.Tx, branchID int64, recipes ...[]models.Ingredient) error {
	var ids []int64
	for _, recipe := range recipes {
		for _, ing := range recipe {
			ids = append(ids, ing.IngredientID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	_, err := tx.Inventory(ctx, branchID, slices.Compact(ids), true)
	return err
}

func shortagesOf(menuItemID int64, reqs []Requirement, recs map[int64]models.InventoryRecord) []apperr.Shortage {
	var out []apperr.Shortage
	for _, req := range reqs {
		rec, ok := recs[req.IngredientID]
		if ok && rec.Quantity >= req.Quantity {
			continue
		}
		out = append(out, apperr.Shortage{
			MenuItemID:   menuItemID,
			IngredientID: req.IngredientID,
			Ingredient:   req.Name,
			Required:     req.Quantity,
			Available:    rec.Quantity,
		})
	}
	return out
}

func ingredientIDs(reqs []Requirement) []int64 {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.IngredientID)
	}
	return ids
}
