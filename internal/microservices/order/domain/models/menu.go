package models

import "github.com/shopspring/decimal"

// Ingredient is one recipe requirement for a single unit of a menu item.
type Ingredient struct {
	IngredientID int64  `json:"ingredient_id"`
	Name         string `json:"name"`
	Quantity     int64  `json:"quantity"`
	Unit         string `json:"unit"`
}

type MenuItem struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Available bool
	Category  string
	BranchID  *int64
	Recipe    []Ingredient
}

// OfferedAt reports whether the item can be sold at branchID.
func (m MenuItem) OfferedAt(branchID int64) bool {
	return m.BranchID == nil || *m.BranchID == branchID
}

// Extra is a priced add-on (milk, syrup) without its own stock.
type Extra struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type InventoryRecord struct {
	ID           int64
	BranchID     int64
	IngredientID int64
	Name         string
	Quantity     int64
	Unit         string
	Limit        int64
	RunningLow   bool
}

func (r *InventoryRecord) refreshRunningLow() {
	r.RunningLow = r.Quantity <= r.Limit
}

// Adjust applies delta and recomputes the running-low flag. It refuses to go negative.
func (r *InventoryRecord) Adjust(delta int64) bool {
	if r.Quantity+delta < 0 {
		return false
	}
	r.Quantity += delta
	r.refreshRunningLow()
	return true
}

type Table struct {
	ID        int64
	BranchID  int64
	Number    int
	Available bool
}

const RoleClient = "client"

type User struct {
	ID    int64
	Role  string
	Bonus decimal.Decimal
}
