package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64
	UserID          *int64
	BranchID        int64
	Type            OrderType
	Status          Status
	TotalPrice      decimal.Decimal
	BonusesUsed     decimal.Decimal
	TableID         *int64
	WaiterID        *int64
	CashbackApplied bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	Items           []OrderItem
}

// OrderItem keeps the unit price and recipe it was ordered with, so later menu
// edits never change what the line costs or what cancelling it restocks.
type OrderItem struct {
	ID         int64
	OrderID    int64
	MenuItemID int64
	Name       string
	Quantity   int64
	UnitPrice  decimal.Decimal
	Recipe     []Ingredient
	Extras     []OrderItemExtra
}

type OrderItemExtra struct {
	ExtraID  int64
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

func (i OrderItem) Cost() decimal.Decimal {
	cost := i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
	for _, e := range i.Extras {
		cost = cost.Add(e.Price.Mul(decimal.NewFromInt(e.Quantity)))
	}
	return cost
}

func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Cost())
	}
	return sum
}

// Recalculate sets TotalPrice to subtotal minus bonuses, floored at zero.
func (o *Order) Recalculate() {
	total := o.Subtotal().Sub(o.BonusesUsed)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalPrice = total
}

// LineFor returns the index of the first line for menuItemID without extras, or -1.
func (o *Order) LineFor(menuItemID int64) int {
	for i, it := range o.Items {
		if it.MenuItemID == menuItemID && len(it.Extras) == 0 {
			return i
		}
	}
	return -1
}

func (o *Order) ItemIndex(orderItemID int64) int {
	for i, it := range o.Items {
		if it.ID == orderItemID {
			return i
		}
	}
	return -1
}

type StatusLogEntry struct {
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}
