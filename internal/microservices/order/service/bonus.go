package service

import (
	"context"

	"github.com/shopspring/decimal"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

type BonusLedger struct {
	CashbackRate decimal.Decimal
}

// Apply sets the bonuses spent on o to amount. Bonuses already spent on the
// order are returned to the balance first, so repeated calls replace rather
// than stack.
func (b BonusLedger) Apply(ctx context.Context, tx repository.Tx, o *models.Order, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Validation("apply_bonuses", "bonus amount cannot be negative")
	}
	if !wholeCents(amount) {
		return apperr.Validation("apply_bonuses", "bonus amount %s has more than two decimal places", amount)
	}
	if o.UserID == nil {
		if amount.IsPositive() {
			return apperr.Validation("apply_bonuses", "bonuses can only be used on a customer's order")
		}
		o.Recalculate()
		return nil
	}

	u, err := tx.User(ctx, *o.UserID, true)
	if err != nil {
		return err
	}
	balance := u.Bonus.Add(o.BonusesUsed)
	if amount.GreaterThan(balance) {
		return apperr.InsufficientBonus("apply_bonuses", "requested %s bonuses, balance is %s", amount.StringFixed(2), balance.StringFixed(2))
	}
	if !balance.Sub(amount).Equal(u.Bonus) {
		if err := tx.SetUserBonus(ctx, u.ID, balance.Sub(amount)); err != nil {
			return err
		}
	}
	o.BonusesUsed = amount
	o.Recalculate()
	return nil
}

// Refund returns the bonuses spent on o to its customer.
func (b BonusLedger) Refund(ctx context.Context, tx repository.Tx, o *models.Order) error {
	if o.UserID == nil || !o.BonusesUsed.IsPositive() {
		return nil
	}
	u, err := tx.User(ctx, *o.UserID, true)
	if err != nil {
		return err
	}
	return tx.SetUserBonus(ctx, u.ID, u.Bonus.Add(o.BonusesUsed))
}

// ApplyCashback credits CashbackRate of the order total to a client once per
// order. Later calls return zero and change nothing.
func (b BonusLedger) ApplyCashback(ctx context.Context, tx repository.Tx, o *models.Order) (decimal.Decimal, error) {
	if o.Status != models.StatusCompleted {
		return decimal.Zero, apperr.InvalidTransition("apply_cashback", "cashback requires a completed order, order %d is %s", o.ID, o.Status)
	}
	if o.CashbackApplied {
		return decimal.Zero, nil
	}
	o.CashbackApplied = true
	if o.UserID == nil {
		return decimal.Zero, nil
	}

	u, err := tx.User(ctx, *o.UserID, true)
	if err != nil {
		return decimal.Zero, err
	}
	if u.Role != models.RoleClient {
		return decimal.Zero, nil
	}
	cashback := o.TotalPrice.Mul(b.CashbackRate).Round(2)
	if !cashback.IsPositive() {
		return decimal.Zero, nil
	}
	if err := tx.SetUserBonus(ctx, u.ID, u.Bonus.Add(cashback)); err != nil {
		return decimal.Zero, err
	}
	return cashback, nil
}

// wholeCents reports whether d fits NUMERIC(10,2) without rounding.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}
