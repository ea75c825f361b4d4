package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
)

type CreateOrderRequest struct {
	UserID      *int64           `json:"user_id,omitempty"`
	WaiterID    *int64           `json:"waiter_id,omitempty"`
	BranchID    int64            `json:"branch_id"`
	OrderType   string           `json:"order_type"`
	Items       []OrderItemInput `json:"items"`
	BonusesUsed decimal.Decimal  `json:"bonuses_used"`
	TableID     *int64           `json:"table_id,omitempty"`
}

type OrderItemInput struct {
	MenuID   int64        `json:"menu_id"`
	Quantity int64        `json:"quantity"`
	Extras   []ExtraInput `json:"extras,omitempty"`
}

type ExtraInput struct {
	ExtraID  int64 `json:"extra_id"`
	Quantity int64 `json:"quantity"`
}

type AddItemRequest struct {
	OrderID  int64 `json:"order_id"`
	MenuID   int64 `json:"menu_id"`
	Quantity int64 `json:"quantity"`
}

type RemoveItemRequest struct {
	OrderItemID int64  `json:"order_item_id"`
	Quantity    *int64 `json:"quantity,omitempty"`
}

type UpdateStatusRequest struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	ChangedBy string `json:"changed_by,omitempty"`
}

type ApplyBonusesRequest struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type AvailabilityRequest struct {
	MenuID   int64 `json:"menu_id"`
	BranchID int64 `json:"branch_id"`
	Quantity int64 `json:"quantity"`
}

type AvailabilityResponse struct {
	Available bool              `json:"available"`
	Message   string            `json:"message"`
	Shortages []apperr.Shortage `json:"shortages,omitempty"`
}

type OrderResponse struct {
	ID              int64               `json:"id"`
	UserID          *int64              `json:"user_id,omitempty"`
	BranchID        int64               `json:"branch_id"`
	OrderType       string              `json:"order_type"`
	Status          string              `json:"status"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	BonusesUsed     decimal.Decimal     `json:"bonuses_used"`
	TableID         *int64              `json:"table_id,omitempty"`
	WaiterID        *int64              `json:"waiter_id,omitempty"`
	CashbackApplied bool                `json:"cashback_applied"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	Items           []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ID        int64               `json:"id"`
	MenuID    int64               `json:"menu_id"`
	Name      string              `json:"name"`
	Quantity  int64               `json:"quantity"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	Cost      decimal.Decimal     `json:"cost"`
	Extras    []ExtraItemResponse `json:"extras,omitempty"`
}

type ExtraItemResponse struct {
	ExtraID  int64           `json:"extra_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// FromOrder maps the aggregate to its canonical wire shape.
func FromOrder(o models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		var extras []ExtraItemResponse
		for _, e := range it.Extras {
			extras = append(extras, ExtraItemResponse{ExtraID: e.ExtraID, Name: e.Name, Price: e.Price, Quantity: e.Quantity})
		}
		items = append(items, OrderItemResponse{
			ID:        it.ID,
			MenuID:    it.MenuItemID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Cost:      it.Cost(),
			Extras:    extras,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		BranchID:        o.BranchID,
		OrderType:       string(o.Type),
		Status:          string(o.Status),
		TotalPrice:      o.TotalPrice,
		BonusesUsed:     o.BonusesUsed,
		TableID:         o.TableID,
		WaiterID:        o.WaiterID,
		CashbackApplied: o.CashbackApplied,
		CreatedAt:       o.CreatedAt,
		CompletedAt:     o.CompletedAt,
		Items:           items,
	}
}
