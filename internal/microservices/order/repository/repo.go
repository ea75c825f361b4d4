package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"neocafe/internal/microservices/order/domain/models"
)

// Store runs units of work. Every error returned by fn rolls the unit back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ReadOnly runs fn on a consistent snapshot; mutating Tx methods and locking reads fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the data access available inside one unit of work. Lookups of
// missing rows return apperr NotFound errors.
type Tx interface {
	MenuItem(ctx context.Context, id int64) (models.MenuItem, error)
	Extra(ctx context.Context, id int64) (models.Extra, error)

	// Inventory returns the records for ingredientIDs at branchID keyed by
	// ingredient id; absent records are simply missing from the map. With
	// lock set the rows stay exclusively held until the unit ends.
	Inventory(ctx context.Context, branchID int64, ingredientIDs []int64, lock bool) (map[int64]models.InventoryRecord, error)
	SaveInventory(ctx context.Context, rec models.InventoryRecord) error

	Order(ctx context.Context, id int64, lock bool) (models.Order, error)
	OrderIDByItem(ctx context.Context, orderItemID int64) (int64, error)
	InsertOrder(ctx context.Context, o *models.Order) error
	UpdateOrder(ctx context.Context, o models.Order) error
	InsertOrderItem(ctx context.Context, it *models.OrderItem) error
	UpdateOrderItemQuantity(ctx context.Context, orderItemID, quantity int64) error
	DeleteOrderItem(ctx context.Context, orderItemID int64) error

	Table(ctx context.Context, id int64, lock bool) (models.Table, error)
	SetTableAvailable(ctx context.Context, id int64, available bool) error

	User(ctx context.Context, id int64, lock bool) (models.User, error)
	SetUserBonus(ctx context.Context, id int64, bonus decimal.Decimal) error

	AppendStatusLog(ctx context.Context, entry models.StatusLogEntry) error
	StatusLog(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error)
}
