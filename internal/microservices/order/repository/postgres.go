package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
)

// SQLSTATE codes that mean "another transaction got there first".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgCheckViolation       = "23514"
)

type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

func (s *PostgresStore) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classify("begin", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if !opts.ReadOnly {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return classify("begin", fmt.Errorf("failed to set lock timeout: %w", err))
		}
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify("tx", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify turns lock contention and constraint failures into domain errors.
func classify(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperr.Conflict(op, err)
		case pgCheckViolation:
			return &apperr.Error{Kind: apperr.KindInsufficientStock, Op: op, Message: "constraint " + pgErr.ConstraintName + " violated", Err: err}
		}
	}
	return err
}

type pgTx struct {
	tx *sql.Tx
}

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func (t *pgTx) MenuItem(ctx context.Context, id int64) (models.MenuItem, error) {
	var (
		m        models.MenuItem
		branchID sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, price, available, COALESCE(category, ''), branch_id
		FROM menu_items WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.Category, &branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MenuItem{}, apperr.NotFound("menu_item", "menu item %d not found", id)
	}
	if err != nil {
		return models.MenuItem{}, fmt.Errorf("failed to get menu item %d: %w", id, err)
	}
	if branchID.Valid {
		m.BranchID = &branchID.Int64
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT mi.ingredient_id, i.name, mi.quantity, i.unit
		FROM menu_item_ingredients mi
		JOIN ingredients i ON i.id = mi.ingredient_id
		WHERE mi.menu_item_id = $1
		ORDER BY mi.ingredient_id
	`, id)
	if err != nil {
		return models.MenuItem{}, fmt.Errorf("failed to get recipe of menu item %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.IngredientID, &ing.Name, &ing.Quantity, &ing.Unit); err != nil {
			return models.MenuItem{}, err
		}
		m.Recipe = append(m.Recipe, ing)
	}
	return m, rows.Err()
}

func (t *pgTx) Extra(ctx context.Context, id int64) (models.Extra, error) {
	var e models.Extra
	err := t.tx.QueryRowContext(ctx, `SELECT id, name, price FROM extras WHERE id = $1`, id).Scan(&e.ID, &e.Name, &e.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Extra{}, apperr.NotFound("extra", "extra %d not found", id)
	}
	if err != nil {
		return models.Extra{}, fmt.Errorf("failed to get extra %d: %w", id, err)
	}
	return e, nil
}

// Inventory locks rows in ingredient order so concurrent units never deadlock on each other.
func (t *pgTx) Inventory(ctx context.Context, branchID int64, ingredientIDs []int64, lock bool) (map[int64]models.InventoryRecord, error) {
	out := make(map[int64]models.InventoryRecord, len(ingredientIDs))
	if len(ingredientIDs) == 0 {
		return out, nil
	}
	q := `
		SELECT inv.id, inv.branch_id, inv.ingredient_id, i.name, inv.quantity, inv.unit, inv.reorder_limit, inv.running_low
		FROM inventory inv
		JOIN ingredients i ON i.id = inv.ingredient_id
		WHERE inv.branch_id = $1 AND inv.ingredient_id = ANY($2)
		ORDER BY inv.ingredient_id`
	if lock {
		q += " FOR UPDATE OF inv"
	}
	rows, err := t.tx.QueryContext(ctx, q, branchID, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory of branch %d: %w", branchID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.InventoryRecord
		if err := rows.Scan(&r.ID, &r.BranchID, &r.IngredientID, &r.Name, &r.Quantity, &r.Unit, &r.Limit, &r.RunningLow); err != nil {
			return nil, err
		}
		out[r.IngredientID] = r
	}
	return out, rows.Err()
}

func (t *pgTx) SaveInventory(ctx context.Context, rec models.InventoryRecord) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory SET quantity = $2, running_low = $3, updated_at = now()
		WHERE id = $1
	`, rec.ID, rec.Quantity, rec.RunningLow)
	if err != nil {
		return fmt.Errorf("failed to update inventory %d: %w", rec.ID, err)
	}
	return expectOne(res, func() error {
		return apperr.NotFound("inventory", "inventory record %d not found", rec.ID)
	})
}

func (t *pgTx) Order(ctx context.Context, id int64, lock bool) (models.Order, error) {
	var (
		o                 models.Order
		userID, tableID   sql.NullInt64
		waiterID          sql.NullInt64
		completedAt       sql.NullTime
		orderType, status string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, branch_id, order_type, status, total_price, bonuses_used,
		       table_id, waiter_id, cashback_applied, created_at, updated_at, completed_at
		FROM orders WHERE id = $1`+forUpdate(lock), id).Scan(
		&o.ID, &userID, &o.BranchID, &orderType, &status, &o.TotalPrice, &o.BonusesUsed,
		&tableID, &waiterID, &o.CashbackApplied, &o.CreatedAt, &o.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, apperr.NotFound("order", "order %d not found", id)
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	o.Type = models.OrderType(orderType)
	o.Status = models.Status(status)
	o.UserID = nullableID(userID)
	o.TableID = nullableID(tableID)
	o.WaiterID = nullableID(waiterID)
	if completedAt.Valid {
		at := completedAt.Time
		o.CompletedAt = &at
	}

	items, err := t.orderItems(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (t *pgTx) orderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, order_id, menu_item_id, name, quantity, unit_price, recipe
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	var (
		items []models.OrderItem
		index = map[int64]int{}
	)
	for rows.Next() {
		var (
			it     models.OrderItem
			recipe []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.UnitPrice, &recipe); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(recipe, &it.Recipe); err != nil {
			return nil, fmt.Errorf("order item %d: bad recipe snapshot: %w", it.ID, err)
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	extraRows, err := t.tx.QueryContext(ctx, `
		SELECT order_item_id, extra_id, name, price, quantity
		FROM order_item_extras WHERE order_item_id = ANY($1)
		ORDER BY order_item_id, extra_id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get extras of order %d: %w", orderID, err)
	}
	defer extraRows.Close()
	for extraRows.Next() {
		var (
			itemID int64
			e      models.OrderItemExtra
		)
		if err := extraRows.Scan(&itemID, &e.ExtraID, &e.Name, &e.Price, &e.Quantity); err != nil {
			return nil, err
		}
		i := index[itemID]
		items[i].Extras = append(items[i].Extras, e)
	}
	return items, extraRows.Err()
}

func (t *pgTx) OrderIDByItem(ctx context.Context, orderItemID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT order_id FROM order_items WHERE id = $1`, orderItemID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("order_item", "order item %d not found", orderItemID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get order item %d: %w", orderItemID, err)
	}
	return id, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders
		    (user_id, branch_id, order_type, status, total_price, bonuses_used, table_id, waiter_id, cashback_applied, completed_at, created_at, updated_at)
		VALUES
		    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		o.UserID,
		o.BranchID,
		string(o.Type),
		string(o.Status),
		o.TotalPrice,
		o.BonusesUsed,
		o.TableID,
		o.WaiterID,
		o.CashbackApplied,
		o.CompletedAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if err := t.InsertOrderItem(ctx, &o.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o models.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET
		    status = $2, total_price = $3, bonuses_used = $4, table_id = $5,
		    cashback_applied = $6, completed_at = $7, updated_at = now()
		WHERE id = $1
	`, o.ID, string(o.Status), o.TotalPrice, o.BonusesUsed, o.TableID, o.CashbackApplied, o.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", o.ID, err)
	}
	return expectOne(res, func() error { return apperr.NotFound("order", "order %d not found", o.ID) })
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it *models.OrderItem) error {
	recipe, err := json.Marshal(it.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe snapshot: %w", err)
	}
	err = t.tx.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, recipe)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, it.OrderID, it.MenuItemID, it.Name, it.Quantity, it.UnitPrice, string(recipe)).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order item %s: %w", it.Name, err)
	}
	for _, e := range it.Extras {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_item_extras (order_item_id, extra_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, it.ID, e.ExtraID, e.Name, e.Price, e.Quantity); err != nil {
			return fmt.Errorf("failed to insert extra %s: %w", e.Name, err)
		}
	}
	return nil
}

func (t *pgTx) UpdateOrderItemQuantity(ctx context.Context, orderItemID, quantity int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE order_items SET quantity = $2 WHERE id = $1`, orderItemID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update order item %d: %w", orderItemID, err)
	}
	return expectOne(res, func() error { return apperr.NotFound("order_item", "order item %d not found", orderItemID) })
}

func (t *pgTx) DeleteOrderItem(ctx context.Context, orderItemID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, orderItemID)
	if err != nil {
		return fmt.Errorf("failed to delete order item %d: %w", orderItemID, err)
	}
	return expectOne(res, func() error { return apperr.NotFound("order_item", "order item %d not found", orderItemID) })
}

func (t *pgTx) Table(ctx context.Context, id int64, lock bool) (models.Table, error) {
	var tb models.Table
	err := t.tx.QueryRowContext(ctx, `SELECT id, branch_id, number, available FROM tables WHERE id = $1`+forUpdate(lock), id).
		Scan(&tb.ID, &tb.BranchID, &tb.Number, &tb.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Table{}, apperr.NotFound("table", "table %d not found", id)
	}
	if err != nil {
		return models.Table{}, fmt.Errorf("failed to get table %d: %w", id, err)
	}
	return tb, nil
}

func (t *pgTx) SetTableAvailable(ctx context.Context, id int64, available bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE tables SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("failed to update table %d: %w", id, err)
	}
	return expectOne(res, func() error { return apperr.NotFound("table", "table %d not found", id) })
}

func (t *pgTx) User(ctx context.Context, id int64, lock bool) (models.User, error) {
	var u models.User
	err := t.tx.QueryRowContext(ctx, `SELECT id, role, bonus FROM users WHERE id = $1`+forUpdate(lock), id).
		Scan(&u.ID, &u.Role, &u.Bonus)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user", "user %d not found", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

func (t *pgTx) SetUserBonus(ctx context.Context, id int64, bonus decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET bonus = $2 WHERE id = $1`, id, bonus)
	if err != nil {
		return fmt.Errorf("failed to update bonus of user %d: %w", id, err)
	}
	return expectOne(res, func() error { return apperr.NotFound("user", "user %d not found", id) })
}

func (t *pgTx) AppendStatusLog(ctx context.Context, e models.StatusLogEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, NOW())
	`, e.OrderID, string(e.Status), e.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}

func (t *pgTx) StatusLog(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT order_id, status, changed_by, changed_at
		FROM order_status_log WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status log of order %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []models.StatusLogEntry
	for rows.Next() {
		var (
			e      models.StatusLogEntry
			status string
		)
		if err := rows.Scan(&e.OrderID, &status, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		e.Status = models.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func expectOne(res sql.Result, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
