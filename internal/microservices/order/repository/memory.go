package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
)

var errReadOnly = errors.New("write attempted in a read-only unit of work")

type invKey struct{ branchID, ingredientID int64 }

type memData struct {
	seq       int64
	menu      map[int64]models.MenuItem
	extras    map[int64]models.Extra
	inventory map[invKey]models.InventoryRecord
	tables    map[int64]models.Table
	users     map[int64]models.User
	orders    map[int64]models.Order
	items     map[int64]models.OrderItem
	log       []models.StatusLogEntry
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:       d.seq,
		menu:      make(map[int64]models.MenuItem, len(d.menu)),
		extras:    make(map[int64]models.Extra, len(d.extras)),
		inventory: make(map[invKey]models.InventoryRecord, len(d.inventory)),
		tables:    make(map[int64]models.Table, len(d.tables)),
		users:     make(map[int64]models.User, len(d.users)),
		orders:    make(map[int64]models.Order, len(d.orders)),
		items:     make(map[int64]models.OrderItem, len(d.items)),
		log:       append([]models.StatusLogEntry(nil), d.log...),
	}
	for k, v := range d.menu {
		c.menu[k] = v
	}
	for k, v := range d.extras {
		c.extras[k] = v
	}
	for k, v := range d.inventory {
		c.inventory[k] = v
	}
	for k, v := range d.tables {
		c.tables[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	return c
}

// MemoryStore keeps everything in process. Writers are serialized behind a
// single lock and work on a private copy that replaces the shared state only
// on success, so a failed unit leaves nothing behind.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			menu:      map[int64]models.MenuItem{},
			extras:    map[int64]models.Extra{},
			inventory: map[invKey]models.InventoryRecord{},
			tables:    map[int64]models.Table{},
			users:     map[int64]models.User{},
			orders:    map[int64]models.Order{},
			items:     map[int64]models.OrderItem{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &memTx{d: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) ReadOnly(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &memTx{d: s.data, readOnly: true, now: s.now})
}

// Seeding helpers.

func (s *MemoryStore) PutMenuItem(m models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.menu[m.ID] = m
}

func (s *MemoryStore) PutExtra(e models.Extra) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.extras[e.ID] = e
}

func (s *MemoryStore) PutInventory(r models.InventoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.RunningLow = r.Quantity <= r.Limit
	s.data.inventory[invKey{r.BranchID, r.IngredientID}] = r
}

func (s *MemoryStore) PutTable(t models.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tables[t.ID] = t
}

func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

// InventoryQuantity reads a stock level outside any unit of work.
func (s *MemoryStore) InventoryQuantity(branchID, ingredientID int64) (models.InventoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data.inventory[invKey{branchID, ingredientID}]
	return r, ok
}

func (s *MemoryStore) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.orders)
}

type memTx struct {
	d        *memData
	readOnly bool
	now      func() time.Time
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) nextID() int64 {
	t.d.seq++
	return t.d.seq
}

func (t *memTx) MenuItem(_ context.Context, id int64) (models.MenuItem, error) {
	m, ok := t.d.menu[id]
	if !ok {
		return models.MenuItem{}, apperr.NotFound("menu_item", "menu item %d not found", id)
	}
	return m, nil
}

func (t *memTx) Extra(_ context.Context, id int64) (models.Extra, error) {
	e, ok := t.d.extras[id]
	if !ok {
		return models.Extra{}, apperr.NotFound("extra", "extra %d not found", id)
	}
	return e, nil
}

func (t *memTx) Inventory(_ context.Context, branchID int64, ingredientIDs []int64, lock bool) (map[int64]models.InventoryRecord, error) {
	if lock {
		if err := t.writable(); err != nil {
			return nil, err
		}
	}
	out := make(map[int64]models.InventoryRecord, len(ingredientIDs))
	for _, id := range ingredientIDs {
		if r, ok := t.d.inventory[invKey{branchID, id}]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (t *memTx) SaveInventory(_ context.Context, rec models.InventoryRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := invKey{rec.BranchID, rec.IngredientID}
	if _, ok := t.d.inventory[key]; !ok {
		return apperr.NotFound("inventory", "inventory record for ingredient %d at branch %d not found", rec.IngredientID, rec.BranchID)
	}
	if rec.Quantity < 0 {
		return apperr.InsufficientStock("inventory", []apperr.Shortage{{IngredientID: rec.IngredientID, Ingredient: rec.Name, Available: rec.Quantity}})
	}
	t.d.inventory[key] = rec
	return nil
}

func (t *memTx) Order(_ context.Context, id int64, _ bool) (models.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return models.Order{}, apperr.NotFound("order", "order %d not found", id)
	}
	o.Items = nil
	for _, it := range t.d.items {
		if it.OrderID == id {
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	return o, nil
}

func (t *memTx) OrderIDByItem(_ context.Context, orderItemID int64) (int64, error) {
	it, ok := t.d.items[orderItemID]
	if !ok {
		return 0, apperr.NotFound("order_item", "order item %d not found", orderItemID)
	}
	return it.OrderID, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *models.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	o.ID = t.nextID()
	o.CreatedAt = t.now()
	o.UpdatedAt = o.CreatedAt
	header := *o
	header.Items = nil
	t.d.orders[o.ID] = header
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		if err := t.InsertOrderItem(ctx, &o.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, o models.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.orders[o.ID]; !ok {
		return apperr.NotFound("order", "order %d not found", o.ID)
	}
	o.Items = nil
	o.UpdatedAt = t.now()
	t.d.orders[o.ID] = o
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, it *models.OrderItem) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.orders[it.OrderID]; !ok {
		return apperr.NotFound("order", "order %d not found", it.OrderID)
	}
	it.ID = t.nextID()
	t.d.items[it.ID] = *it
	return nil
}

func (t *memTx) UpdateOrderItemQuantity(_ context.Context, orderItemID, quantity int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	it, ok := t.d.items[orderItemID]
	if !ok {
		return apperr.NotFound("order_item", "order item %d not found", orderItemID)
	}
	it.Quantity = quantity
	t.d.items[orderItemID] = it
	return nil
}

func (t *memTx) DeleteOrderItem(_ context.Context, orderItemID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.items[orderItemID]; !ok {
		return apperr.NotFound("order_item", "order item %d not found", orderItemID)
	}
	delete(t.d.items, orderItemID)
	return nil
}

func (t *memTx) Table(_ context.Context, id int64, _ bool) (models.Table, error) {
	tb, ok := t.d.tables[id]
	if !ok {
		return models.Table{}, apperr.NotFound("table", "table %d not found", id)
	}
	return tb, nil
}

func (t *memTx) SetTableAvailable(_ context.Context, id int64, available bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	tb, ok := t.d.tables[id]
	if !ok {
		return apperr.NotFound("table", "table %d not found", id)
	}
	tb.Available = available
	t.d.tables[id] = tb
	return nil
}

func (t *memTx) User(_ context.Context, id int64, _ bool) (models.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user", "user %d not found", id)
	}
	return u, nil
}

func (t *memTx) SetUserBonus(_ context.Context, id int64, bonus decimal.Decimal) error {
	if err := t.writable(); err != nil {
		return err
	}
	u, ok := t.d.users[id]
	if !ok {
		return apperr.NotFound("user", "user %d not found", id)
	}
	if bonus.IsNegative() {
		return apperr.InsufficientBonus("user", "bonus balance of user %d cannot go negative", id)
	}
	u.Bonus = bonus
	t.d.users[id] = u
	return nil
}

func (t *memTx) AppendStatusLog(_ context.Context, entry models.StatusLogEntry) error {
	if err := t.writable(); err != nil {
		return err
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = t.now()
	}
	t.d.log = append(t.d.log, entry)
	return nil
}

func (t *memTx) StatusLog(_ context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	var out []models.StatusLogEntry
	for _, e := range t.d.log {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}
