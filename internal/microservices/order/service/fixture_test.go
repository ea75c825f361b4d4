package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neocafe/internal/common/logger"
	dto "neocafe/internal/microservices/order/domain/dto"
	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

const (
	branchID      int64 = 1
	otherBranchID int64 = 2

	coffeeID int64 = 1
	milkID   int64 = 2

	espressoID   int64 = 10
	latteID      int64 = 11
	seasonalID   int64 = 12
	branchOnlyID int64 = 13
	syrupID      int64 = 30

	tableID      int64 = 5
	otherTableID int64 = 6

	clientID int64 = 100
	waiterID int64 = 101
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) ofType(typ string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store *repository.MemoryStore
	pub   *recordingPublisher
	svc   *OrderService
}

// newFixture seeds branch 1 with coffeeGrams of coffee and a litre of milk.
// Espresso takes 50g coffee; a latte takes 50g coffee and 200ml milk.
func newFixture(t *testing.T, coffeeGrams int64) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	other := otherBranchID

	store.PutInventory(models.InventoryRecord{ID: 1, BranchID: branchID, IngredientID: coffeeID, Name: "coffee", Quantity: coffeeGrams, Unit: "g", Limit: 20})
	store.PutInventory(models.InventoryRecord{ID: 2, BranchID: branchID, IngredientID: milkID, Name: "milk", Quantity: 1000, Unit: "ml", Limit: 100})

	coffee := models.Ingredient{IngredientID: coffeeID, Name: "coffee", Quantity: 50, Unit: "g"}
	milk := models.Ingredient{IngredientID: milkID, Name: "milk", Quantity: 200, Unit: "ml"}
	store.PutMenuItem(models.MenuItem{ID: espressoID, Name: "Espresso", Price: dec("150.00"), Available: true, Recipe: []models.Ingredient{coffee}})
	store.PutMenuItem(models.MenuItem{ID: latteID, Name: "Latte", Price: dec("250.00"), Available: true, Recipe: []models.Ingredient{coffee, milk}})
	store.PutMenuItem(models.MenuItem{ID: seasonalID, Name: "Pumpkin latte", Price: dec("300.00"), Available: false, Recipe: []models.Ingredient{coffee}})
	store.PutMenuItem(models.MenuItem{ID: branchOnlyID, Name: "Raf", Price: dec("280.00"), Available: true, BranchID: &other, Recipe: []models.Ingredient{coffee}})
	store.PutExtra(models.Extra{ID: syrupID, Name: "Vanilla syrup", Price: dec("40.00")})

	store.PutTable(models.Table{ID: tableID, BranchID: branchID, Number: 5, Available: true})
	store.PutTable(models.Table{ID: otherTableID, BranchID: otherBranchID, Number: 1, Available: true})

	store.PutUser(models.User{ID: clientID, Role: models.RoleClient, Bonus: dec("10")})
	store.PutUser(models.User{ID: waiterID, Role: "waiter", Bonus: decimal.Zero})

	pub := &recordingPublisher{}
	return &fixture{
		store: store,
		pub:   pub,
		svc:   NewOrderService(store, pub, logger.Nop(), dec("0.05")),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func (f *fixture) coffee(t *testing.T) int64 {
	t.Helper()
	rec, ok := f.store.InventoryQuantity(branchID, coffeeID)
	require.True(t, ok)
	return rec.Quantity
}

func (f *fixture) milk(t *testing.T) int64 {
	t.Helper()
	rec, ok := f.store.InventoryQuantity(branchID, milkID)
	require.True(t, ok)
	return rec.Quantity
}

func (f *fixture) table(t *testing.T, id int64) models.Table {
	t.Helper()
	var tb models.Table
	require.NoError(t, f.store.ReadOnly(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		tb, err = tx.Table(ctx, id, false)
		return err
	}))
	return tb
}

func (f *fixture) bonus(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	var u models.User
	require.NoError(t, f.store.ReadOnly(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = tx.User(ctx, userID, false)
		return err
	}))
	return u.Bonus
}

func (f *fixture) takeaway(t *testing.T, items ...dto.OrderItemInput) dto.OrderResponse {
	t.Helper()
	resp, err := f.svc.CreateOrder(context.Background(), dto.CreateOrderRequest{
		BranchID:  branchID,
		OrderType: string(models.OrderTypeTakeaway),
		Items:     items,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) move(t *testing.T, orderID int64, statuses ...models.Status) dto.OrderResponse {
	t.Helper()
	var resp dto.OrderResponse
	for _, st := range statuses {
		var err error
		resp, err = f.svc.UpdateStatus(context.Background(), dto.UpdateStatusRequest{OrderID: orderID, Status: string(st), ChangedBy: "barista"})
		require.NoError(t, err, "moving order %d to %s", orderID, st)
	}
	return resp
}

func item(menuID, qty int64) dto.OrderItemInput {
	return dto.OrderItemInput{MenuID: menuID, Quantity: qty}
}

var errBroker = errors.New("broker unavailable")
