package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neocafe/internal/common/apperr"
	"neocafe/internal/common/logger"
	dto "neocafe/internal/microservices/order/domain/dto"
	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

func TestRequirementsMergeRepeatedIngredients(t *testing.T) {
	recipe := []models.Ingredient{
		{IngredientID: milkID, Name: "milk", Quantity: 100},
		{IngredientID: coffeeID, Name: "coffee", Quantity: 18},
		{IngredientID: milkID, Name: "milk", Quantity: 50},
	}

	got := RecipeResolver{}.Requirements(recipe, 3)

	assert.Equal(t, []Requirement{
		{IngredientID: coffeeID, Name: "coffee", Quantity: 54},
		{IngredientID: milkID, Name: "milk", Quantity: 450},
	}, got)
}

func TestConsumeIsAllOrNothing(t *testing.T) {
	f := newFixture(t, 500)
	var ledger InventoryLedger
	latte, _ := menuItem(t, f, latteID)

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := ledger.Consume(ctx, tx, branchID, latteID, latte.Recipe, 6)
		return err
	})

	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	shortages := apperr.ShortagesOf(err)
	require.Len(t, shortages, 1)
	assert.Equal(t, milkID, shortages[0].IngredientID)
	assert.Equal(t, int64(500), f.coffee(t), "coffee was sufficient but must not be touched")
}

func TestConsumeThenRestockRoundTrips(t *testing.T) {
	f := newFixture(t, 500)
	var ledger InventoryLedger
	latte, _ := menuItem(t, f, latteID)

	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := ledger.Consume(ctx, tx, branchID, latteID, latte.Recipe, 2); err != nil {
			return err
		}
		return ledger.Restock(ctx, tx, branchID, latte.Recipe, 2)
	}))

	assert.Equal(t, int64(500), f.coffee(t))
	assert.Equal(t, int64(1000), f.milk(t))
}

func TestRestockMissingRecordIsNotFound(t *testing.T) {
	f := newFixture(t, 500)
	var ledger InventoryLedger
	sugar := []models.Ingredient{{IngredientID: 99, Name: "sugar", Quantity: 5}}

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return ledger.Restock(ctx, tx, branchID, sugar, 1)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCanProduceMissingRecordFailsClosed(t *testing.T) {
	f := newFixture(t, 500)
	var ledger InventoryLedger
	item := models.MenuItem{ID: 50, Available: true, Recipe: []models.Ingredient{{IngredientID: 99, Name: "sugar", Quantity: 5}}}

	require.NoError(t, f.store.ReadOnly(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		ok, shortages, err := ledger.CanProduce(ctx, tx, item, branchID, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		require.Len(t, shortages, 1)
		assert.Equal(t, int64(0), shortages[0].Available)
		return nil
	}))
}

func TestCanProduceNeverWrites(t *testing.T) {
	f := newFixture(t, 500)
	var ledger InventoryLedger
	espresso, _ := menuItem(t, f, espressoID)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.ReadOnly(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			ok, _, err := ledger.CanProduce(ctx, tx, espresso, branchID, 10)
			assert.True(t, ok)
			return err
		}))
	}
	assert.Equal(t, int64(500), f.coffee(t))
}

func TestApplyCashbackIsIdempotent(t *testing.T) {
	f := newFixture(t, 500)
	ledger := BonusLedger{CashbackRate: dec("0.05")}
	uid := clientID
	o := models.Order{ID: 1, UserID: &uid, Status: models.StatusCompleted, TotalPrice: dec("333.33")}

	var first, second string
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		c1, err := ledger.ApplyCashback(ctx, tx, &o)
		if err != nil {
			return err
		}
		c2, err := ledger.ApplyCashback(ctx, tx, &o)
		first, second = c1.String(), c2.String()
		return err
	}))

	assert.Equal(t, "16.67", first)
	assert.Equal(t, "0", second)
	assert.True(t, o.CashbackApplied)
	assertDec(t, "26.67", f.bonus(t, clientID))
}

func TestApplyCashbackRequiresCompletedOrder(t *testing.T) {
	f := newFixture(t, 500)
	ledger := BonusLedger{CashbackRate: dec("0.05")}
	uid := clientID
	o := models.Order{ID: 1, UserID: &uid, Status: models.StatusDone, TotalPrice: dec("100")}

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := ledger.ApplyCashback(ctx, tx, &o)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.False(t, o.CashbackApplied)
	assertDec(t, "10", f.bonus(t, clientID))
}

// lockingTx records the ingredient ids of every locking inventory read.
type lockingTx struct {
	repository.Tx
	locked *[][]int64
}

func (t lockingTx) Inventory(ctx context.Context, branchID int64, ids []int64, lock bool) (map[int64]models.InventoryRecord, error) {
	if lock {
		*t.locked = append(*t.locked, append([]int64(nil), ids...))
	}
	return t.Tx.Inventory(ctx, branchID, ids, lock)
}

type lockingStore struct {
	*repository.MemoryStore
	locked [][]int64
}

func (s *lockingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.MemoryStore.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, lockingTx{Tx: tx, locked: &s.locked})
	})
}

func TestLockTakesSortedUnionOnce(t *testing.T) {
	f := newFixture(t, 500)
	store := &lockingStore{MemoryStore: f.store}
	var ledger InventoryLedger
	latte, _ := menuItem(t, f, latteID)
	espresso, _ := menuItem(t, f, espressoID)

	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return ledger.Lock(ctx, tx, branchID, latte.Recipe, nil, espresso.Recipe)
	}))
	assert.Equal(t, [][]int64{{coffeeID, milkID}}, store.locked)

	store.locked = nil
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return ledger.Lock(ctx, tx, branchID)
	}))
	assert.Empty(t, store.locked)
}

func TestMultiLineWritesLockIngredientsInAscendingOrder(t *testing.T) {
	const steamedMilkID int64 = 14
	f := newFixture(t, 500)
	f.store.PutMenuItem(models.MenuItem{ID: steamedMilkID, Name: "Steamed milk", Price: dec("90.00"), Available: true, Recipe: []models.Ingredient{
		{IngredientID: milkID, Name: "milk", Quantity: 200, Unit: "ml"},
	}})
	store := &lockingStore{MemoryStore: f.store}
	svc := NewOrderService(store, nil, logger.Nop(), dec("0.05"))
	ctx := context.Background()

	// milk is requested before coffee, the first lock still covers both in id order
	o, err := svc.CreateOrder(ctx, dto.CreateOrderRequest{
		BranchID:  branchID,
		OrderType: "takeaway",
		Items:     []dto.OrderItemInput{item(steamedMilkID, 1), item(espressoID, 1)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, store.locked)
	assert.Equal(t, []int64{coffeeID, milkID}, store.locked[0])

	store.locked = nil
	_, err = svc.Reorder(ctx, o.ID)
	require.NoError(t, err)
	require.NotEmpty(t, store.locked)
	assert.Equal(t, []int64{coffeeID, milkID}, store.locked[0])

	store.locked = nil
	_, err = svc.Cancel(ctx, o.ID, "")
	require.NoError(t, err)
	require.NotEmpty(t, store.locked)
	assert.Equal(t, []int64{coffeeID, milkID}, store.locked[0])

	assert.Equal(t, int64(450), f.coffee(t), "the reorder still holds one espresso")
	assert.Equal(t, int64(800), f.milk(t))
}

func menuItem(t *testing.T, f *fixture, id int64) (models.MenuItem, error) {
	t.Helper()
	var m models.MenuItem
	err := f.store.ReadOnly(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		m, err = RecipeResolver{}.Resolve(ctx, tx, id)
		return err
	})
	require.NoError(t, err)
	return m, err
}
