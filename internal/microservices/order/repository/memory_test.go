package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neocafe/internal/common/apperr"
	"neocafe/internal/microservices/order/domain/models"
)

func seeded() *MemoryStore {
	s := NewMemoryStore()
	s.PutInventory(models.InventoryRecord{ID: 1, BranchID: 1, IngredientID: 7, Name: "coffee", Quantity: 100, Limit: 10})
	s.PutUser(models.User{ID: 3, Role: models.RoleClient, Bonus: decimal.NewFromInt(10)})
	s.PutTable(models.Table{ID: 4, BranchID: 1, Number: 4, Available: true})
	return s
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		recs, err := tx.Inventory(ctx, 1, []int64{7}, true)
		require.NoError(t, err)
		rec := recs[7]
		rec.Quantity = 40
		require.NoError(t, tx.SaveInventory(ctx, rec))
		require.NoError(t, tx.SetTableAvailable(ctx, 4, false))
		o := &models.Order{BranchID: 1, Type: models.OrderTypeTakeaway, Status: models.StatusNew}
		require.NoError(t, tx.InsertOrder(ctx, o))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	rec, _ := s.InventoryQuantity(1, 7)
	assert.Equal(t, int64(100), rec.Quantity)
	assert.Equal(t, 0, s.OrderCount())
	require.NoError(t, s.ReadOnly(context.Background(), func(ctx context.Context, tx Tx) error {
		tb, err := tx.Table(ctx, 4, false)
		assert.True(t, tb.Available)
		return err
	}))
}

func TestWithinTxCommits(t *testing.T) {
	s := seeded()

	var orderID, itemID int64
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		o := &models.Order{BranchID: 1, Type: models.OrderTypeTakeaway, Status: models.StatusNew, Items: []models.OrderItem{
			{MenuItemID: 9, Name: "Espresso", Quantity: 2, UnitPrice: decimal.NewFromInt(150)},
		}}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		orderID, itemID = o.ID, o.Items[0].ID
		return tx.AppendStatusLog(ctx, models.StatusLogEntry{OrderID: o.ID, Status: o.Status, ChangedBy: "test"})
	}))

	require.NoError(t, s.ReadOnly(context.Background(), func(ctx context.Context, tx Tx) error {
		o, err := tx.Order(ctx, orderID, false)
		require.NoError(t, err)
		require.Len(t, o.Items, 1)
		assert.Equal(t, orderID, o.Items[0].OrderID)
		assert.False(t, o.CreatedAt.IsZero())

		got, err := tx.OrderIDByItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, orderID, got)

		log, err := tx.StatusLog(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.False(t, log[0].ChangedAt.IsZero())
		return nil
	}))
}

func TestReadOnlyRefusesWrites(t *testing.T) {
	s := seeded()

	err := s.ReadOnly(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.Inventory(ctx, 1, []int64{7}, true)
		return err
	})
	assert.ErrorIs(t, err, errReadOnly)

	err = s.ReadOnly(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetUserBonus(ctx, 3, decimal.Zero)
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestStoreGuardsNonNegativeBalances(t *testing.T) {
	s := seeded()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SaveInventory(ctx, models.InventoryRecord{BranchID: 1, IngredientID: 7, Name: "coffee", Quantity: -1})
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetUserBonus(ctx, 3, decimal.NewFromInt(-5))
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBonus)
}

func TestMissingRowsAreNotFound(t *testing.T) {
	s := seeded()

	err := s.ReadOnly(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, lookup := range []func() error{
			func() error { _, err := tx.MenuItem(ctx, 1); return err },
			func() error { _, err := tx.Extra(ctx, 1); return err },
			func() error { _, err := tx.Order(ctx, 1, false); return err },
			func() error { _, err := tx.OrderIDByItem(ctx, 1); return err },
			func() error { _, err := tx.Table(ctx, 99, false); return err },
			func() error { _, err := tx.User(ctx, 99, false); return err },
		} {
			assert.ErrorIs(t, lookup(), apperr.ErrNotFound)
		}
		recs, err := tx.Inventory(ctx, 2, []int64{7}, false)
		assert.Empty(t, recs)
		return err
	})
	require.NoError(t, err)
}
