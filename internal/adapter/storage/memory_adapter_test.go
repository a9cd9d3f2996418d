package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-placement/internal/clock"
	"github.com/rl1809/order-placement/internal/core/domain"
)

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newMemory() *MemoryAdapter {
	return NewMemoryAdapter(clock.NewFixed(fixedNow), demoProducts...)
}

func TestMemory_CommitPublishes(t *testing.T) {
	m := newMemory()
	ctx := context.Background()

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Close()

	id, createdAt, err := tx.AllocateOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, fixedNow, createdAt)

	ok, err := tx.DeductStock(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)

	// Not visible before commit
	p, _ := m.GetProduct(ctx, 1)
	assert.Equal(t, 10, p.Stock)

	n, err := tx.InsertItems(ctx, []domain.OrderItem{{OrderID: id, ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Commit(ctx))

	p, _ = m.GetProduct(ctx, 1)
	assert.Equal(t, 8, p.Stock)
	assert.Equal(t, 1, m.OrderCount())
	assert.Len(t, m.OrderItems(id), 1)
}

func TestMemory_RollbackDiscards(t *testing.T) {
	m := newMemory()
	ctx := context.Background()

	tx, err := m.Begin(ctx)
	require.NoError(t, err)

	id, _, err := tx.AllocateOrder(ctx)
	require.NoError(t, err)
	_, err = tx.DeductStock(ctx, 4, 50)
	require.NoError(t, err)
	_, err = tx.InsertItems(ctx, []domain.OrderItem{{OrderID: id, ProductID: 4, Quantity: 50}})
	require.NoError(t, err)

	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Close())

	p, _ := m.GetProduct(ctx, 4)
	assert.Equal(t, 50, p.Stock)
	assert.Equal(t, 0, m.OrderCount())
	assert.Empty(t, m.OrderItems(id))
}

func TestMemory_DeductStockIsConditional(t *testing.T) {
	m := newMemory()
	ctx := context.Background()

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Close()

	ok, err := tx.DeductStock(ctx, 5, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tx.DeductStock(ctx, 404, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_BeginWaitsForOpenTransaction(t *testing.T) {
	m := newMemory()

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Begin(ctx)
	require.ErrorIs(t, err, domain.ErrConnectionFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())

	tx2, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Close())
}

func TestMemory_ListStockOrdered(t *testing.T) {
	m := newMemory()
	products, err := m.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, products, len(demoProducts))
	for i := 1; i < len(products); i++ {
		assert.Less(t, products[i-1].ID, products[i].ID)
	}
	assert.Equal(t, fixedNow, products[0].UpdatedAt)
}

func TestMemory_Ping(t *testing.T) {
	m := newMemory()
	require.NoError(t, m.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Ping(ctx), context.Canceled)
}
