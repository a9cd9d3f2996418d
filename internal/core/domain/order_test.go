package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Totals(t *testing.T) {
	order := NewOrder()
	order.AddItem(1, 2)
	order.AddItem(2, 5)
	order.AddItem(4, 10)

	assert.Equal(t, 3, order.TotalItems())
	assert.Equal(t, 17, order.TotalQuantity())
	assert.Zero(t, order.ID)
	assert.NoError(t, order.Validate())
}

func TestOrder_Validate(t *testing.T) {
	assert.ErrorIs(t, NewOrder().Validate(), ErrEmptyOrder)

	order := NewOrder()
	order.AddItem(1, 1)
	order.AddItem(2, 0)
	assert.ErrorIs(t, order.Validate(), ErrInvalidQuantity)

	order = NewOrder()
	order.AddItem(1, -3)
	assert.ErrorIs(t, order.Validate(), ErrInvalidQuantity)
}

func TestOrder_AssignID(t *testing.T) {
	order := NewOrder()
	order.AddItem(1, 2)
	order.AddItem(2, 5)

	createdAt := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	order.AssignID(42, createdAt)

	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, createdAt, order.CreatedAt)
	for _, item := range order.Items {
		assert.Equal(t, int64(42), item.OrderID)
	}
}

func TestProduct_CanFulfil(t *testing.T) {
	p := Product{ID: 5, Stock: 8}
	assert.True(t, p.CanFulfil(8))
	assert.False(t, p.CanFulfil(9))
}

func TestErrors_MatchSentinels(t *testing.T) {
	cause := &InsufficientStockError{ProductID: 5, Available: 8, Requested: 20}
	rollback := &RollbackError{Cause: cause, Err: errors.New("connection reset")}

	assert.ErrorIs(t, &ProductNotFoundError{ProductID: 9}, ErrProductNotFound)
	assert.ErrorIs(t, cause, ErrInsufficientStock)
	assert.ErrorIs(t, &DeductionError{ProductID: 1}, ErrDeductionFailure)
	assert.ErrorIs(t, &InsertError{Expected: 3, Inserted: 2}, ErrInsertFailure)
	assert.ErrorIs(t, rollback, ErrRollbackFailure)
	assert.NotErrorIs(t, rollback, ErrInsufficientStock)

	assert.Equal(t, "insufficient stock for product 5: available 8, requested 20", cause.Error())
}
