package port

import (
	"context"
	"time"

	"github.com/rl1809/order-placement/internal/core/domain"
)

type DatabaseRepository interface {
	// Begin opens a transaction on a connection owned by the caller until Close.
	// Failure to obtain the connection is reported as domain.ErrConnectionFailure.
	Begin(ctx context.Context) (OrderTx, error)

	// GetProduct retrieves a product outside any transaction, nil if it does not exist
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// ListStock returns every product ordered by ID
	ListStock(ctx context.Context) ([]domain.Product, error)

	Ping(ctx context.Context) error
}

// OrderTx is one order-creation attempt. It must not be shared between attempts.
type OrderTx interface {
	// AllocateOrder inserts the order row and returns the identifier and timestamp storage assigned
	AllocateOrder(ctx context.Context) (int64, time.Time, error)

	// GetProduct reads a product inside the transaction, nil if it does not exist
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// DeductStock decrements stock only if it stays non-negative, returns false if no row matched
	DeductStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// InsertItems writes all items as one batch and returns how many rows were inserted
	InsertItems(ctx context.Context, items []domain.OrderItem) (int, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close releases statements and the connection. Safe to call after Commit or Rollback.
	Close() error
}
