package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	pgAllocateOrder = `INSERT INTO orders (created_at) VALUES (CURRENT_TIMESTAMP) RETURNING id, created_at`
	pgSelectProduct = `SELECT id, name, stock, created_at, updated_at FROM products WHERE id = $1`
	pgDeductStock   = `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`
	pgInsertItem = `INSERT INTO order_items (order_id, product_id, qty) VALUES ($1, $2, $3)`
	pgListStock  = `SELECT id, name, stock, created_at, updated_at FROM products ORDER BY id`
)

type PostgresAdapter struct {
	pool     *pgxpool.Pool
	lockRows bool
	isoLevel pgx.TxIsoLevel
}

type PostgresOption func(*PostgresAdapter)

// WithRowLocks makes the verification read SELECT ... FOR UPDATE so concurrent
// attempts on the same product wait for each other.
func WithRowLocks(enabled bool) PostgresOption {
	return func(p *PostgresAdapter) {
		p.lockRows = enabled
	}
}

func WithIsolationLevel(level string) PostgresOption {
	return func(p *PostgresAdapter) {
		p.isoLevel = pgx.TxIsoLevel(level)
	}
}

func NewPostgresAdapter(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresAdapter {
	p := &PostgresAdapter{pool: pool, lockRows: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PostgresAdapter) Begin(ctx context.Context) (port.OrderTx, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrConnectionFailure, err)
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: p.isoLevel})
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: begin tx: %w", domain.ErrConnectionFailure, err)
	}

	return &postgresTx{conn: conn, tx: tx, lockRows: p.lockRows}, nil
}

func (p *PostgresAdapter) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return scanProduct(p.pool.QueryRow(ctx, pgSelectProduct, productID))
}

func (p *PostgresAdapter) ListStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := p.pool.Query(ctx, pgListStock)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var prod domain.Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Stock, &prod.CreatedAt, &prod.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

type postgresTx struct {
	conn     *pgxpool.Conn
	tx       pgx.Tx
	lockRows bool
	released bool
}

func (t *postgresTx) AllocateOrder(ctx context.Context) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	if err := t.tx.QueryRow(ctx, pgAllocateOrder).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("insert order: %w", err)
	}
	return id, createdAt, nil
}

func (t *postgresTx) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := pgSelectProduct
	if t.lockRows {
		query += " FOR UPDATE"
	}
	return scanProduct(t.tx.QueryRow(ctx, query, productID))
}

func (t *postgresTx) DeductStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	tag, err := t.tx.Exec(ctx, pgDeductStock, quantity, productID)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *postgresTx) InsertItems(ctx context.Context, items []domain.OrderItem) (int, error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(pgInsertItem, item.OrderID, item.ProductID, item.Quantity)
	}

	results := t.tx.SendBatch(ctx, batch)
	inserted := 0
	for range items {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			if isForeignKeyViolation(err) {
				return inserted, fmt.Errorf("insert order item: %w: %w", domain.ErrProductNotFound, err)
			}
			return inserted, fmt.Errorf("insert order item: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("close batch: %w", err)
	}
	return inserted, nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *postgresTx) Close() error {
	if t.released {
		return nil
	}
	t.released = true
	err := t.Rollback(context.Background())
	t.conn.Release()
	return err
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var prod domain.Product
	err := row.Scan(&prod.ID, &prod.Name, &prod.Stock, &prod.CreatedAt, &prod.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &prod, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
