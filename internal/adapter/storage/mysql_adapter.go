package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	myAllocateOrder = `INSERT INTO orders (created_at) VALUES (CURRENT_TIMESTAMP(6))`
	mySelectOrder   = `SELECT created_at FROM orders WHERE id = ?`
	mySelectProduct = `SELECT id, name, stock, created_at, updated_at FROM products WHERE id = ?`
	myDeductStock   = `
		UPDATE products
		SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`
	myInsertItem = `INSERT INTO order_items (order_id, product_id, qty) VALUES (?, ?, ?)`
	myListStock  = `SELECT id, name, stock, created_at, updated_at FROM products ORDER BY id`

	mysqlForeignKeyViolation = 1452
)

// MySQLAdapter needs a DSN with parseTime=true.
type MySQLAdapter struct {
	db       *sql.DB
	lockRows bool
	level    sql.IsolationLevel
}

func NewMySQLAdapter(db *sql.DB, lockRows bool, level sql.IsolationLevel) *MySQLAdapter {
	return &MySQLAdapter{db: db, lockRows: lockRows, level: level}
}

// SQLIsolationLevel maps an isolation level name to database/sql. Unknown
// names fall back to the driver default.
func SQLIsolationLevel(name string) sql.IsolationLevel {
	switch strings.ToLower(name) {
	case "read committed":
		return sql.LevelReadCommitted
	case "repeatable read":
		return sql.LevelRepeatableRead
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

func (m *MySQLAdapter) Begin(ctx context.Context) (port.OrderTx, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrConnectionFailure, err)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: m.level})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: begin tx: %w", domain.ErrConnectionFailure, err)
	}

	return &mysqlTx{conn: conn, tx: tx, lockRows: m.lockRows}, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return scanSQLProduct(m.db.QueryRowContext(ctx, mySelectProduct, productID))
}

func (m *MySQLAdapter) ListStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, myListStock)
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

// mysqlTx prepares each statement at most once per attempt and closes all of
// them together with the connection in Close.
type mysqlTx struct {
	conn     *sql.Conn
	tx       *sql.Tx
	lockRows bool
	closed   bool

	checkStmt  *sql.Stmt
	deductStmt *sql.Stmt
	insertStmt *sql.Stmt
}

func (t *mysqlTx) AllocateOrder(ctx context.Context) (int64, time.Time, error) {
	res, err := t.tx.ExecContext(ctx, myAllocateOrder)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read order id: %w", err)
	}

	var createdAt time.Time
	if err := t.tx.QueryRowContext(ctx, mySelectOrder, id).Scan(&createdAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("read order timestamp: %w", err)
	}
	return id, createdAt, nil
}

func (t *mysqlTx) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := mySelectProduct
	if t.lockRows {
		query += " FOR UPDATE"
	}
	stmt, err := t.prepare(ctx, &t.checkStmt, query)
	if err != nil {
		return nil, err
	}
	return scanSQLProduct(stmt.QueryRowContext(ctx, productID))
}

func (t *mysqlTx) DeductStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	stmt, err := t.prepare(ctx, &t.deductStmt, myDeductStock)
	if err != nil {
		return false, err
	}

	res, err := stmt.ExecContext(ctx, quantity, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *mysqlTx) InsertItems(ctx context.Context, items []domain.OrderItem) (int, error) {
	stmt, err := t.prepare(ctx, &t.insertStmt, myInsertItem)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx, item.OrderID, item.ProductID, item.Quantity)
		if err != nil {
			if isMySQLForeignKeyViolation(err) {
				return inserted, fmt.Errorf("insert order item: %w: %w", domain.ErrProductNotFound, err)
			}
			return inserted, fmt.Errorf("insert order item: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(rows)
	}
	return inserted, nil
}

func (t *mysqlTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *mysqlTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *mysqlTx) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, stmt := range []*sql.Stmt{t.checkStmt, t.deductStmt, t.insertStmt} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	errs = append(errs, t.Rollback(context.Background()))
	errs = append(errs, t.conn.Close())
	return errors.Join(errs...)
}

func (t *mysqlTx) prepare(ctx context.Context, stmt **sql.Stmt, query string) (*sql.Stmt, error) {
	if *stmt != nil {
		return *stmt, nil
	}
	prepared, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	*stmt = prepared
	return prepared, nil
}

func scanSQLProduct(row *sql.Row) (*domain.Product, error) {
	var prod domain.Product
	err := row.Scan(&prod.ID, &prod.Name, &prod.Stock, &prod.CreatedAt, &prod.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &prod, nil
}

func isMySQLForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlForeignKeyViolation
}
