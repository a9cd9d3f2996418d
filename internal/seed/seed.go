// Package seed holds the demo product catalogue and loads it into a store.
package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/order-placement/internal/core/domain"
)

// Products returns a fresh copy of the demo catalogue.
func Products() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Laptop Dell XPS 15", Stock: 10},
		{ID: 2, Name: "iPhone 15 Pro Max", Stock: 25},
		{ID: 3, Name: "Samsung Galaxy S24", Stock: 15},
		{ID: 4, Name: "AirPods Pro 2", Stock: 50},
		{ID: 5, Name: "iPad Pro 12.9", Stock: 8},
		{ID: 6, Name: "Apple Watch Series 9", Stock: 20},
		{ID: 7, Name: "Sony WH-1000XM5", Stock: 30},
	}
}

// Postgres resets stock for every catalogue product, inserting missing rows,
// and advances the products id sequence past the highest id.
func Postgres(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, p := range Products() {
		batch.Queue(`
			INSERT INTO products (id, name, stock) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, stock = EXCLUDED.stock, updated_at = NOW()`,
			p.ID, p.Name, p.Stock)
	}
	// Explicit ids leave the serial sequence behind; move it past the catalogue.
	batch.Queue(`SELECT setval(pg_get_serial_sequence('products', 'id'), (SELECT MAX(id) FROM products))`)
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	return nil
}

func MySQL(ctx context.Context, db *sql.DB) error {
	for _, p := range Products() {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (id, name, stock) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), stock = VALUES(stock)`,
			p.ID, p.Name, p.Stock)
		if err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	return nil
}
