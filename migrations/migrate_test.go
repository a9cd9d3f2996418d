package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-placement/internal/testutil"
	"github.com/rl1809/order-placement/migrations"
)

func TestApplyPostgres_RecordsMigrations(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.GreaterOrEqual(t, count, 1)

	require.NoError(t, migrations.ApplyPostgres(ctx, pool))

	var count2 int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count2))
	assert.Equal(t, count, count2, "re-applying must not record migrations twice")

	var tables int
	require.NoError(t, pool.QueryRow(ctx, `
SELECT COUNT(*) FROM information_schema.tables
WHERE table_name IN ('products', 'orders', 'order_items')`).Scan(&tables))
	assert.Equal(t, 3, tables)
}

func TestApplyMySQL_Idempotent(t *testing.T) {
	db := testutil.NewTestMySQL(t)
	ctx := context.Background()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))

	require.NoError(t, migrations.ApplyMySQL(ctx, db))

	var count2 int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count2))
	assert.Equal(t, count, count2)
}
