package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE TABLE b (id INT);\n;")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{"postgres", "mysql"} {
		names, err := migrationNames(dialect)
		require.NoError(t, err)
		require.NotEmpty(t, names, dialect)

		script, err := readMigration(dialect, names[0])
		require.NoError(t, err)
		assert.Contains(t, script, "order_items")
	}
}

func TestLockResult(t *testing.T) {
	assert.NoError(t, lockResult(sql.NullInt64{Int64: 1, Valid: true}))
	assert.ErrorContains(t, lockResult(sql.NullInt64{Int64: 0, Valid: true}), "timed out")
	assert.ErrorContains(t, lockResult(sql.NullInt64{}), "NULL")
}
