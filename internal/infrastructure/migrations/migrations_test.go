package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApply_CreatesDraftsTable(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Apply(db))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='drafts'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "drafts", name)
}

func TestApply_IsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Apply(db))
	require.NoError(t, Apply(db))
}

func TestApply_RecordsVersion(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Apply(db))

	var version int
	var dirty bool
	err := db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.False(t, dirty)
}
