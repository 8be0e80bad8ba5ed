package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagekit/resource"
)

func sqliteConn(t *testing.T) Connection {
	config := SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger", "sagekit.db")}
	r, err := config.Materialize(resource.NewScope("test"))
	require.NoError(t, err)
	return r.(Connection)
}

func TestSyncSchema(t *testing.T) {
	conn := sqliteConn(t)
	defer conn.Teardown()
	assert.Equal(t, resource.DBConnection, conn.Type())

	version, err := schemaVersion(conn.DB)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(defs)), version)

	// syncing again is a no-op
	require.NoError(t, SyncSchema(conn))
	version, err = schemaVersion(conn.DB)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(defs)), version)

	_, err = conn.Exec(`INSERT INTO endpoint (name, endpoint_config_name, model_name, created_at) VALUES (?, ?, ?, ?)`,
		"ep", "ep", "model", 1)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO endpoint (name, endpoint_config_name, model_name, created_at) VALUES (?, ?, ?, ?)`,
		"ep", "ep", "model", 2)
	require.NoError(t, err)
	var ids []int64
	require.NoError(t, conn.Select(&ids, `SELECT id FROM endpoint ORDER BY id`))
	assert.Equal(t, []int64{1, 2}, ids)

	RecordConnectionStats(conn.DB)
}

func TestSyncSchemaSkippedVersion(t *testing.T) {
	conn := sqliteConn(t)
	defer conn.Teardown()

	err := syncSchema(conn.DB, Schema{
		1: `CREATE TABLE a (x INT);`,
	})
	require.NoError(t, err)
	// version is already past 1, so the skipped check kicks in for 5
	err = execSchema(conn.DB, 5, `CREATE TABLE b (x INT);`)
	assert.Error(t, err)
}

func TestSerialColumn(t *testing.T) {
	assert.Contains(t, serialColumn("mysql"), "AUTO_INCREMENT")
	assert.Contains(t, serialColumn("sqlite3"), "AUTOINCREMENT")
}
