package test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sagekit/db"
	"sagekit/resource"
)

// Ledger returns a sqlite ledger in a temporary directory that is removed
// when the test ends.
func Ledger(t *testing.T) db.Connection {
	config := db.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")}
	r, err := config.Materialize(resource.NewScope("test"))
	require.NoError(t, err)
	conn := r.(db.Connection)
	t.Cleanup(func() { conn.Close() })
	return conn
}
