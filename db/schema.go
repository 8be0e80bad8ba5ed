package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Schema maps a ledger version to the statement that migrates the previous
// version to it. Versions start at 1 and are contiguous.
type Schema map[uint32]string

// defs are applied in order of their version. A released definition must
// never change; append a new version instead.
var defs = Schema{
	1: `CREATE TABLE IF NOT EXISTS training_job (
			name VARCHAR(63) NOT NULL PRIMARY KEY,
			image VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			artifact_uri VARCHAR(1024) NOT NULL DEFAULT '',
			failure_reason TEXT,
			hyperparameters TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
	2: `CREATE TABLE IF NOT EXISTS endpoint (
			id {{serial}},
			name VARCHAR(63) NOT NULL,
			endpoint_config_name VARCHAR(63) NOT NULL,
			model_name VARCHAR(63) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL
		);`,
	3: `CREATE INDEX endpoint_name_idx ON endpoint (name);`,
}

// SyncSchema brings the ledger behind conn up to the latest version.
func SyncSchema(conn Connection) error {
	resolved := make(Schema, len(defs))
	for v, def := range defs {
		resolved[v] = strings.ReplaceAll(def, "{{serial}}", serialColumn(conn.DriverName()))
	}
	return syncSchema(conn.DB, resolved)
}

// serialColumn is what the {{serial}} placeholder expands to per driver.
func serialColumn(driver string) string {
	if driver == "mysql" {
		return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
	return "INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT"
}

type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// schemaVersion reads the applied version; 0 means nothing was applied yet.
func schemaVersion(q queryRower) (uint32, error) {
	var version sql.NullInt32
	err := q.QueryRow("SELECT version FROM schema_version").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return uint32(version.Int32), nil
}

func syncSchema(db *sqlx.DB, defs Schema) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INT NOT NULL)`); err != nil {
		return err
	}
	// read outside a transaction to skip the round trips for versions that
	// are already in place; execSchema re-checks under the transaction.
	curr, err := schemaVersion(db)
	if err != nil {
		return err
	}
	for v := curr + 1; v <= uint32(len(defs)); v++ {
		if err := execSchema(db, v, defs[v]); err != nil {
			return fmt.Errorf("ledger schema version %d: %w", v, err)
		}
	}
	return nil
}

// execSchema applies def as version and bumps schema_version in the same
// transaction. A concurrent writer that got there first turns it into a no-op.
func execSchema(db *sqlx.DB, version uint32, def string) error {
	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	applied, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	if applied >= version {
		return tx.Commit()
	}
	if version-applied > 1 {
		return fmt.Errorf("ledger is at version %d, cannot apply version %d", applied, version)
	}
	if _, err := tx.Exec(def); err != nil {
		return err
	}
	if applied == 0 {
		_, err = tx.Exec("INSERT INTO schema_version VALUES (?)", version)
	} else {
		_, err = tx.Exec("UPDATE schema_version SET version = ?", version)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}
