package db

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"sagekit/resource"
)

// Connection is the job ledger database.
type Connection struct {
	config resource.Config
	*sqlx.DB
}

var _ resource.Resource = Connection{}

// Teardown closes the connection and removes the database file of a sqlite
// ledger. It is used by tests.
func (c Connection) Teardown() error {
	if err := c.DB.Close(); err != nil {
		return err
	}
	if config, ok := c.config.(SQLiteConfig); ok {
		return os.Remove(config.Path)
	}
	return nil
}

func (c Connection) Close() error {
	return c.DB.Close()
}

func (c Connection) Type() resource.Type {
	return resource.DBConnection
}

//=================================
// SQLite config for db connection
//=================================

type SQLiteConfig struct {
	Path string
}

var _ resource.Config = SQLiteConfig{}

func (conf SQLiteConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	if dir := filepath.Dir(conf.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	// sqlite serializes writers; a single connection avoids "database is
	// locked" errors from concurrent transactions.
	return open("sqlite3", conf.Path, conf, 1)
}

//=================================
// MySQL config for db connection
//=================================

type MySQLConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	TLS      bool
}

var _ resource.Config = MySQLConfig{}

func (conf MySQLConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	connectStr := fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?tls=%t&clientFoundRows=true",
		conf.Username, conf.Password, conf.Host, conf.DBname, conf.TLS,
	)

	return open("mysql", connectStr, conf, 0)
}

// open connects with driver and migrates the ledger schema. maxOpen of 0
// leaves the pool unbounded.
func open(driver, dsn string, conf resource.Config, maxOpen int) (Connection, error) {
	DB, err := sqlx.Open(driver, dsn)
	if err != nil {
		return Connection{}, err
	}
	if maxOpen > 0 {
		DB.SetMaxOpenConns(maxOpen)
	}
	conn := Connection{config: conf, DB: DB}
	if err = SyncSchema(conn); err != nil {
		DB.Close()
		return Connection{}, fmt.Errorf("failed to sync ledger schema: %w", err)
	}
	return conn, nil
}
