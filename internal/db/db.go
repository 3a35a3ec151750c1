// Package db opens the inventory database over libSQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers "libsql" for remote URLs (libsql://, https://, wss://).
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	// Pure-Go SQLite for local file: URLs.
	_ "modernc.org/sqlite"

	"inventrack/internal/inventory"
)

// driverName is the database/sql driver for remote URLs; tests may replace it.
var driverName = "libsql"

// localDriverName serves file: URLs.
var localDriverName = "sqlite"

// IsLocal reports whether dbURL names a local SQLite file.
func IsLocal(dbURL string) bool {
	return strings.HasPrefix(dbURL, "file:")
}

// Connect opens the database and verifies it with a ping.
//
// Supported URL schemes:
//
//	Local file:   "file:path/to/inventrack.db"
//	Remote Turso: "libsql://[db-name].turso.io?authToken=[token]"
//
// Local databases hold a single connection; concurrent writers queue on it.
func Connect(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	driver := driverName
	if IsLocal(dbURL) {
		driver = localDriverName
	}
	db, err := sql.Open(driver, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if IsLocal(dbURL) {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if IsLocal(dbURL) {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return db, nil
}

// OpenStore connects to dbURL and returns the migrated inventory store.
// The caller owns the returned *sql.DB.
func OpenStore(ctx context.Context, dbURL string) (*inventory.SQLStore, *sql.DB, error) {
	conn, err := Connect(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}
	store, err := inventory.NewSQLStore(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, conn, nil
}
