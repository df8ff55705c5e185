// Package migrations applies the embedded schema migrations of the
// local draft database.
//
// It ships a custom golang-migrate driver compatible with
// ncruces/go-sqlite3 (CGO-free). The stock migrate sqlite3 driver pulls
// in mattn/go-sqlite3, and both register under the "sqlite3" name, so
// the two cannot coexist in one binary.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var migrationFiles embed.FS

// FS exposes the embedded migration files for tests.
func FS() fs.FS {
	return migrationFiles
}

// Apply brings the database schema up to date. An already-current
// schema is not an error.
func Apply(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return err
	}

	driver, err := WithInstance(db, &Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
