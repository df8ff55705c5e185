// Package sqlite owns the local database holding draft snapshots:
// connection lifecycle, pragmas, pre-migration backup, and migrations.
package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mrogier/actaflow/internal/draft"
	"github.com/mrogier/actaflow/internal/infrastructure/migrations"
	"github.com/mrogier/actaflow/internal/log"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB is the open draft database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the database at path, creating the parent directory when
// needed. An existing file is copied to {path}.bak before migrations
// run, so a bad migration never eats the only copy of a draft.
func Open(path string) (*DB, error) {
	log.Debug(log.CatDB, "Opening draft database", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return nil, fmt.Errorf("creating pre-migration backup: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := migrations.Apply(conn); err != nil {
		_ = conn.Close()
		log.ErrorErr(log.CatDB, "Failed to run migrations", err)
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log.Info(log.CatDB, "Draft database ready", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// Close releases the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	log.Debug(log.CatDB, "Closing draft database", "path", db.path)
	return db.conn.Close()
}

// DraftStore returns the snapshot store backed by this database.
func (db *DB) DraftStore() *draft.Store {
	return draft.NewStore(db.conn)
}

// Connection exposes the raw connection for tests.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

func copyFile(src, dst string) (retErr error) {
	in, err := os.Open(src) //nolint:gosec // G304: src is the database path, controlled by application
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode()) //nolint:gosec // G304: dst derives from the database path
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("closing backup file: %w", closeErr)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
