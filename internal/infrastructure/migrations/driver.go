package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// defaultVersionTable tracks which migrations have been applied.
const defaultVersionTable = "schema_migrations"

// ErrNilConfig indicates WithInstance was called without a config.
var ErrNilConfig = errors.New("migrations: nil config")

// Config tunes the driver. The zero value is usable via WithInstance.
type Config struct {
	VersionTable string
	NoTxWrap     bool
}

// sqliteDriver implements database.Driver over a sql.DB opened with the
// ncruces sqlite3 driver.
type sqliteDriver struct {
	db     *sql.DB
	locked atomic.Bool
	config *Config
}

// WithInstance wraps an open connection in a migrate-compatible driver.
func WithInstance(db *sql.DB, config *Config) (database.Driver, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if config.VersionTable == "" {
		config.VersionTable = defaultVersionTable
	}

	d := &sqliteDriver{db: db, config: config}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteDriver) ensureVersionTable() (err error) {
	if err = d.Lock(); err != nil {
		return err
	}
	defer func() {
		if e := d.Unlock(); e != nil {
			err = errors.Join(err, e)
		}
	}()

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (version uint64, dirty bool);
	CREATE UNIQUE INDEX IF NOT EXISTS version_unique ON %s (version);
	`, d.config.VersionTable, d.config.VersionTable)
	_, err = d.db.Exec(query)
	return err
}

// Open satisfies database.Driver. Connections are always pre-opened by
// the caller, so URL-based opening is unsupported.
func (d *sqliteDriver) Open(_ string) (database.Driver, error) {
	return nil, errors.New("migrations: Open unsupported, use WithInstance")
}

// Close closes the underlying connection.
func (d *sqliteDriver) Close() error {
	return d.db.Close()
}

// Lock takes the in-process migration lock.
func (d *sqliteDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

// Unlock releases the in-process migration lock.
func (d *sqliteDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run executes one migration file.
func (d *sqliteDriver) Run(migration io.Reader) error {
	raw, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	query := string(raw)
	if d.config.NoTxWrap {
		if _, err := d.db.Exec(query); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
		return nil
	}
	return d.runInTx(query)
}

func (d *sqliteDriver) runInTx(query string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if _, err := tx.Exec(query); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

// SetVersion records the current migration version.
func (d *sqliteDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	query := "DELETE FROM " + d.config.VersionTable
	if _, err := tx.Exec(query); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	// A dirty nil version is still recorded so a failed down migration
	// of the first migration leaves a trace.
	if version >= 0 || (version == database.NilVersion && dirty) {
		query := fmt.Sprintf("INSERT INTO %s (version, dirty) VALUES (?, ?)", d.config.VersionTable)
		if _, err := tx.Exec(query, version, dirty); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

// Version reports the current migration version, or NilVersion when
// none has been recorded yet.
func (d *sqliteDriver) Version() (version int, dirty bool, err error) {
	query := "SELECT version, dirty FROM " + d.config.VersionTable + " LIMIT 1"
	if err := d.db.QueryRow(query).Scan(&version, &dirty); err != nil {
		return database.NilVersion, false, nil
	}
	return version, dirty, nil
}

// Drop removes every table in the database.
func (d *sqliteDriver) Drop() (err error) {
	const listQuery = `SELECT name FROM sqlite_master WHERE type = 'table';`
	rows, err := d.db.Query(listQuery)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(listQuery)}
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name != "" {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(listQuery)}
	}

	for _, table := range tables {
		if err := d.runInTx("DROP TABLE " + table); err != nil {
			return err
		}
	}
	if len(tables) > 0 {
		if _, err := d.db.Exec("VACUUM"); err != nil {
			return &database.Error{OrigErr: err, Query: []byte("VACUUM")}
		}
	}
	return nil
}
