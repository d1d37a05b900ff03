// Package store is the sqlite persistence layer for a profile: stored
// credentials, the per-account system log, conversation history and the
// outgoing message queue.
package store

import (
	"database/sql"
	"errors"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/imcore/internal/store/migrations"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// DB is the profile's imcore.db.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the database at path, creating the file if needed.
// Call Migrate before use.
func Open(path string) (*DB, error) {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")

	db, err := sql.Open("sqlite3", path+"?"+q.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(err, "open %s", path)
	}
	return &DB{DB: db, path: path}, nil
}

// Path is the database file.
func (db *DB) Path() string { return db.path }

// MigrateResult is the schema state after Migrate.
type MigrateResult struct {
	Version uint
	Dirty   bool
	// Changed is false when the schema was already current.
	Changed bool
}

// Migrate applies the embedded migrations that have not run yet.
func (db *DB) Migrate() (*MigrateResult, error) {
	m, err := db.migrator()
	if err != nil {
		return nil, err
	}
	res := &MigrateResult{Changed: true}
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		res.Changed = false
	} else if err != nil {
		return nil, eris.Wrap(err, "apply migrations")
	}

	res.Version, res.Dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, eris.Wrap(err, "read schema version")
	}
	return res, nil
}

// migrator shares the open connection with golang-migrate. The instance
// is not closed since that would close db as well.
func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, eris.Wrap(err, "load migrations")
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, eris.Wrap(err, "migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, eris.Wrap(err, "migration instance")
	}
	return m, nil
}
