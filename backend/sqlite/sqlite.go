// Package sqlite provides a history store persisted in a SQLite database.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/voxflow/go-transcribe/backend"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/internal/sqlstore"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

var dialect = sqlstore.Dialect{
	Name: "sqlite",
}

var _ diag.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	*sqlstore.Store

	db      *sql.DB
	options *options
}

// NewInMemoryBackend creates a history store in a private in-memory database.
func NewInMemoryBackend(opts ...option) *sqliteBackend {
	b := newSqliteBackend("file::memory:", opts...)

	// Every connection opens its own in-memory database
	b.db.SetMaxOpenConns(1)
	b.db.SetConnMaxLifetime(0)
	b.db.SetConnMaxIdleTime(0)

	b.mustMigrate()

	return b
}

// NewSqliteBackend creates a history store in the database file at the given path.
func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	b := newSqliteBackend(
		fmt.Sprintf("file:%v?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate", path), opts...)

	b.mustMigrate()

	return b
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	options := &options{
		Options:         &backend.Options{},
		ApplyMigrations: true,
	}
	*options.Options = backend.ApplyOptions()

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	return &sqliteBackend{
		Store:   sqlstore.New(db, dialect, options.Options),
		db:      db,
		options: options,
	}
}

func (sb *sqliteBackend) mustMigrate() {
	if !sb.options.ApplyMigrations {
		return
	}

	if err := sb.Migrate(); err != nil {
		panic(err)
	}
}

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := migratesqlite.WithInstance(sb.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

func (sb *sqliteBackend) Close() error {
	return sb.db.Close()
}
