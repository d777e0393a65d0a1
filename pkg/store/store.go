package store

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Stores groups every table accessor sharing one connection pool.
type Stores struct {
	db       *sqlx.DB
	Users    ChatUserStore
	Messages MessageStore
	Nodes    MeshNodeStore
}

// Connect opens and pings the PostgreSQL database at dsn.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

func New(db *sqlx.DB) *Stores {
	return &Stores{
		db:       db,
		Users:    NewChatUsers(db),
		Messages: NewMessages(db),
		Nodes:    NewMeshNodes(db),
	}
}

// Close stops the caches and closes the pool.
func (s *Stores) Close() error {
	var result error
	if err := s.Users.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("initializing migrations: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration. It opens its own connection
// so the caller's pool is left untouched.
func Migrate(dsn string) (err error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			err = multierror.Append(err, srcErr)
		}
		if dbErr != nil {
			err = multierror.Append(err, dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("database schema is up to date")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	slog.Info("database migrated", "version", version, "dirty", dirty)
	return nil
}

// MigrateDown rolls back the last applied migration.
func MigrateDown(dsn string) (err error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			err = multierror.Append(err, srcErr)
		}
		if dbErr != nil {
			err = multierror.Append(err, dbErr)
		}
	}()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
