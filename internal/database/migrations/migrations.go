// Package migrations holds the upload history schema and applies it with
// golang-migrate from files embedded in the binary.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Status describes where a database sits relative to the embedded migrations.
type Status struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// Current reports whether the schema is clean and at the latest version.
func (s Status) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

// ReadStatus returns the schema version of db. A database that has never been
// migrated reports version 0.
func ReadStatus(db *sql.DB) (Status, error) {
	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: closing it would close db, which the caller owns.

	latest, err := LatestVersion()
	if err != nil {
		return Status{}, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Latest: latest}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("reading schema version: %w", err)
	}
	return Status{Version: version, Latest: latest, Dirty: dirty}, nil
}

// CheckDBMigrationStatus returns nil when db is at the latest schema version
// and a descriptive error otherwise.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}
	switch {
	case st.Dirty:
		return fmt.Errorf("database is dirty at version %d (a previous migration failed)", st.Version)
	case st.Version == 0:
		return fmt.Errorf("database has no schema version (needs migration)")
	case st.Version < st.Latest:
		return fmt.Errorf("database is at version %d but latest is %d", st.Version, st.Latest)
	case st.Version > st.Latest:
		return fmt.Errorf("database version %d is newer than this binary supports (%d)", st.Version, st.Latest)
	}
	return nil
}

// MigrateUp applies all pending migrations. It is a no-op on a current schema.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// LatestVersion returns the highest migration version embedded in the binary.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()
	return lastVersion(src)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading migration files: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			// Next fails once there is no later migration.
			return v, nil
		}
		v = next
	}
}
