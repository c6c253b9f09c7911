// Package migrations embeds the Postgres schema of the revisions table.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Up applies every pending migration to the database at dsn.
func Up(dsn string, logger *slog.Logger) error {
	m, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer closeMigrate(m)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: failed to apply: %w", err)
	}
	return nil
}

// Down rolls back the last n migrations.
func Down(dsn string, n int, logger *slog.Logger) error {
	if n <= 0 {
		return nil
	}
	m, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer closeMigrate(m)
	if err := m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: failed to roll back: %w", err)
	}
	return nil
}

// Version returns the applied version and whether it is dirty. It is 0 on a fresh database.
func Version(dsn string) (uint, bool, error) {
	m, err := open(dsn, nil)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m)
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrations: failed to read version: %w", err)
	}
	return v, dirty, nil
}

// URL rewrites a postgres:// DSN to the scheme registered by the pgx driver.
func URL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func open(dsn string, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read embedded files: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, URL(dsn))
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to connect: %w", err)
	}
	if logger != nil {
		m.Log = migrateLogger{l: logger}
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	_, _ = m.Close()
}

type migrateLogger struct {
	l *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool {
	return false
}
