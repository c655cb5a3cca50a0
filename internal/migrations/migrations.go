// Package migrations embeds the PostgreSQL schema and applies it with
// golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"ecovision/pkg/logging"
)

//go:embed sql/*.sql
var files embed.FS

// Source returns the embedded migration files as a golang-migrate source
func Source() (source.Driver, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	return src, nil
}

// Runner applies the embedded migrations to one database
type Runner struct {
	m      *migrate.Migrate
	logger *logging.StructuredLogger
}

// Open connects to dsn with its own connection, which Close releases
func Open(dsn string, logger *logging.StructuredLogger) (*Runner, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	r, err := NewRunner(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewRunner builds a runner over db. Closing the runner closes db.
func NewRunner(db *sql.DB, logger *logging.StructuredLogger) (*Runner, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	src, err := Source()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger: logger}

	return &Runner{m: m, logger: logger}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info(ctx, "[MIGRATE_NOOP] No pending migrations", logging.Fields{})
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	r.logVersion(ctx, "[MIGRATE_UP] Migrations applied")
	return nil
}

// Down rolls back steps migrations, or all of them when steps <= 0
func (r *Runner) Down(ctx context.Context, steps int) error {
	var err error
	if steps <= 0 {
		err = r.m.Down()
	} else {
		err = r.m.Steps(-steps)
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info(ctx, "[MIGRATE_NOOP] Nothing to roll back", logging.Fields{})
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}

	r.logVersion(ctx, "[MIGRATE_DOWN] Migrations rolled back")
	return nil
}

// Version reports the applied version and whether the last run left it dirty
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and database connections
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) logVersion(ctx context.Context, message string) {
	v, dirty, err := r.Version()
	fields := logging.Fields{"version": v, "dirty": dirty}
	if err != nil {
		fields["version_error"] = err.Error()
	}
	r.logger.Info(ctx, message, fields)
}

// migrateLogger routes golang-migrate output to the structured logger
type migrateLogger struct {
	logger *logging.StructuredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(context.Background(), "[MIGRATE] "+fmt.Sprintf(format, v...), logging.Fields{})
}

func (l migrateLogger) Verbose() bool {
	return false
}
