package migrations

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"

	"ms-booking/internal/logger"
)

// Options configures the migration runner.
type Options struct {
	// Dir is the directory holding the NNNNNN_name.{up,down}.sql files.
	Dir string
	// ForceDirty re-marks a dirty version as clean before migrating.
	ForceDirty bool
}

func DefaultOptions() Options {
	return Options{Dir: "./migrations"}
}

// Runner applies golang-migrate SQL migrations over the bun connection pool.
type Runner struct {
	db       *bun.DB
	opts     Options
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *bun.DB, opts Options, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{db: db, opts: opts, log: log}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.opts.Dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.opts.Dir)
	}

	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+r.opts.Dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	r.migrator = m
	return nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	if err := r.init(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		if !r.opts.ForceDirty {
			return fmt.Errorf("schema version %d is dirty", version)
		}
		r.log.Warn("DATABASE", fmt.Sprintf("Forcing dirty schema version %d", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if v, _, err := r.migrator.Version(); err == nil {
		r.log.LogDatabase("MIGRATE", "schema", fmt.Sprintf("version %d", v))
	}
	return nil
}

// Down rolls back every migration.
func (r *Runner) Down() error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Close releases the migrator. The postgres driver also closes the pool it
// was given, so call it only when the bun.DB is finished with.
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("close migrator database: %w", databaseErr)
	}
	return nil
}
