package postgres

import (
	"database/sql"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Migrator applies the SQL files under a migrations directory.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator binds migrationsDir (a plain path) to db and takes ownership
// of db: Close closes it.
func NewMigrator(db *sql.DB, migrationsDir string, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance").WithDetail(migrationsDir)
	}
	return &Migrator{m: m, logger: log}, nil
}

// OpenMigrator dials its own connection from cfg, so closing it never touches
// the pool used by the document store.
func OpenMigrator(cfg config.DatabaseConfig, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m, err := migrate.New("file://"+cfg.MigrationPath, BuildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance").WithDetail(cfg.MigrationPath)
	}
	return &Migrator{m: m, logger: log}, nil
}

// Up applies every pending migration. No pending migration is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.m.Version()
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to run migrations (current version: %d)", version)
	}
	mg.logVersion("Database migrations completed")
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeBadRequest, "steps must be greater than 0, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeConflict, "no migrations to roll back")
		}
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to rollback %d step(s)", steps)
	}
	mg.logVersion("Database migrations rolled back")
	return nil
}

// Version reports the applied version; 0 when nothing has been applied.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// Close releases the migration source and the database handle it was
// built on.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func (mg *Migrator) logVersion(msg string) {
	version, dirty, err := mg.Version()
	if err != nil {
		mg.logger.Warn("Failed to get migration version", logging.Err(err))
		return
	}
	mg.logger.Info(msg, logging.Int64("version", int64(version)), logging.Bool("dirty", dirty))
}
