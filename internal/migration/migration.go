package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// State describes the schema version recorded in schema_migrations.
type State struct {
	Version  uint
	Revision string
	Dirty    bool
}

// Runner applies the embedded product migrations to a postgres database.
type Runner struct {
	log      *zap.Logger
	migrator *migrate.Migrate
}

// NewRunner prepares a runner on db. The runner never closes db.
func NewRunner(db *sql.DB, log *zap.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	migrator.Log = migrateLogger{log: log}
	// Do not call migrator.Close: it would close the shared *sql.DB.

	return &Runner{log: log.Named("migration"), migrator: migrator}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	return r.run(ctx, "up", r.migrator.Up)
}

// Down reverts every applied migration.
func (r *Runner) Down(ctx context.Context) error {
	return r.run(ctx, "down", r.migrator.Down)
}

// Steps moves n migrations up (n > 0) or down (n < 0).
func (r *Runner) Steps(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	return r.run(ctx, fmt.Sprintf("steps %d", n), func() error {
		return r.migrator.Steps(n)
	})
}

// UpTo migrates forward to revision. Moving backwards is rejected.
func (r *Runner) UpTo(ctx context.Context, revision string) error {
	target, err := VersionFor(revision)
	if err != nil {
		return err
	}
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	if target < current.Version {
		return fmt.Errorf("revision %s is behind current revision %s", revision, current.Revision)
	}
	return r.goTo(ctx, target)
}

// DownTo migrates backward to revision. Moving forwards is rejected.
func (r *Runner) DownTo(ctx context.Context, revision string) error {
	target, err := VersionFor(revision)
	if err != nil {
		return err
	}
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	if target > current.Version {
		return fmt.Errorf("revision %s is ahead of current revision %s", revision, current.Revision)
	}
	return r.goTo(ctx, target)
}

func (r *Runner) goTo(ctx context.Context, version uint) error {
	revision, err := RevisionFor(version)
	if err != nil {
		return err
	}
	if version == 0 {
		return r.run(ctx, "goto "+revision, r.migrator.Down)
	}
	return r.run(ctx, "goto "+revision, func() error {
		return r.migrator.Migrate(version)
	})
}

// Current reports the applied version. An empty database is at Base.
func (r *Runner) Current(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return State{Revision: Base}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read migration version: %w", err)
	}
	revision, err := RevisionFor(version)
	if err != nil {
		return State{}, err
	}
	return State{Version: version, Revision: revision, Dirty: dirty}, nil
}

// Force records version without running any migration. Use -1 to clear the version.
func (r *Runner) Force(ctx context.Context, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if version < -1 || version > int(HeadVersion()) {
		return fmt.Errorf("%w: version %d", ErrUnknownRevision, version)
	}
	if err := r.migrator.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	r.log.Warn("migration version forced", zap.Int("version", version))
	return nil
}

func (r *Runner) run(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case r.migrator.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()

	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Info("schema already at target", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	state, stateErr := r.Current(context.WithoutCancel(ctx))
	if stateErr != nil {
		return stateErr
	}
	r.log.Info("migration applied",
		zap.String("op", op),
		zap.Uint("version", state.Version),
		zap.String("revision", state.Revision),
	)
	return nil
}

type migrateLogger struct {
	log *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), zap.String("component", "golang-migrate"))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}
