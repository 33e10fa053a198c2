package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/postgres"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// migrator is the subset of postgres.Migrator the commands use.
type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// openMigrator is swapped in tests.
var openMigrator = func(cliCtx *CLIContext) (migrator, error) {
	return postgres.OpenMigrator(cliCtx.Config.Database, cliCtx.Logger)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL document schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return errors.Newf(errors.ErrCodeBadRequest, "--steps must be greater than 0, got %d", steps)
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error { return printVersion(cmd, m) })
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	m, err := openMigrator(cliCtx)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

type schemaVersion struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s schemaVersion) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

func printVersion(cmd *cobra.Command, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	return PrintResult(cmd, schemaVersion{Version: v, Dirty: dirty})
}
