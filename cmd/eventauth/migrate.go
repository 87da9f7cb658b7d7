// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/eventhub/eventauth/internal/config"
	"github.com/eventhub/eventauth/internal/store"
)

// migrator is the part of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (*store.Status, error)
	Close() error
}

// migratorFactory is replaced in tests.
var migratorFactory = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Manage the PostgreSQL schema. Without a subcommand all pending
migrations are applied.`,
		RunE: runMigrateUp,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		Long:  `Revert the last --steps migrations, or every migration with --all.`,
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}
	down.Flags().Int("steps", 1, "number of migrations to revert")
	down.Flags().Bool("all", false, "revert every migration (drops all tables)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(migrator) error) (err error) {
	cfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url or %s is required", config.EnvDatabaseURL)
	}

	m, err := migratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	steps, err := cmd.Flags().GetInt("steps")
	if err != nil {
		return oops.Code("INVALID_FLAG").Wrap(err)
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return oops.Code("INVALID_FLAG").Wrap(err)
	}
	if !all && steps < 1 {
		return oops.Code("INVALID_FLAG").With("steps", steps).Errorf("--steps must be at least 1")
	}

	return withMigrator(cmd, func(m migrator) error {
		if all {
			cmd.Println("Reverting all migrations...")
			if err := m.Down(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
			}
		} else {
			cmd.Printf("Reverting %d migration(s)...\n", steps)
			if err := m.Steps(-steps); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
			}
		}
		cmd.Println("Rollback completed successfully")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		st, err := m.Status()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "status").Wrap(err)
		}
		cmd.Printf("Version: %d\n", st.Version)
		cmd.Printf("Dirty:   %t\n", st.Dirty)
		if len(st.Pending) == 0 {
			cmd.Println("Pending: none")
			return nil
		}
		cmd.Println("Pending:")
		for _, v := range st.Pending {
			name, err := store.MigrationName(v)
			if err != nil || name == "" {
				name = fmt.Sprintf("%06d", v)
			}
			cmd.Printf("  %s\n", name)
		}
		return nil
	})
}
