// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	authpg "github.com/eventhub/eventauth/internal/auth/postgres"
	"github.com/eventhub/eventauth/internal/config"
	"github.com/eventhub/eventauth/internal/observability"
	"github.com/eventhub/eventauth/internal/store"
)

// codePurger deletes recovery codes that can no longer be used.
type codePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// openPurger connects to the database. Replaced in tests.
var openPurger = func(ctx context.Context, cfg *config.Config) (codePurger, func(), error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{MaxAttempts: cfg.Database.ConnectAttempts})
	if err != nil {
		return nil, nil, err
	}
	return authpg.NewRecoveryCodeRepository(pool), pool.Close, nil
}

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired and consumed recovery codes",
		Long: `Delete recovery codes that have expired or can no longer authorize a
password reset. serve runs the same purge periodically.`,
		Args: cobra.NoArgs,
		RunE: runPurge,
	}
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := readConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url or %s is required", config.EnvDatabaseURL)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	purger, closeFn, err := openPurger(ctx, cfg)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer closeFn()

	n, err := purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		return oops.Code("RECOVERY_PURGE_FAILED").Wrap(err)
	}
	observability.RecordPurged(n)
	cmd.Printf("Purged %d recovery code(s)\n", n)
	return nil
}
