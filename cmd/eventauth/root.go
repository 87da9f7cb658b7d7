// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/eventhub/eventauth/internal/config"
	"github.com/eventhub/eventauth/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the eventauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventauth",
		Short: "eventauth - accounts, login and password recovery",
		Long: `eventauth issues credentials for the event registration platform:
account registration, password login with bearer tokens, and the
three-step password reset flow (request code, verify code, reset).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/eventauth/config.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig builds and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags())
}

// readConfig builds the configuration for cmd without validating it.
func readConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return config.Read(path, cmd.Flags())
}

// configPath returns --config, or the XDG config file when it exists.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	path, err := xdg.FindConfigFile()
	if err != nil {
		return "", oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	return path, nil
}
