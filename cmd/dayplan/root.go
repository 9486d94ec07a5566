// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/dayplan/dayplan/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the dayplan CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dayplan",
		Short: "Dayplan - a weekly task planner API",
		Long: `Dayplan serves a JSON API for planning tasks across the days of the
week, with account management and password resets backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/dayplan/config.yaml when present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// configPath returns --config, or the XDG default file when it exists.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	path, ok, err := xdg.FindConfig()
	if err != nil || !ok {
		return "", err
	}
	return path, nil
}
