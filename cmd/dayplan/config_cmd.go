// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dayplan/dayplan/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	var out string
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			if out == "" {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
				return oops.Code("SCHEMA_WRITE_FAILED").With("path", out).Wrap(err)
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return oops.Code("SCHEMA_WRITE_FAILED").With("path", out).Wrap(err)
			}
			cmd.Printf("Generated %s\n", out)
			return nil
		},
	}
	schema.Flags().StringVarP(&out, "out", "o", "", "write the schema to this file instead of stdout")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration can start a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := config.Load(config.Source{Path: path}); err != nil {
				return err
			}
			if path == "" {
				path = "defaults and environment"
			}
			cmd.Printf("Configuration is valid (%s)\n", path)
			return nil
		},
	}

	cmd.AddCommand(schema, validate)
	return cmd
}
