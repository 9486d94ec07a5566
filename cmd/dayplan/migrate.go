// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dayplan/dayplan/internal/config"
	"github.com/dayplan/dayplan/pkg/errutil"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory)
}

func newMigrateCmd(factory MigratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
The database URL comes from --database-url, the config file or DATABASE_URL.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (overridden by DATABASE_URL)")

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, func(m Migrator) error {
				if all {
					return m.Down()
				}
				return m.Steps(-1)
			}, "Rolled back migrations")
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, Migrator.Up, "Migrations completed successfully")
			},
		},
		down,
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back -N",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseInt("steps", args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, factory, func(m Migrator) error { return m.Steps(n) }, "Migrations completed successfully")
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied after repairing a dirty migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseInt("version", args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, factory, func(m Migrator) error { return m.Force(v) }, "Version forced")
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, func(m Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					if dirty {
						cmd.Printf("%d (dirty)\n", v)
						return nil
					}
					cmd.Printf("%d\n", v)
					return nil
				}, "")
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, func(m Migrator) error {
					all, err := m.Status()
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
					for _, s := range all {
						_, _ = fmt.Fprintf(w, "%d\t%s\t%t\n", s.Version, s.Name, s.Applied)
					}
					return w.Flush()
				}, "")
			},
		},
	)
	return cmd
}

// withMigrator resolves the database URL, runs fn and closes the migrator.
func withMigrator(cmd *cobra.Command, factory MigratorFactory, fn func(Migrator) error, done string) (err error) {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Read(config.Source{Path: path, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Wrapf(errutil.ErrValidation, "database url is required (set --database-url, database.url or DATABASE_URL)")
	}

	m, err := factory(cfg.Database.URL)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := fn(m); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", cmd.Name()).Wrap(err)
	}
	if done != "" {
		cmd.Println(done)
	}
	return nil
}

func parseInt(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code("INVALID_ARGUMENT").
			With("argument", name).
			Wrapf(errutil.ErrValidation, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
