package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/small-frappuccino/guildpanel/pkg/app"
	"github.com/small-frappuccino/guildpanel/pkg/storage"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Manage the SQL schema of the sqlite and postgres stores",
		GroupID: "system",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, dsn, err := app.MigrationTarget(c.settings)
			if err != nil {
				return err
			}
			if err := storage.MigrateUp(dialect, dsn); err != nil {
				return err
			}
			return c.printStatus(cmd, dialect, dsn)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, dsn, err := app.MigrationTarget(c.settings)
			if err != nil {
				return err
			}
			if err := storage.MigrateDown(dialect, dsn, steps); err != nil {
				return err
			}
			return c.printStatus(cmd, dialect, dsn)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, dsn, err := app.MigrationTarget(c.settings)
			if err != nil {
				return err
			}
			return c.printStatus(cmd, dialect, dsn)
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func (c *cli) printStatus(cmd *cobra.Command, dialect storage.Dialect, dsn string) error {
	st, err := storage.Status(dialect, dsn)
	if err != nil {
		return err
	}
	if c.jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"dialect": string(dialect),
			"version": st.Version,
			"dirty":   st.Dirty,
			"applied": st.Applied,
		})
	}
	if !st.Applied {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no migrations applied\n", dialect)
		return nil
	}
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d%s\n", dialect, st.Version, dirty)
	return nil
}
