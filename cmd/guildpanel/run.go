package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/small-frappuccino/guildpanel/pkg/app"
	"github.com/small-frappuccino/guildpanel/pkg/util"
)

func (c *cli) runCmd() *cobra.Command {
	var controlAddr string
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Connect to Discord and serve the configuration panel",
		GroupID: "bot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("control-addr") {
				c.settings.ControlAddr = controlAddr
			}
			ctx, stop := util.SignalContext(context.Background())
			defer stop()
			return app.Run(ctx, c.settings)
		},
	}
	cmd.Flags().StringVar(&controlAddr, "control-addr", "", "admin API listen address (overrides GUILDPANEL_CONTROL_ADDR)")
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the build version",
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.jsonOutput {
				data, err := json.Marshal(map[string]string{"name": app.AppName, "version": app.Version})
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", app.AppName, app.Version)
			return nil
		},
	}
}
