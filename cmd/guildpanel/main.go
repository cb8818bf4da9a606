package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/small-frappuccino/guildpanel/pkg/app"
)

// cli carries state shared by every subcommand.
type cli struct {
	settings app.Settings

	store      string
	dataDir    string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "guildpanel <command>",
		Short:         "Discord configuration panel bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.LoadSettings()
			if cmd.Flags().Changed("store") {
				s.Store = c.store
				err = s.Validate()
			}
			if cmd.Flags().Changed("data-dir") {
				s.DataDir = c.dataDir
			}
			if err != nil {
				return err
			}
			c.settings = s
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.store, "store", "", "config store: json, sqlite, postgres or memory (overrides GUILDPANEL_STORE)")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "root for config, data and log directories (overrides GUILDPANEL_DATA_DIR)")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "output as JSON")

	root.AddGroup(
		&cobra.Group{ID: "bot", Title: "Bot:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	root.AddCommand(c.runCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.versionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
