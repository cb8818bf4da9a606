package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/small-frappuccino/guildpanel/pkg/app"
	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
	"github.com/small-frappuccino/guildpanel/pkg/storage"
)

const cliTimeout = 30 * time.Second

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Read and change stored guild configuration",
		GroupID: "config",
	}
	cmd.AddCommand(c.configListCmd(), c.configGetCmd(), c.configPatchCmd(), c.configHistoryCmd())
	return cmd
}

// withStore opens the configured backend for one command.
func (c *cli) withStore(fn func(ctx context.Context, store *files.ConfigStore) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	backend, err := app.OpenBackend(ctx, c.settings)
	if err != nil {
		return err
	}
	store := files.NewConfigStore(backend)
	defer store.Close()
	return fn(ctx, store)
}

func (c *cli) configListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List guilds with stored configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(ctx context.Context, store *files.ConfigStore) error {
				scopes, err := store.Scopes(ctx)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), scopes)
				}
				for _, s := range scopes {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
}

func (c *cli) configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <guild> [path]",
		Short: "Print a guild's configuration, or one dotted setting",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(ctx context.Context, store *files.ConfigStore) error {
				if len(args) == 2 {
					v, ok, err := store.Lookup(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("%s is not set for %s", args[1], args[0])
					}
					data, err := json.Marshal(v)
					if err != nil {
						return fmt.Errorf("marshaling JSON: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}

				doc, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printDocument(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func (c *cli) configPatchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "patch <guild> <json|->",
		Short: "Merge a JSON patch into a guild's configuration; null leaves are ignored",
		Long: `Merge a JSON object into the stored document. Objects merge recursively,
other values replace what is stored, and null leaves are dropped before the
merge. Pass - to read the patch from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(args[1])
			if args[1] == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read patch: %w", err)
				}
			}
			patch, err := document.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}

			return c.withStore(func(ctx context.Context, store *files.ConfigStore) error {
				if dryRun {
					pruned := document.PruneNulls(patch)
					if pruned.IsEmpty() {
						return files.ErrPatchRejected
					}
					cur, err := store.Get(ctx, args[0])
					if err != nil {
						return err
					}
					if !document.Changes(cur, pruned) {
						fmt.Fprintln(cmd.ErrOrStderr(), "dry run: no change")
					}
					return printDocument(cmd.OutOrStdout(), document.DeepMerge(cur, pruned))
				}

				res, err := store.Apply(ctx, args[0], patch)
				if err != nil {
					return err
				}
				if !res.Changed {
					fmt.Fprintln(cmd.ErrOrStderr(), "no change")
				}
				return printDocument(cmd.OutOrStdout(), res.Document)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the merged document without saving it")
	return cmd
}

func revisions(ctx context.Context, backend files.Backend, scope string, limit int) ([]storage.Revision, error) {
	if err := files.ValidateScope(scope); err != nil {
		return nil, err
	}
	sq, ok := backend.(*storage.SQLiteBackend)
	if !ok {
		return nil, fmt.Errorf("store %s keeps no history", backend.Name())
	}
	return sq.History(ctx, scope, limit)
}

func (c *cli) configHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <guild>",
		Short: "Show saved revisions of a guild's configuration (sqlite store only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(ctx context.Context, store *files.ConfigStore) error {
				revs, err := revisions(ctx, store.Backend(), args[0], limit)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), revs)
				}
				for _, r := range revs {
					data, err := json.Marshal(r.Document)
					if err != nil {
						return fmt.Errorf("marshaling JSON: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "#%d  %s  %s\n", r.Revision, r.SavedAt.UTC().Format(time.RFC3339), data)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of revisions")
	return cmd
}

func printDocument(w io.Writer, doc document.Map) error {
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
