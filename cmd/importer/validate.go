package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/empenhos/internal/config"
	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/store"
)

type validateOptions struct {
	strict  bool
	offline bool
	mapping string
}

func newValidateCmd(a *app) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the mapping document without importing",
		Long: `Check the mapping document without importing.

The document is parsed and, unless --offline is set, every table and column
is checked against the database. Foreign keys that reference a later table
are reported as warnings, or as errors with --strict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) {
				if cmd.Flags().Changed("mapping") {
					cfg.Import.MappingPath = opts.mapping
				}
				if opts.offline {
					cfg.Import.ValidateSchema = false
				}
			}
			return a.exec(cmd, override, func(ctx context.Context) error {
				return validateMapping(ctx, cmd.OutOrStdout(), a.cfg, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat forward references as errors")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip the database schema check")
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "mapping document (default MAPPING_PATH)")

	return cmd
}

func validateMapping(ctx context.Context, out io.Writer, cfg *config.Config, opts *validateOptions) error {
	var db *store.DB
	if cfg.Import.ValidateSchema {
		var err error
		if db, err = openStore(ctx, cfg); err != nil {
			return err
		}
		defer db.Close()
	}

	spec, err := loadMapping(ctx, db, cfg, opts.strict)
	if err != nil {
		return err
	}

	printMapping(out, spec)
	if db == nil {
		slog.Info("schema check skipped")
	}
	fmt.Fprintf(out, "%s: %d tables OK\n", cfg.Import.MappingPath, spec.Len())
	return nil
}

// printMapping lists the tables in processing order.
func printMapping(w io.Writer, spec *mapping.Spec) {
	forward := make(map[string]bool)
	for _, fr := range spec.ForwardReferences() {
		forward[fr.Table+"."+fr.Column] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Table", "Columns", "Foreign keys", "Unique", "Id"})
	for i, tm := range spec.Tables() {
		cols := make([]string, len(tm.Columns))
		for j, c := range tm.Columns {
			cols[j] = c.Source + " -> " + c.Dest
		}
		fks := make([]string, len(tm.ForeignKeys))
		for j, fk := range tm.ForeignKeys {
			fks[j] = fk.Column + " -> " + fk.Ref
			if forward[tm.Key+"."+fk.Column] {
				fks[j] += " (forward, null)"
			}
		}
		t.AppendRow(table.Row{
			i + 1,
			tm.Key,
			strings.Join(cols, "\n"),
			strings.Join(fks, "\n"),
			tm.UniqueField,
			tm.IDColumn,
		})
	}
	t.Render()
}
