package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/empenhos/internal/config"
	"github.com/JonMunkholm/empenhos/internal/core"
	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
)

// maxListedFailures caps the failed rows printed after a run.
const maxListedFailures = 20

type runOptions struct {
	dryRun      bool
	strict      bool
	failOnError bool
	workers     int
	mapping     string
	source      string
	sheet       string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import every row of the source file",
		Long: `Import every row of the source file.

Each row is written across all mapped tables in one transaction. A row that
fails is rolled back and reported; the run continues with the next row.`,
		Example: `  # Import the spreadsheet named in CAMINHO_PLANILHA
  importer run

  # Check a file without keeping anything
  importer run --source empenhos.xlsx --dry-run

  # Use four workers and fail the process if any row fails
  importer run --workers 4 --fail-on-error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) { opts.apply(cmd, cfg) }
			return a.exec(cmd, override, func(ctx context.Context) error {
				return runImport(ctx, cmd.OutOrStdout(), a.cfg, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "process every row and roll it back")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "reject foreign keys that reference a later table")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "exit with status 2 when any row fails")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "rows processed concurrently (default IMPORT_WORKERS)")
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "mapping document (default MAPPING_PATH)")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "source .xlsx or .csv file (default CAMINHO_PLANILHA)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet to read (default IMPORT_SHEET or the first sheet)")

	return cmd
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Import.Workers = o.workers
	}
	if cmd.Flags().Changed("mapping") {
		cfg.Import.MappingPath = o.mapping
	}
	if cmd.Flags().Changed("source") {
		cfg.Import.SourcePath = o.source
	}
	if cmd.Flags().Changed("sheet") {
		cfg.Import.Sheet = o.sheet
	}
}

func runImport(ctx context.Context, out io.Writer, cfg *config.Config, opts *runOptions) error {
	if cfg.Import.SourcePath == "" {
		return fmt.Errorf("no source file: set CAMINHO_PLANILHA or pass --source")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	spec, err := loadMapping(ctx, db, cfg, opts.strict)
	if err != nil {
		return err
	}

	delim, _ := utf8.DecodeRuneInString(cfg.Import.Delimiter)
	src, err := source.Open(cfg.Import.SourcePath, source.Options{
		Sheet:     cfg.Import.Sheet,
		Encoding:  cfg.Import.Encoding,
		Delimiter: delim,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	slog.Info("source opened", "path", cfg.Import.SourcePath, "columns", len(src.Header()))

	procOpts := core.Options{
		Workers:    cfg.Import.Workers,
		DryRun:     opts.dryRun,
		RowTimeout: cfg.Import.RowTimeout,
	}
	runner := core.NewRunner(core.NewRowProcessor(db, spec, procOpts), procOpts)

	summary, runErr := runner.Run(ctx, src)
	printSummary(out, spec, summary)
	if runErr != nil {
		return runErr
	}

	if opts.failOnError && summary.Failed > 0 {
		return &exitError{
			code: exitRowsFailed,
			err:  fmt.Errorf("%d of %d rows failed", summary.Failed, summary.Total),
		}
	}
	return nil
}

// printSummary writes the run totals, the per-table actions and the first
// failed rows.
func printSummary(w io.Writer, spec *mapping.Spec, s *core.Summary) {
	title := "Import"
	if s.DryRun {
		title = "Import (dry run, nothing kept)"
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Rows", "Imported", "Failed", "Skipped", "Duration"})
	t.AppendRow(table.Row{s.Total, s.Imported, s.Failed, s.Skipped, s.Duration.Round(time.Millisecond)})
	t.Render()

	if len(s.Tables) > 0 {
		tt := table.NewWriter()
		tt.SetOutputMirror(w)
		tt.SetStyle(table.StyleLight)
		tt.AppendHeader(table.Row{"Table", "Inserted", "Reused", "Skipped"})
		for _, key := range tableKeys(spec, s) {
			c := s.Tables[key]
			tt.AppendRow(table.Row{key, c.Inserted, c.Reused, c.Skipped})
		}
		tt.Render()
	}

	if len(s.Failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"Line", "Table", "Code", "Error"})
	for i, f := range s.Failures {
		if i == maxListedFailures {
			ft.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d more, see the log", len(s.Failures)-i)})
			break
		}
		ft.AppendRow(table.Row{f.Line, f.Table, f.Code, core.FormatUserError(f.Err)})
	}
	ft.Render()
}

// tableKeys lists the summary's tables in mapping order, then any others by name.
func tableKeys(spec *mapping.Spec, s *core.Summary) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, t := range spec.Tables() {
		if _, ok := s.Tables[t.Key]; ok {
			keys = append(keys, t.Key)
			seen[t.Key] = true
		}
	}
	var rest []string
	for key := range s.Tables {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
