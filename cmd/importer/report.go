package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/empenhos/internal/analytics"
	"github.com/JonMunkholm/empenhos/internal/config"
)

const dateLayout = "2006-01-02"

type reportOptions struct {
	from   string
	to     string
	top    int
	asJSON bool
}

func newReportCmd(a *app) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize imported commitments for a date range",
		Example: `  importer report --from 2024-01-01 --to 2024-01-31
  importer report --from 2024-01-01 --to 2024-12-31 --top 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := opts.dates()
			if err != nil {
				return err
			}
			return a.exec(cmd, nil, func(ctx context.Context) error {
				return runReport(ctx, cmd.OutOrStdout(), a.cfg, from, to, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "first emission date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "last emission date, YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.top, "top", 10, "payees and agencies to list")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (o *reportOptions) dates() (from, to time.Time, err error) {
	if from, err = time.Parse(dateLayout, o.from); err != nil {
		return from, to, fmt.Errorf("--from: %w", err)
	}
	if to, err = time.Parse(dateLayout, o.to); err != nil {
		return from, to, fmt.Errorf("--to: %w", err)
	}
	if from.After(to) {
		return from, to, analytics.ErrInvalidRange
	}
	return from, to, nil
}

func runReport(ctx context.Context, out io.Writer, cfg *config.Config, from, to time.Time, opts *reportOptions) error {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cs, err := analytics.NewRepository(db).Commitments(ctx, from, to)
	if err != nil {
		return err
	}
	report := analytics.Summarize(cs, from, to, opts.top, opts.top)

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

func printReport(w io.Writer, r analytics.Report) {
	fmt.Fprintf(w, "Commitments %s to %s: %d, total %s\n\n",
		r.From.Format(dateLayout), r.To.Format(dateLayout), r.Count, r.Total)

	rankedTable(w, "Top payees", "Payee", r.TopPayees)
	rankedTable(w, "Top agencies", "Agency", r.TopAgencies)
	rankedTable(w, "By category", "Category", r.Categories)

	if len(r.Timeline) == 0 {
		return
	}
	t := newTable(w, "Timeline")
	t.AppendHeader(table.Row{"Date", "Amount"})
	for _, p := range r.Timeline {
		t.AppendRow(table.Row{p.Date.Format(dateLayout), analytics.FormatBRL(p.Amount)})
	}
	t.Render()
}

func rankedTable(w io.Writer, title, name string, rows []analytics.Ranked) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, title)
	t.AppendHeader(table.Row{"#", name, "Amount"})
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Name, analytics.FormatBRL(r.Amount)})
	}
	t.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Amount", Align: text.AlignRight},
	})
	return t
}
