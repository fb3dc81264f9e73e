package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

type scrapeOptions struct {
	poll      string
	year      int
	week      int
	out       string
	print     bool
	transpose bool
}

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes one poll week and writes its output files",
		Long: `Fetches every voter ballot for the given poll week and writes the
structured JSON dump, the flat CSV, and the normal and transposed tables.
Ballots are also saved to Postgres when db.dsn is configured.`,
		Example: `  pollc scrape --poll ap --year 2018 --week 3
  pollc scrape --poll coaches --year 2018 --week 4 --out polls --print --transpose`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := poll.ParsePollType(opts.poll)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.poll, "poll", "", "poll to scrape: ap or coaches")
	cmd.Flags().IntVar(&opts.year, "year", 0, "season year")
	cmd.Flags().IntVar(&opts.week, "week", 1, "poll week (1-15; out-of-range values become 1)")
	cmd.Flags().StringVar(&opts.out, "out", "", "output directory (overrides output.dir)")
	cmd.Flags().BoolVar(&opts.print, "print", false, "print the rank table to stdout")
	cmd.Flags().BoolVar(&opts.transpose, "transpose", false, "print voters as rows instead of columns")
	_ = cmd.MarkFlagRequired("poll")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	pollType, err := poll.ParsePollType(opts.poll)
	if err != nil {
		return err
	}
	id := poll.NewIdentity(pollType, opts.year, opts.week)
	if id.Week != opts.week {
		rt.Logger.Warn("week out of range, using week 1", zap.Int("requested", opts.week))
	}

	set, err := rt.App.Scrape(cmd.Context(), id)
	if err != nil {
		return err
	}
	uris, err := rt.App.Export(cmd.Context(), set)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		fmt.Fprintln(cmd.ErrOrStderr(), "wrote", uri)
	}
	if _, err := rt.App.SaveBallots(cmd.Context(), set); err != nil {
		return err
	}
	if opts.print {
		printTable(cmd.OutOrStdout(), poll.RenderTable(set, opts.transpose))
	}
	return nil
}

// printTable renders a poll table for a terminal.
func printTable(w io.Writer, t poll.Table) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	for _, header := range t.Header {
		tw.AppendHeader(toRow(header))
	}
	for _, row := range t.Rows {
		tw.AppendRow(toRow(row))
	}
	tw.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
