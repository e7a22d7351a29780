package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/journal"
)

func newReportCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Query runs stored in the SQLite journal",
	}

	cmd.AddCommand(
		newReportListCmd(rc),
		newReportShowCmd(rc),
		newReportTradeCmd(rc),
		newReportDayCmd(rc),
	)
	return cmd
}

func openDB(rc *rootConfig) (*journal.SQLite, error) {
	if rc.cfg.Journal.DBPath == "" {
		return nil, fmt.Errorf("no journal database configured (use --db)")
	}
	return journal.NewSQLite(rc.cfg.Journal.DBPath)
}

func newReportListCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSTRATEGY\tTRADES\tNET P/L")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\n",
					r.RunID, r.Created.UTC().Format(time.RFC3339), r.Strategy, r.TotalTrades, r.NetPnL)
			}
			return tw.Flush()
		},
	}
}

func newReportShowCmd(rc *rootConfig) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a run as an Org report or a trades CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			run, err := j.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch format {
			case "org":
				return journal.WriteOrg(cmd.OutOrStdout(), run)
			case "csv":
				return journal.WriteTradesCSV(cmd.OutOrStdout(), run.Trades)
			default:
				return fmt.Errorf("unknown format %q (org|csv)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "org", "Output format: org|csv")
	return cmd
}

func newReportTradeCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "trade RUN_ID TRADE_ID",
		Short: "Print one trade as an Org block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			t, err := j.GetTrade(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), journal.FormatTradeOrg(t))
			return nil
		},
	}
}

func newReportDayCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "day RUN_ID YYYY-MM-DD",
		Short: "Print the trades of a run that closed on a UTC day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dayBounds(time.UTC, args[1])
			if err != nil {
				return fmt.Errorf("date: %w", err)
			}

			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListTradesClosedBetween(cmd.Context(), args[0], start, end)
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	}
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
