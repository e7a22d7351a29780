package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/internal/telemetry"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/strategies"
)

func newRunCmd(rc *rootConfig) *cobra.Command {
	var (
		symbols     string
		strategy    string
		params      map[string]string
		dataDir     string
		format      string
		interval    string
		from        string
		to          string
		workers     int
		nextBar     bool
		fillPrice   string
		forcedClose string
		cash        float64
		commission  float64
		riskPer     float64
		metricsOut  string
		csvDir      string
		parquetDir  string
		orgDir      string
		dataset     string
		notes       []string
	)

	cmd := &cobra.Command{
		Use:   "run [SYMBOL...]",
		Short: "Backtest a strategy over one or more symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			f := cmd.Flags()

			if f.Changed("symbols") {
				cfg.Data.Symbols = config.SplitSymbols(symbols)
			}
			if len(args) > 0 {
				cfg.Data.Symbols = config.SplitSymbols(strings.Join(args, ","))
			}
			if f.Changed("strategy") {
				cfg.Strategy.Name = strategy
			}
			if f.Changed("param") {
				p, err := parseParams(params)
				if err != nil {
					return err
				}
				if cfg.Strategy.Params == nil {
					cfg.Strategy.Params = map[string]float64{}
				}
				for k, v := range p {
					cfg.Strategy.Params[k] = v
				}
			}
			setString(f.Changed("data-dir"), &cfg.Data.Dir, dataDir)
			setString(f.Changed("format"), &cfg.Data.Format, format)
			setString(f.Changed("interval"), &cfg.Data.Interval, interval)
			setString(f.Changed("from"), &cfg.Data.From, from)
			setString(f.Changed("to"), &cfg.Data.To, to)
			setString(f.Changed("forced-close"), &cfg.Policy.ForcedClose, forcedClose)
			setString(f.Changed("metrics-out"), &cfg.Run.MetricsOut, metricsOut)
			setString(f.Changed("csv-dir"), &cfg.Journal.CSVDir, csvDir)
			setString(f.Changed("parquet-dir"), &cfg.Journal.ParquetDir, parquetDir)
			setString(f.Changed("org-dir"), &cfg.Journal.OrgDir, orgDir)
			if f.Changed("fill-price") {
				cfg.Policy.FillPrice = backtest.FillPrice(fillPrice)
			}
			if f.Changed("next-bar") {
				cfg.Policy.SameBarFill = !nextBar
			}
			if f.Changed("cash") {
				cfg.Policy.StartingCash = cash
			}
			if f.Changed("commission") {
				cfg.Policy.CommissionRate = commission
			}
			if f.Changed("risk-per-trade") {
				cfg.Policy.RiskPerTrade = riskPer
			}
			if f.Changed("workers") {
				cfg.Run.Workers = workers
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			_, err := runBatch(cmd.Context(), cmd.OutOrStdout(), rc.log, cfg, dataset, notes)
			return err
		},
	}

	cmd.Flags().StringVar(&symbols, "symbols", "", "Comma separated symbols")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Strategy name (see 'backtester strategies')")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Strategy parameter override, key=value (repeatable)")

	// Data
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory of <SYMBOL>.csv or <SYMBOL>.parquet files")
	cmd.Flags().StringVar(&format, "format", "", "Bar file format: csv|parquet")
	cmd.Flags().StringVar(&interval, "interval", "", "Bar interval, e.g. D1, H1, M15")
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD (exclusive)")

	// Execution policy
	cmd.Flags().BoolVar(&nextBar, "next-bar", false, "Fill orders at the next bar's open")
	cmd.Flags().StringVar(&fillPrice, "fill-price", "", "Same-bar fill price: open|close")
	cmd.Flags().StringVar(&forcedClose, "forced-close", "", "Forced close: none|monthly|<cron expr>")
	cmd.Flags().Float64Var(&cash, "cash", 0, "Starting cash")
	cmd.Flags().Float64Var(&commission, "commission", 0, "Commission rate per fill (0.001 = 0.1%)")
	cmd.Flags().Float64Var(&riskPer, "risk-per-trade", 0, "Cap entries so a stop-out loses at most this fraction of equity")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent symbols (0 = one per CPU)")

	// Outputs
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus textfile metrics here")
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "Write trades/symbols/equity CSV under this directory")
	cmd.Flags().StringVar(&parquetDir, "parquet-dir", "", "Write the trade ledger as Parquet under this directory")
	cmd.Flags().StringVar(&orgDir, "org-dir", "", "Write an Org report under this directory")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset label stored with the run")
	cmd.Flags().StringArrayVar(&notes, "note", nil, "Note stored with the run (repeatable)")

	return cmd
}

// runBatch executes cfg, prints the per-symbol table and records the run in
// every configured journal.
func runBatch(ctx context.Context, out io.Writer, log logrus.FieldLogger, cfg *config.Config, dataset string, notes []string) (journal.Run, error) {
	factory, err := strategies.Factory(cfg.Strategy.Name, strategies.Params(cfg.Strategy.Params))
	if err != nil {
		return journal.Run{}, err
	}
	probe, err := factory()
	if err != nil {
		return journal.Run{}, err
	}
	iv, err := cfg.Data.BarInterval()
	if err != nil {
		return journal.Run{}, err
	}
	from, to, err := cfg.Data.Range()
	if err != nil {
		return journal.Run{}, err
	}

	runID := id.New()
	log = log.WithField("run_id", runID)

	col := telemetry.New()
	b := backtest.Batch{
		Symbols:     cfg.Data.Symbols,
		Load:        fileLoader(cfg.Data, iv, from, to),
		NewStrategy: factory,
		Policy:      cfg.Policy,
		Workers:     cfg.Run.Workers,
		Options: []backtest.Option{
			backtest.WithLogger(log),
			backtest.WithObserver(col),
			backtest.WithTradingDays(cfg.Run.TradingDays),
		},
	}

	log.WithFields(logrus.Fields{
		"strategy": probe.Name(),
		"symbols":  len(cfg.Data.Symbols),
	}).Info("batch started")
	start := time.Now()

	res, err := backtest.RunBatch(ctx, b)
	if err != nil {
		return journal.Run{}, err
	}
	for _, r := range res.Results {
		if r.Err != nil && r.Status != backtest.StatusNoTrades {
			log.WithField("symbol", r.Symbol).WithError(r.Err).Warn("symbol failed")
		}
	}
	log.WithField("elapsed", time.Since(start).String()).Info("batch finished")

	mp := metrics.Params{BarInterval: iv, TradingDaysPerYear: cfg.Run.TradingDays}
	run := journal.NewRun(runID, probe.Name(), cfg.Strategy.Params, cfg.Policy, mp, res)
	run.Dataset = dataset
	if run.Dataset == "" {
		run.Dataset = cfg.Data.Dir
	}
	run.Notes = notes

	printRun(out, run)
	fmt.Fprintln(out, res.Summary())
	fmt.Fprintf(out, "run %s\n", run.RunID)

	sink, err := openJournals(cfg.Journal)
	if err != nil {
		return run, err
	}
	if err := sink.RecordRun(ctx, run); err != nil {
		_ = sink.Close()
		return run, fmt.Errorf("record run: %w", err)
	}
	if err := sink.Close(); err != nil {
		return run, err
	}

	if cfg.Run.MetricsOut != "" {
		col.RecordBatch(res)
		if err := col.WriteTextfile(cfg.Run.MetricsOut); err != nil {
			return run, fmt.Errorf("write metrics: %w", err)
		}
	}
	return run, nil
}

func fileLoader(d config.DataConfig, iv market.Interval, from, to time.Time) backtest.Loader {
	return func(ctx context.Context, symbol string) (*market.Series, error) {
		s, err := market.Load(d.Path(symbol), symbol, iv)
		if err != nil {
			return nil, err
		}
		if from.IsZero() && to.IsZero() {
			return s, nil
		}
		return s.Slice(from, to)
	}
}

func openJournals(c config.JournalConfig) (journal.Multi, error) {
	var m journal.Multi
	if c.DBPath != "" {
		j, err := journal.NewSQLite(c.DBPath)
		if err != nil {
			return nil, err
		}
		m = append(m, j)
	}
	if c.CSVDir != "" {
		j, err := journal.NewCSV(c.CSVDir)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m = append(m, j)
	}
	if c.ParquetDir != "" {
		m = append(m, journal.NewParquet(c.ParquetDir))
	}
	if c.OrgDir != "" {
		j, err := journal.NewOrg(c.OrgDir)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m = append(m, j)
	}
	return m, nil
}

func printRun(out io.Writer, r journal.Run) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTATUS\tBARS\tTRADES\tWIN%\tNET P/L\tRETURN%\tMAX DD%\tSHARPE\tFAULTS")
	for _, s := range r.Symbols {
		m := s.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			s.Symbol, s.Status, s.Bars, m.TotalTrades, m.WinRate, m.NetPnL,
			m.TotalReturnPct, m.MaxDrawdownPct, m.SharpeRatio, s.Faults)
	}
	m := r.Summary
	fmt.Fprintf(tw, "ALL\t\t\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
		m.TotalTrades, m.WinRate, m.NetPnL, m.TotalReturnPct, m.MaxDrawdownPct, m.SharpeRatio)
	_ = tw.Flush()
}

// parseParams accepts numbers and true/false for boolean switches.
func parseParams(in map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		switch strings.ToLower(v) {
		case "true":
			out[k] = 1
		case "false":
			out[k] = 0
		default:
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", k, err)
			}
			out[k] = x
		}
	}
	return out, nil
}

func setString(changed bool, dst *string, v string) {
	if changed {
		*dst = v
	}
}
