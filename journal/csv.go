package journal

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/metrics"
)

var (
	tradeHeader = []string{
		"trade_id", "symbol", "entry_time", "entry_price", "exit_time", "exit_price",
		"size", "status", "pnl", "pnl_after_cost", "commission", "duration", "reason",
	}
	symbolHeader = []string{
		"symbol", "status", "error", "bars", "faults", "final_equity",
		"total_trades", "wins", "losses", "win_rate", "net_pnl", "profit_factor",
		"total_return_pct", "annualized_return_pct", "sharpe_ratio", "max_drawdown_pct",
		"avg_trade_duration", "avg_trade_duration_hours", "avg_trade_value",
	}
	equityHeader = []string{"symbol", "time", "equity", "equity_pct", "drawdown_pct"}
)

// WriteTradesCSV writes one row per trade. Open trades leave the exit
// columns empty.
func WriteTradesCSV(w io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		exitTime, exitPx := "", ""
		if t.ExitTime != nil {
			exitTime = t.ExitTime.UTC().Format(time.RFC3339)
		}
		if t.ExitPrice != nil {
			exitPx = f(*t.ExitPrice)
		}
		if err := cw.Write([]string{
			t.TradeID,
			t.Symbol,
			t.EntryTime.UTC().Format(time.RFC3339),
			f(t.EntryPrice),
			exitTime,
			exitPx,
			f(t.Size),
			string(t.Status),
			f(t.PnL),
			f(t.PnLAfterCost),
			f(t.Commission),
			f(t.Duration),
			t.Reason,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSymbolsCSV writes the per-symbol status and metrics table.
func WriteSymbolsCSV(w io.Writer, symbols []SymbolRun) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(symbolHeader); err != nil {
		return err
	}
	for _, s := range symbols {
		m := s.Metrics
		if err := cw.Write([]string{
			s.Symbol,
			string(s.Status),
			s.Error,
			strconv.Itoa(s.Bars),
			strconv.Itoa(s.Faults),
			f(s.FinalEquity),
			strconv.Itoa(m.TotalTrades),
			strconv.Itoa(m.Wins),
			strconv.Itoa(m.Losses),
			f(m.WinRate),
			f(m.NetPnL),
			f(m.ProfitFactor),
			f(m.TotalReturnPct),
			f(m.AnnualizedReturnPct),
			f(m.SharpeRatio),
			f(m.MaxDrawdownPct),
			f(m.AvgTradeDuration),
			f(m.AvgTradeDurationHours),
			f(m.AverageTradeValue),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes an equity curve tagged with symbol.
func WriteEquityCSV(w io.Writer, symbol string, pts []metrics.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, p := range pts {
		if err := cw.Write([]string{
			symbol,
			p.Time.UTC().Format(time.RFC3339),
			f(p.Equity),
			f(p.EquityPct),
			f(p.DrawdownPct),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVJournal writes each run into <dir>/<run id>/ as trades.csv,
// symbols.csv and equity.csv, the last holding the combined curve.
type CSVJournal struct {
	dir string
}

var _ Journal = (*CSVJournal)(nil)

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVJournal{dir: dir}, nil
}

// RunDir is where RecordRun puts a run's files.
func (j *CSVJournal) RunDir(runID string) string {
	return filepath.Join(j.dir, runID)
}

func (j *CSVJournal) RecordRun(ctx context.Context, r Run) error {
	dir := j.RunDir(r.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	writers := map[string]func(io.Writer) error{
		"trades.csv":  func(w io.Writer) error { return WriteTradesCSV(w, r.Trades) },
		"symbols.csv": func(w io.Writer) error { return WriteSymbolsCSV(w, r.Symbols) },
		"equity.csv":  func(w io.Writer) error { return WriteEquityCSV(w, "", r.Equity("")) },
	}
	for name, write := range writers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, name), write); err != nil {
			return err
		}
	}
	return nil
}

func (j *CSVJournal) Close() error { return nil }

func writeFile(path string, write func(io.Writer) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func f(x float64) string {
	if math.IsInf(x, 1) {
		return "inf"
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}
