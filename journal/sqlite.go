package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

// ErrNotFound is returned for unknown run or trade IDs.
var ErrNotFound = errors.New("not found")

// SQLite stores runs, per-symbol results, trades and equity curves.
type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun writes the whole run in one transaction. Recording the same run
// ID twice fails.
func (j *SQLite) RecordRun(ctx context.Context, r Run) error {
	if r.RunID == "" {
		return fmt.Errorf("journal: run id is empty")
	}
	params, err := yaml.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("journal: encode params: %w", err)
	}
	policy, err := yaml.Marshal(r.Policy)
	if err != nil {
		return fmt.Errorf("journal: encode policy: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, strategy, params, bar_interval, dataset, policy,
		 total_trades, net_pnl, total_return_pct, max_drawdown_pct, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Strategy, string(params), r.Interval.String(), r.Dataset, string(policy),
		r.Summary.TotalTrades, r.Summary.NetPnL, r.Summary.TotalReturnPct, r.Summary.MaxDrawdownPct,
		strings.Join(r.Notes, "\n"),
	)
	if err != nil {
		return fmt.Errorf("journal: insert run %s: %w", r.RunID, err)
	}

	for _, s := range r.Symbols {
		m := s.Metrics
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_symbols
			(run_id, symbol, status, error, start_time, end_time, bars, faults, final_cash, final_equity,
			 total_trades, wins, losses, win_rate, gross_profit, gross_loss, net_pnl, profit_factor,
			 total_return_pct, annualized_return_pct, sharpe_ratio, max_drawdown_pct,
			 avg_trade_duration, avg_trade_duration_hours, avg_trade_value, days_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, s.Symbol, string(s.Status), s.Error, nullTime(s.Start), nullTime(s.End),
			s.Bars, s.Faults, s.FinalCash, s.FinalEquity,
			m.TotalTrades, m.Wins, m.Losses, m.WinRate, m.GrossProfit, m.GrossLoss, m.NetPnL, finite(m.ProfitFactor),
			m.TotalReturnPct, m.AnnualizedReturnPct, m.SharpeRatio, m.MaxDrawdownPct,
			m.AvgTradeDuration, m.AvgTradeDurationHours, m.AverageTradeValue, m.DaysActive,
		)
		if err != nil {
			return fmt.Errorf("journal: insert %s/%s: %w", r.RunID, s.Symbol, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, trade_id, symbol, entry_time, entry_price, exit_time, exit_price,
		 size, status, pnl, pnl_after_cost, commission, duration, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range r.Trades {
		var exitTime any
		if t.ExitTime != nil {
			exitTime = t.ExitTime.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			r.RunID, t.TradeID, t.Symbol, t.EntryTime.UTC(), t.EntryPrice, exitTime, t.ExitPrice,
			t.Size, string(t.Status), t.PnL, t.PnLAfterCost, t.Commission, t.Duration, t.Reason,
		); err != nil {
			return fmt.Errorf("journal: insert trade %s: %w", t.TradeID, err)
		}
	}

	for _, s := range r.Symbols {
		for _, p := range r.Equity(s.Symbol) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO equity (run_id, symbol, time, equity, equity_pct, drawdown_pct)
				VALUES (?, ?, ?, ?, ?, ?)`,
				r.RunID, s.Symbol, p.Time.UTC(), p.Equity, p.EquityPct, p.DrawdownPct,
			)
			if err != nil {
				return fmt.Errorf("journal: insert equity %s: %w", s.Symbol, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its symbols and trades.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	var (
		r              Run
		params, policy string
		interval       string
		notes          string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, strategy, params, bar_interval, dataset, policy,
		       total_trades, net_pnl, total_return_pct, max_drawdown_pct, notes
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Strategy, &params, &interval, &r.Dataset, &policy,
		&r.Summary.TotalTrades, &r.Summary.NetPnL, &r.Summary.TotalReturnPct, &r.Summary.MaxDrawdownPct, &notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q %w", runID, ErrNotFound)
		}
		return Run{}, err
	}

	if err := yaml.Unmarshal([]byte(params), &r.Params); err != nil {
		return Run{}, fmt.Errorf("journal: decode params: %w", err)
	}
	if err := yaml.Unmarshal([]byte(policy), &r.Policy); err != nil {
		return Run{}, fmt.Errorf("journal: decode policy: %w", err)
	}
	if r.Interval, err = market.ParseInterval(interval); err != nil {
		return Run{}, fmt.Errorf("journal: decode interval: %w", err)
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}

	if r.Symbols, err = j.listSymbols(ctx, runID); err != nil {
		return Run{}, err
	}
	if r.Trades, err = j.ListTrades(ctx, runID); err != nil {
		return Run{}, err
	}
	return r, nil
}

// RunInfo is a row of ListRuns.
type RunInfo struct {
	RunID       string
	Created     time.Time
	Strategy    string
	TotalTrades int
	NetPnL      float64
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, created, strategy, total_trades, net_pnl
		FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var ri RunInfo
		if err := rows.Scan(&ri.RunID, &ri.Created, &ri.Strategy, &ri.TotalTrades, &ri.NetPnL); err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (j *SQLite) listSymbols(ctx context.Context, runID string) ([]SymbolRun, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, status, error, start_time, end_time, bars, faults, final_cash, final_equity,
		       total_trades, wins, losses, win_rate, gross_profit, gross_loss, net_pnl, profit_factor,
		       total_return_pct, annualized_return_pct, sharpe_ratio, max_drawdown_pct,
		       avg_trade_duration, avg_trade_duration_hours, avg_trade_value, days_active
		FROM run_symbols WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SymbolRun
	for rows.Next() {
		var (
			s          SymbolRun
			status     string
			start, end sql.NullTime
			pf         sql.NullFloat64
			m          metrics.Metrics
		)
		if err := rows.Scan(
			&s.Symbol, &status, &s.Error, &start, &end, &s.Bars, &s.Faults, &s.FinalCash, &s.FinalEquity,
			&m.TotalTrades, &m.Wins, &m.Losses, &m.WinRate, &m.GrossProfit, &m.GrossLoss, &m.NetPnL, &pf,
			&m.TotalReturnPct, &m.AnnualizedReturnPct, &m.SharpeRatio, &m.MaxDrawdownPct,
			&m.AvgTradeDuration, &m.AvgTradeDurationHours, &m.AverageTradeValue, &m.DaysActive,
		); err != nil {
			return nil, err
		}
		s.Status = backtest.Status(status)
		s.Start, s.End = start.Time, end.Time
		m.ProfitFactor = math.Inf(1)
		if pf.Valid {
			m.ProfitFactor = pf.Float64
		}
		s.Metrics = m
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// finite maps infinities to NULL, which SQLite cannot round-trip reliably.
func finite(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsInf(x, 0) && !math.IsNaN(x)}
}
