package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/metrics"
)

const tradeColumns = `trade_id, symbol, entry_time, entry_price, exit_time, exit_price,
	size, status, pnl, pnl_after_cost, commission, duration, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (ledger.Trade, error) {
	var (
		t        ledger.Trade
		status   string
		exitTime sql.NullTime
		exitPx   sql.NullFloat64
	)
	err := row.Scan(
		&t.TradeID, &t.Symbol, &t.EntryTime, &t.EntryPrice, &exitTime, &exitPx,
		&t.Size, &status, &t.PnL, &t.PnLAfterCost, &t.Commission, &t.Duration, &t.Reason,
	)
	if err != nil {
		return ledger.Trade{}, err
	}
	t.Status = ledger.Status(status)
	if exitTime.Valid {
		et := exitTime.Time
		t.ExitTime = &et
	}
	if exitPx.Valid {
		ep := exitPx.Float64
		t.ExitPrice = &ep
	}
	return t, nil
}

// GetTrade returns a single trade of a run.
func (j *SQLite) GetTrade(ctx context.Context, runID, tradeID string) (ledger.Trade, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ? AND trade_id = ?`, runID, tradeID)

	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Trade{}, fmt.Errorf("trade %q %w", tradeID, ErrNotFound)
		}
		return ledger.Trade{}, err
	}
	return t, nil
}

// ListTrades returns a run's trades in entry order.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]ledger.Trade, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ?
		ORDER BY entry_time ASC, symbol ASC, trade_id ASC`, runID)
}

// ListTradesClosedBetween returns trades whose exit_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, runID string, start, end time.Time) ([]ledger.Trade, error) {
	return j.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ? AND exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC`, runID, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(ctx context.Context, q string, args ...any) ([]ledger.Trade, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns the stored per-trade equity curve of one symbol.
func (j *SQLite) ListEquity(ctx context.Context, runID, symbol string) ([]metrics.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, equity, equity_pct, drawdown_pct
		FROM equity
		WHERE run_id = ? AND symbol = ?
		ORDER BY time ASC, rowid ASC`, runID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.EquityPoint
	for rows.Next() {
		var p metrics.EquityPoint
		if err := rows.Scan(&p.Time, &p.Equity, &p.EquityPct, &p.DrawdownPct); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
