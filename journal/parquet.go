package journal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/backtester/ledger"
)

// TradeRow is the Parquet schema for ledger exports. Times are Unix
// milliseconds; exit columns are null while a trade is open.
type TradeRow struct {
	RunID        string   `parquet:"run_id"`
	TradeID      string   `parquet:"trade_id"`
	Symbol       string   `parquet:"symbol"`
	EntryTime    int64    `parquet:"entry_time,timestamp(millisecond)"`
	EntryPrice   float64  `parquet:"entry_price"`
	ExitTime     *int64   `parquet:"exit_time,optional"`
	ExitPrice    *float64 `parquet:"exit_price,optional"`
	Size         float64  `parquet:"size"`
	Status       string   `parquet:"status"`
	PnL          float64  `parquet:"pnl"`
	PnLAfterCost float64  `parquet:"pnl_after_cost"`
	Commission   float64  `parquet:"commission"`
	Duration     float64  `parquet:"duration"`
	Reason       string   `parquet:"reason"`
}

func toRow(runID string, t ledger.Trade) TradeRow {
	row := TradeRow{
		RunID:        runID,
		TradeID:      t.TradeID,
		Symbol:       t.Symbol,
		EntryTime:    t.EntryTime.UnixMilli(),
		EntryPrice:   t.EntryPrice,
		Size:         t.Size,
		Status:       string(t.Status),
		PnL:          t.PnL,
		PnLAfterCost: t.PnLAfterCost,
		Commission:   t.Commission,
		Duration:     t.Duration,
		Reason:       t.Reason,
	}
	if t.ExitTime != nil {
		ms := t.ExitTime.UnixMilli()
		row.ExitTime = &ms
	}
	if t.ExitPrice != nil {
		px := *t.ExitPrice
		row.ExitPrice = &px
	}
	return row
}

// Trade converts the row back into a ledger trade.
func (r TradeRow) Trade() ledger.Trade {
	t := ledger.Trade{
		TradeID:      r.TradeID,
		Symbol:       r.Symbol,
		EntryTime:    time.UnixMilli(r.EntryTime).UTC(),
		EntryPrice:   r.EntryPrice,
		Size:         r.Size,
		Status:       ledger.Status(r.Status),
		PnL:          r.PnL,
		PnLAfterCost: r.PnLAfterCost,
		Commission:   r.Commission,
		Duration:     r.Duration,
		Reason:       r.Reason,
	}
	if r.ExitTime != nil {
		et := time.UnixMilli(*r.ExitTime).UTC()
		t.ExitTime = &et
	}
	if r.ExitPrice != nil {
		px := *r.ExitPrice
		t.ExitPrice = &px
	}
	return t
}

// WriteTradesParquet stores trades in the TradeRow schema.
func WriteTradesParquet(path, runID string, trades []ledger.Trade) error {
	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, toRow(runID, t))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

// ReadTradesParquet loads a file written by WriteTradesParquet.
func ReadTradesParquet(path string) ([]TradeRow, error) {
	return parquet.ReadFile[TradeRow](path)
}

// ParquetJournal writes each run to <dir>/<run id>.parquet.
type ParquetJournal struct {
	dir string
}

var _ Journal = (*ParquetJournal)(nil)

func NewParquet(dir string) *ParquetJournal { return &ParquetJournal{dir: dir} }

func (j *ParquetJournal) Path(runID string) string {
	return filepath.Join(j.dir, runID+".parquet")
}

func (j *ParquetJournal) RecordRun(ctx context.Context, r Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteTradesParquet(j.Path(r.RunID), r.RunID, r.Trades)
}

func (j *ParquetJournal) Close() error { return nil }
