package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/backtester/market"
)

var (
	ErrUnknownTrade = errors.New("unknown trade")
	ErrTradeClosed  = errors.New("trade already closed")
)

// Ledger accumulates fills into trades keyed by trade ID. It is safe for
// concurrent readers while a single simulator writes.
type Ledger struct {
	mu       sync.RWMutex
	interval market.Interval
	trades   map[string]*Trade
	order    []string
}

// New creates a ledger whose durations are measured in iv units.
func New(iv market.Interval) *Ledger {
	return &Ledger{
		interval: iv,
		trades:   make(map[string]*Trade),
	}
}

// Interval is the bar interval durations are expressed in.
func (l *Ledger) Interval() market.Interval { return l.interval }

// RecordFill creates the trade on first sight or folds the fill into it.
// A fill whose Seq is not newer than the last applied one for that trade is
// a replay and is ignored. It reports whether the fill was applied.
func (l *Ledger) RecordFill(f Fill) (bool, error) {
	if f.TradeID == "" {
		return false, fmt.Errorf("fill without trade id")
	}
	if f.Size <= 0 || math.IsNaN(f.Size) || math.IsNaN(f.Price) || f.Price <= 0 {
		return false, fmt.Errorf("trade %s: invalid fill size=%v price=%v", f.TradeID, f.Size, f.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[f.TradeID]
	if !ok {
		if !f.Opening {
			return false, fmt.Errorf("%w: closing fill for %s", ErrUnknownTrade, f.TradeID)
		}
		side := float64(f.Side)
		if side == 0 {
			side = 1
		}
		t = &Trade{
			TradeID:    f.TradeID,
			Symbol:     f.Symbol,
			EntryTime:  f.Time,
			EntryPrice: f.Price,
			Size:       side * f.Size,
			Status:     StatusOpen,
			Commission: f.Commission,
			openQty:    f.Size,
			lastSeq:    f.Seq,
		}
		l.trades[f.TradeID] = t
		l.order = append(l.order, f.TradeID)
		return true, nil
	}

	if f.Seq <= t.lastSeq {
		return false, nil
	}
	if t.Status == StatusClosed {
		return false, fmt.Errorf("%w: %s", ErrTradeClosed, f.TradeID)
	}
	t.lastSeq = f.Seq
	t.Commission += f.Commission

	if f.Opening {
		// Scale in: size-weighted average entry.
		total := t.openQty + f.Size
		t.EntryPrice = (t.EntryPrice*t.openQty + f.Price*f.Size) / total
		t.openQty = total
		if t.Size < 0 {
			t.Size = -total
		} else {
			t.Size = total
		}
		return true, nil
	}

	t.exitValue += f.Price * f.Size
	t.exitQty += f.Size
	px := t.exitValue / t.exitQty
	et := f.Time
	t.ExitPrice = &px
	t.ExitTime = &et
	return true, nil
}

// Close freezes the trade with its realized results and computes duration
// in bar units.
func (l *Ledger) Close(tradeID string, at time.Time, price, pnl, pnlAfterCost float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[tradeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrade, tradeID)
	}
	if t.Status == StatusClosed {
		return fmt.Errorf("%w: %s", ErrTradeClosed, tradeID)
	}
	if at.Before(t.EntryTime) {
		return fmt.Errorf("trade %s: exit %s before entry %s", tradeID, at, t.EntryTime)
	}

	et := at
	px := price
	t.ExitTime = &et
	t.ExitPrice = &px
	t.PnL = pnl
	t.PnLAfterCost = pnlAfterCost
	t.Duration = l.interval.Bars(at.Sub(t.EntryTime))
	t.Status = StatusClosed
	return nil
}

// SetReason annotates an open trade with why it was exited.
func (l *Ledger) SetReason(tradeID, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.trades[tradeID]; ok && t.Status == StatusOpen {
		t.Reason = reason
	}
}

// Get returns a copy of one trade.
func (l *Ledger) Get(tradeID string) (Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.trades[tradeID]
	if !ok {
		return Trade{}, false
	}
	return t.clone(), true
}

// Len is the number of trades, open or closed.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Snapshot returns a point-in-time copy of every trade ordered by entry time.
func (l *Ledger) Snapshot() []Trade {
	l.mu.RLock()
	out := make([]Trade, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.trades[id].clone())
	}
	l.mu.RUnlock()

	SortByEntry(out)
	return out
}

// Closed filters trades down to closed ones.
func Closed(trades []Trade) []Trade {
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == StatusClosed {
			out = append(out, t)
		}
	}
	return out
}

// SortByEntry orders trades by entry time, then symbol and ID for ties.
func SortByEntry(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.TradeID < b.TradeID
	})
}

// Merge combines per-instrument snapshots into one entry-ordered slice.
func Merge(sets ...[]Trade) []Trade {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]Trade, 0, n)
	for _, s := range sets {
		for _, t := range s {
			out = append(out, t.clone())
		}
	}
	SortByEntry(out)
	return out
}
