// Package ledger keeps the authoritative record of round-trip trades.
package ledger

import (
	"time"
)

// Status of a round-trip trade.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Trade is one round trip from flat back to flat. Size is signed: positive
// for longs, negative for shorts, and holds the largest size the position
// reached.
type Trade struct {
	TradeID      string
	Symbol       string
	EntryTime    time.Time
	EntryPrice   float64
	ExitTime     *time.Time
	ExitPrice    *float64
	Size         float64
	Status       Status
	PnL          float64
	PnLAfterCost float64
	Commission   float64
	// Duration is in bar units (days for daily bars), set at close.
	Duration float64
	Reason   string

	openQty   float64
	exitQty   float64
	exitValue float64
	lastSeq   int
}

// IsClosed reports whether the trade is frozen.
func (t Trade) IsClosed() bool { return t.Status == StatusClosed }

// Value is the notional at entry, |size| * entry price.
func (t Trade) Value() float64 {
	s := t.Size
	if s < 0 {
		s = -s
	}
	return s * t.EntryPrice
}

// Return is PnLAfterCost as a percentage of capital.
func (t Trade) Return(capital float64) float64 {
	if capital == 0 {
		return 0
	}
	return t.PnLAfterCost / capital * 100
}

func (t Trade) clone() Trade {
	c := t
	if t.ExitTime != nil {
		et := *t.ExitTime
		c.ExitTime = &et
	}
	if t.ExitPrice != nil {
		ep := *t.ExitPrice
		c.ExitPrice = &ep
	}
	return c
}

// Fill is one execution against a trade. Seq orders fills within a trade
// and makes replays detectable.
type Fill struct {
	TradeID    string
	Seq        int
	Symbol     string
	Time       time.Time
	Price      float64
	Size       float64 // unsigned quantity
	Opening    bool
	Commission float64
	Side       int // +1 long, -1 short; used when the fill opens the trade
}
