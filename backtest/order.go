package backtest

import (
	"fmt"
	"math"
	"time"
)

// Side is what an intent asks for.
type Side string

const (
	SideBuy   Side = "buy"
	SideSell  Side = "sell"
	SideClose Side = "close"
)

// OrderKind distinguishes plain market orders from brackets with stop and
// take-profit legs.
type OrderKind string

const (
	KindMarket  OrderKind = "market"
	KindBracket OrderKind = "bracket"
)

// OrderIntent is a strategy decision for one bar. Quantity 0 defers to the
// policy's sizing rule.
type OrderIntent struct {
	Side       Side
	Quantity   float64
	Kind       OrderKind
	Stop       *float64
	TakeProfit *float64
	Reason     string
}

// Buy opens a long at the sizing rule's quantity.
func Buy(reason string) *OrderIntent {
	return &OrderIntent{Side: SideBuy, Kind: KindMarket, Reason: reason}
}

// Sell opens a short at the sizing rule's quantity.
func Sell(reason string) *OrderIntent {
	return &OrderIntent{Side: SideSell, Kind: KindMarket, Reason: reason}
}

// Exit closes the open position.
func Exit(reason string) *OrderIntent {
	return &OrderIntent{Side: SideClose, Kind: KindMarket, Reason: reason}
}

// WithBracket attaches stop and take-profit legs. A zero take-profit leaves
// that leg off.
func (o *OrderIntent) WithBracket(stop, takeProfit float64) *OrderIntent {
	o.Kind = KindBracket
	s := stop
	o.Stop = &s
	if takeProfit != 0 {
		tp := takeProfit
		o.TakeProfit = &tp
	}
	return o
}

// direction is +1 for buys and -1 for sells.
func (o *OrderIntent) direction() float64 {
	if o.Side == SideSell {
		return -1
	}
	return 1
}

// check validates the intent against the price it was decided at.
func (o *OrderIntent) check(ref float64) error {
	switch o.Side {
	case SideBuy, SideSell, SideClose:
	default:
		return fmt.Errorf("unknown side %q", o.Side)
	}
	switch o.Kind {
	case "", KindMarket, KindBracket:
	default:
		return fmt.Errorf("unknown order kind %q", o.Kind)
	}
	if o.Quantity < 0 || math.IsNaN(o.Quantity) || math.IsInf(o.Quantity, 0) {
		return fmt.Errorf("bad quantity %v", o.Quantity)
	}
	if o.Side == SideClose {
		return nil
	}
	if o.Kind == KindBracket && o.Stop == nil {
		return fmt.Errorf("bracket without stop")
	}

	dir := o.direction()
	if o.Stop != nil {
		s := *o.Stop
		if !(s > 0) || math.IsInf(s, 0) || dir*(ref-s) <= 0 {
			return fmt.Errorf("stop %v on wrong side of %v for %s", s, ref, o.Side)
		}
	}
	if o.TakeProfit != nil {
		tp := *o.TakeProfit
		if !(tp > 0) || math.IsInf(tp, 0) || dir*(tp-ref) <= 0 {
			return fmt.Errorf("take profit %v on wrong side of %v for %s", tp, ref, o.Side)
		}
	}
	return nil
}

// Position is the simulator's view of the open trade. Size is signed.
type Position struct {
	Symbol        string
	Size          float64
	AvgEntryPrice float64
	UnrealizedPnL float64
	Stop          float64 // 0 means none
	TakeProfit    float64 // 0 means none
	TradeID       string
	EntryTime     time.Time

	commission float64
}

// Flat reports whether there is no open position.
func (p Position) Flat() bool { return p.Size == 0 }

// Long reports whether the position is a long.
func (p Position) Long() bool { return p.Size > 0 }

// Short reports whether the position is a short.
func (p Position) Short() bool { return p.Size < 0 }

func (p Position) stopHit(px float64) bool {
	switch {
	case p.Stop == 0:
		return false
	case p.Long():
		return px <= p.Stop
	case p.Short():
		return px >= p.Stop
	}
	return false
}

func (p Position) targetHit(px float64) bool {
	switch {
	case p.TakeProfit == 0:
		return false
	case p.Long():
		return px >= p.TakeProfit
	case p.Short():
		return px <= p.TakeProfit
	}
	return false
}

// OrderState is the lifecycle of the pending order slot.
type OrderState int

const (
	OrderNone OrderState = iota
	OrderPending
	OrderFilled
	OrderCancelled
)

func (s OrderState) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	default:
		return "flat"
	}
}

// PendingOrder is the single order slot. It moves
// none -> pending -> filled|cancelled and is cleared back to none.
type PendingOrder struct {
	State    OrderState
	Opening  bool
	Quantity float64
	Side     Side
	Stop     float64
	Target   float64
	Reason   string
	PlacedAt time.Time
}

func (o *PendingOrder) place(p PendingOrder) error {
	if o.State == OrderPending {
		return fmt.Errorf("order slot busy")
	}
	*o = p
	o.State = OrderPending
	return nil
}

func (o *PendingOrder) fill() error {
	if o.State != OrderPending {
		return fmt.Errorf("fill from state %s", o.State)
	}
	o.State = OrderFilled
	return nil
}

func (o *PendingOrder) cancel() error {
	if o.State != OrderPending {
		return fmt.Errorf("cancel from state %s", o.State)
	}
	o.State = OrderCancelled
	return nil
}

func (o *PendingOrder) clear() { *o = PendingOrder{} }

// Pending reports whether an order is waiting to fill.
func (o PendingOrder) Pending() bool { return o.State == OrderPending }
