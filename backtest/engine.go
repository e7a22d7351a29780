package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
)

// Exit reasons recorded on closed trades.
const (
	ReasonStop        = "stop"
	ReasonTakeProfit  = "take_profit"
	ReasonForcedClose = "forced_close"
	ReasonEndOfData   = "end_of_data"
	ReasonSignal      = "signal"
)

// minHold separates an exit from an entry stamped at the same instant, as
// when a position opened at the final bar's close is closed by Finalize.
const minHold = time.Second

// Option customizes a Simulator or a Run.
type Option func(*options)

type options struct {
	log         logrus.FieldLogger
	obs         Observer
	interval    market.Interval
	tradingDays float64
}

func defaultOptions() options {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return options{
		log:         l,
		obs:         nopObserver{},
		interval:    market.Daily,
		tradingDays: 252,
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithInterval sets the bar interval used for fill timestamps and trade
// durations. Run derives it from the series.
func WithInterval(iv market.Interval) Option {
	return func(o *options) { o.interval = iv }
}

// WithTradingDays sets the trading days per year used by metrics.
func WithTradingDays(n float64) Option {
	return func(o *options) { o.tradingDays = n }
}

// Simulator replays one instrument's bars through a strategy under an
// execution policy and books the result in a ledger. It is not safe for
// concurrent use; run one simulator per instrument.
type Simulator struct {
	symbol   string
	policy   Policy
	strategy Strategy
	sched    *schedule
	opts     options
	log      logrus.FieldLogger

	cash     decimal.Decimal
	rate     decimal.Decimal
	fraction decimal.Decimal
	minUnit  decimal.Decimal

	pos    Position
	order  PendingOrder
	ledger *ledger.Ledger

	tradeSeq  int
	fillSeq   int
	last      market.Bar
	bars      int
	faults    int
	finalized bool
}

// New validates the policy and returns a simulator ready for its first bar.
func New(symbol string, policy Policy, strategy Strategy, opts ...Option) (*Simulator, error) {
	if symbol == "" {
		return nil, configErr("symbol", "must not be empty")
	}
	if strategy == nil {
		return nil, configErr("strategy", "must not be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	sched, err := parseSchedule(policy.ForcedClose)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		return nil, configErr("interval", "must be positive")
	}

	return &Simulator{
		symbol:   symbol,
		policy:   policy,
		strategy: strategy,
		sched:    sched,
		opts:     o,
		log: o.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"strategy": strategy.Name(),
		}),
		cash:     decimal.NewFromFloat(policy.StartingCash),
		rate:     decimal.NewFromFloat(policy.CommissionRate),
		fraction: decimal.NewFromFloat(policy.SizingFraction),
		minUnit:  decimal.NewFromFloat(policy.MinUnit),
		pos:      Position{Symbol: symbol},
		ledger:   ledger.New(o.interval),
	}, nil
}

func (s *Simulator) Symbol() string { return s.symbol }

// Position returns a copy of the current position.
func (s *Simulator) Position() Position { return s.pos }

// Order returns a copy of the pending order slot.
func (s *Simulator) Order() PendingOrder { return s.order }

// Cash is the account's free cash.
func (s *Simulator) Cash() float64 {
	f, _ := s.cash.Float64()
	return f
}

// Equity is cash plus the open position marked at the last close.
func (s *Simulator) Equity() float64 {
	f, _ := s.equity().Float64()
	return f
}

func (s *Simulator) equity() decimal.Decimal {
	if s.pos.Flat() {
		return s.cash
	}
	return s.cash.Add(decimal.NewFromFloat(s.pos.Size).Mul(decimal.NewFromFloat(s.last.Close)))
}

// Faults is the number of strategy faults seen so far.
func (s *Simulator) Faults() int { return s.faults }

// Bars is the number of bars stepped.
func (s *Simulator) Bars() int { return s.bars }

// Ledger exposes the live ledger; prefer Snapshot for reading.
func (s *Simulator) Ledger() *ledger.Ledger { return s.ledger }

// Step advances the simulation by one bar. snap must hold indicator values
// computed from bars up to and including bar.
func (s *Simulator) Step(bar market.Bar, snap indicators.Snapshot) error {
	if s.finalized {
		return ErrFinalized
	}
	if err := bar.Validate(s.symbol, s.bars); err != nil {
		return err
	}
	if s.bars > 0 && !bar.Time.After(s.last.Time) {
		return &market.DataError{
			Symbol: s.symbol,
			Index:  s.bars,
			Reason: fmt.Sprintf("bar time %s not after %s", bar.Time.Format(time.RFC3339), s.last.Time.Format(time.RFC3339)),
		}
	}

	prev := s.last
	s.last = bar
	s.bars++
	s.opts.obs.BarProcessed(s.symbol)
	log := s.log.WithField("bar", bar.Time.Format(time.RFC3339))

	if s.bars > 1 && !s.pos.Flat() && s.sched.fires(prev.Time, bar.Time) {
		if s.order.Pending() {
			s.cancelOrder(log, "forced close")
		}
		px, at := s.fillPoint(bar)
		if err := s.closePosition(log, px, at, ReasonForcedClose); err != nil {
			return err
		}
		s.mark()
		return nil
	}

	acted := false
	if !s.policy.SameBarFill && s.order.Pending() {
		filled, err := s.fillOrder(log, bar.Open, bar.Time)
		if err != nil {
			return err
		}
		acted = filled
	}

	if !s.pos.Flat() {
		exited, err := s.manage(log, bar, snap)
		if err != nil {
			return err
		}
		acted = acted || exited
	} else if !s.order.Pending() && !acted {
		s.enter(log, bar, snap)
	}

	if s.policy.SameBarFill && s.order.Pending() {
		px, at := s.fillPoint(bar)
		if _, err := s.fillOrder(log, px, at); err != nil {
			return err
		}
	}

	s.mark()
	return nil
}

// Finalize closes any open position at the last close and returns the
// ledger. The simulator accepts no further bars.
func (s *Simulator) Finalize() (*ledger.Ledger, error) {
	if s.finalized {
		return nil, ErrFinalized
	}
	s.finalized = true

	reason := ReasonEndOfData
	if s.order.Pending() {
		// An exit already triggered keeps its reason.
		if s.order.Side == SideClose && s.order.Reason != "" {
			reason = s.order.Reason
		}
		s.cancelOrder(s.log, "end of data")
	}
	if !s.pos.Flat() {
		if err := s.closePosition(s.log, s.last.Close, s.barEnd(s.last), reason); err != nil {
			return nil, err
		}
	}
	s.log.WithFields(logrus.Fields{
		"bars":   s.bars,
		"trades": s.ledger.Len(),
		"faults": s.faults,
	}).Debug("simulation finalized")
	return s.ledger, nil
}

// manage handles exits for an open position. It reports whether the
// position was closed on this bar.
func (s *Simulator) manage(log logrus.FieldLogger, bar market.Bar, snap indicators.Snapshot) (bool, error) {
	if s.pos.stopHit(bar.Close) {
		return true, s.closePosition(log, s.pos.Stop, s.barEnd(bar), ReasonStop)
	}
	if s.order.Pending() {
		return false, nil
	}
	if s.pos.targetHit(bar.Close) {
		s.placeClose(bar, ReasonTakeProfit)
		return false, nil
	}

	intent := s.decide(log, bar, snap)
	if intent == nil {
		return false, nil
	}
	if intent.Side != SideClose {
		log.WithField("side", intent.Side).Debug("entry ignored while positioned")
		return false, nil
	}
	reason := intent.Reason
	if reason == "" {
		reason = ReasonSignal
	}
	s.placeClose(bar, reason)
	return false, nil
}

func (s *Simulator) enter(log logrus.FieldLogger, bar market.Bar, snap indicators.Snapshot) {
	intent := s.decide(log, bar, snap)
	if intent == nil || intent.Side == SideClose {
		return
	}

	var qty float64
	if intent.Quantity > 0 {
		qty = s.truncate(decimal.NewFromFloat(intent.Quantity))
	} else {
		qty = s.size(bar.Close)
		if intent.Stop != nil {
			qty = min(qty, s.riskCap(bar.Close, *intent.Stop))
		}
	}
	if qty <= 0 {
		log.WithField("side", intent.Side).Warn("entry sized to zero, skipped")
		return
	}

	o := PendingOrder{
		Opening:  true,
		Quantity: qty,
		Side:     intent.Side,
		Reason:   intent.Reason,
		PlacedAt: bar.Time,
	}
	if intent.Stop != nil {
		o.Stop = *intent.Stop
	}
	if intent.TakeProfit != nil {
		o.Target = *intent.TakeProfit
	}
	if err := s.order.place(o); err != nil {
		log.WithError(err).Warn("entry not placed")
	}
}

func (s *Simulator) placeClose(bar market.Bar, reason string) {
	_ = s.order.place(PendingOrder{
		Quantity: math.Abs(s.pos.Size),
		Side:     SideClose,
		Reason:   reason,
		PlacedAt: bar.Time,
	})
}

// decide asks the strategy for an intent. Errors, panics and malformed
// intents become counted faults and yield no decision.
func (s *Simulator) decide(log logrus.FieldLogger, bar market.Bar, snap indicators.Snapshot) *OrderIntent {
	var (
		intent *OrderIntent
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		intent, err = s.strategy.Decide(bar, snap, s.pos)
	}()
	if err == nil && intent != nil {
		err = intent.check(bar.Close)
	}
	if err != nil {
		fault := &StrategyFault{
			Symbol:   s.symbol,
			Strategy: s.strategy.Name(),
			Time:     bar.Time,
			Err:      err,
		}
		s.faults++
		s.opts.obs.Fault(s.symbol)
		log.WithError(fault).Warn("strategy fault, bar skipped")
		return nil
	}
	return intent
}

// fillOrder resolves the pending order at px. It reports whether a fill
// happened; a cancelled order is not an error.
func (s *Simulator) fillOrder(log logrus.FieldLogger, px float64, at time.Time) (bool, error) {
	o := s.order

	if o.Opening {
		qty := s.affordable(o.Quantity, px)
		if qty <= 0 {
			s.cancelOrder(log, "insufficient cash")
			return false, nil
		}
		if qty < o.Quantity {
			log.WithFields(logrus.Fields{
				"wanted": o.Quantity,
				"filled": qty,
			}).Info("quantity clamped to available cash")
		}
		_ = s.order.fill()
		s.order.clear()
		return true, s.openPosition(log, o, qty, px, at)
	}

	if s.pos.Flat() {
		s.cancelOrder(log, "nothing to close")
		return false, nil
	}
	_ = s.order.fill()
	s.order.clear()
	return true, s.closePosition(log, px, at, o.Reason)
}

func (s *Simulator) cancelOrder(log logrus.FieldLogger, why string) {
	if err := s.order.cancel(); err != nil {
		return
	}
	log.WithFields(logrus.Fields{
		"side":     s.order.Side,
		"quantity": s.order.Quantity,
		"reason":   why,
	}).Info("order cancelled")
	s.order.clear()
}

func (s *Simulator) openPosition(log logrus.FieldLogger, o PendingOrder, qty, px float64, at time.Time) error {
	s.tradeSeq++
	s.fillSeq = 1
	id := fmt.Sprintf("%s-%06d", s.symbol, s.tradeSeq)

	dir := 1
	if o.Side == SideSell {
		dir = -1
	}

	notional := decimal.NewFromFloat(px).Mul(decimal.NewFromFloat(qty))
	comm := notional.Mul(s.rate)
	if dir > 0 {
		s.cash = s.cash.Sub(notional).Sub(comm)
	} else {
		s.cash = s.cash.Add(notional).Sub(comm)
	}
	commission, _ := comm.Float64()

	if _, err := s.ledger.RecordFill(ledger.Fill{
		TradeID:    id,
		Seq:        s.fillSeq,
		Symbol:     s.symbol,
		Time:       at,
		Price:      px,
		Size:       qty,
		Opening:    true,
		Commission: commission,
		Side:       dir,
	}); err != nil {
		return err
	}

	s.pos = Position{
		Symbol:        s.symbol,
		Size:          float64(dir) * qty,
		AvgEntryPrice: px,
		Stop:          o.Stop,
		TakeProfit:    o.Target,
		TradeID:       id,
		EntryTime:     at,
		commission:    commission,
	}
	s.opts.obs.OrderFilled(s.symbol, true)

	log.WithFields(logrus.Fields{
		"trade_id": id,
		"side":     o.Side,
		"quantity": qty,
		"price":    px,
		"stop":     o.Stop,
		"target":   o.Target,
	}).Info("position opened")
	return nil
}

func (s *Simulator) closePosition(log logrus.FieldLogger, px float64, at time.Time, reason string) error {
	p := s.pos
	if !at.After(p.EntryTime) {
		at = p.EntryTime.Add(minHold)
	}
	qty := math.Abs(p.Size)

	notional := decimal.NewFromFloat(px).Mul(decimal.NewFromFloat(qty))
	comm := notional.Mul(s.rate)
	if p.Long() {
		s.cash = s.cash.Add(notional).Sub(comm)
	} else {
		s.cash = s.cash.Sub(notional).Sub(comm)
	}
	commission, _ := comm.Float64()

	s.fillSeq++
	if _, err := s.ledger.RecordFill(ledger.Fill{
		TradeID:    p.TradeID,
		Seq:        s.fillSeq,
		Symbol:     s.symbol,
		Time:       at,
		Price:      px,
		Size:       qty,
		Commission: commission,
	}); err != nil {
		return err
	}

	gross := decimal.NewFromFloat(p.Size).Mul(decimal.NewFromFloat(px).Sub(decimal.NewFromFloat(p.AvgEntryPrice)))
	net := gross.Sub(decimal.NewFromFloat(p.commission)).Sub(comm)
	pnl, _ := gross.Float64()
	pnlAfterCost, _ := net.Float64()

	s.ledger.SetReason(p.TradeID, reason)
	if err := s.ledger.Close(p.TradeID, at, px, pnl, pnlAfterCost); err != nil {
		return err
	}
	s.pos = Position{Symbol: s.symbol}
	s.opts.obs.OrderFilled(s.symbol, false)
	s.opts.obs.TradeClosed(s.symbol, pnlAfterCost)

	log.WithFields(logrus.Fields{
		"trade_id": p.TradeID,
		"price":    px,
		"pnl":      pnlAfterCost,
		"reason":   reason,
	}).Info("position closed")
	return nil
}

func (s *Simulator) mark() {
	if s.pos.Flat() {
		return
	}
	s.pos.UnrealizedPnL = s.pos.Size * (s.last.Close - s.pos.AvgEntryPrice)
}

// fillPoint is the same-bar fill price and its timestamp.
func (s *Simulator) fillPoint(bar market.Bar) (float64, time.Time) {
	if s.policy.FillPrice == FillAtOpen {
		return bar.Open, bar.Time
	}
	return bar.Close, s.barEnd(bar)
}

func (s *Simulator) barEnd(bar market.Bar) time.Time {
	return bar.End(s.opts.interval)
}

// size converts the sizing fraction of equity into a quantity at ref.
func (s *Simulator) size(ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	q, _ := s.equity().Mul(s.fraction).QuoRem(decimal.NewFromFloat(ref), 8)
	return s.truncate(q)
}

// riskCap is the largest quantity whose loss from ref to stop stays within
// RiskPerTrade of equity. Without a cap it returns +Inf.
func (s *Simulator) riskCap(ref, stop float64) float64 {
	if s.policy.RiskPerTrade <= 0 {
		return math.Inf(1)
	}
	dist := decimal.NewFromFloat(math.Abs(ref - stop))
	if !dist.IsPositive() {
		return 0
	}
	budget := s.equity().Mul(decimal.NewFromFloat(s.policy.RiskPerTrade))
	q, _ := budget.QuoRem(dist, 8)
	return s.truncate(q)
}

// affordable clamps qty so that qty*px plus commission fits in cash.
func (s *Simulator) affordable(qty, px float64) float64 {
	unit := decimal.NewFromFloat(px).Mul(decimal.NewFromInt(1).Add(s.rate))
	if !unit.IsPositive() || !s.cash.IsPositive() {
		return 0
	}
	limit, _ := s.cash.QuoRem(unit, 8)
	want := decimal.NewFromFloat(qty)
	if want.LessThanOrEqual(limit) {
		return qty
	}
	return s.truncate(limit)
}

func (s *Simulator) truncate(q decimal.Decimal) float64 {
	if s.minUnit.IsPositive() {
		q = q.Div(s.minUnit).Floor().Mul(s.minUnit)
	}
	if q.IsNegative() {
		return 0
	}
	f, _ := q.Float64()
	return f
}
