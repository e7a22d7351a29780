package backtest

import (
	"math"
)

// FillPrice selects which price of the bar a same-bar order fills at.
type FillPrice string

const (
	FillAtOpen  FillPrice = "open"
	FillAtClose FillPrice = "close"
)

// Forced-close rule shorthands. Anything else is parsed as a cron expression.
const (
	ForcedCloseNone    = "none"
	ForcedCloseMonthly = "monthly"
)

// Policy is the execution model for one simulator.
type Policy struct {
	StartingCash   float64   `yaml:"starting_cash" json:"starting_cash"`
	CommissionRate float64   `yaml:"commission_rate" json:"commission_rate"`
	SameBarFill    bool      `yaml:"same_bar_fill" json:"same_bar_fill"`
	FillPrice      FillPrice `yaml:"fill_price" json:"fill_price"`
	ForcedClose    string    `yaml:"forced_close" json:"forced_close"`
	SizingFraction float64   `yaml:"sizing_fraction" json:"sizing_fraction"`
	// MinUnit is the tradable quantity step; 0 allows fractional sizes.
	MinUnit float64 `yaml:"min_unit" json:"min_unit"`
	// RiskPerTrade caps an entry so that hitting its stop loses at most this
	// fraction of equity. 0 disables the cap; entries without a stop ignore it.
	RiskPerTrade float64 `yaml:"risk_per_trade,omitempty" json:"risk_per_trade,omitempty"`
}

// DefaultPolicy fills at the signal bar's close with 0.1% commission and
// whole-share sizing at 85% of equity.
func DefaultPolicy() Policy {
	return Policy{
		StartingCash:   100000,
		CommissionRate: 0.001,
		SameBarFill:    true,
		FillPrice:      FillAtClose,
		ForcedClose:    ForcedCloseNone,
		SizingFraction: 0.85,
		MinUnit:        1,
	}
}

// Validate checks the policy, returning a ConfigurationError on the first
// bad field.
func (p Policy) Validate() error {
	if !(p.StartingCash > 0) || math.IsInf(p.StartingCash, 0) {
		return configErr("starting_cash", "must be positive, got %v", p.StartingCash)
	}
	if !(p.CommissionRate >= 0) || math.IsInf(p.CommissionRate, 0) {
		return configErr("commission_rate", "must be >= 0, got %v", p.CommissionRate)
	}
	if !(p.SizingFraction > 0 && p.SizingFraction <= 1) {
		return configErr("sizing_fraction", "must be in (0, 1], got %v", p.SizingFraction)
	}
	if !(p.MinUnit >= 0) || math.IsInf(p.MinUnit, 0) {
		return configErr("min_unit", "must be >= 0, got %v", p.MinUnit)
	}
	if !(p.RiskPerTrade >= 0 && p.RiskPerTrade <= 1) {
		return configErr("risk_per_trade", "must be in [0, 1], got %v", p.RiskPerTrade)
	}
	switch p.FillPrice {
	case FillAtOpen, FillAtClose:
	default:
		return configErr("fill_price", "unknown fill price %q (want open or close)", p.FillPrice)
	}
	if _, err := parseSchedule(p.ForcedClose); err != nil {
		return err
	}
	return nil
}
