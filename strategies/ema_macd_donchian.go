package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

const EMAMACDDonchianName = "ema-macd-donchian"

// EMAMACDDonchianConfig parameterizes EMAMACDDonchian. FastSMA makes the
// MACD fast leg a simple average.
type EMAMACDDonchianConfig struct {
	EMAPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	FastSMA        bool
	DonchianPeriod int
}

func DefaultEMAMACDDonchian() EMAMACDDonchianConfig {
	return EMAMACDDonchianConfig{
		EMAPeriod:      100,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		FastSMA:        true,
		DonchianPeriod: 10,
	}
}

func (c *EMAMACDDonchianConfig) apply(p Params) error {
	return binder{
		ints: map[string]*int{
			"ema_period":      &c.EMAPeriod,
			"macd_fast":       &c.MACDFast,
			"macd_slow":       &c.MACDSlow,
			"macd_signal":     &c.MACDSignal,
			"donchian_period": &c.DonchianPeriod,
		},
		bools: map[string]*bool{"fast_sma": &c.FastSMA},
	}.apply(p)
}

func (c EMAMACDDonchianConfig) validate() error {
	if err := positive("ema_period", c.EMAPeriod); err != nil {
		return err
	}
	if err := positive("macd_signal", c.MACDSignal); err != nil {
		return err
	}
	if err := positive("donchian_period", c.DonchianPeriod); err != nil {
		return err
	}
	if c.MACDFast <= 0 || c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd periods need 0 < fast < slow, got %d/%d", c.MACDFast, c.MACDSlow)
	}
	return nil
}

// EMAMACDDonchian buys when price is above its EMA and the MACD line
// crosses above its signal. The stop is the Donchian low at entry; the exit
// fires once the close reaches the Donchian high, re-evaluated every bar.
type EMAMACDDonchian struct {
	cfg EMAMACDDonchianConfig
}

func NewEMAMACDDonchian(cfg EMAMACDDonchianConfig) (*EMAMACDDonchian, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &EMAMACDDonchian{cfg: cfg}, nil
}

func (s *EMAMACDDonchian) Name() string { return EMAMACDDonchianName }

func (s *EMAMACDDonchian) Indicators() []indicators.Spec {
	return []indicators.Spec{
		{Name: "ema", Kind: indicators.KindEMA, Period: s.cfg.EMAPeriod},
		{Name: "macd", Kind: indicators.KindMACD, Fast: s.cfg.MACDFast, Slow: s.cfg.MACDSlow, Signal: s.cfg.MACDSignal, FastSMA: s.cfg.FastSMA},
		{Name: "donchian_low", Kind: indicators.KindLowest, Source: market.FieldLow, Period: s.cfg.DonchianPeriod},
		{Name: "donchian_high", Kind: indicators.KindHighest, Source: market.FieldHigh, Period: s.cfg.DonchianPeriod},
	}
}

func (s *EMAMACDDonchian) Decide(bar market.Bar, snap indicators.Snapshot, pos backtest.Position) (*backtest.OrderIntent, error) {
	if !pos.Flat() {
		high, ok := snap.Value("donchian_high")
		if ok && bar.Close >= high {
			return backtest.Exit("close reached donchian high"), nil
		}
		return nil, nil
	}

	ema, ok1 := snap.Value("ema")
	low, ok2 := snap.Value("donchian_low")
	if !(ok1 && ok2) || bar.Close <= ema {
		return nil, nil
	}
	if !crossedAbove(snap, "macd.macd", "macd.signal") {
		return nil, nil
	}
	if bar.Close-low <= 0 {
		return nil, nil
	}
	return backtest.Buy("macd crossed above signal above ema").WithBracket(low, 0), nil
}
