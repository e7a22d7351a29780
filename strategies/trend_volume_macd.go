package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

const TrendVolumeMACDName = "trend-volume-macd"

// TrendVolumeMACDConfig parameterizes TrendVolumeMACD.
type TrendVolumeMACDConfig struct {
	EMAPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	DonchianPeriod int
	RiskReward     float64
	VolumeFilter   bool
	VolumeShort    int
	VolumeLong     int
}

func DefaultTrendVolumeMACD() TrendVolumeMACDConfig {
	return TrendVolumeMACDConfig{
		EMAPeriod:      200,
		MACDFast:       9,
		MACDSlow:       25,
		MACDSignal:     10,
		DonchianPeriod: 20,
		RiskReward:     2,
		VolumeShort:    14,
		VolumeLong:     28,
	}
}

func (c *TrendVolumeMACDConfig) apply(p Params) error {
	return binder{
		ints: map[string]*int{
			"ema_period":      &c.EMAPeriod,
			"macd_fast":       &c.MACDFast,
			"macd_slow":       &c.MACDSlow,
			"macd_signal":     &c.MACDSignal,
			"donchian_period": &c.DonchianPeriod,
			"volume_short":    &c.VolumeShort,
			"volume_long":     &c.VolumeLong,
		},
		floats: map[string]*float64{"risk_reward": &c.RiskReward},
		bools:  map[string]*bool{"volume_filter": &c.VolumeFilter},
	}.apply(p)
}

func (c TrendVolumeMACDConfig) validate() error {
	for name, v := range map[string]int{
		"ema_period":      c.EMAPeriod,
		"macd_signal":     c.MACDSignal,
		"donchian_period": c.DonchianPeriod,
	} {
		if err := positive(name, v); err != nil {
			return err
		}
	}
	if c.MACDFast <= 0 || c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("macd periods need 0 < fast < slow, got %d/%d", c.MACDFast, c.MACDSlow)
	}
	if c.VolumeFilter && (c.VolumeShort <= 0 || c.VolumeShort >= c.VolumeLong) {
		return fmt.Errorf("volume periods need 0 < short < long, got %d/%d", c.VolumeShort, c.VolumeLong)
	}
	if c.RiskReward <= 0 {
		return fmt.Errorf("risk_reward must be positive, got %v", c.RiskReward)
	}
	return nil
}

// TrendVolumeMACD buys when price is above its long EMA and the MACD
// histogram turns from negative to positive. The stop sits at the Donchian
// low and the target at RiskReward times the risk.
type TrendVolumeMACD struct {
	cfg TrendVolumeMACDConfig
}

func NewTrendVolumeMACD(cfg TrendVolumeMACDConfig) (*TrendVolumeMACD, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &TrendVolumeMACD{cfg: cfg}, nil
}

func (s *TrendVolumeMACD) Name() string { return TrendVolumeMACDName }

func (s *TrendVolumeMACD) Indicators() []indicators.Spec {
	specs := []indicators.Spec{
		{Name: "ema", Kind: indicators.KindEMA, Period: s.cfg.EMAPeriod},
		{Name: "macd", Kind: indicators.KindMACD, Fast: s.cfg.MACDFast, Slow: s.cfg.MACDSlow, Signal: s.cfg.MACDSignal},
		{Name: "donchian_low", Kind: indicators.KindLowest, Source: market.FieldLow, Period: s.cfg.DonchianPeriod},
	}
	if s.cfg.VolumeFilter {
		specs = append(specs, indicators.Spec{
			Name: "volume_osc", Kind: indicators.KindVolumeOsc, Fast: s.cfg.VolumeShort, Slow: s.cfg.VolumeLong,
		})
	}
	return specs
}

func (s *TrendVolumeMACD) Decide(bar market.Bar, snap indicators.Snapshot, pos backtest.Position) (*backtest.OrderIntent, error) {
	if !pos.Flat() {
		return nil, nil
	}

	ema, ok1 := snap.Value("ema")
	hist, ok2 := snap.Value("macd.hist")
	prevHist, ok3 := snap.Prev("macd.hist")
	low, ok4 := snap.Value("donchian_low")
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil, nil
	}
	if !(bar.Close > ema && prevHist < 0 && hist > 0) {
		return nil, nil
	}
	if s.cfg.VolumeFilter {
		osc, ok := snap.Value("volume_osc")
		if !ok || osc <= 0 {
			return nil, nil
		}
	}

	risk := bar.Close - low
	if risk <= 0 {
		return nil, nil
	}
	return backtest.Buy("macd histogram turned positive above ema").
		WithBracket(low, bar.Close+risk*s.cfg.RiskReward), nil
}
