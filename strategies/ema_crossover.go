package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

const EMACrossoverName = "ema-crossover"

// EMACrossoverConfig parameterizes EMACrossover. ADXMin > 0 turns on the
// trend-strength filter.
type EMACrossoverConfig struct {
	FastEMA    int
	MediumSMA  int
	SlowEMA    int
	RiskReward float64
	ADXPeriod  int
	ADXMin     float64
}

func DefaultEMACrossover() EMACrossoverConfig {
	return EMACrossoverConfig{
		FastEMA:    100,
		MediumSMA:  13,
		SlowEMA:    200,
		RiskReward: 1.5,
		ADXPeriod:  14,
	}
}

func (c *EMACrossoverConfig) apply(p Params) error {
	return binder{
		ints: map[string]*int{
			"ema_fast":   &c.FastEMA,
			"sma_medium": &c.MediumSMA,
			"ema_slow":   &c.SlowEMA,
			"adx_period": &c.ADXPeriod,
		},
		floats: map[string]*float64{
			"risk_reward": &c.RiskReward,
			"adx_min":     &c.ADXMin,
		},
	}.apply(p)
}

func (c EMACrossoverConfig) validate() error {
	if err := positive("ema_fast", c.FastEMA); err != nil {
		return err
	}
	if err := positive("sma_medium", c.MediumSMA); err != nil {
		return err
	}
	if err := positive("ema_slow", c.SlowEMA); err != nil {
		return err
	}
	if c.RiskReward <= 0 {
		return fmt.Errorf("risk_reward must be positive, got %v", c.RiskReward)
	}
	if c.ADXMin < 0 || c.ADXMin > 100 {
		return fmt.Errorf("adx_min must be within [0, 100], got %v", c.ADXMin)
	}
	if c.ADXMin > 0 {
		return positive("adx_period", c.ADXPeriod)
	}
	return nil
}

// EMACrossover buys when the fast EMA crosses above the medium SMA while the
// close is above the slow EMA. The stop is the signal bar's low and the
// target RiskReward times that risk. Stops are not trailed. With ADXMin set,
// entries also need the ADX at or above it.
type EMACrossover struct {
	cfg EMACrossoverConfig
}

func NewEMACrossover(cfg EMACrossoverConfig) (*EMACrossover, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &EMACrossover{cfg: cfg}, nil
}

func (s *EMACrossover) Name() string { return EMACrossoverName }

func (s *EMACrossover) Indicators() []indicators.Spec {
	specs := []indicators.Spec{
		{Name: "ema_fast", Kind: indicators.KindEMA, Period: s.cfg.FastEMA},
		{Name: "sma_medium", Kind: indicators.KindSMA, Period: s.cfg.MediumSMA},
		{Name: "ema_slow", Kind: indicators.KindEMA, Period: s.cfg.SlowEMA},
	}
	if s.cfg.ADXMin > 0 {
		specs = append(specs, indicators.Spec{Name: "adx", Kind: indicators.KindADX, Period: s.cfg.ADXPeriod})
	}
	return specs
}

func (s *EMACrossover) Decide(bar market.Bar, snap indicators.Snapshot, pos backtest.Position) (*backtest.OrderIntent, error) {
	if !pos.Flat() {
		return nil, nil
	}
	slow, ok := snap.Value("ema_slow")
	if !ok || bar.Close <= slow {
		return nil, nil
	}
	if !crossedAbove(snap, "ema_fast", "sma_medium") {
		return nil, nil
	}
	if s.cfg.ADXMin > 0 {
		adx, ok := snap.Value("adx")
		if !ok || adx < s.cfg.ADXMin {
			return nil, nil
		}
	}

	risk := bar.Close - bar.Low
	if risk <= 0 {
		return nil, nil
	}
	return backtest.Buy("fast ema crossed above medium sma").
		WithBracket(bar.Low, bar.Close+risk*s.cfg.RiskReward), nil
}
