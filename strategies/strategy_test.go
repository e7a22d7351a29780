package strategies

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		EMACrossoverName,
		EMAMACDDonchianName,
		"noop",
		TrendVolumeMACDName,
	}, Names())
	for _, n := range Names() {
		assert.NotEmpty(t, Describe(n), n)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"canonical", "trend-volume-macd", TrendVolumeMACDName},
		{"alias", "emavolmacd", TrendVolumeMACDName},
		{"mixed case with spaces", "  EMA-Crossover ", EMACrossoverName},
		{"legacy ema-cross", "ema-cross", EMACrossoverName},
		{"emamacd", "emamacd", EMAMACDDonchianName},
		{"none", "NONE", "noop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ByName(tt.key, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestByName_Errors(t *testing.T) {
	_, err := ByName("martingale", nil)
	assert.ErrorIs(t, err, backtest.ErrConfiguration)
	assert.Contains(t, err.Error(), "supported")

	_, err = ByName(TrendVolumeMACDName, Params{"ema_periodd": 10})
	assert.ErrorIs(t, err, backtest.ErrConfiguration)

	_, err = ByName(EMAMACDDonchianName, Params{"macd_fast": 30})
	assert.ErrorIs(t, err, backtest.ErrConfiguration)

	_, err = ByName("noop", Params{"x": 1})
	assert.ErrorIs(t, err, backtest.ErrConfiguration)
}

func TestByName_Overrides(t *testing.T) {
	s, err := ByName(TrendVolumeMACDName, Params{"ema_period": 150, "volume_filter": 1, "risk_reward": 3})
	require.NoError(t, err)

	tv := s.(*TrendVolumeMACD)
	assert.Equal(t, 150, tv.cfg.EMAPeriod)
	assert.True(t, tv.cfg.VolumeFilter)
	assert.Equal(t, 3.0, tv.cfg.RiskReward)

	specs := s.Indicators()
	require.Len(t, specs, 4)
	assert.Equal(t, 150, specs[0].Period)
	assert.Equal(t, indicators.KindVolumeOsc, specs[3].Kind)
}

func TestFactory_FreshInstances(t *testing.T) {
	f, err := Factory(EMACrossoverName, Params{"ema_fast": 5})
	require.NoError(t, err)

	a, err := f()
	require.NoError(t, err)
	b, err := f()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 5, a.(*EMACrossover).cfg.FastEMA)

	_, err = Factory("nope", nil)
	assert.True(t, errors.Is(err, backtest.ErrConfiguration))
}

// sineBars is a trending wave long enough to warm up short indicators.
func sineBars(n int) []market.Bar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 0, n)
	prev := 100.0
	for i := 0; i < n; i++ {
		c := 100 + 8*math.Sin(float64(i)/6) + float64(i)*0.15
		bars = append(bars, market.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   prev,
			High:   math.Max(prev, c) + 0.5,
			Low:    math.Min(prev, c) - 0.5,
			Close:  c,
			Volume: 1000 + 200*math.Cos(float64(i)/4),
		})
		prev = c
	}
	return bars
}

func TestStrategies_RunWithoutFaults(t *testing.T) {
	series, err := market.NewSeries("SPY", market.Daily, sineBars(300))
	require.NoError(t, err)

	short := map[string]Params{
		TrendVolumeMACDName: {"ema_period": 10, "macd_fast": 3, "macd_slow": 8, "macd_signal": 3, "donchian_period": 5},
		EMACrossoverName:    {"ema_fast": 3, "sma_medium": 6, "ema_slow": 20},
		EMAMACDDonchianName: {"ema_period": 10, "macd_fast": 3, "macd_slow": 8, "macd_signal": 3, "donchian_period": 5},
	}

	for name, p := range short {
		t.Run(name, func(t *testing.T) {
			s, err := ByName(name, p)
			require.NoError(t, err)

			res, err := backtest.Run(context.Background(), series, s, backtest.DefaultPolicy())
			if err != nil {
				require.ErrorIs(t, err, metrics.ErrInsufficientData)
			}
			assert.Equal(t, 0, res.Faults)
			assert.Equal(t, 300, res.Bars)
			for _, tr := range res.Trades {
				assert.True(t, tr.Size > 0, "long only")
				assert.True(t, tr.IsClosed())
			}
		})
	}
}
