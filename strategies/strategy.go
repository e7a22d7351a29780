// Package strategies holds the bar strategies the backtester can run and a
// registry that builds them by name.
package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
)

// Params overrides strategy defaults by key, e.g. {"ema_period": 150}.
// Integer parameters are truncated; boolean parameters treat non-zero as true.
type Params map[string]float64

type entry struct {
	description string
	build       func(Params) (backtest.Strategy, error)
}

var registry = map[string]entry{
	"noop": {
		description: "never trades",
		build: func(p Params) (backtest.Strategy, error) {
			if len(p) > 0 {
				return nil, fmt.Errorf("noop takes no parameters")
			}
			return NoopStrategy{}, nil
		},
	},
	TrendVolumeMACDName: {
		description: "EMA trend filter, MACD histogram turning positive, Donchian-low stop, fixed R:R target",
		build: func(p Params) (backtest.Strategy, error) {
			cfg := DefaultTrendVolumeMACD()
			if err := cfg.apply(p); err != nil {
				return nil, err
			}
			return NewTrendVolumeMACD(cfg)
		},
	},
	EMACrossoverName: {
		description: "fast EMA crossing above medium SMA in an uptrend, optional ADX filter, bar-low stop, fixed R:R target",
		build: func(p Params) (backtest.Strategy, error) {
			cfg := DefaultEMACrossover()
			if err := cfg.apply(p); err != nil {
				return nil, err
			}
			return NewEMACrossover(cfg)
		},
	},
	EMAMACDDonchianName: {
		description: "EMA trend filter, MACD crossing its signal, Donchian-low stop, exit at the Donchian high",
		build: func(p Params) (backtest.Strategy, error) {
			cfg := DefaultEMAMACDDonchian()
			if err := cfg.apply(p); err != nil {
				return nil, err
			}
			return NewEMAMACDDonchian(cfg)
		},
	},
}

// aliases accept the short names used in older configs.
var aliases = map[string]string{
	"none":       "noop",
	"emavolmacd": TrendVolumeMACDName,
	"emacross":   EMACrossoverName,
	"ema-cross":  EMACrossoverName,
	"emamacd":    EMAMACDDonchianName,
}

func canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// ByName builds a strategy from its registry name and parameter overrides.
func ByName(name string, p Params) (backtest.Strategy, error) {
	e, ok := registry[canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (supported: %s)",
			backtest.ErrConfiguration, name, strings.Join(Names(), ", "))
	}
	s, err := e.build(p)
	if err != nil {
		return nil, fmt.Errorf("%w: strategy %s: %v", backtest.ErrConfiguration, canonical(name), err)
	}
	return s, nil
}

// Factory validates name and params once and returns a constructor that
// yields a fresh strategy per instrument.
func Factory(name string, p Params) (backtest.StrategyFactory, error) {
	if _, err := ByName(name, p); err != nil {
		return nil, err
	}
	return func() (backtest.Strategy, error) { return ByName(name, p) }, nil
}

// Names lists registered strategies in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Describe returns the one-line summary of a strategy.
func Describe(name string) string {
	return registry[canonical(name)].description
}

// binder maps parameter keys onto config fields.
type binder struct {
	ints   map[string]*int
	floats map[string]*float64
	bools  map[string]*bool
}

func (b binder) apply(p Params) error {
	for k, v := range p {
		switch {
		case b.ints[k] != nil:
			*b.ints[k] = int(v)
		case b.floats[k] != nil:
			*b.floats[k] = v
		case b.bools[k] != nil:
			*b.bools[k] = v != 0
		default:
			return fmt.Errorf("unknown parameter %q", k)
		}
	}
	return nil
}

func positive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, v)
	}
	return nil
}

// crossedAbove reports a strict upward cross of a over b between the
// previous bar and this one.
func crossedAbove(snap indicators.Snapshot, a, b string) bool {
	ap, ok1 := snap.Prev(a)
	bp, ok2 := snap.Prev(b)
	ac, ok3 := snap.Value(a)
	bc, ok4 := snap.Value(b)
	if !(ok1 && ok2 && ok3 && ok4) {
		return false
	}
	return ap < bp && ac > bc
}
