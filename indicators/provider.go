package indicators

import (
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/backtester/market"
)

// Kind names an indicator formula.
type Kind string

const (
	KindEMA       Kind = "ema"
	KindSMA       Kind = "sma"
	KindHighest   Kind = "highest"
	KindLowest    Kind = "lowest"
	KindMACD      Kind = "macd"
	KindVolumeOsc Kind = "volume_osc"
	KindATR       Kind = "atr"
	KindADX       Kind = "adx"
)

// Spec declares one indicator column a strategy needs.
//
// MACD specs publish three columns: Name+".macd", Name+".signal" and
// Name+".hist". VolumeOsc uses Fast/Slow as its short/long periods. ATR and
// ADX read whole bars and ignore Source.
type Spec struct {
	Name    string
	Kind    Kind
	Source  market.Field
	Period  int
	Fast    int
	Slow    int
	Signal  int
	FastSMA bool
}

// Provider holds fully materialized indicator columns for one series, so the
// bar loop never computes anything lazily.
type Provider struct {
	n    int
	cols map[string][]float64
}

// NewProvider computes every spec over the series.
func NewProvider(s *market.Series, specs []Spec) (*Provider, error) {
	p := &Provider{n: s.Len(), cols: make(map[string][]float64)}
	for _, sp := range specs {
		if sp.Name == "" {
			return nil, fmt.Errorf("indicator spec without name (kind %q)", sp.Kind)
		}
		if err := p.add(s, sp); err != nil {
			return nil, fmt.Errorf("indicator %s: %w", sp.Name, err)
		}
	}
	return p, nil
}

func (p *Provider) add(s *market.Series, sp Spec) error {
	src := s.Column(sp.Source)
	var (
		col []float64
		err error
	)
	switch sp.Kind {
	case KindEMA:
		col, err = EMA(src, sp.Period)
	case KindSMA:
		col, err = SMA(src, sp.Period)
	case KindHighest:
		col, err = Highest(src, sp.Period)
	case KindLowest:
		col, err = Lowest(src, sp.Period)
	case KindVolumeOsc:
		col, err = VolumeOscillator(s.Column(market.FieldVolume), sp.Fast, sp.Slow)
	case KindATR:
		col, err = AverageTrueRange(s.Bars(), sp.Period)
	case KindADX:
		col, err = DirectionalIndex(s.Bars(), sp.Period)
	case KindMACD:
		lines, merr := MACD(src, sp.Fast, sp.Slow, sp.Signal, sp.FastSMA)
		if merr != nil {
			return merr
		}
		p.set(sp.Name+".macd", lines.MACD)
		p.set(sp.Name+".signal", lines.Signal)
		p.set(sp.Name+".hist", lines.Hist)
		return nil
	default:
		return fmt.Errorf("unknown kind %q", sp.Kind)
	}
	if err != nil {
		return err
	}
	p.set(sp.Name, col)
	return nil
}

func (p *Provider) set(name string, col []float64) { p.cols[name] = col }

// Len is the number of bars covered.
func (p *Provider) Len() int { return p.n }

// Names lists the available columns, sorted.
func (p *Provider) Names() []string {
	out := make([]string, 0, len(p.cols))
	for k := range p.cols {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// At returns the snapshot for bar i.
func (p *Provider) At(i int) Snapshot {
	return Snapshot{idx: i, cols: p.cols}
}

// Snapshot is the causal view of indicator values at one bar index. It can
// read the current and the previous bar, nothing later.
type Snapshot struct {
	idx  int
	cols map[string][]float64
}

// Index is the bar index the snapshot belongs to.
func (s Snapshot) Index() int { return s.idx }

// Value returns the indicator at this bar; ok is false while warming up or
// when the name is unknown.
func (s Snapshot) Value(name string) (float64, bool) {
	return s.lookup(name, s.idx)
}

// Prev returns the indicator at the previous bar.
func (s Snapshot) Prev(name string) (float64, bool) {
	return s.lookup(name, s.idx-1)
}

func (s Snapshot) lookup(name string, i int) (float64, bool) {
	col, ok := s.cols[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN(), false
	}
	v := col[i]
	if math.IsNaN(v) {
		return v, false
	}
	return v, true
}

// Values returns every ready indicator at this bar.
func (s Snapshot) Values() map[string]float64 {
	out := make(map[string]float64, len(s.cols))
	for name := range s.cols {
		if v, ok := s.Value(name); ok {
			out[name] = v
		}
	}
	return out
}

// FromValues builds a single-bar snapshot from literal values, with optional
// previous-bar values. Useful for strategies driven outside a Provider.
func FromValues(cur, prev map[string]float64) Snapshot {
	cols := make(map[string][]float64, len(cur))
	for k, v := range cur {
		p := math.NaN()
		if pv, ok := prev[k]; ok {
			p = pv
		}
		cols[k] = []float64{p, v}
	}
	for k, v := range prev {
		if _, ok := cols[k]; !ok {
			cols[k] = []float64{v, math.NaN()}
		}
	}
	return Snapshot{idx: 1, cols: cols}
}
