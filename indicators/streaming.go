package indicators

import (
	"fmt"
	"math"
)

// Accumulator is a streaming indicator fed one value per bar. Value at bar i
// depends only on the values passed in for bars [0..i].
type Accumulator interface {
	Name() string
	Warmup() int
	Reset()
	Update(v float64)
	Ready() bool
	Value() float64
}

// SimpleMA is a streaming Simple Moving Average.
type SimpleMA struct {
	period int
	window []float64
	sum    float64
}

// NewMA creates a new Simple Moving Average indicator with the given period
func NewMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("MA(%d)", m.period) }

func (m *SimpleMA) Warmup() int { return m.period }

func (m *SimpleMA) Reset() {
	m.window = m.window[:0]
	m.sum = 0
}

func (m *SimpleMA) Update(v float64) {
	m.window = append(m.window, v)
	m.sum += v
	if len(m.window) > m.period {
		m.sum -= m.window[0]
		m.window = m.window[1:]
	}
}

func (m *SimpleMA) Ready() bool { return len(m.window) >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return math.NaN()
	}
	return m.sum / float64(len(m.window))
}

// ExponentialMA is a streaming Exponential Moving Average seeded with the
// SMA of its first period values.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates a new Exponential Moving Average indicator with the given period
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }

func (e *ExponentialMA) Warmup() int { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.count >= e.period }

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return math.NaN()
	}
	return e.ema
}

// Extreme tracks the rolling max (or min) over the last period values; it is
// one side of a Donchian channel.
type Extreme struct {
	period int
	max    bool
	window []float64
}

func NewHighest(period int) *Extreme { return &Extreme{period: period, max: true} }

func NewLowest(period int) *Extreme { return &Extreme{period: period} }

func (x *Extreme) Name() string {
	if x.max {
		return fmt.Sprintf("Highest(%d)", x.period)
	}
	return fmt.Sprintf("Lowest(%d)", x.period)
}

func (x *Extreme) Warmup() int { return x.period }

func (x *Extreme) Reset() { x.window = x.window[:0] }

func (x *Extreme) Update(v float64) {
	x.window = append(x.window, v)
	if len(x.window) > x.period {
		x.window = x.window[1:]
	}
}

func (x *Extreme) Ready() bool { return len(x.window) >= x.period }

func (x *Extreme) Value() float64 {
	if !x.Ready() {
		return math.NaN()
	}
	out := x.window[0]
	for _, v := range x.window[1:] {
		if (x.max && v > out) || (!x.max && v < out) {
			out = v
		}
	}
	return out
}
