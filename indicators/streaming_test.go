package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleMAStreaming(t *testing.T) {
	closes := []float64{102, 105, 106, 108, 110}

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.True(t, math.IsNaN(ma.Value()))

		ma.Update(closes[0])
		ma.Update(closes[1])
		assert.False(t, ma.Ready())

		ma.Update(closes[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		ma.Update(closes[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(closes[0])
		ma.Update(closes[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	ema := NewEMA(3)
	for _, v := range []float64{102, 105, 106} {
		ema.Update(v)
	}
	require.True(t, ema.Ready())
	seed := (102.0 + 105.0 + 106.0) / 3.0
	assert.InDelta(t, seed, ema.Value(), 1e-9)

	ema.Update(110)
	assert.InDelta(t, (110-seed)*0.5+seed, ema.Value(), 1e-9)
}

func TestExtreme(t *testing.T) {
	hi := NewHighest(3)
	lo := NewLowest(3)
	for _, v := range []float64{5, 9, 4, 7, 6} {
		hi.Update(v)
		lo.Update(v)
	}
	assert.Equal(t, 7.0, hi.Value())
	assert.Equal(t, 4.0, lo.Value())
	assert.Equal(t, "Highest(3)", hi.Name())
	assert.Equal(t, "Lowest(3)", lo.Name())
}
