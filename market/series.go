package market

import (
	"sort"
	"time"
)

// Series is an ordered, immutable view of bars for one instrument.
type Series struct {
	Symbol   string
	Interval Interval
	bars     []Bar
}

// NewSeries validates bars and takes a private copy. Bars must be strictly
// increasing in time; a duplicate or out-of-order timestamp is a DataError.
func NewSeries(symbol string, iv Interval, bars []Bar) (*Series, error) {
	if iv <= 0 {
		return nil, &DataError{Symbol: symbol, Index: -1, Reason: "bar interval must be positive"}
	}
	if len(bars) == 0 {
		return nil, &DataError{Symbol: symbol, Index: -1, Reason: "no bars"}
	}

	cp := make([]Bar, len(bars))
	copy(cp, bars)

	for i, b := range cp {
		if reason := b.validate(); reason != "" {
			return nil, &DataError{Symbol: symbol, Index: i, Reason: reason}
		}
		if i == 0 {
			continue
		}
		prev := cp[i-1].Time
		if b.Time.Equal(prev) {
			return nil, &DataError{Symbol: symbol, Index: i, Reason: "duplicate timestamp " + b.Time.Format(time.RFC3339)}
		}
		if b.Time.Before(prev) {
			return nil, &DataError{Symbol: symbol, Index: i, Reason: "timestamp out of order " + b.Time.Format(time.RFC3339)}
		}
	}

	return &Series{Symbol: symbol, Interval: iv, bars: cp}, nil
}

func (s *Series) Len() int { return len(s.bars) }

func (s *Series) At(i int) Bar { return s.bars[i] }

// Bars returns a copy of the bars.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

func (s *Series) First() Bar { return s.bars[0] }

func (s *Series) Last() Bar { return s.bars[len(s.bars)-1] }

// Column extracts one field for every bar, oldest first.
func (s *Series) Column(f Field) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Price(f)
	}
	return out
}

// Slice returns the bars in [from, to). Zero times leave that side open.
func (s *Series) Slice(from, to time.Time) (*Series, error) {
	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Time.Before(from) })
	}
	hi := len(s.bars)
	if !to.IsZero() {
		hi = sort.Search(len(s.bars), func(i int) bool { return !s.bars[i].Time.Before(to) })
	}
	if lo >= hi {
		return nil, &DataError{Symbol: s.Symbol, Index: -1, Reason: "no bars in requested range"}
	}
	return &Series{Symbol: s.Symbol, Interval: s.Interval, bars: s.bars[lo:hi]}, nil
}
