package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrData marks a malformed or non-monotonic bar feed. It is fatal for the
// instrument it belongs to and nothing else.
var ErrData = errors.New("data error")

// DataError describes the bar that broke the feed.
type DataError struct {
	Symbol string
	Index  int
	Reason string
}

func (e *DataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("data error: bar %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("data error: %s bar %d: %s", e.Symbol, e.Index, e.Reason)
}

func (e *DataError) Is(target error) bool { return target == ErrData }

// Bar is one OHLCV sample. Time is the start of the bar's interval.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// End returns the instant the bar's close price is observed.
func (b Bar) End(iv Interval) time.Time {
	return b.Time.Add(iv.Duration())
}

// Price returns the bar field selected by f.
func (b Bar) Price(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldVolume:
		return b.Volume
	default:
		return b.Close
	}
}

// Validate returns a DataError naming the problem when the bar is unusable.
func (b Bar) Validate(symbol string, index int) error {
	if reason := b.validate(); reason != "" {
		return &DataError{Symbol: symbol, Index: index, Reason: reason}
	}
	return nil
}

func (b Bar) validate() string {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-finite value"
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return "non-positive price"
	}
	if b.High < b.Low {
		return fmt.Sprintf("high %.6f below low %.6f", b.High, b.Low)
	}
	if b.Volume < 0 {
		return "negative volume"
	}
	if b.Time.IsZero() {
		return "missing timestamp"
	}
	return ""
}

// Field selects one column of a bar.
type Field int

const (
	FieldClose Field = iota
	FieldOpen
	FieldHigh
	FieldLow
	FieldVolume
)

func (f Field) String() string {
	switch f {
	case FieldOpen:
		return "open"
	case FieldHigh:
		return "high"
	case FieldLow:
		return "low"
	case FieldVolume:
		return "volume"
	default:
		return "close"
	}
}
