package market

import (
	"fmt"
	"time"
)

// Resample aggregates bars into a coarser interval. Buckets start at times
// truncated to iv (UTC). A bucket with fewer than minBars source bars is
// dropped; minBars below 1 counts as 1.
func (s *Series) Resample(iv Interval, minBars int) (*Series, error) {
	if iv <= s.Interval || iv%s.Interval != 0 {
		return nil, fmt.Errorf("cannot resample %s bars to %s", s.Interval, iv)
	}
	if minBars < 1 {
		minBars = 1
	}

	var (
		out   []Bar
		cur   Bar
		count int
	)
	flush := func() {
		if count >= minBars {
			out = append(out, cur)
		}
	}
	for _, b := range s.bars {
		start := b.Time.UTC().Truncate(time.Duration(iv))
		if count > 0 && start.Equal(cur.Time) {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			count++
			continue
		}
		if count > 0 {
			flush()
		}
		cur = Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		count = 1
	}
	flush()

	if len(out) == 0 {
		return nil, &DataError{Symbol: s.Symbol, Index: -1, Reason: fmt.Sprintf("no %s bucket has %d bars", iv, minBars)}
	}
	return NewSeries(s.Symbol, iv, out)
}
