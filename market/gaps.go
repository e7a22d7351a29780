package market

import "time"

// GapKind classifies a run of missing bars.
type GapKind string

const (
	GapMinor      GapKind = "minor"
	GapWeekend    GapKind = "weekend"
	GapSuspicious GapKind = "suspicious"
)

// Gap is a run of missing bars between two present ones.
type Gap struct {
	Start   time.Time // first missing bar time
	Missing int       // number of missing intervals
	Kind    GapKind
}

// GapStats summarizes the gaps of a series.
type GapStats struct {
	Bars        int
	Expected    int
	Missing     int
	Gaps        int
	Weekend     int
	Suspicious  int
	LongestGap  int
	LongestKind GapKind
}

// Gaps lists every place where consecutive bars are more than one interval
// apart. Bar times are expected to be aligned to the interval.
func (s *Series) Gaps() []Gap {
	step := s.Interval.Duration()
	var gaps []Gap
	for i := 1; i < len(s.bars); i++ {
		delta := s.bars[i].Time.Sub(s.bars[i-1].Time)
		missing := int(delta/step) - 1
		if missing <= 0 {
			continue
		}
		start := s.bars[i-1].Time.Add(step)
		gaps = append(gaps, Gap{
			Start:   start,
			Missing: missing,
			Kind:    classifyGap(start, time.Duration(missing)*step),
		})
	}
	return gaps
}

// classifyGap treats day-long holes starting Friday through Sunday (UTC) as
// weekends; other holes of ten minutes or more are suspicious.
func classifyGap(start time.Time, d time.Duration) GapKind {
	if d >= 24*time.Hour {
		switch start.UTC().Weekday() {
		case time.Friday, time.Saturday, time.Sunday:
			return GapWeekend
		}
		return GapSuspicious
	}
	if d >= 10*time.Minute {
		return GapSuspicious
	}
	return GapMinor
}

// GapStats counts present and missing bars over the series span.
func (s *Series) GapStats() GapStats {
	st := GapStats{Bars: len(s.bars)}
	for _, g := range s.Gaps() {
		st.Gaps++
		st.Missing += g.Missing
		if g.Missing > st.LongestGap {
			st.LongestGap = g.Missing
			st.LongestKind = g.Kind
		}
		switch g.Kind {
		case GapWeekend:
			st.Weekend++
		case GapSuspicious:
			st.Suspicious++
		}
	}
	st.Expected = st.Bars + st.Missing
	return st
}
