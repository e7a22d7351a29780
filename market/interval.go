package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the fixed duration of one bar, e.g. 24h for daily bars.
type Interval time.Duration

const (
	Minute Interval = Interval(time.Minute)
	Hour   Interval = Interval(time.Hour)
	Daily  Interval = Interval(24 * time.Hour)
)

func (iv Interval) Duration() time.Duration { return time.Duration(iv) }

// Minutes is the number of minutes per bar.
func (iv Interval) Minutes() float64 { return time.Duration(iv).Minutes() }

// Bars converts a wall-clock duration into bar units.
func (iv Interval) Bars(d time.Duration) float64 {
	if iv <= 0 {
		return 0
	}
	return float64(d) / float64(iv)
}

func (iv Interval) String() string {
	d := time.Duration(iv)
	switch {
	case d > 0 && d%(24*time.Hour) == 0:
		return fmt.Sprintf("D%d", d/(24*time.Hour))
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("H%d", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("M%d", d/time.Minute)
	default:
		return d.String()
	}
}

// ParseInterval accepts timeframe strings ("1D", "D1", "1H", "H4", "M15",
// "15m") as well as Go durations ("90m").
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}
	u := strings.ToUpper(s)

	var unit time.Duration
	var num string
	switch {
	case strings.HasSuffix(u, "D"):
		unit, num = 24*time.Hour, u[:len(u)-1]
	case strings.HasPrefix(u, "D"):
		unit, num = 24*time.Hour, u[1:]
	case strings.HasPrefix(u, "H"):
		unit, num = time.Hour, u[1:]
	case strings.HasPrefix(u, "M"):
		unit, num = time.Minute, u[1:]
	}
	if unit != 0 {
		n := 1
		if num != "" {
			if _, err := fmt.Sscanf(num, "%d", &n); err != nil || n <= 0 {
				return 0, fmt.Errorf("bad interval %q", s)
			}
		}
		return Interval(time.Duration(n) * unit), nil
	}

	d, err := time.ParseDuration(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("bad interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", s)
	}
	return Interval(d), nil
}
