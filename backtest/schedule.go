package backtest

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// schedule decides when an open position is liquidated regardless of the
// strategy. Rules are evaluated in UTC unless they carry a CRON_TZ prefix.
type schedule struct {
	rule string
	spec cron.Schedule
}

// parseSchedule returns nil for an empty or "none" rule.
func parseSchedule(rule string) (*schedule, error) {
	rule = strings.TrimSpace(rule)
	switch strings.ToLower(rule) {
	case "", ForcedCloseNone:
		return nil, nil
	case ForcedCloseMonthly:
		rule = "@monthly"
	}

	expr := rule
	if !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		expr = "CRON_TZ=UTC " + expr
	}
	spec, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, configErr("forced_close", "bad rule %q: %v", rule, err)
	}
	return &schedule{rule: rule, spec: spec}, nil
}

// fires reports whether the rule triggers after prev and at or before cur.
func (s *schedule) fires(prev, cur time.Time) bool {
	if s == nil || prev.IsZero() {
		return false
	}
	return !s.spec.Next(prev).After(cur)
}

func (s *schedule) String() string {
	if s == nil {
		return ForcedCloseNone
	}
	return s.rule
}
