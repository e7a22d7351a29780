package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/backtester/market"
)

var (
	// ErrConfiguration marks an invalid execution policy or strategy setup.
	ErrConfiguration = errors.New("configuration error")

	// ErrStrategyFault marks a strategy that failed or produced a malformed
	// intent. Faults are counted and the bar is skipped; they never stop a run.
	ErrStrategyFault = errors.New("strategy fault")

	// ErrFinalized is returned by Step and Finalize after Finalize.
	ErrFinalized = errors.New("simulator already finalized")

	// ErrData is the bar feed sentinel, re-exported for callers of this package.
	ErrData = market.ErrData
)

// ConfigurationError names the offending policy field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StrategyFault wraps the error a strategy raised on one bar.
type StrategyFault struct {
	Symbol   string
	Strategy string
	Time     time.Time
	Err      error
}

func (e *StrategyFault) Error() string {
	return fmt.Sprintf("strategy fault: %s %s at %s: %v", e.Strategy, e.Symbol, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyFault) Unwrap() error { return e.Err }

func (e *StrategyFault) Is(target error) bool { return target == ErrStrategyFault }
