package journal

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/ledger"
)

var orgFuncs = template.FuncMap{
	"pct":  func(x float64) string { return fmt.Sprintf("%.2f", x) },
	"cash": func(x float64) string { return fmt.Sprintf("%.2f", x) },
	"pf": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02")
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"trades": func(r Run, symbol string) string {
		return FormatTradesOrg(r.TradesFor(symbol))
	},
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Interval}} ({{len .Symbols}} symbols)
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:TIMEFRAME:   {{.Interval}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_CASH:  {{cash .Policy.StartingCash}}
:COMMISSION:  {{.Policy.CommissionRate}}
:FILL:        {{if .Policy.SameBarFill}}same-bar{{else}}next-bar{{end}} at {{.Policy.FillPrice}}
:FORCED:      {{.Policy.ForcedClose}}
:TRADES:      {{.Summary.TotalTrades}}
:NET_PL:      {{cash .Summary.NetPnL}}
:RETURN_PCT:  {{pct .Summary.TotalReturnPct}}
:MAX_DD_PCT:  {{pct .Summary.MaxDrawdownPct}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter | Value |
|-----------+-------|
{{- range $k, $v := .Params }}
| {{$k}} | {{$v}} |
{{- end }}
| sizing_fraction | {{.Policy.SizingFraction}} |
{{- if .Policy.RiskPerTrade }}
| risk_per_trade | {{.Policy.RiskPerTrade}} |
{{- end }}

** Symbols
| Symbol | Status | Trades | Win % | Net P/L | Return % | Max DD % | Sharpe | PF |
|--------+--------+--------+-------+---------+----------+----------+--------+----|
{{- range .Symbols }}
| {{.Symbol}} | {{.Status}} | {{.Metrics.TotalTrades}} | {{pct .Metrics.WinRate}} | {{cash .Metrics.NetPnL}} | {{pct .Metrics.TotalReturnPct}} | {{pct .Metrics.MaxDrawdownPct}} | {{pct .Metrics.SharpeRatio}} | {{pf .Metrics.ProfitFactor}} |
{{- end }}
{{ $run := . }}
{{- range .Symbols }}
** {{.Symbol}}
:PROPERTIES:
:STATUS:      {{.Status}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:BARS:        {{.Bars}}
:FAULTS:      {{.Faults}}
:END_EQUITY:  {{cash .FinalEquity}}
{{- if .Error }}
:ERROR:       {{.Error}}
{{- end }}
:END:

- Net P/L:          *{{cash .Metrics.NetPnL}}*
- Return:           *{{pct .Metrics.TotalReturnPct}}%* ({{pct .Metrics.AnnualizedReturnPct}}% annualized)
- Max Drawdown:     *{{pct .Metrics.MaxDrawdownPct}}%*
- Win Rate:         *{{pct .Metrics.WinRate}}%* ({{.Metrics.Wins}} won, {{.Metrics.Losses}} lost)
- Profit Factor:    *{{pf .Metrics.ProfitFactor}}*
- Avg Duration:     {{pct .Metrics.AvgTradeDuration}} bars, {{pct .Metrics.AvgTradeDurationHours}} h
{{ trades $run .Symbol }}
{{- end }}
{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`

var runOrg = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders the run report.
func WriteOrg(w io.Writer, r Run) error {
	return runOrg.Execute(w, r)
}

// FormatTradeOrg renders a trade as an Org heading with its facts in a
// PROPERTIES drawer.
func FormatTradeOrg(t ledger.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** Trade: %s (%s)\n", t.Symbol, t.TradeID)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":SIZE: %g\n", t.Size)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.4f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.EntryTime.UTC().Format(time.RFC3339))
	if t.ExitPrice != nil {
		fmt.Fprintf(&b, ":EXIT_PRICE: %.4f\n", *t.ExitPrice)
	}
	if t.ExitTime != nil {
		fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.ExitTime.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, ":STATUS: %s\n", t.Status)
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":PNL_AFTER_COST: %.2f\n", t.PnLAfterCost)
	fmt.Fprintf(&b, ":COMMISSION: %.2f\n", t.Commission)
	fmt.Fprintf(&b, ":DURATION: %g\n", t.Duration)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []ledger.Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// OrgJournal writes each run to <dir>/<run id>.org.
type OrgJournal struct {
	dir string
}

var _ Journal = (*OrgJournal)(nil)

func NewOrg(dir string) (*OrgJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &OrgJournal{dir: dir}, nil
}

func (j *OrgJournal) Path(runID string) string {
	return filepath.Join(j.dir, runID+".org")
}

func (j *OrgJournal) RecordRun(ctx context.Context, r Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(j.Path(r.RunID), func(w io.Writer) error { return WriteOrg(w, r) })
}

func (j *OrgJournal) Close() error { return nil }
