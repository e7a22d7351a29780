package cli

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/market"
)

func newDataCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Bar file tools",
	}

	cmd.AddCommand(newDataConvertCmd(rc), newDataGapsCmd(rc))
	return cmd
}

func newDataConvertCmd(rc *rootConfig) *cobra.Command {
	var (
		symbol   string
		interval string
		resample string
		minBars  int
	)

	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a bar file between CSV and Parquet (by extension), optionally resampling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				return fmt.Errorf("--symbol is required")
			}
			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}

			s, err := market.Load(args[0], symbol, iv)
			if err != nil {
				return err
			}
			if resample != "" {
				to, err := market.ParseInterval(resample)
				if err != nil {
					return err
				}
				if s, err = s.Resample(to, minBars); err != nil {
					return err
				}
			}
			if err := market.Save(args[1], s); err != nil {
				return err
			}
			rc.log.WithFields(logrus.Fields{
				"symbol":   symbol,
				"bars":     s.Len(),
				"interval": s.Interval.String(),
				"out":      args[1],
			}).Info("converted")
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol of the bars")
	cmd.Flags().StringVar(&interval, "interval", "D1", "Bar interval")
	cmd.Flags().StringVar(&resample, "resample", "", "Aggregate into this coarser interval")
	cmd.Flags().IntVar(&minBars, "min-bars", 1, "Drop resampled bars built from fewer source bars")
	return cmd
}

func newDataGapsCmd(rc *rootConfig) *cobra.Command {
	var (
		symbol   string
		interval string
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "gaps FILE",
		Short: "Report missing bars in a bar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				return fmt.Errorf("--symbol is required")
			}
			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}
			s, err := market.Load(args[0], symbol, iv)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := s.GapStats()
			fmt.Fprintf(out, "%s %s: %d bars, %d expected, %d missing\n", symbol, iv, st.Bars, st.Expected, st.Missing)
			fmt.Fprintf(out, "gaps=%d weekend=%d suspicious=%d longest=%d (%s)\n",
				st.Gaps, st.Weekend, st.Suspicious, st.LongestGap, st.LongestKind)
			if list {
				for _, g := range s.Gaps() {
					fmt.Fprintf(out, "%s  %5d  %s\n", g.Start.Format(time.RFC3339), g.Missing, g.Kind)
				}
			}
			rc.log.WithField("symbol", symbol).Debug("gap report")
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol of the bars")
	cmd.Flags().StringVar(&interval, "interval", "D1", "Bar interval")
	cmd.Flags().BoolVar(&list, "list", false, "List every gap")
	return cmd
}
