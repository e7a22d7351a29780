// Package cli wires the backtester commands.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// rootConfig is shared by every subcommand. cfg and log are ready once
// PersistentPreRunE has run.
type rootConfig struct {
	ConfigPath string
	EnvFile    string
	DBPath     string
	LogLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func NewRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:           "backtester",
		Short:         "Bar-by-bar strategy simulation and run journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (YAML or JSON, optional)")
	cmd.PersistentFlags().StringVar(&rc.EnvFile, "env", ".env", "Dotenv file with BACKTEST_* overrides")
	cmd.PersistentFlags().StringVar(&rc.DBPath, "db", "", "SQLite journal database (overrides config)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rc.load(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if rc.log == nil {
			return nil
		}
		return logging.Close(rc.log)
	}

	cmd.AddCommand(
		newRunCmd(rc),
		newReportCmd(rc),
		newStrategiesCmd(),
		newDataCmd(rc),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "backtester %s\n", Version)
		},
	})

	return cmd
}

// load resolves defaults, the config file, the environment and the global
// flags, in that order, and builds the logger.
func (rc *rootConfig) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
			return err
		}
	}

	env, err := config.Env(rc.EnvFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Journal.DBPath = rc.DBPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = rc.LogLevel
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	rc.cfg, rc.log = cfg, log
	return nil
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
