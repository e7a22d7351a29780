// Package logging builds the logrus logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination. Output is "stdout",
// "stderr" or "file"; file output rotates through lumberjack.
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	Filename   string `yaml:"filename" json:"filename"`
	MaxSize    int    `yaml:"max_size" json:"max_size"` // MB
	MaxAge     int    `yaml:"max_age" json:"max_age"`   // days
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		Output:     "stderr",
		Filename:   "logs/backtester.log",
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 10,
		Compress:   true,
	}
}

func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	switch c.Output {
	case "stdout", "stderr":
	case "file":
		if c.Filename == "" {
			return fmt.Errorf("log output file needs a filename")
		}
	default:
		return fmt.Errorf("unknown log output %q", c.Output)
	}
	return nil
}

// New returns a configured logger. Close it with Close to release a log file.
func New(c Config) (*logrus.Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	level, _ := logrus.ParseLevel(c.Level)

	l := logrus.New()
	l.SetLevel(level)
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	var out io.Writer
	switch c.Output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(c.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   c.Filename,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		}
	}
	l.SetOutput(out)
	return l, nil
}

// Close releases a rotating log file, if the logger writes to one.
func Close(l *logrus.Logger) error {
	if c, ok := l.Out.(*lumberjack.Logger); ok {
		return c.Close()
	}
	return nil
}
