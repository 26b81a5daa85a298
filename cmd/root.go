// Package cmd holds the sentinel command line.
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel/internal/conf"
	"github.com/tphakala/sentinel/internal/logger"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var configPath string

// NewRootCommand builds the sentinel command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Alert lifecycle service for a multi-tenant monitoring platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCommand(), newMigrateCommand(), newVersionCommand())
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadSettings reads the configuration and installs it process-wide.
func loadSettings() (*conf.Settings, error) {
	settings, err := conf.Load(configPath)
	if err != nil {
		return nil, err
	}
	conf.SetSettings(settings)
	return settings, nil
}

// newLogger builds the root logger. With a file path configured, output goes
// to a rotated file and the returned closer must be closed.
func newLogger(s conf.LoggingSettings) (logger.Logger, io.Closer) {
	level := logger.ParseLevel(s.Level)
	if s.FilePath == "" {
		return logger.NewSlogLogger(os.Stdout, level, s.Location()), io.NopCloser(nil)
	}
	return logger.NewFileLogger(logger.FileConfig{
		Path:       s.FilePath,
		MaxSizeMB:  s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		MaxAgeDays: s.MaxAgeDays,
		Compress:   true,
	}, level, s.Location())
}
