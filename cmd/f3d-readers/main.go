package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	readers "github.com/flywave/go-3dreaders"
)

// version is set via build-time ldflags
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "f3d-readers",
	Short: "Inspect and run the viewer's file format readers",
	Long: `f3d-readers lists the file format readers known to the viewer and
loads files through them, the same way the viewer picks a reader by
file extension.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(readersCmd)
	rootCmd.AddCommand(loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger and reader factory
// shared by every subcommand.
func setup() (*readers.Config, *zap.Logger, *readers.Factory, error) {
	cfg, err := readers.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	factory := readers.NewDefaultFactory(readers.WithConfig(cfg), readers.WithLogger(logger))
	return cfg, logger, factory, nil
}

func newLogger(cfg readers.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
