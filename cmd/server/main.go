package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinical-intake-agent/internal/config"
	"clinical-intake-agent/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Clinical intake interview agent",
	Long: `intake runs a conversational patient intake interview driven by a language model.
It collects demographics, symptoms and medical history, then produces a triage summary
for the clinic's doctor.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all subcommands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
