package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teabrew/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "teabrew",
	Short:         "Tea brewing recipe dispatch service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file, empty for defaults")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
