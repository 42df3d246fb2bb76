package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surveypath/surveypath-go/pkg/config"
	"github.com/surveypath/surveypath-go/utils"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagDBPath    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "surveypath",
	Short: "surveypath runs brand tracking survey pipelines",
	Long: `surveypath ingests raw tracker exports, maps and recodes responses,
fits the measurement and driver models, and writes analysis outputs.

Pipelines are YAML files wiring Input, Data_Processing, ML and Output
plugin steps together; see configs/pipelines for examples.`,
}

func main() {
	cobra.OnInitialize(initApp)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "results database path (default $DATABASE_PATH or output/runs.db)")
}

func initApp() {
	loaded, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	cfg = loaded

	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagDBPath != "" {
		cfg.DatabasePath = flagDBPath
	}

	if err := utils.InitLogger(utils.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openStore() (*utils.ResultsStore, error) {
	return utils.NewResultsStore(cfg.DatabasePath)
}
