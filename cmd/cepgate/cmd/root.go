package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/cepgate/internal/core/config"
	"github.com/solatis/cepgate/internal/core/db"
	"github.com/solatis/cepgate/internal/core/logging"
)

// Version is the cepgate release version.
const Version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "cepgate",
	Short:         "cepgate complex event processing gateway",
	Long:          `cepgate feeds JSON events to a complex event processing engine and posts engine results to an action endpoint, carrying the request correlator end to end.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.ServiceConfig, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openDatabase opens the journal database named by the configuration.
func openDatabase(cfg *config.ServiceConfig) (*sqlx.DB, error) {
	database, err := db.Open(cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}
