package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/catalog-engine/pkg/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "catalog-engine",
	Short:         "Data catalog service",
	Long:          "catalog-engine tracks data sources, databases, schemas and datasets and keeps the search index in step with them.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.Version = Version

	rootCmd.AddCommand(serveCmd, migrateCmd, reindexCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a development logger for local runs and a JSON production logger otherwise.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
