package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/config"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending catalog database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		return migrate(cfg, logger)
	},
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push every fresh dataset to the search index",
	Long: `Pages through all datasets that are neither stale nor deleted and pushes
them to the search index, one commit per page. Failed documents are reported
and do not stop the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.search.ReindexAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d documents in %d batches: %d succeeded, %d failed, %d commit failures\n",
			summary.Documents, summary.Batches, summary.Succeeded, summary.Failed, summary.CommitFailures)
		if summary.Failed > 0 || summary.CommitFailures > 0 {
			return fmt.Errorf("reindex incomplete: %d failed documents, %d failed commits", summary.Failed, summary.CommitFailures)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a sample config.yaml with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.WriteExample(cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(configExampleCmd)
}
