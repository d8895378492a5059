package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/config"
	"github.com/ekaya-inc/catalog-engine/pkg/crypto"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/logging"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
	"github.com/ekaya-inc/catalog-engine/pkg/services"
	"github.com/ekaya-inc/catalog-engine/pkg/staleness"
)

// app holds the wired services shared by the serve and reindex commands.
type app struct {
	db *database.DB

	dataSources services.DataSourceService
	databases   services.DatabaseService
	schemas     services.SchemaService
	datasets    services.DatasetService
	search      services.SearchService
}

func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	connStr := cfg.Database.ConnectionString()
	logger.Info("Connecting to catalog database",
		zap.String("dsn", logging.SanitizeConnectionString(connStr)))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newIndexer(cfg *config.Config, logger *zap.Logger) (search.Indexer, error) {
	if !cfg.Search.Enabled {
		logger.Info("Search indexing disabled")
		return search.NoopIndexer{}, nil
	}
	url := config.ResolveURLForDocker(cfg.Search.URL)
	indexer, err := search.NewSolrIndexer(search.SolrConfig{
		URL:      url,
		Core:     cfg.Search.Core,
		RetryMax: cfg.Search.RetryMax,
		Timeout:  cfg.Search.Timeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create search indexer: %w", err)
	}
	logger.Info("Search indexing enabled",
		zap.String("url", url),
		zap.String("core", cfg.Search.Core))
	return indexer, nil
}

// newApp connects to the catalog store and wires repositories and services.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}

	indexer, err := newIndexer(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	dataSourceRepo := repositories.NewDataSourceRepository()
	databaseRepo := repositories.NewDatabaseRepository()
	schemaRepo := repositories.NewSchemaRepository()
	datasetRepo := repositories.NewDatasetRepository()

	marker := staleness.NewMarker(nil)

	dataSourceService := services.NewDataSourceService(db, dataSourceRepo, encryptor,
		datasource.NewDatasourceAdapterFactory(), logger)
	datasetService := services.NewDatasetService(db, datasetRepo, schemaRepo,
		services.NewDatasetPipelineFor(schemaRepo, logger), indexer, marker, logger)
	schemaService := services.NewSchemaService(db, schemaRepo, databaseRepo, datasetRepo,
		dataSourceService, datasetService, indexer, marker, logger)
	databaseService := services.NewDatabaseService(db, databaseRepo, schemaRepo,
		dataSourceService, schemaService, services.NewDatabasePipelineFor(schemaRepo, logger), marker, logger)
	searchService := services.NewSearchService(db, datasetRepo, indexer, cfg.Refresh.ReindexBatchSize, logger)

	return &app{
		db:          db,
		dataSources: dataSourceService,
		databases:   databaseService,
		schemas:     schemaService,
		datasets:    datasetService,
		search:      searchService,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
