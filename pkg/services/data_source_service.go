package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/crypto"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
)

// DataSourceService defines the interface for data source operations.
type DataSourceService interface {
	// Create creates a new data source with encrypted config.
	Create(ctx context.Context, name, dsType string, config map[string]any) (*models.DataSource, error)

	// Get retrieves a data source by ID with decrypted config.
	Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// List retrieves all data sources with decrypted configs.
	List(ctx context.Context) ([]*models.DataSource, error)

	// Delete removes a data source and everything cataloged under it.
	Delete(ctx context.Context, id uuid.UUID) error

	// TestConnection tests connectivity to a data source without saving it.
	TestConnection(ctx context.Context, dsType string, config map[string]any) error

	// OpenDiscoverer connects to one database of a stored data source.
	// The caller must close the discoverer.
	OpenDiscoverer(ctx context.Context, dataSourceID uuid.UUID, databaseName string) (datasource.SchemaDiscoverer, error)
}

type dataSourceService struct {
	tx             database.Transactor
	repo           repositories.DataSourceRepository
	encryptor      *crypto.CredentialEncryptor
	adapterFactory datasource.DatasourceAdapterFactory
	logger         *zap.Logger
}

// NewDataSourceService creates a new data source service with dependencies.
func NewDataSourceService(
	tx database.Transactor,
	repo repositories.DataSourceRepository,
	encryptor *crypto.CredentialEncryptor,
	adapterFactory datasource.DatasourceAdapterFactory,
	logger *zap.Logger,
) DataSourceService {
	return &dataSourceService{
		tx:             tx,
		repo:           repo,
		encryptor:      encryptor,
		adapterFactory: adapterFactory,
		logger:         logger.Named("data_sources"),
	}
}

var _ DataSourceService = (*dataSourceService)(nil)

func (s *dataSourceService) Create(ctx context.Context, name, dsType string, config map[string]any) (*models.DataSource, error) {
	v := apperrors.NewValidationError()
	validateName(v, "name", name)
	switch {
	case dsType == "":
		v.Add("data_source_type", msgBlank)
	case !models.IsValidDataSourceType(dsType):
		v.Add("data_source_type", msgNotIncluded)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if config == nil {
		config = make(map[string]any)
	}

	encryptedConfig, err := s.encryptor.EncryptConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	ds := &models.DataSource{
		Name:           name,
		DataSourceType: dsType,
		Config:         config,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, ds, encryptedConfig)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, nameTaken("name")
		}
		return nil, err
	}

	s.logger.Info("Created data source",
		zap.String("id", ds.ID.String()),
		zap.String("name", name),
		zap.String("type", dsType),
	)
	return ds, nil
}

func (s *dataSourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	var ds *models.DataSource
	var encryptedConfig string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		ds, encryptedConfig, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	config, err := s.encryptor.DecryptConfig(encryptedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config: %w", err)
	}
	ds.Config = config
	return ds, nil
}

func (s *dataSourceService) List(ctx context.Context) ([]*models.DataSource, error) {
	var sources []*models.DataSource
	var encryptedConfigs []string
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sources, encryptedConfigs, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i, ds := range sources {
		config, err := s.encryptor.DecryptConfig(encryptedConfigs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt config for data source %s: %w", ds.ID, err)
		}
		ds.Config = config
	}
	return sources, nil
}

func (s *dataSourceService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted data source", zap.String("id", id.String()))
	return nil
}

func (s *dataSourceService) TestConnection(ctx context.Context, dsType string, config map[string]any) error {
	adapter, err := s.adapterFactory.NewConnectionTester(ctx, dsType, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	if err := adapter.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	s.logger.Info("Connection test successful", zap.String("type", dsType))
	return nil
}

func (s *dataSourceService) OpenDiscoverer(ctx context.Context, dataSourceID uuid.UUID, databaseName string) (datasource.SchemaDiscoverer, error) {
	ds, err := s.Get(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}

	discoverer, err := s.adapterFactory.NewSchemaDiscoverer(ctx, ds.DataSourceType, ds.Config, databaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ds.Name, err)
	}
	return discoverer, nil
}
