package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/services"
)

type mockDataSourceService struct {
	sources []*models.DataSource
	created *models.DataSource
	err     error
	testErr error
}

var _ services.DataSourceService = (*mockDataSourceService)(nil)

func (m *mockDataSourceService) Create(ctx context.Context, name, dsType string, config map[string]any) (*models.DataSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &models.DataSource{ID: uuid.New(), Name: name, DataSourceType: dsType, Config: config}
	return m.created, nil
}

func (m *mockDataSourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, ds := range m.sources {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, nil
}

func (m *mockDataSourceService) List(ctx context.Context) ([]*models.DataSource, error) {
	return m.sources, m.err
}

func (m *mockDataSourceService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.err
}

func (m *mockDataSourceService) TestConnection(ctx context.Context, dsType string, config map[string]any) error {
	return m.testErr
}

func (m *mockDataSourceService) OpenDiscoverer(ctx context.Context, dataSourceID uuid.UUID, databaseName string) (datasource.SchemaDiscoverer, error) {
	return nil, m.err
}

type mockDatabaseService struct {
	db      *models.Database
	schemas []*models.Schema
	result  *models.RefreshResult
	err     error

	gotDeep bool
}

var _ services.DatabaseService = (*mockDatabaseService)(nil)

func (m *mockDatabaseService) Create(ctx context.Context, dataSourceID uuid.UUID, name string) (*models.Database, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Database{ID: uuid.New(), DataSourceID: dataSourceID, Name: name}, nil
}

func (m *mockDatabaseService) Get(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return m.db, m.err
}

func (m *mockDatabaseService) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Database{m.db}, nil
}

func (m *mockDatabaseService) ListSchemas(ctx context.Context, id uuid.UUID) ([]*models.Schema, error) {
	return m.schemas, m.err
}

func (m *mockDatabaseService) MarkStale(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return m.db, m.err
}

func (m *mockDatabaseService) MarkFresh(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return m.db, m.err
}

func (m *mockDatabaseService) Refresh(ctx context.Context, id uuid.UUID, deep bool) (*models.RefreshResult, error) {
	m.gotDeep = deep
	return m.result, m.err
}

type mockSchemaService struct {
	schema *models.Schema
	result *models.RefreshResult
	err    error
}

var _ services.SchemaService = (*mockSchemaService)(nil)

func (m *mockSchemaService) Get(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	return m.schema, m.err
}

func (m *mockSchemaService) MarkStale(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	return m.schema, m.err
}

func (m *mockSchemaService) MarkFresh(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	return m.schema, m.err
}

func (m *mockSchemaService) Refresh(ctx context.Context, id uuid.UUID) (*models.RefreshResult, error) {
	return m.result, m.err
}

type mockDatasetService struct {
	dataset  *models.Dataset
	datasets []*models.Dataset
	err      error

	destroyed uuid.UUID
}

var _ services.DatasetService = (*mockDatasetService)(nil)

func (m *mockDatasetService) Create(ctx context.Context, schemaID uuid.UUID, name string, kind models.DatasetKind, opts ...services.MutationOption) (*models.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Dataset{ID: uuid.New(), SchemaID: schemaID, Name: name, Kind: kind}, nil
}

func (m *mockDatasetService) CreateChorusView(ctx context.Context, schemaID uuid.UUID, name, query string, opts ...services.MutationOption) (*models.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Dataset{ID: uuid.New(), SchemaID: schemaID, Name: name, Kind: models.DatasetKindChorusView, Query: &query}, nil
}

func (m *mockDatasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return m.dataset, m.err
}

func (m *mockDatasetService) ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error) {
	return m.datasets, m.err
}

func (m *mockDatasetService) MarkStale(ctx context.Context, id uuid.UUID, opts ...services.MutationOption) (*models.Dataset, error) {
	return m.dataset, m.err
}

func (m *mockDatasetService) MarkFresh(ctx context.Context, id uuid.UUID, opts ...services.MutationOption) (*models.Dataset, error) {
	return m.dataset, m.err
}

func (m *mockDatasetService) Destroy(ctx context.Context, id uuid.UUID, opts ...services.MutationOption) error {
	m.destroyed = id
	return m.err
}

type mockSearchService struct {
	summary *services.ReindexSummary
	err     error
}

var _ services.SearchService = (*mockSearchService)(nil)

func (m *mockSearchService) ReindexAll(ctx context.Context) (*services.ReindexSummary, error) {
	return m.summary, m.err
}
