package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
)

func TestDatabaseService_Create(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	sourceID := uuid.New()
	env.catalog.sources[sourceID] = models.DataSource{ID: sourceID, Name: "gp", DataSourceType: models.DataSourceTypePostgres}

	db, err := env.databases.Create(ctx, sourceID, "warehouse")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, db.ID)

	_, err = env.databases.Create(ctx, sourceID, "warehouse")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = env.databases.Create(ctx, uuid.New(), "other")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = env.databases.Create(ctx, sourceID, "")
	_, ok := apperrors.IsValidation(err)
	assert.True(t, ok)
}

func TestDatabaseService_MarkStaleCascades(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	public := env.catalog.addSchema(db.ID, "public", 4)
	sales := env.catalog.addSchema(db.ID, "sales", 2)

	got, err := env.databases.MarkStale(ctx, db.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StaleAt)

	for _, id := range []uuid.UUID{public.ID, sales.ID} {
		s := env.catalog.schema(id)
		require.NotNil(t, s.StaleAt)
		assert.True(t, got.StaleAt.Equal(*s.StaleAt), "schema must share the database's instant")
	}
	// Schema staleness does not move the counter.
	assert.Equal(t, 4, env.catalog.count(public.ID))
	assert.Equal(t, 2, env.catalog.count(sales.ID))
}

func TestDatabaseService_MarkStaleTwiceDoesNotRecascade(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	public := env.catalog.addSchema(db.ID, "public", 0)

	_, err := env.databases.MarkStale(ctx, db.ID)
	require.NoError(t, err)
	_, err = env.schemas.MarkFresh(ctx, public.ID)
	require.NoError(t, err)

	_, err = env.databases.MarkStale(ctx, db.ID)
	require.NoError(t, err)
	assert.Nil(t, env.catalog.schema(public.ID).StaleAt)
}

func TestDatabaseService_MarkFreshDoesNotCascade(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	public := env.catalog.addSchema(db.ID, "public", 0)

	_, err := env.databases.MarkStale(ctx, db.ID)
	require.NoError(t, err)

	got, err := env.databases.MarkFresh(ctx, db.ID)
	require.NoError(t, err)
	assert.Nil(t, got.StaleAt)
	assert.Nil(t, env.catalog.databaseRow(db.ID).StaleAt)
	assert.NotNil(t, env.catalog.schema(public.ID).StaleAt)
}

func TestDatabaseService_Refresh(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	stale := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.catalog.mu.Lock()
	row := env.catalog.databases[db.ID]
	row.StaleAt = &stale
	env.catalog.databases[db.ID] = row
	env.catalog.mu.Unlock()

	public := env.catalog.addSchema(db.ID, "public", 0)
	_, err := env.schemas.MarkStale(ctx, public.ID)
	require.NoError(t, err)
	old := env.catalog.addSchema(db.ID, "old", 0)

	env.sources.discoverer.schemas = []string{"public", "sales"}

	result, err := env.databases.Refresh(ctx, db.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SchemasCreated)
	assert.Equal(t, 1, result.SchemasFreshed)
	assert.Equal(t, 1, result.SchemasStaled)
	assert.Zero(t, result.DatasetsCreated)

	assert.Equal(t, "warehouse", env.sources.database)
	assert.Nil(t, env.catalog.databaseRow(db.ID).StaleAt)
	assert.Nil(t, env.catalog.schema(public.ID).StaleAt)
	assert.NotNil(t, env.catalog.schema(old.ID).StaleAt)

	schemas, err := env.databases.ListSchemas(ctx, db.ID)
	require.NoError(t, err)
	assert.Len(t, schemas, 3)
}

func TestDatabaseService_DeepRefresh(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	env.sources.discoverer.schemas = []string{"public", "sales"}
	env.sources.discoverer.relations = map[string][]datasource.Relation{
		"public": {{Schema: "public", Name: "customers", Kind: datasource.RelationTable}},
		"sales": {
			{Schema: "sales", Name: "orders", Kind: datasource.RelationTable},
			{Schema: "sales", Name: "big_orders", Kind: datasource.RelationView},
		},
	}

	result, err := env.databases.Refresh(ctx, db.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SchemasCreated)
	assert.Equal(t, 3, result.DatasetsCreated)
	assert.Equal(t, 3, result.Reindexed)

	schemas, err := env.databases.ListSchemas(ctx, db.ID)
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, s := range schemas {
		counts[s.Name] = env.catalog.count(s.ID)
	}
	assert.Equal(t, map[string]int{"public": 1, "sales": 2}, counts)
}

func TestDatabaseService_NotFound(t *testing.T) {
	env := newCatalogTestEnv(t)

	_, err := env.databases.MarkStale(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = env.databases.Refresh(context.Background(), uuid.New(), true)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
