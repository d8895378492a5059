package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
)

func TestSchemaService_Refresh(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	schema := env.catalog.addSchema(db.ID, "public", 1)
	orders := env.catalog.addDataset(schema.ID, "orders", models.DatasetKindTable, nil)
	legacy := env.catalog.addDataset(schema.ID, "legacy", models.DatasetKindTable, nil)
	archived := env.catalog.addDataset(schema.ID, "archived", models.DatasetKindView, &testNow)
	cv := env.catalog.addDataset(schema.ID, "recent_orders", models.DatasetKindChorusView, nil)

	env.sources.discoverer.relations = map[string][]datasource.Relation{
		"public": {
			{Schema: "public", Name: "archived", Kind: datasource.RelationView},
			{Schema: "public", Name: "customers", Kind: datasource.RelationTable},
			{Schema: "public", Name: "orders", Kind: datasource.RelationTable},
			{Schema: "public", Name: "order_totals", Kind: datasource.RelationView},
		},
	}

	result, err := env.schemas.Refresh(ctx, schema.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DatasetsCreated)
	assert.Equal(t, 1, result.DatasetsStaled)
	assert.Equal(t, 1, result.DatasetsFreshed)
	assert.Equal(t, 4, result.Reindexed)
	assert.Zero(t, result.ReindexFailed)

	assert.Equal(t, "warehouse", env.sources.database)
	assert.True(t, env.sources.discoverer.closed)

	assert.NotNil(t, env.catalog.dataset(legacy.ID).StaleAt)
	assert.Nil(t, env.catalog.dataset(archived.ID).StaleAt)
	assert.Nil(t, env.catalog.dataset(orders.ID).StaleAt)
	assert.Nil(t, env.catalog.dataset(cv.ID).StaleAt)

	// -1 for legacy, +1 for archived, +2 for the new relations.
	assert.Equal(t, 3, env.catalog.count(schema.ID))

	// One bulk batch with a single commit; stale datasets stay out and the
	// vanished relation is dropped from the index in the same batch.
	assert.Len(t, env.indexer.pushed, 4)
	assert.NotContains(t, env.indexer.pushed, search.DocumentID(legacy.ID))
	assert.NotContains(t, env.indexer.pushed, search.DocumentID(cv.ID))
	assert.Equal(t, []string{search.DocumentID(legacy.ID)}, env.indexer.removed)
	assert.Equal(t, 1, result.Unindexed)
	assert.Equal(t, 1, env.indexer.commits)

	refreshed := env.catalog.schema(schema.ID)
	assert.NotNil(t, refreshed.RefreshedAt)
	assert.Nil(t, refreshed.StaleAt)
}

func TestSchemaService_RefreshContinuesPastPushFailures(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	schema := env.catalog.addSchema(db.ID, "public", 2)
	a := env.catalog.addDataset(schema.ID, "a", models.DatasetKindTable, nil)
	b := env.catalog.addDataset(schema.ID, "b", models.DatasetKindTable, nil)
	env.indexer.failPush[search.DocumentID(a.ID)] = true

	env.sources.discoverer.relations = map[string][]datasource.Relation{
		"public": {
			{Schema: "public", Name: "a", Kind: datasource.RelationTable},
			{Schema: "public", Name: "b", Kind: datasource.RelationTable},
		},
	}

	result, err := env.schemas.Refresh(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reindexed)
	assert.Equal(t, 1, result.ReindexFailed)
	assert.Equal(t, []string{search.DocumentID(b.ID)}, env.indexer.pushed)
	assert.Equal(t, 1, env.indexer.commits)
}

func TestSchemaService_RefreshOnlyVanishedRelations(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	schema := env.catalog.addSchema(db.ID, "public", 2)
	a := env.catalog.addDataset(schema.ID, "a", models.DatasetKindTable, nil)
	b := env.catalog.addDataset(schema.ID, "b", models.DatasetKindView, nil)

	result, err := env.schemas.Refresh(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DatasetsStaled)
	assert.Equal(t, 2, result.Unindexed)
	assert.Empty(t, env.indexer.pushed)
	assert.ElementsMatch(t, []string{search.DocumentID(a.ID), search.DocumentID(b.ID)}, env.indexer.removed)
	assert.Equal(t, 1, env.indexer.commits)
	assert.Equal(t, 0, env.catalog.count(schema.ID))
}

func TestSchemaService_RefreshRejectsUnknownRelationKind(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()

	db := env.catalog.addDatabase("warehouse")
	schema := env.catalog.addSchema(db.ID, "public", 1)
	orders := env.catalog.addDataset(schema.ID, "orders", models.DatasetKindTable, nil)
	before := env.catalog.datasetCount()

	env.sources.discoverer.relations = map[string][]datasource.Relation{
		"public": {
			{Schema: "public", Name: "customers", Kind: datasource.RelationTable},
			{Schema: "public", Name: "order_rollup", Kind: datasource.RelationKind("materialized_view")},
		},
	}

	_, err := env.schemas.Refresh(ctx, schema.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_rollup")
	assert.Contains(t, err.Error(), "materialized_view")

	// Nothing was written: no new dataset, orders stays fresh, the index is untouched.
	assert.Equal(t, before, env.catalog.datasetCount())
	assert.Nil(t, env.catalog.dataset(orders.ID).StaleAt)
	assert.Equal(t, 1, env.catalog.count(schema.ID))
	assert.Zero(t, env.indexer.commits)
	assert.Nil(t, env.catalog.schema(schema.ID).RefreshedAt)
}

func TestSchemaService_MarkStaleLeavesCounter(t *testing.T) {
	env := newCatalogTestEnv(t)
	ctx := context.Background()
	schema := env.freshTables(3)

	got, err := env.schemas.MarkStale(ctx, schema.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StaleAt)
	assert.Equal(t, 3, env.catalog.count(schema.ID))

	got, err = env.schemas.MarkFresh(ctx, schema.ID)
	require.NoError(t, err)
	assert.Nil(t, got.StaleAt)
	assert.Nil(t, env.catalog.schema(schema.ID).StaleAt)
}
