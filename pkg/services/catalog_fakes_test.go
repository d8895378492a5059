package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/catalog-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/catalog-engine/pkg/apperrors"
	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
)

// fakeCatalog is an in-memory catalog store shared by the fake repositories.
// fakeCatalog.WithTx snapshots the store and restores it when fn fails.
type fakeCatalog struct {
	mu        sync.Mutex
	databases map[uuid.UUID]models.Database
	schemas   map[uuid.UUID]models.Schema
	datasets  map[uuid.UUID]models.Dataset
	sources   map[uuid.UUID]models.DataSource
	configs   map[uuid.UUID]string
	// balances mirrors active_tables_and_views_balance.
	balances map[uuid.UUID]int

	txCount int
	// failAdjust makes AdjustActiveCount fail once with the given error.
	failAdjust error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		databases: make(map[uuid.UUID]models.Database),
		schemas:   make(map[uuid.UUID]models.Schema),
		datasets:  make(map[uuid.UUID]models.Dataset),
		sources:   make(map[uuid.UUID]models.DataSource),
		configs:   make(map[uuid.UUID]string),
		balances:  make(map[uuid.UUID]int),
	}
}

var _ database.Transactor = (*fakeCatalog)(nil)

func (c *fakeCatalog) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := database.GetScope(ctx); ok {
		return fn(ctx)
	}

	c.mu.Lock()
	c.txCount++
	snap := c.snapshot()
	c.mu.Unlock()

	if err := fn(database.SetScope(ctx, &database.Scope{})); err != nil {
		c.mu.Lock()
		c.restore(snap)
		c.mu.Unlock()
		return err
	}
	return nil
}

type catalogSnapshot struct {
	databases map[uuid.UUID]models.Database
	schemas   map[uuid.UUID]models.Schema
	datasets  map[uuid.UUID]models.Dataset
	sources   map[uuid.UUID]models.DataSource
	configs   map[uuid.UUID]string
	balances  map[uuid.UUID]int
}

func (c *fakeCatalog) snapshot() catalogSnapshot {
	return catalogSnapshot{
		databases: cloneMap(c.databases),
		schemas:   cloneMap(c.schemas),
		datasets:  cloneMap(c.datasets),
		sources:   cloneMap(c.sources),
		configs:   cloneMap(c.configs),
		balances:  cloneMap(c.balances),
	}
}

func (c *fakeCatalog) restore(s catalogSnapshot) {
	c.databases = s.databases
	c.schemas = s.schemas
	c.datasets = s.datasets
	c.sources = s.sources
	c.configs = s.configs
	c.balances = s.balances
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func requireScope(ctx context.Context) error {
	if _, ok := database.GetScope(ctx); !ok {
		return errors.New("no database scope in context")
	}
	return nil
}

// seed helpers

func (c *fakeCatalog) addDatabase(name string) *models.Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	db := models.Database{ID: uuid.New(), DataSourceID: uuid.New(), Name: name}
	c.databases[db.ID] = db
	return &db
}

func (c *fakeCatalog) addSchema(databaseID uuid.UUID, name string, count int) *models.Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := models.Schema{ID: uuid.New(), DatabaseID: databaseID, Name: name, ActiveTablesAndViewsCount: count}
	c.schemas[s.ID] = s
	c.balances[s.ID] = count
	return &s
}

func (c *fakeCatalog) addDataset(schemaID uuid.UUID, name string, kind models.DatasetKind, staleAt *time.Time) *models.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := models.Dataset{ID: uuid.New(), SchemaID: schemaID, Name: name, Kind: kind, StaleAt: staleAt}
	c.datasets[d.ID] = d
	return &d
}

func (c *fakeCatalog) count(schemaID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schemas[schemaID].ActiveTablesAndViewsCount
}

func (c *fakeCatalog) setCount(schemaID uuid.UUID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.schemas[schemaID]
	s.ActiveTablesAndViewsCount = n
	c.schemas[schemaID] = s
	c.balances[schemaID] = n
}

func (c *fakeCatalog) schema(id uuid.UUID) models.Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schemas[id]
}

func (c *fakeCatalog) dataset(id uuid.UUID) models.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.datasets[id]
}

func (c *fakeCatalog) databaseRow(id uuid.UUID) models.Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.databases[id]
}

func (c *fakeCatalog) datasetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.datasets)
}

// fakeSchemaRepo

type fakeSchemaRepo struct{ c *fakeCatalog }

var _ repositories.SchemaRepository = (*fakeSchemaRepo)(nil)

func (r *fakeSchemaRepo) Create(ctx context.Context, schema *models.Schema) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.databases[schema.DatabaseID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, s := range r.c.schemas {
		if s.DatabaseID == schema.DatabaseID && s.Name == schema.Name {
			return apperrors.ErrConflict
		}
	}
	schema.ID = uuid.New()
	schema.ActiveTablesAndViewsCount = 0
	r.c.schemas[schema.ID] = *schema
	r.c.balances[schema.ID] = 0
	return nil
}

func (r *fakeSchemaRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Schema, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.schemas[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSchemaRepo) GetByName(ctx context.Context, databaseID uuid.UUID, name string) (*models.Schema, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, s := range r.c.schemas {
		if s.DatabaseID == databaseID && s.Name == name {
			return &s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeSchemaRepo) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]*models.Schema, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []*models.Schema
	for _, s := range r.c.schemas {
		if s.DatabaseID == databaseID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeSchemaRepo) AdjustActiveCount(ctx context.Context, schemaID uuid.UUID, delta int) (int, error) {
	if err := requireScope(ctx); err != nil {
		return 0, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if err := r.c.failAdjust; err != nil {
		r.c.failAdjust = nil
		return 0, err
	}
	s, ok := r.c.schemas[schemaID]
	if !ok {
		return 0, apperrors.ErrNotFound
	}
	r.c.balances[schemaID] += delta
	s.ActiveTablesAndViewsCount = max(r.c.balances[schemaID], 0)
	r.c.schemas[schemaID] = s
	return s.ActiveTablesAndViewsCount, nil
}

func (r *fakeSchemaRepo) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.schemas[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.StaleAt = staleAt
	r.c.schemas[id] = s
	return nil
}

func (r *fakeSchemaRepo) MarkStaleByDatabase(ctx context.Context, databaseID uuid.UUID, at time.Time) (int64, error) {
	if err := requireScope(ctx); err != nil {
		return 0, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var n int64
	for id, s := range r.c.schemas {
		if s.DatabaseID != databaseID {
			continue
		}
		at := at
		s.StaleAt = &at
		r.c.schemas[id] = s
		n++
	}
	return n, nil
}

func (r *fakeSchemaRepo) MarkRefreshed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.schemas[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.RefreshedAt = &at
	s.StaleAt = nil
	r.c.schemas[id] = s
	return nil
}

// fakeDatasetRepo

type fakeDatasetRepo struct{ c *fakeCatalog }

var _ repositories.DatasetRepository = (*fakeDatasetRepo)(nil)

func (r *fakeDatasetRepo) Create(ctx context.Context, ds *models.Dataset) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.schemas[ds.SchemaID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, d := range r.c.datasets {
		if d.SchemaID == ds.SchemaID && d.Name == ds.Name && d.DeletedAt == nil {
			return apperrors.ErrConflict
		}
	}
	ds.ID = uuid.New()
	stored := *ds
	stored.SkipSearchIndex = false
	r.c.datasets[ds.ID] = stored
	return nil
}

func (r *fakeDatasetRepo) live(id uuid.UUID) (*models.Dataset, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.datasets[id]
	if !ok || d.DeletedAt != nil {
		return nil, apperrors.ErrNotFound
	}
	return &d, nil
}

func (r *fakeDatasetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	return r.live(id)
}

func (r *fakeDatasetRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	return r.live(id)
}

func (r *fakeDatasetRepo) GetByName(ctx context.Context, schemaID uuid.UUID, name string) (*models.Dataset, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, d := range r.c.datasets {
		if d.SchemaID == schemaID && d.Name == name && d.DeletedAt == nil {
			return &d, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeDatasetRepo) ListBySchema(ctx context.Context, schemaID uuid.UUID) ([]*models.Dataset, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []*models.Dataset
	for _, d := range r.c.datasets {
		if d.SchemaID == schemaID && d.DeletedAt == nil {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeDatasetRepo) ListIndexable(ctx context.Context, afterID uuid.UUID, limit int) ([]*models.Dataset, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []*models.Dataset
	for _, d := range r.c.datasets {
		if d.DeletedAt != nil || d.StaleAt != nil {
			continue
		}
		if afterID != uuid.Nil && d.ID.String() <= afterID.String() {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDatasetRepo) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.datasets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.StaleAt = staleAt
	r.c.datasets[id] = d
	return nil
}

func (r *fakeDatasetRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.datasets[id]
	if !ok || d.DeletedAt != nil {
		return apperrors.ErrNotFound
	}
	d.DeletedAt = &at
	r.c.datasets[id] = d
	return nil
}

// fakeDatabaseRepo

type fakeDatabaseRepo struct{ c *fakeCatalog }

var _ repositories.DatabaseRepository = (*fakeDatabaseRepo)(nil)

func (r *fakeDatabaseRepo) Create(ctx context.Context, db *models.Database) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.sources[db.DataSourceID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, d := range r.c.databases {
		if d.DataSourceID == db.DataSourceID && d.Name == db.Name {
			return apperrors.ErrConflict
		}
	}
	db.ID = uuid.New()
	r.c.databases[db.ID] = *db
	return nil
}

func (r *fakeDatabaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.databases[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &d, nil
}

func (r *fakeDatabaseRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeDatabaseRepo) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID) ([]*models.Database, error) {
	if err := requireScope(ctx); err != nil {
		return nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var out []*models.Database
	for _, d := range r.c.databases {
		if d.DataSourceID == dataSourceID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func (r *fakeDatabaseRepo) UpdateStaleAt(ctx context.Context, id uuid.UUID, staleAt *time.Time) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	d, ok := r.c.databases[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.StaleAt = staleAt
	r.c.databases[id] = d
	return nil
}

// fakeDataSourceRepo

type fakeDataSourceRepo struct{ c *fakeCatalog }

var _ repositories.DataSourceRepository = (*fakeDataSourceRepo)(nil)

func (r *fakeDataSourceRepo) Create(ctx context.Context, ds *models.DataSource, encryptedConfig string) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	for _, s := range r.c.sources {
		if s.Name == ds.Name {
			return apperrors.ErrConflict
		}
	}
	ds.ID = uuid.New()
	stored := *ds
	stored.Config = nil
	r.c.sources[ds.ID] = stored
	r.c.configs[ds.ID] = encryptedConfig
	return nil
}

func (r *fakeDataSourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, string, error) {
	if err := requireScope(ctx); err != nil {
		return nil, "", err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	s, ok := r.c.sources[id]
	if !ok {
		return nil, "", apperrors.ErrNotFound
	}
	return &s, r.c.configs[id], nil
}

func (r *fakeDataSourceRepo) List(ctx context.Context) ([]*models.DataSource, []string, error) {
	if err := requireScope(ctx); err != nil {
		return nil, nil, err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	var sources []*models.DataSource
	for _, s := range r.c.sources {
		s := s
		sources = append(sources, &s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	configs := make([]string, len(sources))
	for i, s := range sources {
		configs[i] = r.c.configs[s.ID]
	}
	return sources, configs, nil
}

func (r *fakeDataSourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := requireScope(ctx); err != nil {
		return err
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.sources[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.c.sources, id)
	delete(r.c.configs, id)
	return nil
}

// recordingIndexer records index calls and fails pushes for the listed document IDs.
type recordingIndexer struct {
	mu       sync.Mutex
	pushed   []string
	removed  []string
	commits  int
	failPush map[string]bool
}

var _ search.Indexer = (*recordingIndexer)(nil)

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{failPush: make(map[string]bool)}
}

func (i *recordingIndexer) Push(_ context.Context, doc search.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failPush[doc.ID] {
		return errors.New("index unavailable")
	}
	i.pushed = append(i.pushed, doc.ID)
	return nil
}

func (i *recordingIndexer) Remove(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removed = append(i.removed, id)
	return nil
}

func (i *recordingIndexer) Commit(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.commits++
	return nil
}

// fakeDiscoverer serves a fixed catalog of schemas and relations.
type fakeDiscoverer struct {
	schemas   []string
	relations map[string][]datasource.Relation
	closed    bool
}

var _ datasource.SchemaDiscoverer = (*fakeDiscoverer)(nil)

func (d *fakeDiscoverer) DiscoverSchemas(context.Context) ([]string, error) {
	return d.schemas, nil
}

func (d *fakeDiscoverer) DiscoverRelations(_ context.Context, schema string) ([]datasource.Relation, error) {
	return d.relations[schema], nil
}

func (d *fakeDiscoverer) Close() error {
	d.closed = true
	return nil
}

// stubDataSources implements DataSourceService.OpenDiscoverer only.
type stubDataSources struct {
	DataSourceService
	discoverer *fakeDiscoverer
	database   string
}

func (s *stubDataSources) OpenDiscoverer(_ context.Context, _ uuid.UUID, databaseName string) (datasource.SchemaDiscoverer, error) {
	s.database = databaseName
	return s.discoverer, nil
}
