package models

// RefreshResult summarises a schema or database refresh.
type RefreshResult struct {
	SchemasCreated  int `json:"schemas_created,omitempty"`
	SchemasStaled   int `json:"schemas_staled,omitempty"`
	SchemasFreshed  int `json:"schemas_freshed,omitempty"`
	DatasetsCreated int `json:"datasets_created"`
	DatasetsStaled  int `json:"datasets_staled"`
	DatasetsFreshed int `json:"datasets_freshed"`
	Reindexed       int `json:"reindexed"`
	ReindexFailed   int `json:"reindex_failed"`
	Unindexed       int `json:"unindexed"`
}

// Add accumulates another result into r.
func (r *RefreshResult) Add(other *RefreshResult) {
	if other == nil {
		return
	}
	r.SchemasCreated += other.SchemasCreated
	r.SchemasStaled += other.SchemasStaled
	r.SchemasFreshed += other.SchemasFreshed
	r.DatasetsCreated += other.DatasetsCreated
	r.DatasetsStaled += other.DatasetsStaled
	r.DatasetsFreshed += other.DatasetsFreshed
	r.Reindexed += other.Reindexed
	r.ReindexFailed += other.ReindexFailed
	r.Unindexed += other.Unindexed
}
