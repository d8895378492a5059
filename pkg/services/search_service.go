package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/catalog-engine/pkg/database"
	"github.com/ekaya-inc/catalog-engine/pkg/models"
	"github.com/ekaya-inc/catalog-engine/pkg/repositories"
	"github.com/ekaya-inc/catalog-engine/pkg/search"
)

// DefaultReindexPageSize is used when no page size is configured.
const DefaultReindexPageSize = 500

// ReindexSummary totals a full reindex.
type ReindexSummary struct {
	Batches        int `json:"batches"`
	Documents      int `json:"documents"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	CommitFailures int `json:"commit_failures"`
}

// SearchService rebuilds the search index from the catalog.
type SearchService interface {
	// ReindexAll pushes every live, fresh dataset. Each page is one bulk batch
	// with its own commit; a failed document never stops the run.
	ReindexAll(ctx context.Context) (*ReindexSummary, error)
}

type searchService struct {
	tx       database.Transactor
	datasets repositories.DatasetRepository
	indexer  search.Indexer
	pageSize int
	logger   *zap.Logger
}

// NewSearchService creates a new search service with dependencies.
func NewSearchService(
	tx database.Transactor,
	datasets repositories.DatasetRepository,
	indexer search.Indexer,
	pageSize int,
	logger *zap.Logger,
) SearchService {
	if pageSize <= 0 {
		pageSize = DefaultReindexPageSize
	}
	return &searchService{
		tx:       tx,
		datasets: datasets,
		indexer:  indexer,
		pageSize: pageSize,
		logger:   logger.Named("search"),
	}
}

var _ SearchService = (*searchService)(nil)

func (s *searchService) ReindexAll(ctx context.Context) (*ReindexSummary, error) {
	summary := &ReindexSummary{}
	after := uuid.Nil

	for {
		var page []*models.Dataset
		err := s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			page, err = s.datasets.ListIndexable(ctx, after, s.pageSize)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		bulk := search.BulkReindex(ctx, s.indexer, search.DocumentsFromDatasets(page), s.logger)
		summary.Batches++
		summary.Documents += len(page)
		summary.Succeeded += bulk.Succeeded
		summary.Failed += bulk.Failed
		if bulk.CommitErr != nil {
			summary.CommitFailures++
		}

		after = page[len(page)-1].ID
		if len(page) < s.pageSize {
			break
		}
	}

	s.logger.Info("Reindexed catalog",
		zap.Int("batches", summary.Batches),
		zap.Int("documents", summary.Documents),
		zap.Int("failed", summary.Failed))

	return summary, nil
}
