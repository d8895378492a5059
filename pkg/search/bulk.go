package search

import (
	"context"

	"go.uber.org/zap"
)

// ItemResult is the outcome of pushing one document.
type ItemResult struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// OK reports whether the push succeeded.
func (r ItemResult) OK() bool { return r.Err == nil }

// BulkResult lists the per-document outcomes of a bulk reindex.
type BulkResult struct {
	Items     []ItemResult
	Succeeded int
	Failed    int
	// Removed and RemoveFailed count the document removals issued before the commit.
	Removed      int
	RemoveFailed int
	// CommitErr is set when the final commit failed.
	CommitErr error
}

// Failures returns the failed items in push order.
func (r *BulkResult) Failures() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if !item.OK() {
			failed = append(failed, item)
		}
	}
	return failed
}

// BulkReindex pushes every document and then commits once.
// A failed push is recorded and logged and does not stop the batch.
// Commit is issued even when some or all pushes failed.
func BulkReindex(ctx context.Context, idx Indexer, docs []Document, logger *zap.Logger) *BulkResult {
	return BulkSync(ctx, idx, docs, nil, logger)
}

// BulkSync pushes docs, removes the documents named by removeIDs and commits once,
// so pushes and removals become visible together. Failures are logged and counted.
func BulkSync(ctx context.Context, idx Indexer, docs []Document, removeIDs []string, logger *zap.Logger) *BulkResult {
	result := &BulkResult{Items: make([]ItemResult, 0, len(docs))}

	for _, doc := range docs {
		err := idx.Push(ctx, doc)
		result.Items = append(result.Items, ItemResult{ID: doc.ID, Err: err})
		if err != nil {
			result.Failed++
			pushFailures.Inc()
			logger.Error("Failed to push document to search index",
				zap.String("document_id", doc.ID),
				zap.Error(err))
			continue
		}
		result.Succeeded++
		documentsPushed.Inc()
	}

	for _, id := range removeIDs {
		if err := idx.Remove(ctx, id); err != nil {
			result.RemoveFailed++
			logger.Error("Failed to remove document from search index",
				zap.String("document_id", id),
				zap.Error(err))
			continue
		}
		result.Removed++
	}

	if err := idx.Commit(ctx); err != nil {
		result.CommitErr = err
		logger.Error("Failed to commit search index", zap.Error(err))
	} else {
		commits.Inc()
	}

	logger.Info("Bulk reindex finished",
		zap.Int("documents", len(docs)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("removed", result.Removed),
		zap.Int("remove_failed", result.RemoveFailed))

	return result
}
