package search

import "context"

// Indexer is the external search index.
// Pushed and removed documents become visible after Commit.
type Indexer interface {
	Push(ctx context.Context, doc Document) error
	Remove(ctx context.Context, id string) error
	Commit(ctx context.Context) error
}

// NoopIndexer discards every request. Used when search is disabled.
type NoopIndexer struct{}

var _ Indexer = NoopIndexer{}

func (NoopIndexer) Push(context.Context, Document) error { return nil }
func (NoopIndexer) Remove(context.Context, string) error { return nil }
func (NoopIndexer) Commit(context.Context) error         { return nil }
