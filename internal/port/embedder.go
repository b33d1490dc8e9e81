package port

import (
	"context"

	"docqa/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// ChunkIndex is a vector collection of chunk records with metadata filtering.
type ChunkIndex interface {
	// Add inserts or replaces records by ID.
	Add(ctx context.Context, records []domain.ChunkRecord) error

	// Query returns up to n records matching filter, most similar first.
	Query(ctx context.Context, vector []float32, n int, filter domain.Filter) ([]domain.ChunkMatch, error)

	// Get returns every record matching filter. Vectors may be omitted.
	Get(ctx context.Context, filter domain.Filter) ([]domain.ChunkRecord, error)

	// Delete removes every record matching filter and reports how many were removed.
	Delete(ctx context.Context, filter domain.Filter) (int, error)

	Close() error
}
