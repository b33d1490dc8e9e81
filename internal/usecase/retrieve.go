package usecase

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/adapter/cache"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// RetrieveUseCase handles question retrieval against one document.
type RetrieveUseCase struct {
	store    *ChunkStore
	embedder port.Embedder
	cache    *cache.QueryCache
}

// NewRetrieveUseCase creates a new retrieve use case. cache may be nil.
func NewRetrieveUseCase(store *ChunkStore, embedder port.Embedder, cache *cache.QueryCache) *RetrieveUseCase {
	return &RetrieveUseCase{
		store:    store,
		embedder: embedder,
		cache:    cache,
	}
}

// Retrieve returns the texts of the k chunks of the document most similar
// to question.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, hash, question string, k int, sortByChunkID bool) ([]string, error) {
	matches, err := u.RetrieveScored(ctx, hash, question, k, sortByChunkID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Record.Text
	}
	return texts, nil
}

// RetrieveScored is Retrieve with scores and metadata.
func (u *RetrieveUseCase) RetrieveScored(ctx context.Context, hash, question string, k int, sortByChunkID bool) ([]domain.ChunkMatch, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	key := cache.Key{Hash: hash, Question: question, K: k, SortByChunkID: sortByChunkID}
	var gen uint64
	if u.cache != nil {
		gen = u.cache.Generation()
		if matches, ok := u.cache.Get(key); ok {
			return matches, nil
		}
	}

	vectors, err := u.embedder.Embed(ctx, []string{question}, domain.TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
	}

	matches, err := u.store.QueryScored(ctx, vectors[0], hash, k, sortByChunkID)
	if err != nil {
		return nil, err
	}
	if u.cache != nil {
		u.cache.PutAt(key, gen, matches)
	}
	return matches, nil
}
