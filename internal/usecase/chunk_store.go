package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// ChunkStore stores document chunks under content-addressed IDs and serves
// per-document similarity queries. It keeps the Registry in step with the
// index.
type ChunkStore struct {
	index    port.ChunkIndex
	registry *Registry
	log      *logger.Logger
}

func NewChunkStore(index port.ChunkIndex, registry *Registry, log *logger.Logger) *ChunkStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChunkStore{
		index:    index,
		registry: registry,
		log:      log.With("service", "ChunkStore"),
	}
}

func (s *ChunkStore) Registry() *Registry {
	return s.registry
}

// ChunkID returns the record ID of chunk i of the document with hash.
func ChunkID(hash string, i int) string {
	return fmt.Sprintf("%s_%d", hash, i)
}

// Upsert stores chunk i with vector i as {hash}_{i}. Repeating the call
// overwrites the same records. The name is registered only after at least
// one chunk was written.
func (s *ChunkStore) Upsert(ctx context.Context, chunks []string, vectors [][]float32, source, hash string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", domain.ErrLengthMismatch, len(chunks), len(vectors))
	}
	if hash == "" {
		return fmt.Errorf("%w: empty document hash", domain.ErrInvalidInput)
	}
	if len(chunks) == 0 {
		return nil
	}

	records := make([]domain.ChunkRecord, len(chunks))
	for i, text := range chunks {
		records[i] = domain.ChunkRecord{
			ID:     ChunkID(hash, i),
			Text:   text,
			Vector: vectors[i],
			Metadata: domain.ChunkMetadata{
				Source:  source,
				ChunkID: i,
				Hash:    hash,
			},
		}
	}

	if err := s.index.Add(ctx, records); err != nil {
		return err
	}
	s.registry.Register(source, hash)
	s.log.Debug("chunks upserted", "source", source, "hash", hash, "count", len(records))
	return nil
}

// Query returns the texts of up to k chunks of the document, most similar
// first, or in ascending chunk_id order when sortByChunkID is set.
func (s *ChunkStore) Query(ctx context.Context, vector []float32, hash string, k int, sortByChunkID bool) ([]string, error) {
	matches, err := s.QueryScored(ctx, vector, hash, k, sortByChunkID)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Record.Text
	}
	return texts, nil
}

// QueryScored is Query with scores and metadata.
func (s *ChunkStore) QueryScored(ctx context.Context, vector []float32, hash string, k int, sortByChunkID bool) ([]domain.ChunkMatch, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: query requires a document hash", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	matches, err := s.index.Query(ctx, vector, k, domain.HashIs(hash))
	if err != nil {
		return nil, err
	}
	if sortByChunkID {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Record.Metadata.ChunkID < matches[j].Record.Metadata.ChunkID
		})
	}
	return matches, nil
}

// Delete removes every chunk of the document. An empty source is resolved
// through the registry. Deleting an unknown hash is a no-op.
func (s *ChunkStore) Delete(ctx context.Context, hash, source string) (int, error) {
	if hash == "" {
		return 0, fmt.Errorf("%w: empty document hash", domain.ErrInvalidInput)
	}

	var names []string
	if source != "" {
		names = []string{source}
	} else {
		names = s.registry.NamesFor(hash)
	}

	n, err := s.index.Delete(ctx, domain.HashIs(hash))
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		if h, ok := s.registry.Lookup(name); ok && h == hash {
			s.registry.Unregister(name)
		}
	}
	s.log.Debug("document deleted", "hash", hash, "chunks", n)
	return n, nil
}

// Exists reports whether any chunk carries hash in its metadata.
func (s *ChunkStore) Exists(ctx context.Context, hash string) (bool, error) {
	records, err := s.index.Get(ctx, domain.HashIs(hash))
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// Chunks returns the stored chunks of a document in chunk_id order.
func (s *ChunkStore) Chunks(ctx context.Context, hash string) ([]domain.ChunkRecord, error) {
	records, err := s.index.Get(ctx, domain.HashIs(hash))
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Metadata.ChunkID < records[j].Metadata.ChunkID })
	return records, nil
}

// ResolveDocument maps a user reference to a content hash: a registered
// name first, then a known hash.
func (s *ChunkStore) ResolveDocument(ctx context.Context, ref string) (string, error) {
	if hash, ok := s.registry.Lookup(ref); ok {
		return hash, nil
	}
	if _, err := s.registry.ResolveName(ref); err == nil {
		return ref, nil
	}
	ok, err := s.Exists(ctx, ref)
	if err != nil {
		return "", err
	}
	if ok {
		return ref, nil
	}
	return "", fmt.Errorf("document %q: %w", ref, domain.ErrNotFound)
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
