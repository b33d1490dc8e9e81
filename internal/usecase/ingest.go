package usecase

import (
	"context"
	"fmt"
	"math/rand"

	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/extract"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// IngestUseCase turns raw documents into stored, embedded chunks.
type IngestUseCase struct {
	store     *ChunkStore
	embedder  port.Embedder
	segmenter port.Segmenter
	locker    port.HashLocker
	cache     *cache.QueryCache
	log       *logger.Logger

	extractorFor func(name string) (port.PageExtractor, error)
	suffix       func() string
}

// NewIngestUseCase creates a new ingest use case. cache may be nil.
func NewIngestUseCase(
	store *ChunkStore,
	embedder port.Embedder,
	segmenter port.Segmenter,
	locker port.HashLocker,
	cache *cache.QueryCache,
	log *logger.Logger,
) *IngestUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("service", "Ingest")
	return &IngestUseCase{
		store:        store,
		embedder:     embedder,
		segmenter:    segmenter,
		locker:       locker,
		cache:        cache,
		log:          log,
		extractorFor: extract.ForPathLogged(log),
		suffix:       randomSuffix,
	}
}

// IngestResult describes the outcome for one document.
type IngestResult struct {
	Name   string
	Hash   string
	Status domain.IngestStatus
	Chunks int
}

// Ingest stores the document unless its content is already indexed. The
// per-hash lock is held from the existence check through the upsert.
func (u *IngestUseCase) Ingest(ctx context.Context, name string, data []byte) (*IngestResult, error) {
	hash := ContentHash(data)
	log := u.log.With("name", name, "hash", hash)

	unlock, err := u.locker.Lock(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to lock document: %w", err)
	}
	defer unlock()

	// Dedup guard
	exists, err := u.store.Exists(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		existing := name
		if n, err := u.store.Registry().ResolveName(hash); err == nil {
			existing = n
		}
		log.Info("document already indexed", "existing", existing)
		return &IngestResult{Name: existing, Hash: hash, Status: domain.StatusDuplicate}, nil
	}

	// Extract and segment
	extractor, err := u.extractorFor(name)
	if err != nil {
		return nil, err
	}
	pages, err := extractor.ExtractPages(data)
	if err != nil {
		log.Warn("text extraction failed", "error", err)
		pages = nil
	}
	chunks := u.segmenter.Segment(pages)
	if len(chunks) == 0 {
		log.Warn("no usable text in document", "pages", len(pages))
		return &IngestResult{Name: name, Hash: hash, Status: domain.StatusEmpty}, nil
	}

	// Embed
	vectors, err := u.embedder.Embed(ctx, chunks, domain.TaskRetrievalDocument)
	if err != nil {
		return nil, err
	}

	// Store
	name = u.uniqueName(name, hash)
	if err := u.store.Upsert(ctx, chunks, vectors, name, hash); err != nil {
		return nil, err
	}
	if u.cache != nil {
		u.cache.Invalidate()
	}

	log.Info("document ingested", "stored_as", name, "chunks", len(chunks))
	return &IngestResult{Name: name, Hash: hash, Status: domain.StatusIngested, Chunks: len(chunks)}, nil
}

// Delete removes a document by hash and invalidates cached retrievals.
func (u *IngestUseCase) Delete(ctx context.Context, hash, name string) (int, error) {
	unlock, err := u.locker.Lock(ctx, hash)
	if err != nil {
		return 0, fmt.Errorf("failed to lock document: %w", err)
	}
	defer unlock()

	n, err := u.store.Delete(ctx, hash, name)
	if err != nil {
		return 0, err
	}
	if u.cache != nil {
		u.cache.Invalidate()
	}
	return n, nil
}

// uniqueName appends a random two-letter suffix while name is taken by
// another document.
func (u *IngestUseCase) uniqueName(name, hash string) string {
	reg := u.store.Registry()
	candidate := name
	for {
		existing, ok := reg.Lookup(candidate)
		if !ok || existing == hash {
			return candidate
		}
		candidate = name + "-" + u.suffix()
	}
}

func randomSuffix() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string([]byte{letters[rand.Intn(len(letters))], letters[rand.Intn(len(letters))]})
}
