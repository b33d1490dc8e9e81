package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/lock"
	"docqa/internal/adapter/memstore"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// countingEmbedder wraps the local embedder and counts embedded texts.
type countingEmbedder struct {
	inner *embedding.LocalEmbedder
	texts atomic.Int64
	calls atomic.Int64
	tasks []domain.TaskType
	mu    sync.Mutex
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: embedding.NewLocalEmbedder(128)}
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	e.calls.Add(1)
	e.texts.Add(int64(len(texts)))
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	return e.inner.Embed(ctx, texts, task)
}

func (e *countingEmbedder) ModelName() string { return "counting" }

type fakeLLM struct {
	mu        sync.Mutex
	requests  []port.GenerateRequest
	replies   []string
	verdict   string
	fragments []string
	err       error
}

func (f *fakeLLM) record(req port.GenerateRequest) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeLLM) Generate(_ context.Context, req port.GenerateRequest) (string, error) {
	f.record(req)
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return "default answer", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeLLM) Stream(ctx context.Context, req port.GenerateRequest) (<-chan port.StreamEvent, error) {
	f.record(req)
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan port.StreamEvent)
	go func() {
		defer close(out)
		for _, frag := range f.fragments {
			select {
			case out <- port.StreamEvent{Text: frag}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeLLM) GenerateJSON(_ context.Context, req port.GenerateRequest, out any) error {
	f.record(req)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.verdict), out)
}

func (f *fakeLLM) ModelName() string { return "fake" }

func (f *fakeLLM) Requests() []port.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]port.GenerateRequest(nil), f.requests...)
}

type testStack struct {
	index    *memstore.MemoryIndex
	registry *Registry
	store    *ChunkStore
	embedder *countingEmbedder
	cache    *cache.QueryCache
	ingest   *IngestUseCase
	retrieve *RetrieveUseCase
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	index := memstore.NewMemoryIndex()
	registry := NewRegistry()
	store := NewChunkStore(index, registry, nil)
	emb := newCountingEmbedder()
	qc := cache.NewQueryCache(16, time.Minute)
	return &testStack{
		index:    index,
		registry: registry,
		store:    store,
		embedder: emb,
		cache:    qc,
		ingest:   NewIngestUseCase(store, emb, chunker.NewSentenceChunker(chunker.SentenceOptions{}), lock.NewLocalLocker(), qc, nil),
		retrieve: NewRetrieveUseCase(store, emb, qc),
	}
}

// upsertN stores n synthetic chunks for hash.
func (s *testStack) upsertN(t *testing.T, hash, source string, n int) []string {
	t.Helper()
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("%s chunk number %d about topic %d", source, i, i%3)
	}
	vectors, err := s.embedder.Embed(context.Background(), chunks, domain.TaskRetrievalDocument)
	require.NoError(t, err)
	require.NoError(t, s.store.Upsert(context.Background(), chunks, vectors, source, hash))
	return chunks
}

const sampleDoc = "The reactor cooling system uses three independent water loops for redundancy.\n" +
	"Each loop is monitored by pressure sensors that report to the central control room.\n" +
	"Operators must inspect the primary pumps every morning before the shift begins."
