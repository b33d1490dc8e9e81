package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/lock"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/qdrant"
	"docqa/internal/adapter/store"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	index    port.ChunkIndex
	bolt     *store.BoltIndex
	registry *usecase.Registry
	store    *usecase.ChunkStore
	batcher  *embedding.Batcher
	cache    *cache.QueryCache
	locker   port.HashLocker
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, dir string, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	index, err := a.openIndex(dir)
	if err != nil {
		return nil, err
	}
	a.index = index
	a.closers = append(a.closers, index.Close)

	a.registry = usecase.NewRegistry()
	if err := a.registry.Load(ctx, index); err != nil {
		a.Close()
		return nil, err
	}
	a.store = usecase.NewChunkStore(index, a.registry, log)

	emb, err := newEmbedder(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.batcher = embedding.NewBatcher(emb, embedding.BatcherOptions{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Logger:      log,
	})

	a.cache = cache.NewQueryCache(cfg.Retrieve.CacheSize, config.Seconds(cfg.Retrieve.CacheTTLSecs))

	locker, closer, err := newLocker(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.locker = locker
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return a, nil
}

func (a *app) openIndex(dir string) (port.ChunkIndex, error) {
	switch a.cfg.Store.Backend {
	case "memory":
		return memstore.NewMemoryIndex(), nil
	case "qdrant":
		q := a.cfg.Store.Qdrant
		return qdrant.New(a.log, qdrant.Config{
			URL:        q.URL,
			Collection: q.Collection,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Timeout:    config.Seconds(q.TimeoutSecs),
		})
	default:
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", config.DirName, err)
		}
		bolt, err := store.OpenBoltIndex(a.cfg.StorePath(dir))
		if err != nil {
			return nil, fmt.Errorf("failed to open chunk store: %w", err)
		}
		a.bolt = bolt
		return bolt, nil
	}
}

// checkSchema reports whether the bolt file needs a rebuild before new
// vectors can be mixed in. Other backends never do.
func (a *app) checkSchema() (*store.MigrationResult, error) {
	if a.bolt == nil {
		return &store.MigrationResult{}, nil
	}
	return a.bolt.CheckMigration(a.cfg)
}

func (a *app) stampSchema() error {
	if a.bolt == nil {
		return nil
	}
	return a.bolt.Migrate(a.cfg)
}

func (a *app) warnIfStale() {
	res, err := a.checkSchema()
	if err != nil {
		a.log.Warn("failed to check schema", "error", err)
		return
	}
	if res.NeedsRebuild {
		a.log.Warn("stored vectors do not match the configured embedding model; run 'docqa add --rebuild'", "reason", res.Reason)
	}
}

func (a *app) segmenter() (port.Segmenter, error) {
	in := a.cfg.Ingest
	if in.Chunker == "fixed" {
		return chunker.NewFixedSizeChunker(in.ChunkSize, in.ChunkOverlap)
	}
	return chunker.NewSentenceChunker(chunker.SentenceOptions{
		MinPageChars:     in.MinPageChars,
		MinSentenceChars: in.MinSentenceChars,
		Logger:           a.log,
	}), nil
}

func (a *app) ingestUseCase(emb port.Embedder) (*usecase.IngestUseCase, error) {
	seg, err := a.segmenter()
	if err != nil {
		return nil, err
	}
	return usecase.NewIngestUseCase(a.store, emb, seg, a.locker, a.cache, a.log), nil
}

func (a *app) retrieveUseCase() *usecase.RetrieveUseCase {
	return usecase.NewRetrieveUseCase(a.store, a.batcher, a.cache)
}

func (a *app) answerUseCase(k int, sortByChunkID bool) (*usecase.AnswerUseCase, error) {
	model, err := newLLM(a.cfg, a.cfg.LLM.Model, a.log)
	if err != nil {
		return nil, err
	}
	return usecase.NewAnswerUseCase(a.retrieveUseCase(), model, usecase.AnswerOptions{
		K:             k,
		SortByChunkID: sortByChunkID,
		Temperature:   a.cfg.LLM.Temperature,
		MaxTokens:     a.cfg.LLM.MaxOutputTokens,
	}, a.log), nil
}

// resolve maps a registered name, a stored hash or a file on disk to a hash.
func (a *app) resolve(ctx context.Context, ref string) (string, error) {
	hash, err := a.store.ResolveDocument(ctx, ref)
	if err == nil {
		return hash, nil
	}
	if !usecase.IsNotFound(err) {
		return "", err
	}
	if _, statErr := os.Stat(ref); statErr == nil {
		return usecase.HashFile(ref)
	}
	return "", err
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
}

func newEmbedder(cfg *config.Config, log *logger.Logger) (port.Embedder, error) {
	ec := cfg.Embedding
	if ec.Provider == "local" {
		return embedding.NewLocalEmbedder(ec.Dimension), nil
	}

	emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIOptions{
		Provider:          ec.Provider,
		APIKey:            os.Getenv(ec.APIKeyEnv),
		Model:             ec.Model,
		BaseURL:           ec.BaseURL,
		Timeout:           config.Seconds(ec.TimeoutSecs),
		RequestsPerSecond: ec.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if ec.MaxRetries > 0 {
		return embedding.NewRetrying(emb, ec.MaxRetries, 500*time.Millisecond, log), nil
	}
	return emb, nil
}

func newLLM(cfg *config.Config, model string, log *logger.Logger) (port.LLM, error) {
	lc := cfg.LLM
	client, err := llm.NewOpenAIClient(llm.Options{
		Provider: lc.Provider,
		APIKey:   os.Getenv(lc.APIKeyEnv),
		Model:    model,
		BaseURL:  lc.BaseURL,
		Timeout:  config.Seconds(lc.TimeoutSecs),
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create language model client: %w", err)
	}
	return client, nil
}

func newLocker(cfg *config.Config, log *logger.Logger) (port.HashLocker, func() error, error) {
	if cfg.Lock.Backend == "redis" {
		l, err := lock.NewRedisLocker(log, cfg.Lock.RedisAddr, config.Seconds(cfg.Lock.TTLSecs))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect lock backend: %w", err)
		}
		return l, l.Close, nil
	}
	return lock.NewLocalLocker(), nil, nil
}
