package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

const DefaultBatchSize = 100

type BatcherOptions struct {
	BatchSize   int
	Concurrency int
	// OnBatch is called after each slice completes with the number of
	// finished slices and the total.
	OnBatch func(done, total int)
	Logger  *logger.Logger
}

// Batcher splits large inputs into provider-sized slices and reassembles
// the vectors in input order.
type Batcher struct {
	inner       port.Embedder
	batchSize   int
	concurrency int
	onBatch     func(done, total int)
	log         *logger.Logger
}

func NewBatcher(inner port.Embedder, opts BatcherOptions) *Batcher {
	b := &Batcher{
		inner:       inner,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		onBatch:     opts.OnBatch,
		log:         opts.Logger,
	}
	if b.batchSize <= 0 {
		b.batchSize = DefaultBatchSize
	}
	if b.concurrency <= 0 {
		b.concurrency = 1
	}
	if b.log == nil {
		b.log = logger.NewNop()
	}
	return b
}

// WithProgress returns a copy of b reporting slice completion to fn.
func (b *Batcher) WithProgress(fn func(done, total int)) *Batcher {
	cp := *b
	cp.onBatch = fn
	return &cp
}

// Embed sends one upstream request per slice. The first failing slice
// cancels the rest and its error is returned unchanged.
func (b *Batcher) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	total := (len(texts) + b.batchSize - 1) / b.batchSize
	out := make([][]float32, len(texts))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for n := 0; n < total; n++ {
		start := n * b.batchSize
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchNo := n + 1

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs, err := b.inner.Embed(gctx, texts[start:end], task)
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding batch %d: expected %d vectors, got %d", batchNo, end-start, len(vecs))
			}
			copy(out[start:end], vecs)

			finished := int(done.Add(1))
			b.log.Debug("embedding batch processed", "batch", batchNo, "size", end-start, "task", string(task))
			if b.onBatch != nil {
				b.onBatch(finished, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Batcher) ModelName() string {
	return b.inner.ModelName()
}
