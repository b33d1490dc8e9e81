package embedding

import (
	"context"
	"math/rand"
	"time"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// Retrying wraps an embedder with exponential backoff. Embedding calls are
// read-only, so repeating one is always safe.
type Retrying struct {
	inner      port.Embedder
	maxRetries int
	baseDelay  time.Duration
	retryable  func(error) bool
	log        *logger.Logger
}

func NewRetrying(inner port.Embedder, maxRetries int, baseDelay time.Duration, log *logger.Logger) *Retrying {
	if log == nil {
		log = logger.NewNop()
	}
	return &Retrying{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		retryable:  IsRetryable,
		log:        log,
	}
}

// Embed returns the last upstream error unchanged once retries run out.
func (r *Retrying) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(r.baseDelay, attempt)
			r.log.Warn("retrying embedding request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(delay):
			}
		}

		vecs, err := r.inner.Embed(ctx, texts, task)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !r.retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (r *Retrying) ModelName() string {
	return r.inner.ModelName()
}

// CalculateBackoff returns exponential backoff with up to 25% jitter either way.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt-1))
	if backoff > 30*time.Second || backoff <= 0 {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}
