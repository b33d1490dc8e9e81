package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type flakyEmbedder struct {
	failures int
	err      error
	calls    int
}

func (e *flakyEmbedder) Embed(_ context.Context, texts []string, _ domain.TaskType) ([][]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, e.err
	}
	return make([][]float32, len(texts)), nil
}

func (e *flakyEmbedder) ModelName() string { return "flaky" }

func TestRetryingRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 2, err: errors.New("connection reset")}
	r := NewRetrying(inner, 3, time.Millisecond, nil)

	vecs, err := r.Embed(context.Background(), []string{"a", "b"}, domain.TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingReturnsLastErrorUnchanged(t *testing.T) {
	sentinel := errors.New("quota exceeded")
	inner := &flakyEmbedder{failures: 10, err: sentinel}
	r := NewRetrying(inner, 2, time.Millisecond, nil)

	_, err := r.Embed(context.Background(), []string{"a"}, domain.TaskRetrievalQuery)
	assert.Same(t, sentinel, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingSkipsNonRetryableErrors(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: domain.ErrInvalidInput}
	r := NewRetrying(inner, 5, time.Millisecond, nil)

	_, err := r.Embed(context.Background(), []string{"a"}, domain.TaskRetrievalQuery)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, inner.calls)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Zero(t, CalculateBackoff(time.Second, 0))

	for attempt := 1; attempt <= 4; attempt++ {
		base := time.Second * time.Duration(1<<uint(attempt-1))
		got := CalculateBackoff(time.Second, attempt)
		assert.GreaterOrEqual(t, got, base-base/4)
		assert.LessOrEqual(t, got, base+base/4)
	}

	capped := CalculateBackoff(time.Second, 40)
	assert.LessOrEqual(t, capped, 30*time.Second+30*time.Second/4)
}
