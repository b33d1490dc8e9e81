package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func newAnswerFixture(t *testing.T, llm *fakeLLM) (*AnswerUseCase, string) {
	t.Helper()
	s := newTestStack(t)
	res, err := s.ingest.Ingest(context.Background(), "manual.txt", []byte(sampleDoc))
	require.NoError(t, err)
	uc := NewAnswerUseCase(s.retrieve, llm, AnswerOptions{K: 2, Temperature: 0.7, MaxTokens: 1024}, nil)
	return uc, res.Hash
}

func TestAskWithoutHistorySkipsRefinement(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Three loops."}}
	uc, hash := newAnswerFixture(t, llm)

	ans, err := uc.Ask(context.Background(), hash, "how many water loops?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Three loops.", ans.Text)
	assert.Equal(t, "how many water loops?", ans.Refined)
	assert.Len(t, ans.Context, 2)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, ContextSystemPrompt, reqs[0].System)
	assert.InDelta(t, 0.7, reqs[0].Temperature, 1e-6)
	assert.Equal(t, 1024, reqs[0].MaxTokens)
	assert.True(t, strings.HasSuffix(reqs[0].Prompt, "how many water loops?"))
}

func TestAskRefinesFollowUp(t *testing.T) {
	llm := &fakeLLM{replies: []string{"  how are the water loops monitored?\n", "By pressure sensors."}}
	uc, hash := newAnswerFixture(t, llm)

	history := []domain.ChatTurn{{Question: "how many water loops?", Answer: "Three."}}
	ans, err := uc.Ask(context.Background(), hash, "how are they monitored?", history)
	require.NoError(t, err)
	assert.Equal(t, "how are the water loops monitored?", ans.Refined)
	assert.Equal(t, "how are they monitored?", ans.Question)
	assert.Equal(t, domain.ChatTurn{Question: "how are the water loops monitored?", Answer: "By pressure sensors."}, ans.Turn())

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, RefineSystemPrompt, reqs[0].System)
	assert.Contains(t, reqs[0].Prompt, "user: how many water loops?\n\nassistant: Three.")
	assert.True(t, strings.HasSuffix(reqs[1].Prompt, "how are the water loops monitored?"))
}

func TestAskPropagatesLLMError(t *testing.T) {
	boom := errors.New("quota exceeded")
	uc, hash := newAnswerFixture(t, &fakeLLM{err: boom})

	_, err := uc.Ask(context.Background(), hash, "anything?", nil)
	assert.ErrorIs(t, err, boom)
}

func TestAskStream(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"Three", " water", " loops."}}
	uc, hash := newAnswerFixture(t, llm)

	sa, err := uc.AskStream(context.Background(), hash, "how many water loops?", nil)
	require.NoError(t, err)

	var sb strings.Builder
	for ev := range sa.Events {
		require.NoError(t, ev.Err)
		sb.WriteString(ev.Text)
	}
	assert.Equal(t, "Three water loops.", sb.String())
	assert.Len(t, sa.Context, 2)
}

func TestAskStreamCancellationClosesChannel(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"a", "b", "c", "d"}}
	uc, hash := newAnswerFixture(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	sa, err := uc.AskStream(ctx, hash, "question?", nil)
	require.NoError(t, err)

	<-sa.Events
	cancel()
	for range sa.Events {
	}
}
