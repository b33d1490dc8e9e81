package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestVerdictValidate(t *testing.T) {
	for _, score := range []float64{0, 0.5, 1} {
		assert.NoError(t, Verdict{Score: score}.Validate())
	}
	for _, score := range []float64{0.25, -1, 2, 0.7} {
		assert.ErrorIs(t, Verdict{Score: score}.Validate(), domain.ErrInvalidVerdict)
	}
}

func TestEvaluateRun(t *testing.T) {
	answerLLM := &fakeLLM{replies: []string{"Three loops.", "Every morning."}}
	uc, hash := newAnswerFixture(t, answerLLM)
	judge := &fakeLLM{verdict: `{"score": 0.5, "evaluation": "partially correct"}`}
	eval := NewEvaluateUseCase(uc, judge, 0.1, nil)

	items := []domain.QAItem{
		{Question: "how many water loops?", IdealAnswer: "three independent loops"},
		{Question: "when are pumps inspected?", IdealAnswer: "every morning before the shift"},
	}
	var progress [][2]int
	records, err := eval.Run(context.Background(), hash, items, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "how many water loops?", records[0].Question)
	assert.Equal(t, "Three loops.", records[0].AIAnswer)
	assert.Equal(t, "three independent loops", records[0].IdealAnswer)
	assert.Equal(t, "partially correct", records[0].Evaluation)
	assert.Equal(t, 0.5, records[0].Score)
	assert.Equal(t, hash, records[0].Hash)
	assert.NotEmpty(t, records[0].Context)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

	reqs := judge.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, JudgeSystemPrompt, reqs[0].System)
	assert.Equal(t, "Question: how many water loops?\nAI assistant's answer: Three loops.\nIdeal answer: three independent loops", reqs[0].Prompt)
	assert.InDelta(t, 0.1, reqs[0].Temperature, 1e-6)
}

func TestEvaluateRejectsInvalidScore(t *testing.T) {
	uc, hash := newAnswerFixture(t, &fakeLLM{})
	eval := NewEvaluateUseCase(uc, &fakeLLM{verdict: `{"score": 0.8, "evaluation": "?"}`}, 0, nil)

	records, err := eval.Run(context.Background(), hash, []domain.QAItem{{Question: "q?", IdealAnswer: "a"}}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidVerdict)
	assert.Empty(t, records)
}

func TestJudgeRejectsIncompleteReply(t *testing.T) {
	replies := []string{
		`{}`,
		`{"rating": 1, "justification": "matches"}`,
		`{"score": 1}`,
		`{"score": 0, "evaluation": "  "}`,
		`{"evaluation": "looks right"}`,
	}
	for _, reply := range replies {
		eval := NewEvaluateUseCase(nil, &fakeLLM{verdict: reply}, 0, nil)
		v, err := eval.Judge(context.Background(), "q?", "a", "i")
		assert.ErrorIs(t, err, domain.ErrInvalidVerdict, reply)
		assert.Equal(t, Verdict{}, v, reply)
	}
}

func TestJudgeAcceptsZeroScore(t *testing.T) {
	eval := NewEvaluateUseCase(nil, &fakeLLM{verdict: `{"score": 0, "evaluation": "wrong loop count"}`}, 0, nil)
	v, err := eval.Judge(context.Background(), "q?", "a", "i")
	require.NoError(t, err)
	assert.Equal(t, Verdict{Score: 0, Evaluation: "wrong loop count"}, v)
}

func TestJudgeSystemPromptDescribesJSONReply(t *testing.T) {
	assert.Contains(t, JudgeSystemPrompt, "JSON")
	assert.Contains(t, JudgeSystemPrompt, `"score"`)
	assert.Contains(t, JudgeSystemPrompt, `"evaluation"`)
}
