package usecase

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// Verdict is the judge model's structured response.
type Verdict struct {
	Score      float64 `json:"score"`
	Evaluation string  `json:"evaluation"`
}

// verdictResponse is the raw judge reply. Score is a pointer so a reply
// without a score is not read as 0.
type verdictResponse struct {
	Score      *float64 `json:"score"`
	Evaluation string   `json:"evaluation"`
}

func (r verdictResponse) verdict() (Verdict, error) {
	if r.Score == nil {
		return Verdict{}, fmt.Errorf("%w: reply has no score", domain.ErrInvalidVerdict)
	}
	v := Verdict{Score: *r.Score, Evaluation: strings.TrimSpace(r.Evaluation)}
	if v.Evaluation == "" {
		return Verdict{}, fmt.Errorf("%w: reply has no evaluation", domain.ErrInvalidVerdict)
	}
	if err := v.Validate(); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

func (v Verdict) Validate() error {
	switch v.Score {
	case 0, 0.5, 1:
		return nil
	}
	return fmt.Errorf("%w: score %v is not one of 0, 0.5, 1.0", domain.ErrInvalidVerdict, v.Score)
}

// EvaluateUseCase answers a QA list against a document and grades each
// answer with a judge model.
type EvaluateUseCase struct {
	answer      *AnswerUseCase
	judge       port.LLM
	temperature float32
	log         *logger.Logger
}

func NewEvaluateUseCase(answer *AnswerUseCase, judge port.LLM, temperature float32, log *logger.Logger) *EvaluateUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &EvaluateUseCase{
		answer:      answer,
		judge:       judge,
		temperature: temperature,
		log:         log.With("service", "Evaluate"),
	}
}

// Judge grades one answer against its ideal answer.
func (u *EvaluateUseCase) Judge(ctx context.Context, question, answer, ideal string) (Verdict, error) {
	prompt, err := JudgePrompt(question, answer, ideal)
	if err != nil {
		return Verdict{}, err
	}
	var resp verdictResponse
	err = u.judge.GenerateJSON(ctx, port.GenerateRequest{
		System:      JudgeSystemPrompt,
		Prompt:      prompt,
		Temperature: u.temperature,
	}, &resp)
	if err != nil {
		return Verdict{}, err
	}
	return resp.verdict()
}

// Run evaluates every item in order. progress, when set, is called after
// each item.
func (u *EvaluateUseCase) Run(ctx context.Context, hash string, items []domain.QAItem, progress func(done, total int)) ([]domain.EvalRecord, error) {
	records := make([]domain.EvalRecord, 0, len(items))

	for i, item := range items {
		ans, err := u.answer.Ask(ctx, hash, item.Question, nil)
		if err != nil {
			return records, fmt.Errorf("item %d: %w", i, err)
		}

		v, err := u.Judge(ctx, item.Question, ans.Text, item.IdealAnswer)
		if err != nil {
			return records, fmt.Errorf("item %d: %w", i, err)
		}

		records = append(records, domain.EvalRecord{
			Question:    item.Question,
			AIAnswer:    ans.Text,
			IdealAnswer: item.IdealAnswer,
			Evaluation:  v.Evaluation,
			Context:     strings.Join(ans.Context, "\n"),
			Hash:        hash,
			Score:       v.Score,
		})
		u.log.Debug("item evaluated", "index", i, "score", v.Score)

		if progress != nil {
			progress(i+1, len(items))
		}
	}

	return records, nil
}
