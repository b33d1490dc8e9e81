package usecase

import (
	"context"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

type AnswerOptions struct {
	K             int
	SortByChunkID bool
	Temperature   float32
	MaxTokens     int
}

// AnswerUseCase answers questions about one document from retrieved context.
type AnswerUseCase struct {
	retriever *RetrieveUseCase
	llm       port.LLM
	opts      AnswerOptions
	log       *logger.Logger
}

func NewAnswerUseCase(retriever *RetrieveUseCase, llm port.LLM, opts AnswerOptions, log *logger.Logger) *AnswerUseCase {
	if opts.K <= 0 {
		opts.K = 5
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &AnswerUseCase{
		retriever: retriever,
		llm:       llm,
		opts:      opts,
		log:       log.With("service", "Answer"),
	}
}

// Answer is a completed response with the context it was grounded on.
type Answer struct {
	Question string
	Refined  string
	Context  []string
	Text     string
}

// StreamingAnswer carries the prompt inputs and the fragment channel.
type StreamingAnswer struct {
	Question string
	Refined  string
	Context  []string
	Events   <-chan port.StreamEvent
}

// Turn returns the history entry for this exchange.
func (a *Answer) Turn() domain.ChatTurn {
	return domain.ChatTurn{Question: a.Refined, Answer: a.Text}
}

// Refine rewrites a follow-up into a standalone question. Without history
// the question is returned unchanged.
func (u *AnswerUseCase) Refine(ctx context.Context, question string, history []domain.ChatTurn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	prompt, err := RefinePrompt(history, question)
	if err != nil {
		return "", err
	}
	refined, err := u.llm.Generate(ctx, port.GenerateRequest{
		System:      RefineSystemPrompt,
		Prompt:      prompt,
		Temperature: u.opts.Temperature,
		MaxTokens:   u.opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return question, nil
	}
	u.log.Debug("question refined", "question", question, "refined", refined)
	return refined, nil
}

func (u *AnswerUseCase) prepare(ctx context.Context, hash, question string, history []domain.ChatTurn) (string, *Prompt, error) {
	refined, err := u.Refine(ctx, question, history)
	if err != nil {
		return "", nil, err
	}
	prompt, err := buildPrompt(ctx, u.retriever, hash, refined, u.opts.K, u.opts.SortByChunkID)
	if err != nil {
		return "", nil, err
	}
	return refined, prompt, nil
}

func (u *AnswerUseCase) request(p *Prompt) port.GenerateRequest {
	return port.GenerateRequest{
		System:      p.System,
		Prompt:      p.User,
		Temperature: u.opts.Temperature,
		MaxTokens:   u.opts.MaxTokens,
	}
}

func (u *AnswerUseCase) Ask(ctx context.Context, hash, question string, history []domain.ChatTurn) (*Answer, error) {
	refined, prompt, err := u.prepare(ctx, hash, question, history)
	if err != nil {
		return nil, err
	}
	text, err := u.llm.Generate(ctx, u.request(prompt))
	if err != nil {
		return nil, err
	}
	return &Answer{Question: question, Refined: refined, Context: prompt.Context, Text: text}, nil
}

// AskStream is Ask with the response delivered incrementally. Cancelling
// ctx closes Events.
func (u *AnswerUseCase) AskStream(ctx context.Context, hash, question string, history []domain.ChatTurn) (*StreamingAnswer, error) {
	refined, prompt, err := u.prepare(ctx, hash, question, history)
	if err != nil {
		return nil, err
	}
	events, err := u.llm.Stream(ctx, u.request(prompt))
	if err != nil {
		return nil, err
	}
	return &StreamingAnswer{Question: question, Refined: refined, Context: prompt.Context, Events: events}, nil
}
