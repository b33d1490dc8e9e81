package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"docqa/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	RefineSystemPrompt = "You are a helpful, respectful and honest assistant."

	ContextSystemPrompt = `I will ask you a question, and I want you to answer based only on the context I provide, and no other information. If there is not enough information in the context to answer the question, say "I don't know". Do not try to guess.`

	JudgeSystemPrompt = `You are an impartial evaluation system. Your task is to assess the AI assistant's answer compared to the ideal answer.

Scoring:
- 1.0: The answer is very close to the ideal answer.
- 0.5: The answer is partially correct or incomplete.
- 0: The answer is incorrect or irrelevant.

Assign only one of these scores (0, 0.5, or 1.0) and briefly justify your decision.

Respond with a single JSON object and nothing else, in exactly this form:
{"score": <0, 0.5 or 1.0>, "evaluation": "<short justification>"}`
)

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// ContextPrompt renders the grounded-answer prompt. Chunks are joined one
// per line.
func ContextPrompt(chunks []string, question string) (string, error) {
	return render("context.tmpl", struct{ Context, Question string }{strings.Join(chunks, "\n"), question})
}

// RefinePrompt renders the follow-up rewrite prompt.
func RefinePrompt(history []domain.ChatTurn, question string) (string, error) {
	return render("refine.tmpl", struct{ History, Question string }{FormatHistory(history), question})
}

func JudgePrompt(question, answer, ideal string) (string, error) {
	return render("judge.tmpl", struct{ Question, Answer, IdealAnswer string }{question, answer, ideal})
}

// FormatHistory renders turns as "role: content" blocks separated by a
// blank line.
func FormatHistory(history []domain.ChatTurn) string {
	parts := make([]string, 0, 2*len(history))
	for _, t := range history {
		parts = append(parts, "user: "+t.Question, "assistant: "+t.Answer)
	}
	return strings.Join(parts, "\n\n")
}

// Prompt is a fully rendered answer request.
type Prompt struct {
	System  string
	User    string
	Context []string
}

// PromptUseCase renders the answer prompt without calling a model, for
// pasting into another assistant.
type PromptUseCase struct {
	retriever     *RetrieveUseCase
	k             int
	sortByChunkID bool
}

func NewPromptUseCase(retriever *RetrieveUseCase, k int, sortByChunkID bool) *PromptUseCase {
	return &PromptUseCase{retriever: retriever, k: k, sortByChunkID: sortByChunkID}
}

func (u *PromptUseCase) Render(ctx context.Context, hash, question string) (*Prompt, error) {
	return buildPrompt(ctx, u.retriever, hash, question, u.k, u.sortByChunkID)
}

func buildPrompt(ctx context.Context, r *RetrieveUseCase, hash, question string, k int, sortByChunkID bool) (*Prompt, error) {
	chunks, err := r.Retrieve(ctx, hash, question, k, sortByChunkID)
	if err != nil {
		return nil, err
	}
	user, err := ContextPrompt(chunks, question)
	if err != nil {
		return nil, err
	}
	return &Prompt{System: ContextSystemPrompt, User: user, Context: chunks}, nil
}
