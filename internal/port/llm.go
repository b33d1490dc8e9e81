package port

import "context"

// GenerateRequest is a single-turn chat request.
type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// StreamEvent carries one text fragment or a terminal error.
type StreamEvent struct {
	Text string
	Err  error
}

// LLM represents a language model for text generation.
type LLM interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Stream sends fragments on the returned channel and closes it when the
	// response completes, fails or ctx is cancelled.
	Stream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error)

	// GenerateJSON asks for a JSON object response and decodes it into out.
	GenerateJSON(ctx context.Context, req GenerateRequest, out any) error

	ModelName() string
}
