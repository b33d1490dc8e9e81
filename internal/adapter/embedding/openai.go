package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
)

const (
	GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OllamaBaseURL       = "http://localhost:11434/v1"
)

type OpenAIOptions struct {
	Provider          string // "openai", "gemini", "ollama"
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. It sends
// the whole input in one request; batching is the Batcher's job.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	baseURL := opts.BaseURL
	apiKey := opts.APIKey
	switch strings.ToLower(opts.Provider) {
	case "", "openai":
	case "gemini":
		if baseURL == "" {
			baseURL = GeminiOpenAIBaseURL
		}
	case "ollama":
		if baseURL == "" {
			baseURL = OllamaBaseURL
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s embeddings", opts.Provider)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	e := &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: opts.Timeout,
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e, nil
}

// Embed ignores the task type: OpenAI-compatible endpoints have no such field.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, _ domain.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding API returned bad index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// IsRetryable reports whether an upstream embedding error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, domain.ErrInvalidInput)
}
