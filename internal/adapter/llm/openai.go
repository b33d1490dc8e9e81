package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docqa/internal/adapter/embedding"
	"docqa/internal/logger"
	"docqa/internal/port"
)

const DefaultChatModel = "gpt-4o-mini"

type Options struct {
	Provider   string // "openai", "gemini", "ollama"
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// OpenAIClient implements port.LLM over chat completions.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	baseURL := opts.BaseURL
	apiKey := opts.APIKey
	switch strings.ToLower(opts.Provider) {
	case "", "openai":
	case "gemini":
		if baseURL == "" {
			baseURL = embedding.GeminiOpenAIBaseURL
		}
	case "ollama":
		if baseURL == "" {
			baseURL = embedding.OllamaBaseURL
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s chat", opts.Provider)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	model := opts.Model
	if model == "" {
		model = DefaultChatModel
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: opts.Timeout,
		log:     log.With("service", "OpenAIChat", "model", model),
	}, nil
}

func (c *OpenAIClient) request(req port.GenerateRequest) openai.ChatCompletionRequest {
	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *OpenAIClient) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, c.request(req))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	c.log.Debug("completion generated", "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

// Stream forwards content deltas until the server finishes, an error
// occurs or ctx is cancelled. The channel is always closed.
func (c *OpenAIClient) Stream(ctx context.Context, req port.GenerateRequest) (<-chan port.StreamEvent, error) {
	ctx, cancel := c.withTimeout(ctx)

	r := c.request(req)
	r.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan port.StreamEvent)
	go func() {
		defer close(out)
		defer cancel()
		defer stream.Close()

		send := func(ev port.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(port.StreamEvent{Err: err})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(port.StreamEvent{Text: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return out, nil
}

// GenerateJSON requests a JSON object response and decodes it into out.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, req port.GenerateRequest, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	r := c.request(req)
	r.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}

	resp, err := c.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("no completion choices returned")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}
