package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MimeLyc/skill-translator/pkg/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// Client calls an OpenAI-compatible chat completion endpoint behind a
// circuit breaker. It is safe for concurrent use.
type Client struct {
	config  *Config
	api     *openai.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a new LLM client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{
//		APIKey:    os.Getenv("LLM_API_KEY"),
//		APIURL:    "https://api.openai.com/v1",
//		Model:     "gpt-4o-mini",
//		MaxTokens: 16000,
//		Timeout:   600,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	apiConfig.BaseURL = strings.TrimRight(config.APIURL, "/")
	apiConfig.HTTPClient = &http.Client{
		Timeout:   time.Duration(config.Timeout) * time.Second,
		Transport: &headerTransport{headers: config.ExtraHeaders(), base: http.DefaultTransport},
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm:" + config.Model,
		MaxRequests: 1,
		Timeout:     config.breakerCooldown(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.breakerFailures()
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		config:  config,
		api:     openai.NewClientWithConfig(apiConfig),
		breaker: breaker,
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.config.Model
}

// ChatCompletion sends messages and returns the first choice.
//
// Errors are *ProviderError values, except context errors which are
// returned unchanged. A completion cut off by the token limit is an error,
// never a partial answer.
//
// Example:
//
//	resp, err := client.ChatCompletion(ctx, []llm.Message{
//		{Role: llm.RoleUser, Content: "Hello"},
//	}, llm.NewChatCompletionOptions().WithSystemPrompt("Be brief."))
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: float32(c.config.Temperature),
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, classify(err)
	}

	resp := out.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Err: ErrEmptyResponse}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, &ProviderError{Err: ErrTruncated}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &ProviderError{Err: ErrEmptyResponse}
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
