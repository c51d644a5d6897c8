package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// #region transport

// OpenAITransport sends chat completions to any OpenAI-compatible API.
// One client is kept per key so rotation does not rebuild connections.
type OpenAITransport struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAITransport creates a transport for baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewOpenAITransport(baseURL string, httpClient *http.Client) *OpenAITransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAITransport{
		baseURL:    baseURL,
		httpClient: httpClient,
		clients:    make(map[string]*openai.Client),
	}
}

func (t *OpenAITransport) client(apiKey string) *openai.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[apiKey]; ok {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = t.baseURL
	cfg.HTTPClient = t.httpClient
	c := openai.NewClientWithConfig(cfg)
	t.clients[apiKey] = c
	return c
}

// Complete implements Transport.
func (t *OpenAITransport) Complete(ctx context.Context, apiKey string, out Outbound) (string, error) {
	resp, err := t.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: out.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: out.Prompt},
		},
		Temperature: out.Decoding.Temperature,
		TopP:        out.Decoding.TopP,
		MaxTokens:   out.Decoding.MaxTokens,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// #endregion transport

// #region classify

// rateLimitCodes are provider error codes treated like HTTP 429.
var rateLimitCodes = map[string]bool{
	"rate_limit_exceeded":     true,
	"organization_restricted": true,
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || rateLimitCodes[code] {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		return fmt.Errorf("chat completion: status %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, reqErr.Err)
	}
	return fmt.Errorf("chat completion: %w", err)
}

// #endregion classify
