package translate

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the chat-completions provider.
type OpenAIConfig struct {
	// APIKey authenticates the client. Empty is allowed for local
	// OpenAI-compatible servers.
	APIKey string
	// BaseURL overrides the default api.openai.com endpoint.
	BaseURL string
	// Model is the model identifier.
	Model string
	// Temperature for generation. 0.3 when unset.
	Temperature float32
	// Timeout is the per-request timeout. 120s when unset.
	Timeout time.Duration
	// Debug dumps request and response payloads to the log.
	Debug bool
}

// OpenAI translates batches through a chat-completions API.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds the provider from cfg.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAI{client: openai.NewClientWithConfig(cc), cfg: cfg}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Translate(ctx context.Context, req Request) ([]Result, error) {
	system, user, err := buildPrompts(req)
	if err != nil {
		return nil, fatalErr("%v", err)
	}

	if p.cfg.Debug {
		log.Printf("[DEBUG] openai request (%d items, model %s):\n%s", len(req.Items), p.cfg.Model, user)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformedErr("response has no choices")
	}

	content := resp.Choices[0].Message.Content
	if p.cfg.Debug {
		log.Printf("[DEBUG] openai response:\n%s", content)
	}
	return decodeResults(content, req.Items)
}

// classifyAPIError maps client errors onto the retry classification.
// Auth and request-shape errors are fatal; everything else, including
// rate limits and server errors, is transient.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
			return fatalErr("API error (status %d): %v", apiErr.HTTPStatusCode, apiErr)
		}
		return networkErr("API error (status %d): %v", apiErr.HTTPStatusCode, apiErr)
	}
	return networkErr("request failed: %v", err)
}
