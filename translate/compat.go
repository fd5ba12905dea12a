package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// OpenAI-compatible HTTP provider
//
// Talks to any endpoint that accepts the chat/completions request shape:
// Ollama, LM Studio, vLLM, self-hosted gateways. Kept separate from the
// OpenAI client so odd dialects (missing fields, nonstandard errors) can
// be handled without fighting a strict SDK.
// ---------------------------------------------------------------------------

// CompatConfig configures the compatible-endpoint provider.
type CompatConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:11434/v1".
	BaseURL string
	// APIKey is sent as a Bearer token when set.
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout. 120s when unset.
	Timeout time.Duration
	// Debug dumps request and response payloads to the log.
	Debug bool
}

// Compat translates batches through an OpenAI-compatible endpoint.
type Compat struct {
	cfg    CompatConfig
	client *http.Client
}

// NewCompat builds the provider from cfg.
func NewCompat(cfg CompatConfig) *Compat {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Compat{cfg: cfg, client: makeHTTPClient(cfg.Proxy, cfg.Timeout)}
}

func (p *Compat) Name() string { return "compat" }

func (p *Compat) Translate(ctx context.Context, req Request) ([]Result, error) {
	system, user, err := buildPrompts(req)
	if err != nil {
		return nil, fatalErr("%v", err)
	}

	body, err := buildChatRequest(p.cfg.Model, system, user)
	if err != nil {
		return nil, fatalErr("building request: %v", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fatalErr("creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	if p.cfg.Debug {
		log.Printf("[DEBUG] compat: POST %s (%d items, model %s)", endpoint, len(req.Items), p.cfg.Model)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, networkErr("request failed: %v", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, networkErr("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	default:
		return nil, fatalErr("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	content, err := extractChatContent(respBody)
	if err != nil {
		return nil, err
	}
	if p.cfg.Debug {
		log.Printf("[DEBUG] compat response:\n%s", content)
	}
	return decodeResults(content, req.Items)
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func buildChatRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.3,
	}
	return json.Marshal(req)
}

// extractChatContent pulls choices[0].message.content out of a chat
// completions response body.
func extractChatContent(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", malformedErr("invalid JSON response: %v", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", networkErr("API error: %s", msg)
			}
		}
		return "", networkErr("API error: %v", errObj)
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}
	return "", malformedErr("could not extract text from response: %s", truncate(string(body), 300))
}

// ---------------------------------------------------------------------------
// Echo provider
// ---------------------------------------------------------------------------

// Echo returns every item unchanged. Used for dry runs and pipeline tests.
type Echo struct{}

func (Echo) Name() string { return "echo" }

func (Echo) Translate(_ context.Context, req Request) ([]Result, error) {
	results := make([]Result, len(req.Items))
	for i, it := range req.Items {
		results[i] = Result{ID: it.ID, Text: it.Text}
	}
	return results, nil
}
