// Package translate defines the batch translation protocol and the provider
// implementations that speak it: OpenAI-style chat APIs, OpenAI-compatible
// HTTP endpoints (Ollama, LM Studio, self-hosted gateways), and a
// passthrough echo provider for dry runs.
//
// A provider receives a batch of identified text items and must return one
// translation per item ID. Responses naming unknown or duplicate IDs fail
// the whole batch; missing IDs yield a partial result the caller accounts
// for item by item.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// ---------------------------------------------------------------------------
// Protocol types
// ---------------------------------------------------------------------------

// Item is one batch entry submitted for translation.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is one translated entry returned by a provider.
type Result struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Request describes a single provider call.
type Request struct {
	Items      []Item
	SourceLang string // empty means auto-detect
	TargetLang string
}

// Provider translates one batch per call.
type Provider interface {
	// Name is the provider identifier for logs and reports.
	Name() string
	// Translate returns results keyed to the request item IDs. A partial
	// result (some IDs missing) is valid; unknown or duplicate IDs are not.
	Translate(ctx context.Context, req Request) ([]Result, error)
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// Kind classifies a provider failure for retry and policy decisions.
type Kind int

const (
	// KindNetwork covers transport failures, timeouts, 429s and 5xx
	// statuses. Retried at the transport level.
	KindNetwork Kind = iota
	// KindMalformed covers responses that arrived but violate the
	// protocol. Not retried at the transport level; the error policy
	// decides whether the batch is retried.
	KindMalformed
	// KindFatal covers auth failures and client errors that will not
	// change on retry.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	default:
		return "fatal"
	}
}

// Error wraps a provider failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func networkErr(format string, args ...any) error {
	return &Error{Kind: KindNetwork, Err: fmt.Errorf(format, args...)}
}

func malformedErr(format string, args ...any) error {
	return &Error{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

func fatalErr(format string, args ...any) error {
	return &Error{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

// ClassifyKind reports the failure kind of err, defaulting to network for
// unclassified errors so transport problems stay retryable.
func ClassifyKind(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// ---------------------------------------------------------------------------
// Retry wrapper
// ---------------------------------------------------------------------------

// RetryOptions tunes the retrying provider wrapper.
type RetryOptions struct {
	// Retries is the number of re-attempts after the first try. Default 3,
	// so a batch is tried up to four times.
	Retries uint
	// BaseDelay scales the quadratic backoff: retry n waits n*n*BaseDelay,
	// so 1s, 4s, 9s at the default base.
	BaseDelay time.Duration
	// OnRetry is called before each re-attempt with the 1-based retry
	// number.
	OnRetry func(retry uint, err error)
}

type retrying struct {
	inner Provider
	opts  RetryOptions
}

// WithRetry wraps p so transient failures are retried up to opts.Retries
// times. Only network-class errors are retried here; malformed and fatal
// errors surface immediately for the error policy to govern. Context
// cancellation stops the loop early.
func WithRetry(p Provider, opts RetryOptions) Provider {
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Second
	}
	return &retrying{inner: p, opts: opts}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Translate(ctx context.Context, req Request) ([]Result, error) {
	var results []Result
	err := retry.Do(
		func() error {
			var err error
			results, err = r.inner.Translate(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.opts.Retries+1),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			tries := n + 1
			return time.Duration(tries*tries) * r.opts.BaseDelay
		}),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			return ClassifyKind(err) == KindNetwork
		}),
		retry.OnRetry(func(n uint, err error) {
			if r.opts.OnRetry != nil {
				r.opts.OnRetry(n+1, err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Prompt construction and response decoding
// ---------------------------------------------------------------------------

const systemPromptTemplate = `You are a professional translator working on office documents.

TRANSLATION PRINCIPLES:
- Translate into {{targetLang}} for naturalness and fluency, not word-for-word.
- Keep the register and tone of the source text.
- Keep brand names, proper nouns, numbers, and code identifiers unchanged.
- Preserve leading/trailing whitespace and punctuation patterns exactly.
- Some texts contain <run id="..."> markup: translate the content, keep every tag exactly as-is, and keep translated content inside its original tags.

TECHNICAL REQUIREMENTS:
- The user message is a JSON array of {"id", "text"} objects.
- Return ONLY a JSON array of {"id", "text"} objects covering every input id, in any order.
- Never invent ids and never repeat an id.
- Return ONLY the JSON array, no explanations or markdown code blocks.`

// buildPrompts renders the system and user messages for a request.
func buildPrompts(req Request) (string, string, error) {
	payload, err := json.Marshal(req.Items)
	if err != nil {
		return "", "", fmt.Errorf("marshaling batch: %w", err)
	}

	system := strings.ReplaceAll(systemPromptTemplate, "{{targetLang}}", req.TargetLang)
	var user strings.Builder
	if req.SourceLang != "" {
		fmt.Fprintf(&user, "Translate from %s to %s:\n\n", req.SourceLang, req.TargetLang)
	} else {
		fmt.Fprintf(&user, "Translate to %s:\n\n", req.TargetLang)
	}
	user.Write(payload)
	return system, user.String(), nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// decodeResults parses a model response against the request items. Unknown
// and duplicate IDs fail the batch; missing IDs are allowed and produce a
// partial result.
func decodeResults(content string, items []Item) ([]Result, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code blocks if present.
	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	// Find the outer JSON array.
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	var results []Result
	if err := json.Unmarshal([]byte(content), &results); err != nil {
		return nil, malformedErr("response is not a JSON array of {id, text}: %v\nResponse: %s", err, truncate(content, 300))
	}

	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if !known[r.ID] {
			return nil, malformedErr("response names unknown id %q", r.ID)
		}
		if seen[r.ID] {
			return nil, malformedErr("response repeats id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return results, nil
}

// Missing lists the request item IDs absent from results, in request order.
func Missing(items []Item, results []Result) []string {
	got := make(map[string]bool, len(results))
	for _, r := range results {
		got[r.ID] = true
	}
	var missing []string
	for _, it := range items {
		if !got[it.ID] {
			missing = append(missing, it.ID)
		}
	}
	return missing
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
