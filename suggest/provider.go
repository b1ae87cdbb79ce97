// Package suggest generates AI content suggestions for catalog articles:
// titles, hashtags, SEO analysis, and eye-catch image prompts.
//
// Every suggestion runs through the cost-control layer before the paid model
// is touched: the caller's rate-limit window is checked first, then the
// deduplication window, then the response cache; only a full miss reaches
// the provider, with an output-token budget sized to the article rather than
// the endpoint maximum.
package suggest

import "context"

// Provider is the outbound model API a Service calls on a cache miss. This
// is the only slow operation in the system; everything in front of it is
// CPU-only and returns in microseconds.
type Provider interface {
	// Name identifies the provider in logs, metrics, and usage rows.
	Name() string
	// Complete sends one prompt and returns the model's text.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single completion request to a provider.
type Request struct {
	// Model is the provider-specific model identifier.
	Model string
	// System is the system instruction framing the task.
	System string
	// Prompt is the user-visible prompt, including the article content.
	Prompt string
	// MaxTokens caps the completion length. Always set by the service from
	// the budget allocator.
	MaxTokens int
	// Temperature, when non-nil, overrides the provider default.
	Temperature *float64
}

// Response is a provider's answer to a Request.
type Response struct {
	// Text is the generated suggestion content.
	Text string
	// Model echoes the model that produced the response.
	Model string
	// PromptTokens and CompletionTokens report usage for cost accounting.
	PromptTokens     int
	CompletionTokens int
}
