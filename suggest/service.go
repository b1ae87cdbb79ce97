package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/editorial-labs/costgate"
	"github.com/editorial-labs/costgate/internal/circuitbreaker"
	"github.com/editorial-labs/costgate/internal/logging"
	"github.com/editorial-labs/costgate/internal/metrics"
	"github.com/editorial-labs/costgate/internal/usagelog"
	"github.com/editorial-labs/costgate/keyhash"
	"github.com/editorial-labs/costgate/ratelimit"
)

// Endpoint names. These double as cache-key prefixes, budget-class names,
// and metric labels.
const (
	EndpointTitles   = "titles"
	EndpointHashtags = "hashtags"
	EndpointSEO      = "seo"
	EndpointEyecatch = "eyecatch"
)

// ErrRateLimited is returned when the caller's sliding window is exhausted.
// The accompanying Result carries the retry timing.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrEmptyContent is returned when a suggestion is requested for blank content.
var ErrEmptyContent = errors.New("content is empty")

// Source identifies who answered a suggestion request.
const (
	SourceCache    = "cache"
	SourceDedup    = "dedup"
	SourceProvider = "provider"
)

// Result is the outcome of one suggestion request.
type Result struct {
	// Endpoint is which suggestion ran.
	Endpoint string `json:"endpoint"`
	// Text is the suggestion content.
	Text string `json:"text"`
	// Source is where the answer came from: "cache", "dedup", or "provider".
	Source string `json:"source"`
	// BudgetedTokens is the output-token budget allocated for the call.
	// Zero when the answer never reached the provider.
	BudgetedTokens int `json:"budgeted_tokens,omitempty"`
	// RateLimit reports the caller's remaining window budget.
	RateLimit ratelimit.Result `json:"-"`
}

// Service answers suggestion requests through the cost-control layer.
//
// Per request it (a) checks the caller's rate-limit window, (b) checks the
// short deduplication window, (c) checks the response cache, (d) on a full
// miss calls the provider with a budgeted max_tokens under a circuit
// breaker, and (e) stores the result back and writes a usage row.
//
// Concurrent identical misses are not coalesced; both will reach the
// provider and the later store wins.
type Service struct {
	layer    *costgate.Layer
	provider Provider
	model    string
	breaker  *circuitbreaker.CircuitBreaker
	usage    usagelog.Writer
}

// Option customizes a Service.
type Option func(*Service)

// WithUsageLog attaches a usage writer. Without it usage rows are dropped.
func WithUsageLog(w usagelog.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.usage = w
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(s *Service) {
		if cb != nil {
			s.breaker = cb
		}
	}
}

// NewService creates a Service calling provider with the given model.
func NewService(layer *costgate.Layer, provider Provider, model string, opts ...Option) (*Service, error) {
	if layer == nil {
		return nil, fmt.Errorf("suggest: layer is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("suggest: provider is required")
	}
	if model == "" {
		return nil, fmt.Errorf("suggest: model is required")
	}
	s := &Service{
		layer:    layer,
		provider: provider,
		model:    model,
		breaker:  circuitbreaker.New(5, 1, 30*time.Second),
		usage:    usagelog.NoopWriter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SuggestTitles proposes article titles for content.
func (s *Service) SuggestTitles(ctx context.Context, clientID, content string, count int) (*Result, error) {
	if count <= 0 {
		count = 3
	}
	return s.suggest(ctx, EndpointTitles, clientID, content, map[string]any{"count": count})
}

// SuggestHashtags proposes hashtags for content.
func (s *Service) SuggestHashtags(ctx context.Context, clientID, content string, count int) (*Result, error) {
	if count <= 0 {
		count = 5
	}
	return s.suggest(ctx, EndpointHashtags, clientID, content, map[string]any{"count": count})
}

// AnalyzeSEO produces an SEO analysis of content.
func (s *Service) AnalyzeSEO(ctx context.Context, clientID, content string) (*Result, error) {
	return s.suggest(ctx, EndpointSEO, clientID, content, nil)
}

// SuggestImagePrompt produces an eye-catch image generation prompt for content.
func (s *Service) SuggestImagePrompt(ctx context.Context, clientID, content string) (*Result, error) {
	return s.suggest(ctx, EndpointEyecatch, clientID, content, nil)
}

func (s *Service) suggest(ctx context.Context, endpoint, clientID, content string, params map[string]any) (*Result, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	log := logging.FromContext(ctx).With("endpoint", endpoint)

	rl := s.layer.CheckRateLimit(clientID)
	if !rl.Allowed {
		metrics.SuggestRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		log.Info("request rate limited", "client", clientID, "reset_in_s", rl.ResetInSeconds())
		return &Result{Endpoint: endpoint, RateLimit: rl}, ErrRateLimited
	}

	payload := map[string]any{"endpoint": endpoint, "content": content, "params": params}
	if prev, ok := s.layer.Deduplicator().CheckDuplicate(clientID, payload); ok {
		if text, ok := prev.(string); ok {
			metrics.SuggestRequests.WithLabelValues(endpoint, "dedup_hit").Inc()
			s.writeUsage(ctx, endpoint, clientID, SourceDedup, 0, nil)
			return &Result{Endpoint: endpoint, Text: text, Source: SourceDedup, RateLimit: rl}, nil
		}
	}

	key := keyhash.BuildKey(endpoint, keyhash.HashContent(content), keyhash.HashParams(params))
	if cached, ok := s.layer.Cache().Get(key); ok {
		if text, ok := cached.(string); ok {
			metrics.SuggestRequests.WithLabelValues(endpoint, "cache_hit").Inc()
			s.layer.Deduplicator().RecordResult(clientID, payload, text)
			s.writeUsage(ctx, endpoint, clientID, SourceCache, 0, nil)
			return &Result{Endpoint: endpoint, Text: text, Source: SourceCache, RateLimit: rl}, nil
		}
	}

	// Budget classes scale over character counts, not bytes; multi-byte
	// article content must not ramp the budget faster than ASCII.
	maxTokens := s.layer.Budgets().AllocateFor(endpoint, utf8.RuneCountInString(content))
	metrics.TokensBudgeted.WithLabelValues(endpoint).Add(float64(maxTokens))

	var resp *Response
	err := s.breaker.Do(func() error {
		var callErr error
		resp, callErr = s.provider.Complete(ctx, Request{
			Model:     s.model,
			System:    systemPrompt(endpoint),
			Prompt:    userPrompt(endpoint, content, params),
			MaxTokens: maxTokens,
		})
		return callErr
	})
	if err != nil {
		// A failed computation is never stored: no result poisons the
		// cache or the deduplication window.
		metrics.SuggestRequests.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			metrics.ProviderErrors.WithLabelValues(s.provider.Name(), "circuit_open").Inc()
		} else {
			metrics.ProviderErrors.WithLabelValues(s.provider.Name(), "provider_error").Inc()
		}
		log.Error("suggestion call failed", "provider", s.provider.Name(), "error", err)
		return nil, fmt.Errorf("suggest %s: %w", endpoint, err)
	}

	metrics.SuggestRequests.WithLabelValues(endpoint, "computed").Inc()
	metrics.TokensUsed.WithLabelValues(endpoint).Add(float64(resp.CompletionTokens))

	s.layer.Cache().SetWithTTL(key, resp.Text, s.layer.CacheTTL(), endpoint)
	s.layer.Deduplicator().RecordResult(clientID, payload, resp.Text)
	s.writeUsage(ctx, endpoint, clientID, SourceProvider, maxTokens, resp)

	return &Result{
		Endpoint:       endpoint,
		Text:           resp.Text,
		Source:         SourceProvider,
		BudgetedTokens: maxTokens,
		RateLimit:      rl,
	}, nil
}

// InvalidateEndpoint drops every cached response for endpoint, e.g. after a
// prompt template change. Returns the number of entries dropped.
func (s *Service) InvalidateEndpoint(endpoint string) int {
	n, err := s.layer.Cache().DeletePattern(endpoint + ":*")
	if err != nil {
		// Endpoint names are plain identifiers; a bad glob here is a bug.
		logging.Logger.Error("invalidate endpoint", "endpoint", endpoint, "error", err)
		return 0
	}
	return n
}

func (s *Service) writeUsage(ctx context.Context, endpoint, clientID, source string, budgeted int, resp *Response) {
	entry := usagelog.Entry{
		Endpoint:       endpoint,
		ClientID:       clientID,
		Source:         source,
		BudgetedTokens: budgeted,
	}
	if resp != nil {
		entry.Model = resp.Model
		entry.Provider = s.provider.Name()
		entry.PromptTokens = resp.PromptTokens
		entry.CompletionTokens = resp.CompletionTokens
	}
	if err := s.usage.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("usage log write failed", "endpoint", endpoint, "error", err)
	}
}
