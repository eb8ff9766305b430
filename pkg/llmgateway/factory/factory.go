// Package factory builds and caches llm.Client provider adapters and
// classifies their errors into the normalized taxonomy every caller of
// the gateway consumes regardless of which backend answered.
package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/contextgate/gateway/pkg/ai/llm"
	"github.com/contextgate/gateway/pkg/ai/providers/aianthropic"
	"github.com/contextgate/gateway/pkg/ai/providers/aigemini"
	"github.com/contextgate/gateway/pkg/ai/providers/aiopenai"
	"github.com/contextgate/gateway/pkg/config"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/logx"
)

// ProviderName identifies one of the supported LLM backends.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGemini    ProviderName = "gemini"
)

var errorRegistry = errx.NewRegistry("LLMGATEWAY")

var (
	ErrUnknownProvider = errorRegistry.Register(
		"UNKNOWN_PROVIDER",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Unknown LLM provider requested",
	)

	ErrProviderNotConfigured = errorRegistry.Register(
		"PROVIDER_NOT_CONFIGURED",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Provider has no API key configured",
	)
)

// Factory constructs llm.Client adapters from configuration and caches
// them by provider name, the same "build once, reuse" shape
// vstore.Client follows for its capability interfaces.
type Factory struct {
	cfg config.ProvidersConfig

	mu      sync.Mutex
	clients map[ProviderName]llm.Client
}

// New creates a Factory bound to the given provider configuration.
func New(cfg config.ProvidersConfig) *Factory {
	return &Factory{
		cfg:     cfg,
		clients: make(map[ProviderName]llm.Client),
	}
}

// Client returns the cached llm.Client for name, constructing it on first
// use.
func (f *Factory) Client(ctx context.Context, name ProviderName) (llm.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[name]; ok {
		return c, nil
	}

	c, err := f.build(ctx, name)
	if err != nil {
		return nil, err
	}
	f.clients[name] = c
	logx.Infof("llmgateway: built provider client %q", name)
	return c, nil
}

// Default returns the client for the configured default provider.
func (f *Factory) Default(ctx context.Context) (llm.Client, error) {
	return f.Client(ctx, ProviderName(f.cfg.DefaultProvider))
}

func (f *Factory) build(ctx context.Context, name ProviderName) (llm.Client, error) {
	switch name {
	case ProviderAnthropic:
		if f.cfg.Anthropic.APIKey == "" {
			return nil, errorRegistry.New(ErrProviderNotConfigured)
		}
		return aianthropic.NewAnthropicProvider(f.cfg.Anthropic.APIKey), nil

	case ProviderOpenAI:
		if f.cfg.OpenAI.APIKey == "" {
			return nil, errorRegistry.New(ErrProviderNotConfigured)
		}
		return aiopenai.NewOpenAIProvider(f.cfg.OpenAI.APIKey), nil

	case ProviderGemini:
		if f.cfg.Gemini.APIKey == "" {
			return nil, errorRegistry.New(ErrProviderNotConfigured)
		}
		return aigemini.NewGeminiProvider(ctx, f.cfg.Gemini.APIKey)

	default:
		return nil, errorRegistry.New(ErrUnknownProvider).WithDetail("provider", string(name))
	}
}

// Switch returns a client for a provider other than the caller's current
// one, letting the orchestration layer fail over after a classified
// transient/overloaded error without re-deriving configuration.
func (f *Factory) Switch(ctx context.Context, current ProviderName, candidates ...ProviderName) (llm.Client, ProviderName, error) {
	for _, c := range candidates {
		if c == current {
			continue
		}
		client, err := f.Client(ctx, c)
		if err == nil {
			return client, c, nil
		}
	}
	return nil, "", fmt.Errorf("no alternate provider available among %v", candidates)
}

// ErrorCategory is the normalized classification spec-level callers branch
// on, independent of which provider raised the error.
type ErrorCategory string

const (
	CategoryAuthentication  ErrorCategory = "authentication"
	CategoryRateLimit       ErrorCategory = "rate_limit"
	CategoryQuota           ErrorCategory = "quota"
	CategoryOverloaded      ErrorCategory = "overloaded"
	CategoryTransient       ErrorCategory = "transient"
	CategoryInvalidRequest  ErrorCategory = "invalid_request"
	CategoryContentSafety   ErrorCategory = "content_safety"
	CategoryUnknown         ErrorCategory = "unknown"
)

// Classify maps any error returned by a provider adapter — already an
// *errx.Error thanks to each adapter's ParseXError — onto the shared
// taxonomy every caller branches on.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var xerr *errx.Error
	if !errx.As(err, &xerr) {
		return CategoryUnknown
	}
	switch xerr.Type {
	case errx.TypeAuthorization:
		return CategoryAuthentication
	case errx.TypeRateLimit:
		return CategoryRateLimit
	case errx.TypeQuota:
		return CategoryQuota
	case errx.TypeTransient:
		if xerr.Code != "" && containsOverloaded(xerr.Code) {
			return CategoryOverloaded
		}
		return CategoryTransient
	case errx.TypeValidation:
		return CategoryInvalidRequest
	case errx.TypeContentSafety:
		return CategoryContentSafety
	default:
		return CategoryUnknown
	}
}

func containsOverloaded(code string) bool {
	for i := 0; i+len("OVERLOAD") <= len(code); i++ {
		if code[i:i+len("OVERLOAD")] == "OVERLOAD" {
			return true
		}
	}
	return false
}

// RetryAfter reports the retry-after hint a rate-limit error carries, if
// its adapter was able to parse one out of the provider's response. ok
// is false for every other category, and for rate-limit errors with no
// parseable hint.
func RetryAfter(err error) (d time.Duration, ok bool) {
	var xerr *errx.Error
	if !errx.As(err, &xerr) || xerr.Details == nil {
		return 0, false
	}
	seconds, ok := xerr.Details["retry_after_seconds"]
	if !ok {
		return 0, false
	}
	switch v := seconds.(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int:
		return time.Duration(v) * time.Second, true
	default:
		return 0, false
	}
}
