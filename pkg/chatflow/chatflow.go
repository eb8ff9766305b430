// Package chatflow is the conversation-facing orchestration layer: it
// runs a user turn through content safety, the Context Engine, a
// provider (with tool calls and failover), and content safety again
// before the result is persisted.
package chatflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/contextgate/gateway/pkg/ai/llm"
	"github.com/contextgate/gateway/pkg/contentsafety"
	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/llmgateway/factory"
	"github.com/contextgate/gateway/pkg/llmgateway/toolx"
)

var errorRegistry = errx.NewRegistry("CHATFLOW")

var ErrNoProviderAvailable = errorRegistry.Register(
	"NO_PROVIDER_AVAILABLE",
	errx.TypeTransient,
	http.StatusServiceUnavailable,
	"No configured provider could serve this turn",
)

// MetricsRecorder receives the observability events an Orchestrator
// produces. nil is a valid Config value: every call site guards against
// it, so metrics are purely optional.
type MetricsRecorder interface {
	ObserveProviderError(provider, category string)
	ObserveProviderSuccess(provider string)
	ObserveBayesianShare(share float64)
}

// Config tunes an Orchestrator's provider failover and tool-call limits.
type Config struct {
	PreferredProviders    []factory.ProviderName
	MaxAutoToolIterations int
	MaxTotalIterations    int
	RetryAttempts         int
	RetryInitialDelay     time.Duration
	PersonaPrompt         string
	Metrics               MetricsRecorder
}

// DefaultConfig: three auto tool iterations, ten total, three retries
// with a 200ms initial backoff.
func DefaultConfig() Config {
	return Config{
		PreferredProviders:    []factory.ProviderName{factory.ProviderAnthropic, factory.ProviderOpenAI, factory.ProviderGemini},
		MaxAutoToolIterations: 3,
		MaxTotalIterations:    10,
		RetryAttempts:         3,
		RetryInitialDelay:     200 * time.Millisecond,
	}
}

// Orchestrator composes the Content Safety Pipeline, the Context Engine,
// the provider factory, and an optional tool registry into one turn-at-a
// -time conversation loop.
type Orchestrator struct {
	safety  *contentsafety.Pipeline
	engine  *contextengine.Engine
	factory *factory.Factory
	tools   *toolx.Client
	cfg     Config
}

// New wires an Orchestrator. tools may be nil when no tool calling is
// configured.
func New(safety *contentsafety.Pipeline, engine *contextengine.Engine, f *factory.Factory, tools *toolx.Client, cfg Config) *Orchestrator {
	if len(cfg.PreferredProviders) == 0 {
		cfg.PreferredProviders = DefaultConfig().PreferredProviders
	}
	if cfg.MaxAutoToolIterations == 0 {
		cfg.MaxAutoToolIterations = DefaultConfig().MaxAutoToolIterations
	}
	if cfg.MaxTotalIterations == 0 {
		cfg.MaxTotalIterations = DefaultConfig().MaxTotalIterations
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultConfig().RetryAttempts
	}
	if cfg.RetryInitialDelay == 0 {
		cfg.RetryInitialDelay = DefaultConfig().RetryInitialDelay
	}
	return &Orchestrator{safety: safety, engine: engine, factory: f, tools: tools, cfg: cfg}
}

// CreateConversation registers a new conversation for subsequent turns.
func (o *Orchestrator) CreateConversation(ctx context.Context, chatID, ownerID, title string) (*chatmodel.Conversation, error) {
	return o.engine.CreateConversation(ctx, chatID, ownerID, title)
}

// Turn runs one non-streaming conversation turn: validate the user's
// input, record it, assemble an optimized context window, call a
// provider (running any tool calls to completion), validate the
// response, record it, and return the final text.
func (o *Orchestrator) Turn(ctx context.Context, chatID, userInput string, language contentsafety.Language) (string, error) {
	if err := o.safety.ValidateContent(ctx, userInput); err != nil {
		return "", err
	}
	if _, err := o.engine.AddMessage(ctx, chatID, chatmodel.RoleUser, userInput, nil); err != nil {
		return "", err
	}

	window, err := o.engine.GetOptimizedContext(ctx, chatID, userInput)
	if err != nil {
		return "", err
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ObserveBayesianShare(window.Statistics.BayesianShare)
	}
	messages := buildMessages(window, o.cfg.PersonaPrompt)

	final, err := o.runChatLoop(ctx, messages)
	if err != nil {
		return "", err
	}

	if err := o.safety.ValidateResponse(ctx, final.Content, language); err != nil {
		return "", err
	}
	if _, err := o.engine.AddMessage(ctx, chatID, chatmodel.RoleAssistant, final.Content, nil); err != nil {
		return "", err
	}
	return final.Content, nil
}

// StreamTurn is Turn's streaming counterpart: text chunks and tool
// activity are forwarded to handler as they happen. The full response is
// still safety-checked and persisted once the stream completes.
func (o *Orchestrator) StreamTurn(ctx context.Context, chatID, userInput string, language contentsafety.Language, handler StreamHandler) error {
	if err := o.safety.ValidateContent(ctx, userInput); err != nil {
		return err
	}
	if _, err := o.engine.AddMessage(ctx, chatID, chatmodel.RoleUser, userInput, nil); err != nil {
		return err
	}

	window, err := o.engine.GetOptimizedContext(ctx, chatID, userInput)
	if err != nil {
		return err
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ObserveBayesianShare(window.Statistics.BayesianShare)
	}
	messages := buildMessages(window, o.cfg.PersonaPrompt)

	client, providerName, err := o.resolveProvider(ctx)
	if err != nil {
		return err
	}

	var finalContent strings.Builder
	for iteration := 0; iteration < o.cfg.MaxTotalIterations; iteration++ {
		options := o.buildOptions(iteration)

		stream, err := client.ChatStream(ctx, messages, options...)
		if err != nil {
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.ObserveProviderError(string(providerName), string(factory.Classify(err)))
			}
			return err
		}
		assistantMsg, err := consumeStream(stream, handler)
		stream.Close()
		if err != nil {
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.ObserveProviderError(string(providerName), string(factory.Classify(err)))
			}
			handler(StreamEvent{Type: EventError, Err: err})
			return err
		}
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.ObserveProviderSuccess(string(providerName))
		}
		messages = append(messages, assistantMsg)
		finalContent.WriteString(assistantMsg.Content)

		if len(assistantMsg.ToolCalls) == 0 {
			final := finalContent.String()
			if err := o.safety.ValidateResponse(ctx, final, language); err != nil {
				return err
			}
			_, err := o.engine.AddMessage(ctx, chatID, chatmodel.RoleAssistant, final, nil)
			return err
		}

		if o.tools == nil {
			final := finalContent.String()
			if err := o.safety.ValidateResponse(ctx, final, language); err != nil {
				return err
			}
			_, err := o.engine.AddMessage(ctx, chatID, chatmodel.RoleAssistant, final, nil)
			return err
		}

		toolMessages, err := executeTools(ctx, o.tools, assistantMsg.ToolCalls, handler)
		if err != nil {
			return err
		}
		messages = append(messages, toolMessages...)
	}

	return fmt.Errorf("maximum iterations (%d) exceeded", o.cfg.MaxTotalIterations)
}

// runChatLoop drives the non-streaming tool-call round trip: call the
// provider, and if it asks for tools, execute them and call again, up to
// MaxTotalIterations.
func (o *Orchestrator) runChatLoop(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	for iteration := 0; iteration < o.cfg.MaxTotalIterations; iteration++ {
		options := o.buildOptions(iteration)

		response, err := o.chatWithFailover(ctx, messages, options)
		if err != nil {
			return llm.Message{}, err
		}
		messages = append(messages, response.Message)

		if len(response.Message.ToolCalls) == 0 || o.tools == nil {
			return response.Message, nil
		}

		for _, tc := range response.Message.ToolCalls {
			toolMsg, err := o.tools.Call(ctx, tc)
			if err != nil {
				return llm.Message{}, fmt.Errorf("tool %q failed: %w", tc.Function.Name, err)
			}
			messages = append(messages, toolMsg)
		}
	}
	return llm.Message{}, fmt.Errorf("maximum iterations (%d) exceeded", o.cfg.MaxTotalIterations)
}

// buildOptions attaches the registered tools and forces tool_choice=none
// once MaxAutoToolIterations has been spent: auto for N turns, then none.
func (o *Orchestrator) buildOptions(iteration int) []llm.Option {
	if o.tools == nil {
		return nil
	}
	toolList := o.tools.GetTools()
	if len(toolList) == 0 {
		return nil
	}
	options := []llm.Option{llm.WithTools(toolList...)}
	if iteration >= o.cfg.MaxAutoToolIterations {
		options = append(options, llm.WithToolChoice("none"))
	} else {
		options = append(options, llm.WithToolChoice("auto"))
	}
	return options
}

// resolveProvider returns the first preferred provider that can be
// built.
func (o *Orchestrator) resolveProvider(ctx context.Context) (llm.Client, factory.ProviderName, error) {
	var lastErr error
	for _, name := range o.cfg.PreferredProviders {
		client, err := o.factory.Client(ctx, name)
		if err == nil {
			return client, name, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errorRegistry.New(ErrNoProviderAvailable)
	}
	return nil, "", lastErr
}

// chatWithFailover calls the first available preferred provider. A
// transient or overloaded error gets exponentially-backed-off retries on
// that same provider, then falls over to the next preferred one. A
// rate-limit error never fails over: it gets exactly one retry honoring
// the provider's retry-after hint (a fixed short wait when no hint was
// parseable), and either outcome of that single retry is returned as-is.
func (o *Orchestrator) chatWithFailover(ctx context.Context, messages []llm.Message, options []llm.Option) (llm.Response, error) {
	var lastErr error
	for _, name := range o.cfg.PreferredProviders {
		client, err := o.factory.Client(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}

		call := func(ctx context.Context) (llm.Response, error) {
			return client.Chat(ctx, messages, options...)
		}

		resp, err := call(ctx)
		if err == nil {
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.ObserveProviderSuccess(string(name))
			}
			return resp, nil
		}

		category := factory.Classify(err)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.ObserveProviderError(string(name), string(category))
		}

		switch category {
		case factory.CategoryRateLimit:
			resp, err = retryRateLimited(ctx, err, call)
		case factory.CategoryTransient, factory.CategoryOverloaded:
			resp, err = retryTransient(ctx, o.cfg.RetryAttempts-1, o.cfg.RetryInitialDelay, call)
		}
		if err == nil {
			if o.cfg.Metrics != nil {
				o.cfg.Metrics.ObserveProviderSuccess(string(name))
			}
			return resp, nil
		}
		lastErr = err

		if category != factory.CategoryTransient && category != factory.CategoryOverloaded {
			return llm.Response{}, err
		}
	}
	if lastErr == nil {
		lastErr = errorRegistry.New(ErrNoProviderAvailable)
	}
	return llm.Response{}, lastErr
}

// defaultRateLimitRetryDelay is used when a rate-limit error carries no
// parseable retry-after hint.
const defaultRateLimitRetryDelay = 2 * time.Second

// retryRateLimited performs exactly one retry after firstErr's retry-after
// hint (or defaultRateLimitRetryDelay with none). Rate-limit errors get a
// single scheduled retry, never an exponential backoff schedule.
func retryRateLimited(ctx context.Context, firstErr error, fn func(context.Context) (llm.Response, error)) (llm.Response, error) {
	delay, ok := factory.RetryAfter(firstErr)
	if !ok {
		delay = defaultRateLimitRetryDelay
	}
	select {
	case <-ctx.Done():
		return llm.Response{}, ctx.Err()
	case <-time.After(delay):
	}
	return fn(ctx)
}

func retryTransient(ctx context.Context, attempts int, initialDelay time.Duration, fn func(context.Context) (llm.Response, error)) (llm.Response, error) {
	if attempts < 1 {
		attempts = 1
	}
	delay := initialDelay
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		category := factory.Classify(err)
		if category != factory.CategoryTransient && category != factory.CategoryOverloaded {
			return llm.Response{}, err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return llm.Response{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return llm.Response{}, lastErr
}

// consumeStream drains a Stream, forwarding text chunks to handler and
// assembling the final assistant Message (content plus any tool calls).
func consumeStream(stream llm.Stream, handler StreamHandler) (llm.Message, error) {
	var (
		content   strings.Builder
		toolCalls []llm.ToolCall
	)
	for {
		chunk, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return llm.Message{}, err
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			handler(StreamEvent{Type: EventText, Content: chunk.Content})
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = chunk.ToolCalls
		}
	}
	return llm.Message{Role: llm.RoleAssistant, Content: content.String(), ToolCalls: toolCalls}, nil
}

// executeTools runs every tool call in order, emitting before/after
// events, and returns the resulting tool-result messages to append to
// history.
func executeTools(ctx context.Context, tools *toolx.Client, toolCalls []llm.ToolCall, handler StreamHandler) ([]llm.Message, error) {
	results := make([]llm.Message, 0, len(toolCalls))
	for _, tc := range toolCalls {
		handler(StreamEvent{
			Type:       EventToolCall,
			ToolCallID: tc.ID,
			ToolName:   tc.Function.Name,
			ToolInput:  tc.Function.Arguments,
		})

		toolMsg, err := tools.Call(ctx, tc)
		if err != nil {
			handler(StreamEvent{Type: EventError, Err: err})
			return nil, fmt.Errorf("tool %q failed: %w", tc.Function.Name, err)
		}

		handler(StreamEvent{
			Type:       EventToolResult,
			ToolCallID: tc.ID,
			ToolName:   tc.Function.Name,
			ToolOutput: toolMsg.Content,
		})
		results = append(results, toolMsg)
	}
	return results, nil
}

// buildMessages turns a ContextWindow into the message slice a provider
// call expects: a system message carrying summaries, key facts, and any
// Bayesian-selected history, followed by the recent messages verbatim.
func buildMessages(window chatmodel.ContextWindow, personaPrompt string) []llm.Message {
	var sys strings.Builder
	if personaPrompt != "" {
		sys.WriteString(personaPrompt)
		sys.WriteString("\n\n")
	}
	if len(window.Summaries) > 0 {
		sys.WriteString("Earlier in this conversation:\n")
		for _, s := range window.Summaries {
			sys.WriteString("- ")
			sys.WriteString(s.Text)
			sys.WriteString("\n")
		}
		sys.WriteString("\n")
	}
	if len(window.KeyFacts) > 0 {
		sys.WriteString("Known facts about this conversation:\n")
		for _, f := range window.KeyFacts {
			sys.WriteString("- ")
			sys.WriteString(f.Text)
			sys.WriteString("\n")
		}
		sys.WriteString("\n")
	}
	if len(window.SelectedHistory) > 0 {
		sys.WriteString("Relevant earlier messages:\n")
		for _, p := range window.SelectedHistory {
			sys.WriteString("- ")
			sys.WriteString(p.Message.Content)
			sys.WriteString("\n")
		}
		sys.WriteString("\n")
	}
	if window.ContextExplanation != "" {
		sys.WriteString(window.ContextExplanation)
	}

	var out []llm.Message
	if sys.Len() > 0 {
		out = append(out, llm.NewSystemMessage(strings.TrimSpace(sys.String())))
	}
	for _, m := range window.RecentMessages {
		switch m.Role {
		case chatmodel.RoleUser:
			out = append(out, llm.NewUserMessage(m.Content))
		case chatmodel.RoleAssistant:
			out = append(out, llm.NewAssistantMessage(m.Content))
		case chatmodel.RoleSystem:
			out = append(out, llm.NewSystemMessage(m.Content))
		}
	}
	return out
}
