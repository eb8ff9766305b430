package llm

import "context"

// ChatOptions controls a single Chat/ChatStream call. Zero values mean
// "let the provider default apply" except where noted.
type ChatOptions struct {
	Model               string
	Temperature         float32
	TopP                float32
	MaxTokens           int
	MaxCompletionTokens int // takes precedence over MaxTokens when set
	Stop                []string
	Tools               []Tool
	Functions           []Function
	ToolChoice          any // "auto" | "required" | "none", provider-specific otherwise
	ResponseFormat      *ResponseFormat
	Metadata            map[string]string
}

// Option mutates a ChatOptions. Providers apply a provider-specific default
// ChatOptions first, then fold every Option over it in order.
type Option func(*ChatOptions)

// DefaultOptions returns the baseline ChatOptions every provider starts from.
func DefaultOptions() *ChatOptions {
	return &ChatOptions{
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(o *ChatOptions) { o.Model = model }
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *ChatOptions) { o.Temperature = t }
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

// WithTools attaches callable tool schemas to the request.
func WithTools(tools ...Tool) Option {
	return func(o *ChatOptions) { o.Tools = tools }
}

// WithToolChoice controls whether/which tool the model must call.
func WithToolChoice(choice any) Option {
	return func(o *ChatOptions) { o.ToolChoice = choice }
}

// WithStop sets stop sequences.
func WithStop(sequences ...string) Option {
	return func(o *ChatOptions) { o.Stop = sequences }
}

// FinishReason normalizes why a provider stopped generating.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishContent   FinishReason = "content_filter"
)

// Response is the normalized result of a non-streaming Chat call.
type Response struct {
	Message      Message
	Usage        Usage
	FinishReason FinishReason
	Model        string
}

// Stream yields incremental assistant message deltas. Next returns io.EOF
// when the stream is exhausted. Implementations accumulate tool-call
// argument fragments across Next calls exactly as the delta arrives from
// the upstream provider; callers merge deltas with MergeToolCallDelta.
type Stream interface {
	Next() (Message, error)
	Close() error
}

// Client is the uniform contract every provider adapter implements.
type Client interface {
	// Name identifies the backend ("anthropic", "openai", "gemini", ...).
	Name() string

	Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error)
	ChatStream(ctx context.Context, messages []Message, opts ...Option) (Stream, error)
}

// MergeToolCallDelta folds an incoming partial tool call into an
// accumulator slice, matching by ID when present and otherwise appending
// to the last entry — the same merge rule streaming providers need when
// tool-call arguments arrive split across multiple deltas.
func MergeToolCallDelta(acc []ToolCall, delta ToolCall) []ToolCall {
	if delta.ID != "" {
		for i := range acc {
			if acc[i].ID == delta.ID {
				acc[i].Function.Arguments += delta.Function.Arguments
				if delta.Function.Name != "" {
					acc[i].Function.Name = delta.Function.Name
				}
				return acc
			}
		}
		return append(acc, delta)
	}

	if len(acc) == 0 {
		return append(acc, delta)
	}
	last := &acc[len(acc)-1]
	last.Function.Arguments += delta.Function.Arguments
	if delta.Function.Name != "" {
		last.Function.Name = delta.Function.Name
	}
	return acc
}
