package chatflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/ai/llm"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/llmgateway/toolx"
)

type fakeStream struct {
	chunks []llm.Message
	i      int
}

func (f *fakeStream) Next() (llm.Message, error) {
	if f.i >= len(f.chunks) {
		return llm.Message{}, io.EOF
	}
	m := f.chunks[f.i]
	f.i++
	return m, nil
}

func (f *fakeStream) Close() error { return nil }

func TestConsumeStream_ForwardsTextAndAssemblesMessage(t *testing.T) {
	stream := &fakeStream{chunks: []llm.Message{{Content: "Hel"}, {Content: "lo"}}}
	var got []string
	msg, err := consumeStream(stream, func(e StreamEvent) {
		if e.Type == EventText {
			got = append(got, e.Content)
		}
	})
	if err != nil {
		t.Fatalf("consumeStream: %v", err)
	}
	if msg.Content != "Hello" {
		t.Fatalf("expected assembled content %q, got %q", "Hello", msg.Content)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 text events, got %d", len(got))
	}
}

func TestConsumeStream_CapturesToolCalls(t *testing.T) {
	tc := []llm.ToolCall{{ID: "1", Function: llm.FunctionCall{Name: "search", Arguments: `{"q":"go"}`}}}
	stream := &fakeStream{chunks: []llm.Message{{ToolCalls: tc}}}
	msg, err := consumeStream(stream, func(StreamEvent) {})
	if err != nil {
		t.Fatalf("consumeStream: %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "search" {
		t.Fatalf("expected tool call preserved, got %+v", msg.ToolCalls)
	}
}

func TestConsumeStream_PropagatesNonEOFError(t *testing.T) {
	stream := &erroringStream{err: errors.New("boom")}
	_, err := consumeStream(stream, func(StreamEvent) {})
	if err == nil {
		t.Fatalf("expected the stream error to propagate")
	}
}

type erroringStream struct{ err error }

func (e *erroringStream) Next() (llm.Message, error) { return llm.Message{}, e.err }
func (e *erroringStream) Close() error               { return nil }

func TestExecuteTools_EmitsCallAndResultEvents(t *testing.T) {
	tools := toolx.New()
	tools.Register("echo", "echoes input", nil, func(_ context.Context, args map[string]any) (string, error) {
		return "echoed", nil
	})

	var types []StreamEventType
	results, err := executeTools(context.Background(), tools, []llm.ToolCall{
		{ID: "tc-1", Function: llm.FunctionCall{Name: "echo", Arguments: "{}"}},
	}, func(e StreamEvent) { types = append(types, e.Type) })
	if err != nil {
		t.Fatalf("executeTools: %v", err)
	}
	if len(results) != 1 || results[0].Content != "echoed" {
		t.Fatalf("unexpected tool result: %+v", results)
	}
	if len(types) != 2 || types[0] != EventToolCall || types[1] != EventToolResult {
		t.Fatalf("expected call-then-result events, got %v", types)
	}
}

func TestBuildMessages_SystemMessageCarriesSummariesFactsAndPicks(t *testing.T) {
	window := chatmodel.ContextWindow{
		Summaries: []chatmodel.Summary{{Text: "They discussed a June trip to Italy."}},
		KeyFacts:  []chatmodel.KeyFact{{Text: "User prefers budget travel."}},
		SelectedHistory: []chatmodel.HistoricalPick{
			{Message: chatmodel.Message{Content: "I have a flexible schedule in June."}},
		},
		RecentMessages: []chatmodel.Message{
			{Role: chatmodel.RoleUser, Content: "What about flights?"},
		},
	}

	msgs := buildMessages(window, "You are a helpful travel assistant.")
	if len(msgs) != 2 {
		t.Fatalf("expected a system message plus one recent message, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Fatalf("expected first message to be system, got %q", msgs[0].Role)
	}
	for _, want := range []string{"June trip to Italy", "budget travel", "flexible schedule", "helpful travel assistant"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Fatalf("expected system message to mention %q, got %q", want, msgs[0].Content)
		}
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "What about flights?" {
		t.Fatalf("unexpected recent message: %+v", msgs[1])
	}
}

func TestBuildMessages_NoSystemMessageWhenWindowIsEmpty(t *testing.T) {
	msgs := buildMessages(chatmodel.ContextWindow{}, "")
	if len(msgs) != 0 {
		t.Fatalf("expected no messages for an empty window, got %d", len(msgs))
	}
}

func TestRetryRateLimited_HonorsRetryAfterHintExactlyOnce(t *testing.T) {
	rateLimitErr := errx.New("rate limited", errx.TypeRateLimit).WithDetail("retry_after_seconds", 0.01)

	var calls int
	start := time.Now()
	resp, err := retryRateLimited(context.Background(), rateLimitErr, func(context.Context) (llm.Response, error) {
		calls++
		return llm.Response{Message: llm.Message{Content: "ok"}}, nil
	})
	if err != nil {
		t.Fatalf("retryRateLimited: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one retry call, got %d", calls)
	}
	if resp.Message.Content != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("expected retryRateLimited to wait for the hinted delay, only waited %v", elapsed)
	}
}

func TestRetryRateLimited_FallsBackToDefaultDelayWithNoHint(t *testing.T) {
	rateLimitErr := errx.New("rate limited", errx.TypeRateLimit)

	var calls int
	resp, err := retryRateLimited(context.Background(), rateLimitErr, func(ctx context.Context) (llm.Response, error) {
		calls++
		return llm.Response{}, errors.New("still rate limited")
	})
	if err == nil {
		t.Fatalf("expected the single retry's own failure to surface, got a response: %+v", resp)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one retry call even on failure, got %d", calls)
	}
}

func TestRetryRateLimited_StopsWaitingOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rateLimitErr := errx.New("rate limited", errx.TypeRateLimit).WithDetail("retry_after_seconds", 60)
	_, err := retryRateLimited(ctx, rateLimitErr, func(context.Context) (llm.Response, error) {
		t.Fatal("fn should not be called once the context is already cancelled")
		return llm.Response{}, nil
	})
	if err == nil {
		t.Fatal("expected context cancellation to surface as an error")
	}
}

func TestRetryTransient_ExponentialBackoffAcrossAttempts(t *testing.T) {
	overloadedErr := errx.New("overloaded", errx.TypeTransient)
	overloadedErr.Code = "API_OVERLOADED"

	var calls int
	_, err := retryTransient(context.Background(), 3, time.Millisecond, func(context.Context) (llm.Response, error) {
		calls++
		return llm.Response{}, overloadedErr
	})
	if err == nil {
		t.Fatal("expected the final failure to surface after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryTransient_NonRetryableCategoryStopsImmediately(t *testing.T) {
	authErr := errx.New("bad key", errx.TypeAuthorization)

	var calls int
	_, err := retryTransient(context.Background(), 3, time.Millisecond, func(context.Context) (llm.Response, error) {
		calls++
		return llm.Response{}, authErr
	})
	if err == nil {
		t.Fatal("expected the authorization error to surface")
	}
	if calls != 1 {
		t.Fatalf("expected a non-retryable category to stop after 1 call, got %d", calls)
	}
}

func TestBuildOptions_ForcesToolChoiceNoneAfterAutoLimit(t *testing.T) {
	tools := toolx.New()
	tools.Register("noop", "does nothing", nil, func(context.Context, map[string]any) (string, error) { return "", nil })
	o := &Orchestrator{tools: tools, cfg: Config{MaxAutoToolIterations: 2}}

	if len(o.buildOptions(0)) == 0 {
		t.Fatalf("expected tool options to be attached")
	}
	// iterations past the auto limit still attach options (tool_choice=none),
	// just with calling disabled; we only assert it doesn't panic and returns
	// a non-nil slice.
	if opts := o.buildOptions(5); len(opts) == 0 {
		t.Fatalf("expected options even past the auto-iteration limit")
	}
}
