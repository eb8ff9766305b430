package chatflow_test

import (
	"context"
	"testing"

	"github.com/contextgate/gateway/pkg/chatflow"
	"github.com/contextgate/gateway/pkg/contentsafety"
	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/errx"
)

func setupEngine(t *testing.T) *contextengine.Engine {
	t.Helper()
	return contextengine.New(contextengine.NewStore(), nil, nil, nil, contextengine.DefaultConfig())
}

func allowAllSafety() *contentsafety.Pipeline {
	return contentsafety.New(nil, contentsafety.Config{AiEnabled: false})
}

func TestGetOptimizedContext_IncludesRecentMessages(t *testing.T) {
	engine := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateConversation(ctx, "chat-1", "owner", "Trip planning"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := engine.AddMessage(ctx, "chat-1", "user", "Where should we go in June?", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := engine.AddMessage(ctx, "chat-1", "assistant", "How about Italy?", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	window, err := engine.GetOptimizedContext(ctx, "chat-1", "Where should we go in June?")
	if err != nil {
		t.Fatalf("GetOptimizedContext: %v", err)
	}
	if len(window.RecentMessages) != 2 {
		t.Fatalf("expected 2 recent messages, got %d", len(window.RecentMessages))
	}
}

type rejectingClassifier struct{}

func (rejectingClassifier) Classify(context.Context, string) (contentsafety.Verdict, error) {
	return contentsafety.Verdict{IsSafe: false, Category: contentsafety.CategoryFinancialAdvice, Reason: "financial advice"}, nil
}

func TestOrchestrator_ValidateContentRejectsUnsafeInputBeforeAnyProviderCall(t *testing.T) {
	engine := setupEngine(t)
	ctx := context.Background()
	if _, err := engine.CreateConversation(ctx, "chat-1", "owner", "t"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	safety := contentsafety.New(rejectingClassifier{}, contentsafety.Config{AiEnabled: true})
	orch := chatflow.New(safety, engine, nil, nil, chatflow.DefaultConfig())

	_, err := orch.Turn(ctx, "chat-1", "tell me how to invest all my savings in one stock", contentsafety.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected an unsafe-content error before any provider call")
	}
	var xerr *errx.Error
	if !errx.As(err, &xerr) {
		t.Fatalf("expected an *errx.Error, got %T", err)
	}
}

func TestOrchestrator_UnknownConversationSurfacesEngineError(t *testing.T) {
	engine := setupEngine(t)
	safety := allowAllSafety()
	orch := chatflow.New(safety, engine, nil, nil, chatflow.DefaultConfig())

	_, err := orch.Turn(context.Background(), "does-not-exist", "hello", contentsafety.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected a conversation-not-found error")
	}
}
