package contextengine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
)

func newEngine(cfg contextengine.Config) *contextengine.Engine {
	store := contextengine.NewStore()
	return contextengine.New(store, nil, nil, nil, cfg)
}

func TestCreateConversationAndAddMessage(t *testing.T) {
	ctx := context.Background()
	e := newEngine(contextengine.DefaultConfig())

	if _, err := e.CreateConversation(ctx, "chat-1", "owner-1", "Trip planning"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	msg, err := e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "Should we book the flight now?", nil)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.ID != 1 {
		t.Fatalf("expected first message id 1, got %d", msg.ID)
	}
	if msg.Importance <= 0.5 {
		t.Fatalf("expected a question from a user to score above the 0.5 base, got %v", msg.Importance)
	}
	if msg.TokenCount <= 0 {
		t.Fatalf("expected a positive token count")
	}
}

func TestAddMessage_UnknownConversation(t *testing.T) {
	e := newEngine(contextengine.DefaultConfig())
	_, err := e.AddMessage(context.Background(), "missing", chatmodel.RoleUser, "hi", nil)
	if err == nil {
		t.Fatalf("expected an error for an unknown conversation")
	}
}

func TestAddMessage_ExplicitImportanceOverridesCues(t *testing.T) {
	ctx := context.Background()
	e := newEngine(contextengine.DefaultConfig())
	e.CreateConversation(ctx, "chat-1", "owner", "t")

	want := 0.2
	msg, err := e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "urgent! decide now!", &want)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.Importance != want {
		t.Fatalf("expected explicit importance %v, got %v", want, msg.Importance)
	}
}

func TestMarkMessageImportant(t *testing.T) {
	ctx := context.Background()
	e := newEngine(contextengine.DefaultConfig())
	e.CreateConversation(ctx, "chat-1", "owner", "t")
	low := 0.3
	msg, _ := e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "note", &low)

	if err := e.MarkMessageImportant(ctx, "chat-1", msg.ID, true); err != nil {
		t.Fatalf("MarkMessageImportant: %v", err)
	}
	window, _ := e.GetOptimizedContext(ctx, "chat-1", "")
	if window.RecentMessages[0].Importance < 0.8 {
		t.Fatalf("expected importance raised to at least 0.8, got %v", window.RecentMessages[0].Importance)
	}

	if err := e.MarkMessageImportant(ctx, "chat-1", msg.ID, false); err != nil {
		t.Fatalf("MarkMessageImportant unmark: %v", err)
	}
	window, _ = e.GetOptimizedContext(ctx, "chat-1", "")
	if window.RecentMessages[0].Importance >= 0.8 {
		t.Fatalf("expected importance halved after unmarking, got %v", window.RecentMessages[0].Importance)
	}
}

func TestAddKeyFact(t *testing.T) {
	ctx := context.Background()
	e := newEngine(contextengine.DefaultConfig())
	e.CreateConversation(ctx, "chat-1", "owner", "t")

	fact, err := e.AddKeyFact(ctx, "chat-1", "User prefers aisle seats", chatmodel.KeyFactPreference, nil)
	if err != nil {
		t.Fatalf("AddKeyFact: %v", err)
	}
	if fact.ID == "" {
		t.Fatalf("expected a generated id")
	}

	window, err := e.GetOptimizedContext(ctx, "chat-1", "")
	if err != nil {
		t.Fatalf("GetOptimizedContext: %v", err)
	}
	if len(window.KeyFacts) != 1 || window.KeyFacts[0].Text != "User prefers aisle seats" {
		t.Fatalf("expected the key fact to appear in the context window, got %+v", window.KeyFacts)
	}
}

func TestGetOptimizedContext_RecentMessagesAlwaysPresent(t *testing.T) {
	ctx := context.Background()
	cfg := contextengine.DefaultConfig()
	cfg.MaxRecentMessages = 3
	cfg.MaxContextTokens = 1 // force aggressive shedding of everything else
	e := newEngine(cfg)
	e.CreateConversation(ctx, "chat-1", "owner", "t")

	for i := 0; i < 5; i++ {
		if _, err := e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, strings.Repeat("word ", 20), nil); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	window, err := e.GetOptimizedContext(ctx, "chat-1", "")
	if err != nil {
		t.Fatalf("GetOptimizedContext: %v", err)
	}
	if len(window.RecentMessages) != 3 {
		t.Fatalf("expected 3 recent messages regardless of the token budget, got %d", len(window.RecentMessages))
	}
}

func TestGetOptimizedContext_ShedsKeyFactsBeforeRecent(t *testing.T) {
	ctx := context.Background()
	cfg := contextengine.DefaultConfig()
	cfg.MaxContextTokens = 5
	e := newEngine(cfg)
	e.CreateConversation(ctx, "chat-1", "owner", "t")
	e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "hi", nil)
	e.AddKeyFact(ctx, "chat-1", strings.Repeat("fact ", 50), chatmodel.KeyFactFact, nil)

	window, err := e.GetOptimizedContext(ctx, "chat-1", "")
	if err != nil {
		t.Fatalf("GetOptimizedContext: %v", err)
	}
	if len(window.KeyFacts) != 0 {
		t.Fatalf("expected the oversized key fact to be shed under a tiny budget, got %+v", window.KeyFacts)
	}
	if len(window.RecentMessages) != 1 {
		t.Fatalf("expected the recent message to survive regardless, got %+v", window.RecentMessages)
	}
}

func TestGetOptimizedContext_UnknownConversation(t *testing.T) {
	e := newEngine(contextengine.DefaultConfig())
	_, err := e.GetOptimizedContext(context.Background(), "missing", "")
	if err == nil {
		t.Fatalf("expected an error for an unknown conversation")
	}
}
