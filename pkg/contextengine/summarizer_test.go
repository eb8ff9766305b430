package contextengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
)

func TestExtractiveSummarizer_JoinsFirstAndLast(t *testing.T) {
	s := contextengine.NewExtractiveSummarizer()
	now := time.Now()
	msgs := []chatmodel.Message{
		{ID: 1, Content: "We decided to launch in March.", Timestamp: now},
		{ID: 2, Content: "Filler turn.", Timestamp: now.Add(time.Minute)},
		{ID: 3, Content: "Budget was approved at $50k.", Timestamp: now.Add(2 * time.Minute)},
	}

	summary, err := s.Summarize(context.Background(), "chat-1", msgs)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.MessageRangeFrom != 1 || summary.MessageRangeTo != 3 {
		t.Fatalf("expected range [1,3], got [%d,%d]", summary.MessageRangeFrom, summary.MessageRangeTo)
	}
	if summary.Text == "" {
		t.Fatalf("expected non-empty summary text")
	}
}

func TestExtractiveSummarizer_EmptyInput(t *testing.T) {
	s := contextengine.NewExtractiveSummarizer()
	summary, err := s.Summarize(context.Background(), "chat-1", nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Text != "" {
		t.Fatalf("expected an empty summary for no input, got %+v", summary)
	}
}

func TestAddMessage_TriggersSummarizationPastThreshold(t *testing.T) {
	ctx := context.Background()
	cfg := contextengine.Config{MaxRecentMessages: 2, SummarizationThreshold: 3, MaxContextTokens: 10000}
	store := contextengine.NewStore()
	e := contextengine.New(store, nil, nil, nil, cfg)
	e.CreateConversation(ctx, "chat-1", "owner", "t")

	for i := 0; i < 5; i++ {
		if _, err := e.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "turn", nil); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	window, err := e.GetOptimizedContext(ctx, "chat-1", "")
	if err != nil {
		t.Fatalf("GetOptimizedContext: %v", err)
	}
	if len(window.Summaries) == 0 {
		t.Fatalf("expected older messages to have been summarized once the threshold was crossed")
	}
	if len(window.RecentMessages) != 2 {
		t.Fatalf("expected the configured recent window to remain 2, got %d", len(window.RecentMessages))
	}
}
