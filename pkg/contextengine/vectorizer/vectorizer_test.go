package vectorizer_test

import (
	"context"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/ai/embedding"
	"github.com/contextgate/gateway/pkg/ai/vstore"
	"github.com/contextgate/gateway/pkg/ai/vstore/providers/vstmemory"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
)

type fakeStore struct {
	byChat map[string][]chatmodel.Message
}

func (f *fakeStore) GetMessage(_ context.Context, chatID string, msgID int64) (*chatmodel.Message, error) {
	for _, m := range f.byChat[chatID] {
		if m.ID == msgID {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func newVectorizer(t *testing.T, store *fakeStore) *vectorizer.Vectorizer {
	t.Helper()
	dims := 16
	client := vstore.NewClient(vstmemory.NewMemoryVectorStore(dims, vstore.MetricCosine))
	embedder := embedding.NewDeterministicEmbedder(dims)
	return vectorizer.New(client, embedder, store, dims)
}

func TestExtractEntities(t *testing.T) {
	text := "I met John Smith on 3/4/2024 at 10:30am, it cost $19.99. NASA was there."
	entities := vectorizer.ExtractEntities(text)

	want := map[string]bool{
		"John Smith": true,
		"3/4/2024":   true,
		"$19.99":     true,
		"NASA":       true,
	}
	got := map[string]bool{}
	for _, e := range entities {
		got[e] = true
	}
	for w := range want {
		if !got[w] {
			t.Errorf("expected entity %q in %v", w, entities)
		}
	}
}

func TestExtractTopics(t *testing.T) {
	topics := vectorizer.ExtractTopics("Let's train a neural network on this dataset.")
	found := false
	for _, topic := range topics {
		if topic == "machine learning" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected machine learning topic, got %v", topics)
	}
}

func TestExtractTopics_NoMatch(t *testing.T) {
	topics := vectorizer.ExtractTopics("asdf qwer zxcv")
	if len(topics) != 0 {
		t.Fatalf("expected no topics, got %v", topics)
	}
}

func TestEntityOverlap_EmptyIsZero(t *testing.T) {
	if got := vectorizer.EntityOverlap(nil, []string{"a"}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := vectorizer.EntityOverlap([]string{"a"}, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestEntityOverlap_Jaccard(t *testing.T) {
	got := vectorizer.EntityOverlap([]string{"a", "b"}, []string{"b", "c"})
	if got != 1.0/3.0 {
		t.Fatalf("expected 1/3, got %v", got)
	}
}

func TestTopicSimilarity_EmptyIsZero(t *testing.T) {
	if got := vectorizer.TopicSimilarity(nil, []string{"a"}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestTopicSimilarity_IntersectionOverMax(t *testing.T) {
	got := vectorizer.TopicSimilarity([]string{"a", "b"}, []string{"a", "b", "c"})
	if got != 2.0/3.0 {
		t.Fatalf("expected 2/3, got %v", got)
	}
}

func TestAnalyzeQuery_ClassifiesIntent(t *testing.T) {
	v := newVectorizer(t, &fakeStore{byChat: map[string][]chatmodel.Message{}})
	ctx := context.Background()

	cases := map[string]vectorizer.Intent{
		"What time is the meeting?":     vectorizer.IntentQuestion,
		"Can you send the file?":        vectorizer.IntentRequest,
		"I don't understand":            vectorizer.IntentClarification,
		"And also bring the laptop":     vectorizer.IntentContinuation,
		"Launching the new rocket plan": vectorizer.IntentNewTopic,
	}
	for text, want := range cases {
		qa, err := v.AnalyzeQuery(ctx, text)
		if err != nil {
			t.Fatalf("AnalyzeQuery(%q): %v", text, err)
		}
		if qa.Intent != want {
			t.Errorf("AnalyzeQuery(%q) intent = %v, want %v", text, qa.Intent, want)
		}
	}
}

func TestVectorizeMessageAndFindSimilar(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byChat: map[string][]chatmodel.Message{}}
	v := newVectorizer(t, store)

	msg := chatmodel.Message{
		ID:        1,
		ChatID:    "chat-1",
		Role:      chatmodel.RoleUser,
		Content:   "Let's plan a trip to New York next week",
		Timestamp: time.Now(),
	}
	if err := v.VectorizeMessage(ctx, &msg); err != nil {
		t.Fatalf("VectorizeMessage: %v", err)
	}
	if len(msg.Metadata.Entities) == 0 {
		t.Fatalf("expected entities to be set on message")
	}
	store.byChat["chat-1"] = []chatmodel.Message{msg}

	qa, err := v.AnalyzeQuery(ctx, "What's the plan for the New York trip?")
	if err != nil {
		t.Fatalf("AnalyzeQuery: %v", err)
	}

	similar, err := v.FindSimilarMessages(ctx, "chat-1", qa, 5)
	if err != nil {
		t.Fatalf("FindSimilarMessages: %v", err)
	}
	if len(similar) != 1 || similar[0].Message.ID != 1 {
		t.Fatalf("expected to find message 1, got %+v", similar)
	}
	if similar[0].Similarity < 0 || similar[0].Similarity > 1 {
		t.Fatalf("similarity out of [0,1] range: %v", similar[0].Similarity)
	}
}

func TestFindSimilarMessages_FiltersOtherChats(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byChat: map[string][]chatmodel.Message{}}
	v := newVectorizer(t, store)

	msg := chatmodel.Message{ID: 1, ChatID: "other-chat", Role: chatmodel.RoleUser, Content: "hello there"}
	if err := v.VectorizeMessage(ctx, &msg); err != nil {
		t.Fatalf("VectorizeMessage: %v", err)
	}
	store.byChat["other-chat"] = []chatmodel.Message{msg}

	qa, _ := v.AnalyzeQuery(ctx, "hello there")
	similar, err := v.FindSimilarMessages(ctx, "chat-1", qa, 5)
	if err != nil {
		t.Fatalf("FindSimilarMessages: %v", err)
	}
	if len(similar) != 0 {
		t.Fatalf("expected no matches from a different chat, got %+v", similar)
	}
}
