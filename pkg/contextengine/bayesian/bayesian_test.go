package bayesian_test

import (
	"context"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/ai/embedding"
	"github.com/contextgate/gateway/pkg/ai/vstore"
	"github.com/contextgate/gateway/pkg/ai/vstore/providers/vstmemory"
	"github.com/contextgate/gateway/pkg/contextengine/bayesian"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
)

type fakeStore struct {
	byChat map[string][]chatmodel.Message
}

func (f *fakeStore) GetMessage(_ context.Context, chatID string, msgID int64) (*chatmodel.Message, error) {
	for i := range f.byChat[chatID] {
		if f.byChat[chatID][i].ID == msgID {
			cp := f.byChat[chatID][i]
			return &cp, nil
		}
	}
	return nil, nil
}

type refCounter struct {
	counts map[int64]int
}

func (r *refCounter) IncrementTimesReferenced(_ context.Context, _ string, msgID int64) error {
	if r.counts == nil {
		r.counts = map[int64]int{}
	}
	r.counts[msgID]++
	return nil
}

func setup(t *testing.T) (*vectorizer.Vectorizer, *fakeStore) {
	t.Helper()
	dims := 16
	client := vstore.NewClient(vstmemory.NewMemoryVectorStore(dims, vstore.MetricCosine))
	embedder := embedding.NewDeterministicEmbedder(dims)
	store := &fakeStore{byChat: map[string][]chatmodel.Message{}}
	return vectorizer.New(client, embedder, store, dims), store
}

func TestAnalyze_SelectsAndRanksCandidates(t *testing.T) {
	ctx := context.Background()
	v, store := setup(t)
	updater := &refCounter{}
	mgr := bayesian.New(v, updater, bayesian.DefaultConfig())

	base := time.Now().Add(-2 * time.Hour)
	msgs := []chatmodel.Message{
		{ID: 1, ChatID: "c1", Role: chatmodel.RoleUser, Content: "Let's book a flight to Paris for the trip", Timestamp: base, Importance: 0.9, TokenCount: 10},
		{ID: 2, ChatID: "c1", Role: chatmodel.RoleAssistant, Content: "Sure, I can help with weather forecasts too", Timestamp: base.Add(10 * time.Minute), Importance: 0.5, TokenCount: 10},
	}
	for i := range msgs {
		if err := v.VectorizeMessage(ctx, &msgs[i]); err != nil {
			t.Fatalf("VectorizeMessage: %v", err)
		}
	}
	store.byChat["c1"] = msgs

	analysis := mgr.Analyze(ctx, "c1", "What's the status of the Paris trip?")
	if analysis.Degraded {
		t.Fatalf("expected a non-degraded analysis, got note %q", analysis.Note)
	}
	if len(analysis.Selected) == 0 {
		t.Fatalf("expected at least one selected message")
	}
	for i, p := range analysis.Selected {
		if p.Rank != i+1 {
			t.Errorf("pick %d has rank %d, want %d", i, p.Rank, i+1)
		}
		if p.Probability < 0 || p.Probability > 1 {
			t.Errorf("probability out of range: %v", p.Probability)
		}
	}
	for i := 1; i < len(analysis.Selected); i++ {
		if analysis.Selected[i].Probability > analysis.Selected[i-1].Probability {
			t.Fatalf("selected picks not sorted descending by probability")
		}
	}
}

func TestAnalyze_EmptyHistoryYieldsNote(t *testing.T) {
	ctx := context.Background()
	v, _ := setup(t)
	mgr := bayesian.New(v, nil, bayesian.DefaultConfig())

	analysis := mgr.Analyze(ctx, "empty-chat", "anything at all")
	if len(analysis.Selected) != 0 {
		t.Fatalf("expected no selections for an empty history")
	}
	if analysis.Note == "" {
		t.Fatalf("expected an explanatory note")
	}
}

func TestAnalyze_BumpsTimesReferencedOnHighConfidencePicks(t *testing.T) {
	ctx := context.Background()
	v, store := setup(t)
	updater := &refCounter{}
	cfg := bayesian.DefaultConfig()
	cfg.MinRelevanceProbability = 0
	mgr := bayesian.New(v, updater, cfg)

	msg := chatmodel.Message{ID: 1, ChatID: "c2", Role: chatmodel.RoleUser, Content: "The quarterly budget report is due Friday", Importance: 1.0, TokenCount: 10, Timestamp: time.Now()}
	if err := v.VectorizeMessage(ctx, &msg); err != nil {
		t.Fatalf("VectorizeMessage: %v", err)
	}
	msg.Metadata.UserMarked = true
	store.byChat["c2"] = []chatmodel.Message{msg}

	analysis := mgr.Analyze(ctx, "c2", "When is the quarterly budget report due?")
	if len(analysis.Selected) == 0 {
		t.Fatalf("expected a selection")
	}
	if analysis.Selected[0].Probability > 0.7 && updater.counts[1] != 1 {
		t.Fatalf("expected times-referenced bumped exactly once for a high-confidence pick, got %d", updater.counts[1])
	}
}

func TestDefaultWeights_SumToOne(t *testing.T) {
	ew := bayesian.DefaultEvidenceWeights()
	sum := ew.Semantic + ew.Temporal + ew.Entity + ew.Topic + ew.Interaction + ew.Continuity
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("evidence weights sum to %v, want 1", sum)
	}

	pw := bayesian.DefaultPriorWeights()
	psum := pw.BaseImportance + pw.MessageType + pw.Length + pw.Position + pw.UserMarked
	if diff := psum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("prior weights sum to %v, want 1", psum)
	}
}
