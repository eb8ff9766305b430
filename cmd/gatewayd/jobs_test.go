package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/ai/embedding"
	"github.com/contextgate/gateway/pkg/ai/vstore"
	"github.com/contextgate/gateway/pkg/ai/vstore/providers/vstmemory"
	"github.com/contextgate/gateway/pkg/chatflow"
	"github.com/contextgate/gateway/pkg/config"
	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/contextengine/bayesian"
	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
	"github.com/contextgate/gateway/pkg/jobx"
	"github.com/contextgate/gateway/pkg/metrics"
	"github.com/contextgate/gateway/pkg/sharedcache"
)

// newTestContainer wires a Container against the in-memory vector store and
// a nil-backend cache, so these tests need no Redis or Postgres.
func newTestContainer(t *testing.T) *Container {
	t.Helper()

	dim := 8
	store := contextengine.NewStore()
	embedder := embedding.NewDeterministicEmbedder(dim)
	vs := vstore.NewClient(vstmemory.NewMemoryVectorStore(dim, vstore.MetricCosine))
	vec := vectorizer.New(vs, embedder, store, dim)
	bay := bayesian.New(vec, store, bayesian.DefaultConfig())
	engine := contextengine.New(store, vec, bay, nil, contextengine.Config{
		MaxRecentMessages:      50,
		SummarizationThreshold: 100,
		MaxContextTokens:       4000,
	})

	return &Container{
		Config: &config.Config{
			SharedCache: config.SharedCacheConfig{SweepInterval: 10 * time.Millisecond},
		},
		Store:   store,
		Engine:  engine,
		Cache:   sharedcache.New(sharedcache.DefaultConfig(), nil),
		Metrics: metrics.New(),
	}
}

func contextWithImmediateCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func TestHandlePublishConversation(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	if _, err := c.Engine.CreateConversation(ctx, "chat-1", "owner-1", "Trip planning"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if _, err := c.Engine.AddMessage(ctx, "chat-1", chatmodel.RoleUser, "where should we go in July?", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := c.Engine.AddMessage(ctx, "chat-1", chatmodel.RoleAssistant, "how about the coast?", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	payload, err := json.Marshal(publishConversationPayload{
		ShareID: "share-1",
		ChatID:  "chat-1",
		Title:   "Trip planning",
		TTL:     time.Hour,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	if err := c.handlePublishConversation(ctx, &jobx.JobInfo{Payload: payload}); err != nil {
		t.Fatalf("handlePublishConversation: %v", err)
	}

	got, err := c.Cache.Get(ctx, "share-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ShareID != "share-1" || got.ChatID != "chat-1" || got.Title != "Trip planning" {
		t.Fatalf("unexpected published conversation: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Messages len = %d, want 2", len(got.Messages))
	}
}

func TestHandlePublishConversation_UnknownChat(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	payload, _ := json.Marshal(publishConversationPayload{ShareID: "share-x", ChatID: "missing", TTL: time.Hour})
	if err := c.handlePublishConversation(ctx, &jobx.JobInfo{Payload: payload}); err == nil {
		t.Fatal("expected error for unknown chat id, got nil")
	}
}

func TestHandlePublishConversation_BadPayload(t *testing.T) {
	c := newTestContainer(t)
	if err := c.handlePublishConversation(context.Background(), &jobx.JobInfo{Payload: []byte("not json")}); err == nil {
		t.Fatal("expected error for malformed payload, got nil")
	}
}

// fakeQueue is a minimal jobx.Queue that records enqueued jobs, letting
// PublishConversation be tested without a real Redis-backed queue.
type fakeQueue struct {
	enqueued []jobx.Job
}

func (f *fakeQueue) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	f.enqueued = append(f.enqueued, job)
	return "job-1", nil
}
func (f *fakeQueue) EnqueueDelayed(_ context.Context, job jobx.Job, _ time.Duration) (string, error) {
	f.enqueued = append(f.enqueued, job)
	return "job-1", nil
}
func (f *fakeQueue) GetJob(_ context.Context, _ string) (*jobx.JobInfo, error) { return nil, nil }
func (f *fakeQueue) Dequeue(_ context.Context, _ []string, _ time.Duration) (*jobx.JobInfo, error) {
	return nil, nil
}
func (f *fakeQueue) Complete(_ context.Context, _ string, _ []byte) error     { return nil }
func (f *fakeQueue) Fail(_ context.Context, _ string, _ string) (bool, error) { return false, nil }
func (f *fakeQueue) Retry(_ context.Context, _ string, _ time.Duration) error { return nil }
func (f *fakeQueue) PromoteScheduled(_ context.Context, _ []string) error     { return nil }

func TestPublishConversation_Enqueues(t *testing.T) {
	queue := &fakeQueue{}
	c := &Container{Jobs: jobx.NewClient(queue)}

	shareID, err := c.PublishConversation(context.Background(), "chat-1", "Trip planning", time.Hour)
	if err != nil {
		t.Fatalf("PublishConversation: %v", err)
	}
	if shareID == "" {
		t.Fatal("expected a non-empty share id")
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(queue.enqueued))
	}

	job := queue.enqueued[0]
	if job.Type != jobTypePublishConversation {
		t.Fatalf("job.Type = %q, want %q", job.Type, jobTypePublishConversation)
	}

	var p publishConversationPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.ShareID != shareID || p.ChatID != "chat-1" || p.Title != "Trip planning" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

var _ chatflow.MetricsRecorder = (*metrics.Recorder)(nil)
