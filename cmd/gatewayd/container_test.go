package main

import (
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/config"
)

func TestBayesianConfigFrom(t *testing.T) {
	cfg := config.ContextEngineConfig{
		TopKRelevant:      7,
		MinRelevanceScore: 0.42,
	}

	b := bayesianConfigFrom(cfg)

	if b.TopK != 7 {
		t.Fatalf("TopK = %d, want 7", b.TopK)
	}
	if b.MinRelevanceProbability != 0.42 {
		t.Fatalf("MinRelevanceProbability = %v, want 0.42", b.MinRelevanceProbability)
	}
	// Everything not carried over from cfg keeps the package default.
	if b.MaxHistorySize == 0 {
		t.Fatalf("MaxHistorySize should keep its default, got 0")
	}
}

func TestEngineConfigFrom(t *testing.T) {
	cfg := config.ContextEngineConfig{
		RecentToKeep:       12,
		SummarizeThreshold: 30,
		MaxContextTokens:   4096,
	}

	e := engineConfigFrom(cfg)

	if e.MaxRecentMessages != 12 {
		t.Fatalf("MaxRecentMessages = %d, want 12", e.MaxRecentMessages)
	}
	if e.SummarizationThreshold != 30 {
		t.Fatalf("SummarizationThreshold = %d, want 30", e.SummarizationThreshold)
	}
	if e.MaxContextTokens != 4096 {
		t.Fatalf("MaxContextTokens = %d, want 4096", e.MaxContextTokens)
	}
}

func TestReportCacheStatsStopsOnCancel(t *testing.T) {
	// reportCacheStats must return promptly once its context is cancelled,
	// rather than leak a goroutine blocked on the ticker forever.
	c := newTestContainer(t)

	done := make(chan struct{})
	ctx, cancel := contextWithImmediateCancel()
	go func() {
		c.reportCacheStats(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reportCacheStats did not return after context cancellation")
	}
}
