// cmd/gatewayd is the gateway's composition root. It owns infrastructure
// (Redis, the vector store's Postgres connection) and wires every
// subsystem package into one running process. No HTTP/WebSocket chat
// transport lives here — that is a caller's concern — but the process
// does serve a /metrics and /health surface for ops.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/contextgate/gateway/pkg/ai/embedding"
	"github.com/contextgate/gateway/pkg/ai/vstore"
	"github.com/contextgate/gateway/pkg/ai/vstore/providers/vstmemory"
	"github.com/contextgate/gateway/pkg/ai/vstore/providers/vstpgvector"
	"github.com/contextgate/gateway/pkg/chatflow"
	"github.com/contextgate/gateway/pkg/config"
	"github.com/contextgate/gateway/pkg/contentsafety"
	"github.com/contextgate/gateway/pkg/contextengine"
	"github.com/contextgate/gateway/pkg/contextengine/bayesian"
	"github.com/contextgate/gateway/pkg/contextengine/vectorizer"
	"github.com/contextgate/gateway/pkg/jobx"
	"github.com/contextgate/gateway/pkg/jobx/jobxredis"
	"github.com/contextgate/gateway/pkg/llmgateway/factory"
	"github.com/contextgate/gateway/pkg/llmgateway/toolx"
	"github.com/contextgate/gateway/pkg/logx"
	"github.com/contextgate/gateway/pkg/metrics"
	"github.com/contextgate/gateway/pkg/sharedcache"
	"github.com/redis/go-redis/v9"
)

// Container holds every wired subsystem. The only exported surface a
// transport layer needs is Orchestrator and Cache; the rest stay here so
// this file remains the one place that knows about all of them.
type Container struct {
	Config *config.Config

	Redis       *redis.Client
	pgVectorDB  *vstpgvector.PgVectorProvider // non-nil only when Provider == "pgvector"
	VectorStore *vstore.Client

	Embedder   embedding.Embedder
	Vectorizer *vectorizer.Vectorizer
	Bayesian   *bayesian.Manager

	Store  *contextengine.Store
	Engine *contextengine.Engine

	Factory *factory.Factory
	Tools   *toolx.Client
	Safety  *contentsafety.Pipeline
	Cache   *sharedcache.Cache
	Metrics *metrics.Recorder
	Jobs    *jobx.Client

	Orchestrator *chatflow.Orchestrator

	jobsCtx    context.Context
	jobsCancel context.CancelFunc
}

// NewContainer wires every subsystem from cfg. The returned Container is
// ready to serve turns; call StartBackgroundServices to launch its
// sweepers and workers.
func NewContainer(cfg *config.Config) (*Container, error) {
	logx.Info("🔧 initializing gateway container...")

	c := &Container{Config: cfg}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := c.initVectorStore(cfg); err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	logx.Infof("  ✅ vector store ready (provider=%s dim=%d)", cfg.VectorStore.Provider, cfg.VectorStore.Dimension)

	c.Embedder = embedding.NewDeterministicEmbedder(cfg.VectorStore.Dimension)
	c.Store = contextengine.NewStore()
	c.Vectorizer = vectorizer.New(c.VectorStore, c.Embedder, c.Store, cfg.VectorStore.Dimension)
	c.Bayesian = bayesian.New(c.Vectorizer, c.Store, bayesianConfigFrom(cfg.ContextEngine))
	c.Engine = contextengine.New(c.Store, c.Vectorizer, c.Bayesian, nil, engineConfigFrom(cfg.ContextEngine))
	logx.Info("  ✅ context engine wired (vectorizer + bayesian manager)")

	c.Factory = factory.New(cfg.Providers)
	c.Tools = toolx.New()

	var classifier contentsafety.Classifier
	if cfg.Safety.EnableLLMAssist {
		client, err := c.Factory.Default(context.Background())
		if err != nil {
			logx.WithError(err).Warn("safety: no default provider available, AI-assisted classification disabled")
		} else {
			classifier = contentsafety.NewLLMClassifier(client)
		}
	}
	c.Safety = contentsafety.New(classifier, contentsafety.Config{AiEnabled: classifier != nil})
	logx.Infof("  ✅ content safety pipeline ready (ai_enabled=%v)", classifier != nil)

	c.Cache = sharedcache.New(sharedcache.Config{
		MaxSize:       cfg.SharedCache.MaxEntries,
		DefaultTTL:    cfg.SharedCache.TTL,
		SweepInterval: cfg.SharedCache.SweepInterval,
	}, sharedcache.NewRedisBackend(c.Redis, "gatewayd"))
	logx.Info("  ✅ shared-conversation cache ready")

	c.Metrics = metrics.New()

	c.Jobs = jobx.NewClient(
		jobxredis.NewRedisQueue(c.Redis),
		jobx.WithQueues(cfg.Jobx.Queues...),
		jobx.WithConcurrency(cfg.Jobx.Concurrency),
		jobx.WithPollInterval(cfg.Jobx.PollInterval),
		jobx.WithShutdownTimeout(cfg.Jobx.ShutdownTimeout),
		jobx.WithDequeueTimeout(cfg.Jobx.DequeueTimeout),
		jobx.WithDefaultRetryDelay(cfg.Jobx.DefaultRetryDelay),
	)
	c.Jobs.Register(jobTypePublishConversation, c.handlePublishConversation)
	logx.Infof("  ✅ job queue wired (queues=%v concurrency=%d)", cfg.Jobx.Queues, cfg.Jobx.Concurrency)

	c.Orchestrator = chatflow.New(c.Safety, c.Engine, c.Factory, c.Tools, chatflow.Config{
		Metrics: c.Metrics,
	})

	logx.Info("✅ gateway container initialized")
	return c, nil
}

func (c *Container) initVectorStore(cfg *config.Config) error {
	switch cfg.VectorStore.Provider {
	case "pgvector":
		db, err := vstpgvector.ConnectSqlx(context.Background(), cfg.VectorStore.PostgresDSN, cfg.VectorStore.MaxConnections, cfg.VectorStore.ConnectionTimeout)
		if err != nil {
			return err
		}
		provider, perr := vstpgvector.NewPgVectorProviderFromDB(db, cfg.VectorStore.Dimension,
			vstpgvector.WithDimension(cfg.VectorStore.Dimension),
			vstpgvector.WithDistanceMetric(vstpgvector.DistanceMetric(cfg.VectorStore.Metric)),
			vstpgvector.WithMaxConnections(cfg.VectorStore.MaxConnections),
			vstpgvector.WithConnectionTimeout(cfg.VectorStore.ConnectionTimeout),
		)
		if perr != nil {
			return perr
		}
		c.pgVectorDB = provider
		c.VectorStore = vstore.NewClient(provider)
	default:
		store := vstmemory.NewMemoryVectorStore(cfg.VectorStore.Dimension, vstore.Metric(cfg.VectorStore.Metric))
		c.VectorStore = vstore.NewClient(store)
	}
	return nil
}

func bayesianConfigFrom(cfg config.ContextEngineConfig) bayesian.Config {
	b := bayesian.DefaultConfig()
	b.TopK = cfg.TopKRelevant
	b.MinRelevanceProbability = cfg.MinRelevanceScore
	return b
}

func engineConfigFrom(cfg config.ContextEngineConfig) contextengine.Config {
	return contextengine.Config{
		MaxRecentMessages:      cfg.RecentToKeep,
		SummarizationThreshold: cfg.SummarizeThreshold,
		MaxContextTokens:       cfg.MaxContextTokens,
	}
}

// StartBackgroundServices launches every subsystem's background loop.
// It returns immediately; everything it starts runs until ctx is
// cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 starting background services...")

	c.Cache.Start(ctx)

	jobsCtx, cancel := context.WithCancel(ctx)
	c.jobsCtx, c.jobsCancel = jobsCtx, cancel
	go func() {
		if err := c.Jobs.Start(jobsCtx); err != nil {
			logx.WithError(err).Error("jobx: worker pool exited with error")
		}
	}()

	go c.reportCacheStats(ctx)
}

func (c *Container) reportCacheStats(ctx context.Context) {
	ticker := time.NewTicker(c.Config.SharedCache.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.Cache.Stats()
			c.Metrics.ObserveCacheStats(metrics.CacheStats{
				HitRatePct: stats.HitRatePct,
				TotalKeys:  stats.TotalKeys,
			})
		}
	}
}

// Cleanup tears down everything NewContainer built, in reverse order.
func (c *Container) Cleanup() {
	logx.Info("🧹 cleaning up gateway resources...")

	if c.jobsCancel != nil {
		c.jobsCancel()
	}
	c.Cache.Stop()

	if c.pgVectorDB != nil {
		if err := c.pgVectorDB.Close(); err != nil {
			logx.WithError(err).Error("error closing pgvector connection")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.WithError(err).Error("error closing redis connection")
		} else {
			logx.Info("  ✅ redis connection closed")
		}
	}

	logx.Info("✅ cleanup complete")
}
