package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contextgate/gateway/pkg/config"
	"github.com/contextgate/gateway/pkg/logx"
	"github.com/contextgate/gateway/pkg/metrics"
)

func main() {
	logLevel := getEnv("LOG_LEVEL", "info")
	switch logLevel {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("🚀 starting contextgate gateway...")

	cfg, err := config.Load(getEnv("GATEWAYD_CONFIG", ""))
	if err != nil {
		logx.Fatalf("failed to load config: %v", err)
	}

	container, err := NewContainer(cfg)
	if err != nil {
		logx.Fatalf("failed to initialize container: %v", err)
	}
	defer container.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.StartBackgroundServices(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler(container))

	server := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
	go func() {
		logx.Infof("💚 ops surface listening on %s (/metrics, /health)", cfg.Server.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatalf("ops server error: %v", err)
		}
	}()

	<-ctx.Done()
	logx.Info("🛑 shutdown signal received, stopping gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.WithError(err).Error("ops server forced to shutdown")
	}

	logx.Info("✅ gateway exited successfully")
}

func healthHandler(c *Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Cache.HealthCheck(r.Context())
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          map[bool]string{true: "healthy", false: "degraded"}[report.Healthy],
			"sharedcache_ms":  report.LatencyMs,
			"sharedcache_err": report.Error,
			"environment":     c.Config.Server.Environment,
		})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
