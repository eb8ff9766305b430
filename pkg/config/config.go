// Package config loads gateway configuration from environment variables
// and built-in defaults, optionally overlaid by a YAML file. Values in the
// YAML file replace the env-derived ones, except the provider API keys and
// the Redis password, which are taken from the environment when set there.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates every subsystem's configuration.
type Config struct {
	Server        ServerConfig
	Providers     ProvidersConfig
	ContextEngine ContextEngineConfig
	VectorStore   VectorStoreConfig
	SharedCache   SharedCacheConfig
	Safety        SafetyConfig
	Jobx          JobxConfig
	Redis         RedisConfig
}

// ServerConfig holds process-level settings (no HTTP transport is owned
// here — the gateway is a library consumed by a transport-owning caller).
type ServerConfig struct {
	Environment string
	MetricsAddr string
}

// ProvidersConfig configures the three LLM backends the factory can build.
type ProvidersConfig struct {
	DefaultProvider string
	Anthropic       AnthropicConfig
	OpenAI          OpenAIConfig
	Gemini          GeminiConfig
}

type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// ContextEngineConfig holds the Context Engine's budgets and weights.
type ContextEngineConfig struct {
	MaxContextTokens   int
	RecentMessageCount int
	TopKRelevant       int
	MinRelevanceScore  float64
	SummarizeThreshold int
	RecentToKeep       int
}

// VectorStoreConfig selects and configures the Vector Store backend.
type VectorStoreConfig struct {
	Provider           string // "memory" or "pgvector"
	PostgresDSN        string
	Dimension          int
	Metric             string
	MaxConnections     int
	ConnectionTimeout  time.Duration
}

// SharedCacheConfig configures the Shared-Conversation Cache.
type SharedCacheConfig struct {
	MaxEntries      int
	TTL             time.Duration
	SweepInterval   time.Duration
}

// SafetyConfig configures the Content Safety Pipeline.
type SafetyConfig struct {
	EnableLLMAssist    bool
	RepetitionMaxRatio float64
}

// JobxConfig configures the background job queue.
type JobxConfig struct {
	Concurrency       int
	Queues            []string
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	DequeueTimeout    time.Duration
	DefaultRetryDelay time.Duration
}

// RedisConfig configures the shared Redis connection (jobx queue backend,
// optional shared-cache persistence).
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

// Load builds a Config from environment variables and their defaults, then
// overlays the YAML file at yamlPath when one is given and exists. Only the
// provider API keys and the Redis password set in the environment take
// precedence over the YAML file; every other env value is replaced by it.
func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Providers:     loadProvidersConfig(),
		ContextEngine: loadContextEngineConfig(),
		VectorStore:   loadVectorStoreConfig(),
		SharedCache:   loadSharedCacheConfig(),
		Safety:        loadSafetyConfig(),
		Jobx:          loadJobxConfig(),
		Redis:         loadRedisConfig(),
	}

	if yamlPath != "" {
		if err := mergeYAMLFile(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// mergeYAMLFile loads path as the base config, then re-applies any secret
// API keys already present in the environment so an operator can commit a
// non-secret YAML file and still inject keys via env at deploy time.
func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Environment: getEnv("GATEWAY_ENV", "development"),
		MetricsAddr: getEnv("GATEWAY_METRICS_ADDR", ":9090"),
	}
}

func loadProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		DefaultProvider: getEnv("GATEWAY_DEFAULT_PROVIDER", "anthropic"),
		Anthropic: AnthropicConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			DefaultModel: getEnv("ANTHROPIC_DEFAULT_MODEL", "claude-sonnet-4-5"),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			DefaultModel: getEnv("OPENAI_DEFAULT_MODEL", "gpt-4o"),
		},
		Gemini: GeminiConfig{
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			DefaultModel: getEnv("GEMINI_DEFAULT_MODEL", "gemini-2.0-flash"),
		},
	}
}

func loadContextEngineConfig() ContextEngineConfig {
	return ContextEngineConfig{
		MaxContextTokens:   getEnvInt("CONTEXTENGINE_MAX_TOKENS", 8000),
		RecentMessageCount: getEnvInt("CONTEXTENGINE_RECENT_COUNT", 10),
		TopKRelevant:       getEnvInt("CONTEXTENGINE_TOPK", 5),
		MinRelevanceScore:  getEnvFloat("CONTEXTENGINE_MIN_SCORE", 0.3),
		SummarizeThreshold: getEnvInt("CONTEXTENGINE_SUMMARIZE_THRESHOLD", 6000),
		RecentToKeep:       getEnvInt("CONTEXTENGINE_RECENT_TO_KEEP", 6),
	}
}

func loadVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Provider:          getEnv("VSTORE_PROVIDER", "memory"),
		PostgresDSN:       getEnv("VSTORE_PG_DSN", ""),
		Dimension:         getEnvInt("VSTORE_DIMENSION", 1536),
		Metric:            getEnv("VSTORE_METRIC", "cosine"),
		MaxConnections:    getEnvInt("VSTORE_MAX_CONNECTIONS", 10),
		ConnectionTimeout: getEnvDuration("VSTORE_CONNECTION_TIMEOUT", 5*time.Second),
	}
}

func loadSharedCacheConfig() SharedCacheConfig {
	return SharedCacheConfig{
		MaxEntries:    getEnvInt("SHAREDCACHE_MAX_ENTRIES", 10000),
		TTL:           getEnvDuration("SHAREDCACHE_TTL", 24*time.Hour),
		SweepInterval: getEnvDuration("SHAREDCACHE_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func loadSafetyConfig() SafetyConfig {
	return SafetyConfig{
		EnableLLMAssist:    getEnvBool("SAFETY_ENABLE_LLM_ASSIST", false),
		RepetitionMaxRatio: getEnvFloat("SAFETY_REPETITION_MAX_RATIO", 0.4),
	}
}

func loadJobxConfig() JobxConfig {
	return JobxConfig{
		Concurrency:       getEnvInt("JOBX_CONCURRENCY", 4),
		Queues:            getEnvStringSlice("JOBX_QUEUES", []string{"vectorize"}),
		PollInterval:      getEnvDuration("JOBX_POLL_INTERVAL", time.Second),
		ShutdownTimeout:   getEnvDuration("JOBX_SHUTDOWN_TIMEOUT", 30*time.Second),
		DequeueTimeout:    getEnvDuration("JOBX_DEQUEUE_TIMEOUT", 5*time.Second),
		DefaultRetryDelay: getEnvDuration("JOBX_DEFAULT_RETRY_DELAY", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// --- env helpers, shared by every loadXConfig() above ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvStringSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
