package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Qdrant    QdrantConfig
	Behavior  BehaviorConfig
	Feed      FeedConfig
	Assistant AssistantConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	AdminJWTSecret string
}

type LLMConfig struct {
	OpenAIKey         string
	AnthropicKey      string
	GroqKey           string
	GroqBaseURL       string
	OllamaURL         string
	DefaultProvider   string
	DefaultModel      string
	VisionProvider    string
	VisionModel       string
	FallbackProvider  string
	EmbeddingProvider string
	EmbeddingModel    string
	MaxRetries        int
}

// QdrantConfig points at the gRPC endpoint (6334), not the REST port.
type QdrantConfig struct {
	Host                 string
	Port                 int
	APIKey               string
	UseTLS               bool
	ProductsCollection   string
	BehaviorCollection   string
	DenseModel           string
	SparseModel          string
	LateInteractionModel string
	DenseSize            int
	LateInteractionSize  int
	PrefetchLimit        int
}

type BehaviorConfig struct {
	Store         string // "qdrant" or "postgres"
	ProfileWindow int
	ContextWindow int
	Retention     time.Duration
	PruneInterval time.Duration
}

type FeedConfig struct {
	MaxInterests    int
	MinPerInterest  int
	QueryPrefix     string
	TrendingQuery   string
	QueryTimeout    time.Duration
	StrictParity    bool
	DefaultPageSize int
	MaxPageSize     int
	MaxPage         int
}

type AssistantConfig struct {
	ResultLimit     int
	RefineModel     string
	RefineCacheTTL  time.Duration
	MaxImageBytes   int64
	ScreenThreshold float64
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// WorkerConfig is read by the task worker only. An empty MetricsAddr
// disables its metrics listener.
type WorkerConfig struct {
	Concurrency int
	MetricsAddr string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	var errs []string
	ints := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	durations := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	bools := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}
	floats := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        ints("SERVER_PORT", 8000),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: ints("DB_MAX_CONNS", 20),
			MinConns: ints("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       ints("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:      getEnv("ANTHROPIC_API_KEY", ""),
			GroqKey:           getEnv("GROQ_API_KEY", ""),
			GroqBaseURL:       getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			OllamaURL:         getEnv("OLLAMA_URL", ""),
			DefaultProvider:   getEnv("LLM_DEFAULT_PROVIDER", "groq"),
			DefaultModel:      getEnv("LLM_DEFAULT_MODEL", "llama-3.3-70b-versatile"),
			VisionProvider:    getEnv("LLM_VISION_PROVIDER", ""),
			VisionModel:       getEnv("LLM_VISION_MODEL", "llama-3.2-11b-vision-preview"),
			FallbackProvider:  getEnv("LLM_FALLBACK_PROVIDER", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxRetries:        ints("LLM_MAX_RETRIES", 2),
		},
		Qdrant: QdrantConfig{
			Host:                 getEnv("QDRANT_HOST", "localhost"),
			Port:                 ints("QDRANT_GRPC_PORT", 6334),
			APIKey:               getEnv("QDRANT_API_KEY", ""),
			UseTLS:               bools("QDRANT_USE_TLS", false),
			ProductsCollection:   getEnv("QDRANT_PRODUCTS_COLLECTION", "products"),
			BehaviorCollection:   getEnv("QDRANT_BEHAVIOR_COLLECTION", "user_behaviors"),
			DenseModel:           getEnv("QDRANT_DENSE_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
			SparseModel:          getEnv("QDRANT_SPARSE_MODEL", "Qdrant/bm25"),
			LateInteractionModel: getEnv("QDRANT_LATE_INTERACTION_MODEL", "colbert-ir/colbertv2.0"),
			DenseSize:            ints("QDRANT_DENSE_SIZE", 384),
			LateInteractionSize:  ints("QDRANT_LATE_INTERACTION_SIZE", 128),
			PrefetchLimit:        ints("QDRANT_PREFETCH_LIMIT", 20),
		},
		Behavior: BehaviorConfig{
			Store:         strings.ToLower(getEnv("BEHAVIOR_STORE", "qdrant")),
			ProfileWindow: ints("BEHAVIOR_PROFILE_WINDOW", 50),
			ContextWindow: ints("BEHAVIOR_CONTEXT_WINDOW", 15),
			Retention:     durations("BEHAVIOR_RETENTION", 30*24*time.Hour),
			PruneInterval: durations("BEHAVIOR_PRUNE_INTERVAL", time.Hour),
		},
		Feed: FeedConfig{
			MaxInterests:    ints("FEED_MAX_INTERESTS", 3),
			MinPerInterest:  ints("FEED_MIN_PER_INTEREST", 4),
			QueryPrefix:     getEnv("FEED_QUERY_PREFIX", "best "),
			TrendingQuery:   getEnv("FEED_TRENDING_QUERY", "trending best selling products"),
			QueryTimeout:    durations("FEED_QUERY_TIMEOUT", 5*time.Second),
			StrictParity:    bools("FEED_STRICT_PARITY", false),
			DefaultPageSize: ints("FEED_DEFAULT_PAGE_SIZE", 12),
			MaxPageSize:     ints("FEED_MAX_PAGE_SIZE", 48),
			MaxPage:         ints("FEED_MAX_PAGE", 100),
		},
		Assistant: AssistantConfig{
			ResultLimit:     ints("ASSISTANT_RESULT_LIMIT", 5),
			RefineModel:     getEnv("ASSISTANT_REFINE_MODEL", ""),
			RefineCacheTTL:  durations("ASSISTANT_REFINE_CACHE_TTL", 6*time.Hour),
			MaxImageBytes:   int64(ints("ASSISTANT_MAX_IMAGE_BYTES", 8<<20)),
			ScreenThreshold: floats("ASSISTANT_SCREEN_THRESHOLD", 0.7),
		},
		RateLimit: RateLimitConfig{
			RPS:   floats("RATE_LIMIT_RPS", 20),
			Burst: ints("RATE_LIMIT_BURST", 40),
		},
		Worker: WorkerConfig{
			Concurrency: ints("WORKER_CONCURRENCY", 4),
			MetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9091"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks settings that only make sense together.
func (c *Config) Validate() error {
	var problems []string
	switch c.Behavior.Store {
	case "qdrant":
	case "postgres":
		if c.Database.URL == "" {
			problems = append(problems, "BEHAVIOR_STORE=postgres requires DATABASE_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown BEHAVIOR_STORE %q", c.Behavior.Store))
	}
	if c.Behavior.ProfileWindow <= 0 || c.Behavior.ContextWindow <= 0 {
		problems = append(problems, "behavior windows must be positive")
	}
	if c.Behavior.Retention <= 0 {
		problems = append(problems, "BEHAVIOR_RETENTION must be positive")
	}
	if c.Behavior.PruneInterval <= 0 {
		problems = append(problems, "BEHAVIOR_PRUNE_INTERVAL must be positive")
	}
	if c.Feed.MaxInterests <= 0 {
		problems = append(problems, "FEED_MAX_INTERESTS must be positive")
	}
	if c.Feed.DefaultPageSize <= 0 || c.Feed.MaxPageSize < c.Feed.DefaultPageSize {
		problems = append(problems, "FEED_DEFAULT_PAGE_SIZE must be positive and <= FEED_MAX_PAGE_SIZE")
	}
	if c.Feed.MaxPage <= 0 {
		problems = append(problems, "FEED_MAX_PAGE must be positive")
	}
	if c.Feed.QueryTimeout <= 0 {
		problems = append(problems, "FEED_QUERY_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
