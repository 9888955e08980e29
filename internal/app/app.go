// Package app builds the clients and services shared by the API server, the
// worker and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/fincommerce/internal/api/handlers"
	"github.com/nikhilbhutani/fincommerce/internal/audit"
	"github.com/nikhilbhutani/fincommerce/internal/behavior"
	"github.com/nikhilbhutani/fincommerce/internal/cache"
	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/database"
	"github.com/nikhilbhutani/fincommerce/internal/embedding"
	"github.com/nikhilbhutani/fincommerce/internal/feed"
	"github.com/nikhilbhutani/fincommerce/internal/guardrails"
	"github.com/nikhilbhutani/fincommerce/internal/llm"
	"github.com/nikhilbhutani/fincommerce/internal/multimodal"
	"github.com/nikhilbhutani/fincommerce/internal/rag"
	"github.com/nikhilbhutani/fincommerce/internal/user"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
	"github.com/nikhilbhutani/fincommerce/migrations"
)

// EventStore is what the tracker writes to and the prune job deletes from.
type EventStore interface {
	behavior.EventStore
	behavior.Pruner
}

type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Qdrant   *qdrant.Client
	Gateway  llm.Gateway
	Products *vectorstore.QdrantProductStore
	Events   EventStore
	Tracker  *behavior.Tracker
	Users    *user.Service
	Audit    *audit.Service
}

// New connects to every backing service. Postgres is optional unless the
// behavior store lives there; Redis failures only disable caching.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			if cfg.Behavior.Store == "postgres" {
				return nil, err
			}
			slog.Warn("database unavailable, running without users and usage log", "error", err)
		} else {
			a.DB = db
			if err := database.RunMigrations(ctx, db, migrations.FS); err != nil {
				a.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache", "error", err)
	}

	qc, err := vectorstore.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Qdrant = qc
	a.Products = vectorstore.NewQdrantProductStore(qc, cfg.Qdrant)

	a.Gateway = llm.NewGatewayFromConfig(cfg.LLM)

	switch cfg.Behavior.Store {
	case "postgres":
		var embedder vectorstore.Embedder
		if svc := embedding.NewService(a.Gateway, cfg.LLM.EmbeddingProvider, cfg.LLM.EmbeddingModel); svc.Available() {
			embedder = svc
		}
		a.Events = vectorstore.NewPgEventStore(a.DB, embedder)
	default:
		a.Events = vectorstore.NewQdrantEventStore(qc, cfg.Qdrant)
	}
	a.Tracker = behavior.NewTracker(a.Events)
	a.Users = user.NewService(a.DB)
	a.Audit = audit.NewService(a.DB)

	return a, nil
}

func (a *App) FeedService() *feed.Service {
	agg := feed.NewAggregator(a.Products, feed.AggregatorConfig{
		MaxInterests:   a.Config.Feed.MaxInterests,
		MinPerInterest: a.Config.Feed.MinPerInterest,
		QueryPrefix:    a.Config.Feed.QueryPrefix,
		QueryTimeout:   a.Config.Feed.QueryTimeout,
		StrictParity:   a.Config.Feed.StrictParity,
	})
	return feed.NewService(a.Tracker, agg, a.Products, a.Products, feed.ServiceConfigFrom(a.Config))
}

// Assistant wires the LLM chain. Steps whose provider is missing are left
// out and the assistant degrades to plain search for them.
func (a *App) Assistant() *rag.Assistant {
	cfg := a.Config
	deps := rag.AssistantDeps{
		Search: a.Products,
		Screen: guardrails.NewScreen(cfg.Assistant.ScreenThreshold),
		Usage:  a.Audit,
		Limit:  cfg.Assistant.ResultLimit,
	}

	if a.Gateway.HasProvider(cfg.LLM.DefaultProvider) {
		refineModel := cfg.Assistant.RefineModel
		if refineModel == "" {
			refineModel = cfg.LLM.DefaultModel
		}
		var c rag.Cache
		if a.Redis != nil {
			c = cache.NewCache(a.Redis, "fincommerce")
		}
		deps.Refiner = rag.NewQueryRefiner(a.Gateway, c, refineModel, cfg.Assistant.RefineCacheTTL)
		deps.Chooser = rag.NewProductChooser(a.Gateway, cfg.LLM.DefaultModel)
	} else {
		slog.Warn("no default LLM provider configured, assistant serves plain search", "provider", cfg.LLM.DefaultProvider)
	}

	visionProvider := cfg.LLM.VisionProvider
	if visionProvider == "" {
		visionProvider = cfg.LLM.DefaultProvider
	}
	if a.Gateway.HasProvider(visionProvider) {
		deps.Vision = multimodal.NewVisionService(a.Gateway, visionProvider, cfg.LLM.VisionModel, cfg.Assistant.MaxImageBytes)
	}

	return rag.NewAssistant(deps)
}
// Checks returns one readiness check per configured backend.
// Checks are the readiness checks for the configured backends.
func (a *App) Checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"qdrant": func(ctx context.Context) error { return vectorstore.Ping(ctx, a.Qdrant) },
		"redis":  func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
	}
	if a.DB != nil {
		checks["database"] = a.DB.Ping
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.Qdrant != nil {
		errs = append(errs, a.Qdrant.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}
