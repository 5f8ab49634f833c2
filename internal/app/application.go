// Package app wires the application: stores, shared infrastructure, domain
// services and their lifecycle. All dependencies are injected explicitly;
// there is no module-level state.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/blueocean-labs/explorer-api/internal/ai"
	"github.com/blueocean-labs/explorer-api/internal/app/system"
	"github.com/blueocean-labs/explorer-api/internal/auth"
	"github.com/blueocean-labs/explorer-api/internal/cache"
	"github.com/blueocean-labs/explorer-api/internal/config"
	"github.com/blueocean-labs/explorer-api/internal/metrics"
	"github.com/blueocean-labs/explorer-api/internal/ratelimit"
	"github.com/blueocean-labs/explorer-api/internal/services/competitors"
	"github.com/blueocean-labs/explorer-api/internal/services/health"
	"github.com/blueocean-labs/explorer-api/internal/services/insights"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/services/opportunities"
	"github.com/blueocean-labs/explorer-api/internal/services/segments"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/storage/memory"
	"github.com/blueocean-labs/explorer-api/internal/storage/postgres"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// Stores groups the persistence interfaces. Nil fields default to a shared
// in-memory implementation, which keeps tests and local development free of
// external dependencies.
type Stores struct {
	Principals    storage.PrincipalStore
	Markets       storage.MarketStore
	Opportunities storage.OpportunityStore
	Segments      storage.SegmentStore
	Competitors   storage.CompetitorStore
	Insights      storage.InsightStore
}

// Limiters holds the per-class rate limiters consumed by the routing layer.
type Limiters struct {
	API   *ratelimit.Limiter
	Login *ratelimit.Limiter
	AI    *ratelimit.Limiter
}

// Application ties the services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     config.Config

	db    *sqlx.DB
	redis *redis.Client

	Stores   Stores
	Cache    cache.Cache
	Metrics  *metrics.Metrics
	Limiters Limiters
	Issuer   *auth.TokenIssuer

	Auth          *auth.Service
	Markets       *markets.Service
	Opportunities *opportunities.Service
	Segments      *segments.Service
	Competitors   *competitors.Service
	Insights      *insights.Service
	Health        *health.Service
}

// New builds a fully initialised application from configuration.
func New(cfg config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	a := &Application{
		manager: system.NewManager(),
		log:     log,
		cfg:     cfg,
		Metrics: metrics.New(),
		Health:  health.NewService(log),
	}

	if err := a.initStores(cfg); err != nil {
		return nil, err
	}
	redisClient := a.initRedis(cfg)

	// Cache: dual-path when redis is up, in-process only otherwise.
	mirror := cache.NewMemory()
	if redisClient != nil {
		a.Cache = cache.NewDual(cache.NewRedis(redisClient), mirror, log)
	} else {
		a.Cache = mirror
	}

	localStores := a.initLimiters(cfg, redisClient)

	a.Issuer = auth.NewTokenIssuer([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, a.Stores.Principals)
	a.Auth = auth.NewService(a.Stores.Principals, a.Issuer, log)
	a.Markets = markets.NewService(a.Stores.Markets, a.Cache, log)
	a.Opportunities = opportunities.NewService(a.Stores.Opportunities, a.Markets, log)
	a.Segments = segments.NewService(a.Stores.Segments, a.Markets, log)
	a.Competitors = competitors.NewService(a.Stores.Competitors, a.Markets, log)

	aiClient := ai.New(ai.Config{
		BaseURL:           cfg.AI.BaseURL,
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		Timeout:           cfg.AI.Timeout,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	}, a.Metrics, log)
	a.Insights = insights.NewService(a.Stores.Insights, a.Markets, aiClient, cfg.AI.Model, log)

	a.registerHealthChecks(redisClient, aiClient, cfg)

	maintenance := NewMaintenanceService(mirror, localStores, log)
	if err := a.manager.Register(maintenance); err != nil {
		return nil, fmt.Errorf("register maintenance: %w", err)
	}

	return a, nil
}

// initStores selects PostgreSQL when a DSN is configured, in-memory
// otherwise.
func (a *Application) initStores(cfg config.Config) error {
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		a.db = db
		pg := postgres.New(db)
		a.Stores = Stores{
			Principals:    pg,
			Markets:       pg,
			Opportunities: pg,
			Segments:      pg,
			Competitors:   pg,
			Insights:      pg,
		}
		a.log.Info("using postgres store")
		return nil
	}

	mem := memory.New()
	a.Stores = Stores{
		Principals:    mem,
		Markets:       mem,
		Opportunities: mem,
		Segments:      mem,
		Competitors:   mem,
		Insights:      mem,
	}
	a.log.Warn("no database DSN configured; using in-memory store")
	return nil
}

// initRedis connects to the shared store, returning nil (degraded mode) when
// it is not configured or unreachable at boot.
func (a *Application) initRedis(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		a.log.Warn("no redis address configured; cache and rate limits are per-instance")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.log.WithError(err).Warn("redis unreachable at startup; continuing per-instance")
		_ = client.Close()
		return nil
	}

	a.redis = client
	return client
}

// initLimiters builds the three call-class limiters. With redis the local
// store doubles as the degraded-mode fallback. Returns the local stores for
// the maintenance sweeper.
func (a *Application) initLimiters(cfg config.Config, redisClient *redis.Client) []*ratelimit.MemoryStore {
	build := func(name string, class config.ClassConfig) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
		local := ratelimit.NewMemoryStore()
		lcfg := ratelimit.Config{Name: name, Limit: class.Limit, Window: class.Window}
		if redisClient != nil {
			return ratelimit.New(lcfg, ratelimit.NewRedisStore(redisClient), local, a.log), local
		}
		return ratelimit.New(lcfg, local, nil, a.log), local
	}

	var locals []*ratelimit.MemoryStore
	var local *ratelimit.MemoryStore

	a.Limiters.API, local = build("api", cfg.RateLimits.API)
	locals = append(locals, local)
	a.Limiters.Login, local = build("login", cfg.RateLimits.Login)
	locals = append(locals, local)
	a.Limiters.AI, local = build("ai", cfg.RateLimits.AI)
	locals = append(locals, local)

	return locals
}

func (a *Application) registerHealthChecks(redisClient *redis.Client, aiClient *ai.Client, cfg config.Config) {
	if a.db != nil {
		a.Health.Register("database", true, a.db.PingContext)
	}
	if redisClient != nil {
		a.Health.Register("redis", false, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if cfg.AI.BaseURL != "" {
		a.Health.Register("ai_provider", false, aiClient.Ping)
	}
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and closes external connections.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
