// Package app wires configuration into stores, services and the HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/zest/productapi/internal/access"
	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/cache"
	"github.com/zest/productapi/internal/config"
	"github.com/zest/productapi/internal/db"
	"github.com/zest/productapi/internal/domain/product"
	apphttp "github.com/zest/productapi/internal/http"
	"github.com/zest/productapi/internal/http/handlers"
	"github.com/zest/productapi/internal/observability"
	"github.com/zest/productapi/internal/redisclient"
	"github.com/zest/productapi/internal/repo/memory"
	"github.com/zest/productapi/internal/repo/postgres"
	"github.com/zest/productapi/internal/security"
	"github.com/zest/productapi/internal/service"
)

const ServiceName = "productapi"

type userStore interface {
	service.UserStore
	auth.RefreshTokenStore
}

type App struct {
	Router   *gin.Engine
	Recorder *access.Recorder

	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func()
}

// New builds every dependency named by cfg. External connections (Postgres,
// Redis) are opened here; call Close when done.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{log: log}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	var (
		users    userStore
		products service.ProductStore
	)

	switch cfg.Storage {
	case config.StorageMemory:
		users = memory.NewUsersRepo()
		products = memory.NewProductsRepo()
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolOptions{AppName: ServiceName, MaxConns: cfg.DB.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)

		if err := db.Migrate(ctx, pool, log); err != nil {
			a.Close()
			return nil, err
		}

		users = postgres.NewUsersRepo(pool, prom)
		products = postgres.NewProductsRepo(pool, prom)
	}

	hasher := security.NewPasswordHasher(cfg.BcryptCost)

	seeded, err := db.SeedUsers(ctx, users, hasher, cfg.SeedUsersPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	if seeded > 0 {
		log.Info("seeded users", "count", seeded, "path", cfg.SeedUsersPath)
	}

	sinks := access.MultiSink{access.NewLogSink(log)}
	productOpts := []service.ProductServiceOption{service.WithMaxPageSize(cfg.MaxPageSize)}

	if cfg.Redis.Addr != "" {
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })

		redisSink := access.NewRedisSink(rc)
		sinks = append(sinks, access.NewProtectedSink(redisSink, access.ProtectedSinkConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		}))
		productOpts = append(productOpts, service.WithAccessCounter(redisSink))
	}

	a.Recorder = access.NewRecorder(access.Config{Buffer: cfg.AccessLogBuffer}, sinks, log, prom)
	productOpts = append(productOpts, service.WithAccessRecorder(a.Recorder))

	tokens := auth.NewTokenService(auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()), users)

	a.Router = apphttp.NewRouter(log, apphttp.Deps{
		Env:                cfg.Env,
		ServiceName:        ServiceName,
		Auth:               service.NewAuthService(users, tokens, hasher),
		Products:           service.NewProductService(products, productOpts...),
		Tokens:             tokens,
		ListCache:          cache.New[product.Page](cfg.ListCacheTTL),
		Prom:               prom,
		Gatherer:           reg,
		Checks:             a.checks(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})

	return a, nil
}

func (a *App) checks() map[string]handlers.PingFunc {
	checks := map[string]handlers.PingFunc{}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	if a.redis != nil {
		checks["redis"] = redisclient.Ping(a.redis)
	}
	return checks
}

// Run drives the access recorder until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.Recorder.Run(ctx)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
