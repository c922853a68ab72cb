package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authhandler "github.com/klola/core-platform/domains/auth/be/handler"
	authservice "github.com/klola/core-platform/domains/auth/be/service"
	subscriptionshandler "github.com/klola/core-platform/domains/subscriptions/be/handler"
	subscriptionsservice "github.com/klola/core-platform/domains/subscriptions/be/service"
	tenantshandler "github.com/klola/core-platform/domains/tenants/be/handler"
	tenantsservice "github.com/klola/core-platform/domains/tenants/be/service"
	usershandler "github.com/klola/core-platform/domains/users/be/handler"
	usersrepo "github.com/klola/core-platform/domains/users/be/repo"
	usersservice "github.com/klola/core-platform/domains/users/be/service"
	"github.com/klola/core-platform/platform/go/logging"
	platformmiddleware "github.com/klola/core-platform/platform/go/middleware"
	"github.com/klola/core-platform/platform/go/persistence"
	"github.com/klola/core-platform/platform/go/pipeline"
	"github.com/klola/core-platform/platform/go/subscription"
	"github.com/klola/core-platform/platform/go/tenant"
	"github.com/klola/core-platform/platform/go/token"
	"github.com/klola/core-platform/platform/go/tokenstore"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"REDIS_URL,required"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTExpiry       time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Component: "core-platform-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		_ = redisClient.Close()
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}

	tokens := token.NewService(
		tokenstore.NewRedisStore(redisClient),
		[]byte(cfg.JWTSecret),
		token.WithAccessTTL(cfg.JWTExpiry),
	)

	directory := persistence.NewTenantDirectory(pool)
	resolver := tenant.NewResolver(directory)
	subscriptionStore := persistence.NewSubscriptionStore(pool)
	gate := subscription.NewGate(subscriptionStore)
	schemaDB := persistence.NewSchemaDB(pool)

	pipe := pipeline.New(pipeline.Config{
		Resolver: resolver,
		Tokens:   tokens,
		DB:       schemaDB,
		Gate:     gate,
		Logger:   logger,
	})

	userStore := persistence.NewUserStore(pool)
	authHandler := authhandler.New(authservice.New(userStore, tokens), logger)
	usersHandler := usershandler.New(usersservice.New(usersrepo.NewPostgresRepository()), logger)
	tenantsHandler := tenantshandler.New(tenantsservice.New(directory), logger)
	subscriptionsHandler := subscriptionshandler.New(subscriptionsservice.New(subscriptionStore, gate), logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(logging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()

	apiRouter.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(pipe.PublicWithTenant)
			authHandler.PublicRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(pipe.Protected)
			authHandler.ProtectedRoutes(r)
		})
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(pipe.Protected)
		r.Route("/users", usersHandler.Routes)
		r.Route("/tenants", tenantsHandler.Routes)
		r.Route("/subscriptions", subscriptionsHandler.Routes)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
