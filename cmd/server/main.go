package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	grpcapi "luxestore/searchservice/internal/api/grpc"
	apihttp "luxestore/searchservice/internal/api/http"
	"luxestore/searchservice/internal/app"
	"luxestore/searchservice/internal/metrics"
	"luxestore/searchservice/internal/providers/graphql"
	mongorepo "luxestore/searchservice/internal/repository/mongo"
	pgrepo "luxestore/searchservice/internal/repository/postgres"
	"luxestore/searchservice/internal/search"
	"luxestore/searchservice/internal/telemetry"
)

const serviceName = "catalog-search"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("grpcAddr", cfg.GRPCAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("graphqlEndpoint", cfg.GraphQLEndpoint),
		slog.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		slog.Int("retryAttempts", cfg.RetryAttempts),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Duration("refreshInterval", cfg.RefreshInterval),
		slog.Bool("placeholderEnabled", cfg.PlaceholderEnabled),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("hasMongo", cfg.MongoURI != ""),
		slog.Bool("hasPostgres", cfg.PostgresDSN != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := graphql.NewClient(graphql.Config{
		Endpoint:  cfg.GraphQLEndpoint,
		UserAgent: cfg.UserAgent,
		Client: &http.Client{
			Timeout:   cfg.UpstreamTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})

	logger.Info("graphql source configured",
		slog.String("source", source.Name()),
		slog.String("endpoint", source.Endpoint()),
	)

	stores, closeStores := buildSnapshotStores(rootCtx, cfg, logger)
	defer closeStores()

	retry := search.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryAttempts
	retry.InitialDelay = cfg.RetryDelay
	retry.MaxDelay = cfg.RetryDelay

	catalog := search.NewService(source,
		search.WithLogger(logger),
		search.WithCacheTTL(cfg.CacheTTL),
		search.WithRefreshInterval(cfg.RefreshInterval),
		search.WithFetchTimeout(cfg.UpstreamTimeout),
		search.WithStoreTimeout(cfg.SnapshotStoreTimeout),
		search.WithRetryConfig(retry),
		search.WithPlaceholder(cfg.PlaceholderEnabled),
		search.WithSnapshotStores(stores...),
	)

	api := apihttp.NewServer(catalog,
		apihttp.WithLogger(logger),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	defer api.Close()
	catalog.Subscribe(api.CatalogRefreshed)

	var grpcServer *grpcapi.HealthServer
	if cfg.GRPCAddr != "" {
		grpcServer = grpcapi.NewHealthServer(logger)
		catalog.Subscribe(grpcServer.CatalogRefreshed)
	}

	// A failed warm-up is not fatal: requests retry the refresh on demand.
	if err := catalog.Init(rootCtx); err != nil {
		logger.Warn("initial catalog load failed", slog.String("error", err.Error()))
	}
	catalog.StartBackground(rootCtx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// /api/catalog/events holds connections open; the hub enforces its own write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if grpcServer != nil {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen failed", slog.String("addr", cfg.GRPCAddr), slog.String("error", err.Error()))
			os.Exit(1)
		}
		go func() {
			errCh <- grpcServer.Serve(lis)
		}()
	}

	logger.Info("catalog search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Int("snapshotStores", len(stores)),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("catalog search service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildSnapshotStores connects every configured store. Unreachable stores
// are logged and skipped so the service still starts from upstream alone.
func buildSnapshotStores(ctx context.Context, cfg app.Config, logger *slog.Logger) ([]search.SnapshotStore, func()) {
	var (
		stores  []search.SnapshotStore
		closers []func()
	)

	if store, closeFn := buildRedisStore(ctx, cfg, logger); store != nil {
		stores = append(stores, store)
		closers = append(closers, closeFn)
	}
	if store, closeFn := buildMongoStore(ctx, cfg, logger); store != nil {
		stores = append(stores, store)
		closers = append(closers, closeFn)
	}
	if store, closeFn := buildPostgresStore(ctx, cfg, logger); store != nil {
		stores = append(stores, store)
		closers = append(closers, closeFn)
	}

	return stores, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}

func buildRedisStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (search.SnapshotStore, func()) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, snapshot store disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	client := redis.NewClient(redisOpts)
	store := search.NewRedisSnapshotStore(client, 0)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.SnapshotStoreTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis not reachable, snapshot store disabled", slog.String("error", err.Error()))
		_ = client.Close()
		return nil, nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return store, func() { _ = client.Close() }
}

func buildMongoStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (search.SnapshotStore, func()) {
	if cfg.MongoURI == "" {
		return nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, snapshot store disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	disconnect := func(client *mongo.Client) {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(closeCtx)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Warn("mongo not reachable, snapshot store disabled", slog.String("error", err.Error()))
		disconnect(client)
		return nil, nil
	}
	logger.Info("mongo connected",
		slog.String("db", cfg.MongoDB),
		slog.String("collection", cfg.MongoCollection),
	)
	return mongorepo.NewCatalogRepository(client, cfg.MongoDB, cfg.MongoCollection), func() { disconnect(client) }
}

func buildPostgresStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (search.SnapshotStore, func()) {
	if cfg.PostgresDSN == "" {
		return nil, nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := pgrepo.Open(openCtx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("postgres not reachable, snapshot store disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	closeDB := func(db *sql.DB) { _ = db.Close() }
	repo := pgrepo.NewCatalogRepository(db)
	if err := repo.EnsureSchema(openCtx); err != nil {
		logger.Warn("postgres schema setup failed, snapshot store disabled", slog.String("error", err.Error()))
		closeDB(db)
		return nil, nil
	}
	logger.Info("postgres connected")
	return repo, func() { closeDB(db) }
}
