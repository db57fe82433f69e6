package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sphinxql/pkg/api"
	"github.com/platinummonkey/sphinxql/pkg/cache"
	"github.com/platinummonkey/sphinxql/pkg/client"
	"github.com/platinummonkey/sphinxql/pkg/config"
	"github.com/platinummonkey/sphinxql/pkg/middleware"
	"github.com/platinummonkey/sphinxql/pkg/observability"
	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	logger.WithFields(logrus.Fields{
		"addr":        cfg.Server.Addr(),
		"health_addr": cfg.Server.HealthAddr(),
		"searchd":     cfg.Sphinx.PrimaryAddr,
		"replicas":    len(cfg.Sphinx.ReplicaAddrs),
	}).Info("Starting sphinxql server")

	ctx := context.Background()
	providers, err := observability.InitOTel(ctx, cfg.Observability.OTelConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	conns, err := client.NewConnectionManager(cfg.Sphinx.ConnectionConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to searchd")
	}
	conns.SetMetrics(metrics)
	if err := conns.StartHealthMonitor(cfg.Sphinx.HealthCheckSchedule); err != nil {
		logger.WithError(err).Fatal("Failed to start replica health monitor")
	}

	searchd := client.New(conns, logger, metrics).WithMeta(cfg.Sphinx.FetchMeta)

	redisOpts, err := cfg.Cache.RedisOptions()
	if err != nil {
		logger.WithError(err).Fatal("Invalid redis configuration")
	}
	var redisClient *redis.Client
	if redisOpts != nil {
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, shared cache and rate limits degrade until it recovers")
		}
	}

	var (
		executor sphinxql.Executor = searchd
		routes   []api.RouteRegistrar
	)
	if cfg.Cache.Enabled {
		results := cache.New(searchd, cfg.Cache.ResultCacheConfig(), redisClient, logger, metrics)
		executor = results
		routes = append(routes, api.NewCacheHandlers(results, logger))
		logger.WithFields(logrus.Fields{
			"l1_size": cfg.Cache.L1Size,
			"ttl":     cfg.Cache.TTL,
			"redis":   redisClient != nil,
		}).Info("Result cache enabled")
	}

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(registry, metrics),
		api.WithRoutes(routes...),
	}

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	if cfg.RateLimit.Enabled {
		var limiter middleware.Limiter
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, cfg.RateLimit.LimiterConfig(), "")
		} else {
			local := middleware.NewLocalLimiter(cfg.RateLimit.LimiterConfig())
			local.StartCleanup(limiterCtx)
			limiter = local
		}
		ips, err := cfg.RateLimit.ClientIPResolver()
		if err != nil {
			logger.WithError(err).Fatal("Invalid trusted proxies")
		}
		serverOpts = append(serverOpts, api.WithMiddleware(middleware.RateLimit(limiter, ips, logger)))
		logger.WithFields(logrus.Fields{
			"requests":    cfg.RateLimit.Requests,
			"window":      cfg.RateLimit.Window,
			"distributed": redisClient != nil,
			"trusted":     len(cfg.RateLimit.TrustedProxies),
		}).Info("Rate limiting enabled")
	}

	checker := observability.NewHealthChecker(searchd, redisClient)
	server := api.NewServer(api.NewSearchHandlers(executor), checker, serverOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/health", checker.Readiness).Methods("GET")
	healthRouter.HandleFunc("/health/live", checker.Liveness).Methods("GET")
	healthRouter.HandleFunc("/health/ready", checker.Readiness).Methods("GET")
	healthRouter.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	healthServer := &http.Server{
		Addr:    cfg.Server.HealthAddr(),
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopLimiter()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		conns.Stop()
		return conns.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)

	if path := os.Getenv(config.FileEnvVar); path != "" {
		watcher, err := config.Watch(path, logger, func(next *config.Config) {
			level := next.Observability.Level()
			if level != logger.GetLevel() {
				logger.WithField("level", level.String()).Info("Changing log level")
				logger.SetLevel(level)
			}
		})
		if err != nil {
			logger.WithError(err).Warn("Config reload disabled")
		} else {
			shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
				return watcher.Close()
			})
		}
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
