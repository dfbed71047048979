package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealmungchi/pricewatch/config"
	"github.com/dealmungchi/pricewatch/helpers"
	"github.com/dealmungchi/pricewatch/internal"
	"github.com/dealmungchi/pricewatch/internal/crawler"
	"github.com/dealmungchi/pricewatch/internal/ledger"
	"github.com/dealmungchi/pricewatch/logger"
	"github.com/dealmungchi/pricewatch/services/cache"
	"github.com/dealmungchi/pricewatch/services/metrics"
	"github.com/dealmungchi/pricewatch/services/notifier"
	"github.com/dealmungchi/pricewatch/services/publisher"
	"github.com/dealmungchi/pricewatch/services/worker"
)

// lruBlockSlots bounds the in-process block cache
const lruBlockSlots = 1024

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	var configPath, schedule string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to YAML config.")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to YAML config (shorthand).")
	flag.StringVar(&schedule, "schedule", "", "Cron spec to keep running, e.g. \"@every 6h\". Empty runs once.")
	flag.Parse()

	runtime := config.LoadRuntime()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Str("config", configPath).Msg("Invalid configuration")
		return 1
	}

	store := ledger.NewFileStore(runtime.StateFile)

	log.Info().
		Str("environment", runtime.Environment).
		Str("state_file", store.Path()).
		Int("products", len(cfg.Products)).
		Int("searches", len(cfg.Searches)).
		Msg("Starting application")

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg, runtime)
	defer services.Cleanup()

	fetcher := helpers.NewHTTPFetcher(services.Cache, runtime.FetchBlockTime)
	w := worker.NewWorker(
		cfg,
		store,
		crawler.NewPageCrawler(fetcher, cfg.Headers),
		crawler.NewListingCrawler(fetcher, cfg.Headers),
		services.Dependencies,
		runtime.FetchConcurrency,
	)

	if schedule == "" {
		if _, err := w.Cycle(ctx); err != nil {
			logger.LogError("main", err, "Run failed")
			return 1
		}
		return 0
	}

	metricsServer := startMetricsServer(runtime.MetricsAddr, services.Dependencies.Metrics)
	if err := w.Start(ctx, schedule); err != nil {
		log.Error().Err(err).Msg("Scheduler failed")
		return 1
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	return 0
}

// Services holds all the initialized services
type Services struct {
	Cache        cache.CacheService
	Dependencies internal.Dependencies
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Dependencies.Publisher != nil {
		s.Dependencies.Publisher.Close()
	}
}

// initializeServices wires the optional services. Missing settings disable a
// service instead of failing the run.
func initializeServices(ctx context.Context, cfg *config.Config, runtime *config.Runtime) *Services {
	services := &Services{
		Dependencies: internal.Dependencies{Metrics: metrics.NewMetrics()},
	}

	// Initialize block cache
	if runtime.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(runtime.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", runtime.MemcacheAddr).Msg("Memcache unavailable; using in-process cache")
		} else {
			services.Cache = memcacheService
			logger.Info("Connected to Memcache at %s", runtime.MemcacheAddr)
		}
	}
	if services.Cache == nil {
		services.Cache = cache.NewLRUService(lruBlockSlots, runtime.FetchBlockTime)
	}

	// Initialize notifier
	if err := cfg.CheckSMTP(); err != nil {
		logger.ForNotifier().Warn().Err(err).Msg("SMTP not fully configured; alerts will be logged but not emailed")
	} else {
		services.Dependencies.Notifier = notifier.NewEmailNotifier(cfg.SMTP)
	}

	// Initialize publisher
	if runtime.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			runtime.RedisAddr,
			runtime.RedisDB,
			runtime.RedisStream,
			runtime.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", runtime.RedisAddr).Msg("Redis unavailable; alerts will not be streamed")
			redisPublisher.Close()
		} else {
			services.Dependencies.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				runtime.RedisAddr, runtime.RedisDB, runtime.RedisStream)
		}
	}

	return services
}

// startMetricsServer serves Prometheus metrics when addr is set
func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ForWorker().Error().Err(err).Msg("Metrics server failed")
		}
	}()
	logger.Info("Metrics server enabled on %s", addr)
	return server
}
