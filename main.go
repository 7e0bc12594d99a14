package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"campovivo/landworker/config"
	"campovivo/landworker/internal/dedup"
	"campovivo/landworker/internal/monitoring"
	"campovivo/landworker/internal/parser"
	"campovivo/landworker/logger"
	"campovivo/landworker/services/cache"
	"campovivo/landworker/services/publisher"
	"campovivo/landworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Strs("dedup_strategies", cfg.DedupStrategies).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	metrics := monitoring.NewMetrics()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, metrics)
	}

	// Create parsers
	parsers := parser.CreateParsers(&cfg, services.Cache, services.Browser, metrics.RetriesTotal.Inc)
	if len(parsers) == 0 {
		log.Fatal().Msg("No parsers were created")
	}

	log.Info().
		Int("parser_count", len(parsers)).
		Msg("Created parsers")

	// Create and start worker
	w := worker.NewWorker(
		ctx,
		parsers,
		services.Checker,
		services.Seen,
		services.Publisher,
		metrics,
		cfg.CrawlInterval,
	)

	// Start worker in a goroutine
	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting land listing worker")
		w.Start()
		close(workerDone)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case <-workerDone:
		log.Info().Msg("Worker exited")
	}

	// Graceful shutdown: flush error journals and persist dedup state
	log.Info().Msg("Shutting down gracefully...")
	for _, p := range parsers {
		p.Close()
	}
	services.Checker.SaveCache()
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Checker   *dedup.Checker
	Seen      *dedup.SeenStore
	Browser   *parser.BrowserFetcher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Browser != nil {
		s.Browser.Close()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if cacheService == nil {
		return nil, fmt.Errorf("failed to create cache service")
	}
	services.Cache = cacheService

	logger.Default.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if redisPublisher == nil {
		return nil, fmt.Errorf("failed to create redis publisher")
	}
	services.Publisher = redisPublisher

	logger.Default.Info().
		Str("addr", cfg.RedisAddr).
		Int("db", cfg.RedisDB).
		Str("stream", cfg.RedisStream).
		Msg("Connected to Redis")

	// Initialize dedup state
	strategies := make([]dedup.Strategy, 0, len(cfg.DedupStrategies))
	for _, s := range cfg.DedupStrategies {
		strategies = append(strategies, dedup.Strategy(s))
	}
	services.Checker = dedup.NewChecker(dedup.CheckerConfig{
		CacheFile:       cfg.CacheFile,
		MaxAgeDays:      cfg.MaxAgeDays,
		Strategies:      strategies,
		DisableAutoSave: !cfg.AutoSave,
	})
	services.Seen = dedup.NewSeenStore(cfg.SeenFile)

	// Headless browser for JS-rendered search pages
	if cfg.BrowserEnabled {
		services.Browser = parser.NewBrowserFetcher(cfg.PageLoadTimeout)
	}

	return services, nil
}

func serveMetrics(addr string, metrics *monitoring.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Default.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Default.Error().Err(err).Msg("Metrics server stopped")
	}
}
