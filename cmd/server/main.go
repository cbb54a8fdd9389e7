package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beacon/internal/adapters/cache"
	"beacon/internal/adapters/events"
	"beacon/internal/adapters/fetch"
	httpadapter "beacon/internal/adapters/http"
	"beacon/internal/adapters/llm"
	pg "beacon/internal/adapters/postgres"
	"beacon/internal/config"
	"beacon/internal/metrics"
	"beacon/internal/ports"
	"beacon/internal/services/analytics"
	"beacon/internal/services/competitors"
	"beacon/internal/services/orchestrator"
	profsvc "beacon/internal/services/profiles"
	scansvc "beacon/internal/services/scanner"
	scanworker "beacon/internal/workers/scanrunner"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "beacon")
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("config", "error", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	// Wire repositories to services (ports)
	var _ ports.DomainRepository = db
	var _ ports.ScanRepository = db
	var _ ports.ScanStore = db
	var _ ports.CompetitorStore = db
	var _ ports.AnalyticsReader = db
	var _ ports.JobRepository = db

	var fetcher ports.PageFetcher = fetch.New(fetch.DefaultTimeout, fetch.DefaultSizeCap)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("page cache disabled", "error", err)
		} else {
			defer rdb.Close()
			fetcher = cache.NewPageCache(fetcher, rdb, cfg.PageCacheTTL, logger)
		}
	}

	var publisher ports.EventPublisher = events.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("kafka publisher error: %v", err)
		}
		defer kp.Close()
		publisher = kp
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	prometheus.MustRegister(metrics.NewJobCollector(db))

	extractor := llm.New(llm.Options{
		APIKey:      cfg.OpenAIKey,
		Model:       cfg.ExtractionModel,
		Temperature: 0.1,
		MaxRetries:  2,
	})
	providers := llm.NewProviders(configuredProviders(cfg.Settings, logger), nil)

	pipeline := orchestrator.New(orchestrator.Dependencies{
		LLM:         extractor,
		Providers:   providers,
		Fetcher:     fetcher,
		Scans:       db,
		Competitors: db,
		Events:      publisher,
		Observer:    recorder,
		Logger:      logger,
	}, orchestratorConfig(cfg))

	scanner := scansvc.New(db, db, cfg.Settings)
	profiles := profsvc.New(db)
	processor := scanworker.PipelineProcessor{
		Scans:     db,
		Jobs:      db,
		Pipeline:  pipeline,
		Plans:     cfg.Settings,
		Providers: providers.Names(),
		Timeout:   cfg.ScanTimeout,
		Logger:    logger,
	}

	srv := httpadapter.New(scanner, profiles, competitors.NewService(db), analytics.New(db), db, processor, logger)
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", srv.Routes())

	// Optional background job workers
	workersDone := make(chan struct{})
	if cfg.ScanWorkers > 0 {
		go func() {
			scanworker.Run(ctx, db, processor, cfg.ScanWorkers, 500*time.Millisecond, logger)
			close(workersDone)
		}()
		logger.Info("scan workers started", "count", cfg.ScanWorkers)
	} else {
		close(workersDone)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("workers did not drain before shutdown deadline")
	}
}
