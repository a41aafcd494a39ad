package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/api"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/config"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/extractor"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/fetcher"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/ingest"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "configs/config.yaml", "Path to pipeline configuration")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting api server", "addr", cfg.HTTP.Addr, "listing_url", cfg.Source.ListingURL)

	eventStore, err := storage.NewSQLStore(cfg.DB)
	if err != nil {
		logger.Error("initialise event store failed", "error", err)
		log.Fatalf("failed to initialise event store: %v", err)
	}
	defer eventStore.Close()

	mediaStore, err := storage.NewFileMediaStore(cfg.Media.Directory, cfg.Media.MaxSizeBytes)
	if err != nil {
		log.Fatalf("failed to initialise media store: %v", err)
	}

	limiter := fetcher.NewHostLimiter(cfg.Source.PerHostDelay.Duration, fetcher.RateLimit{
		Requests: cfg.Source.RateLimit.Requests,
		Window:   cfg.Source.RateLimit.Window.Duration,
	})
	client := fetcher.NewClient(fetcher.Options{
		UserAgent:    cfg.Source.UserAgent,
		Timeout:      cfg.Source.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Source.MaxBodyBytes,
		Limiter:      limiter,
	})

	x := extractor.New(client, mediaStore, extractor.Options{
		BaseURL:     cfg.Source.BaseURL,
		DefaultCity: cfg.Source.DefaultCity,
		Category:    cfg.Source.Category,
	}, logger)

	promReg := prometheus.NewRegistry()
	registry := ingest.NewRegistry(0)
	pipeline := ingest.NewPipeline(x, eventStore, registry, ingest.NewMetrics(promReg), logger)

	server := api.NewServer(pipeline, registry, promReg, cfg.Source.ListingURL, logger)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		timeout := cfg.HTTP.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("api server listening", "addr", cfg.HTTP.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("API server stopped")
}
