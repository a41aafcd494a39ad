package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/config"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/extractor"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/fetcher"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/ingest"
	"github.com/4Achar-SE4031/4Achar-Backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "configs/config.yaml", "Path to pipeline configuration file")
	listingURL := flag.String("listing-url", "", "Listing page to ingest (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Extract without writing to the database")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	target := cfg.Source.ListingURL
	if *listingURL != "" {
		target = *listingURL
	}

	var eventStore storage.EventStore
	if *dryRun {
		eventStore = storage.NewMemoryStore()
	} else {
		sqlStore, err := storage.NewSQLStore(cfg.DB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialise event store: %v\n", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		eventStore = sqlStore
	}

	mediaStore, err := storage.NewFileMediaStore(cfg.Media.Directory, cfg.Media.MaxSizeBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise media store: %v\n", err)
		os.Exit(1)
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

	pipeline := ingest.NewPipeline(x, eventStore, ingest.NewRegistry(0), nil, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	count := 0
	for event, err := range pipeline.Run(ctx, target) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingestion stopped with error: %v\n", err)
			os.Exit(1)
		}
		if err := enc.Encode(event); err != nil {
			fmt.Fprintf(os.Stderr, "encode event: %v\n", err)
			os.Exit(1)
		}
		count++
	}
	logger.Info("ingestion finished", "listing_url", target, "events", count)
}
