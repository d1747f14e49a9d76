// Command pipeline runs one dataset refresh and exits. It is meant to be
// invoked by an external trigger (CI cron, systemd timer); re-running it
// within the same UTC day is a no-op for already-fetched assets.
//
// Exit codes: 0 full success, 2 partial success (some assets skipped or
// failed), 1 hard failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/HrushiSanap/crypto-top100-automation/internal/config"
	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/coingecko"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/logger"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/publish"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/storage"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/yahoo"
	"github.com/HrushiSanap/crypto-top100-automation/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Pipeline.TimeoutMinutes)*time.Minute)
	defer cancel()

	pipeline, registry, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer registry.Close()

	// 3. Run
	result, err := pipeline.Run(ctx)
	if err != nil {
		log.Error("Run aborted", zap.Error(err))
		os.Exit(1)
	}

	switch result.Status {
	case domain.RunSuccess:
		os.Exit(0)
	case domain.RunPartialSuccess:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (*usecase.Pipeline, *storage.SQLiteRegistry, error) {
	store, err := storage.NewCSVStore(cfg.Dataset.Dir)
	if err != nil {
		return nil, nil, err
	}

	registry, err := storage.NewSQLiteRegistry(cfg.Registry.Path)
	if err != nil {
		return nil, nil, err
	}

	minInterval := time.Duration(cfg.Sources.MinIntervalMs) * time.Millisecond
	backoff := coingecko.WithBackoff(cfg.Sources.MaxAttempts, 2*time.Second)
	ranking := coingecko.NewClient(cfg.Sources.RankingURL, minInterval, log, backoff)
	prices := yahoo.NewClient(cfg.Sources.PriceURL, minInterval, log,
		yahoo.WithBackoff(cfg.Sources.MaxAttempts, 2*time.Second))

	var publisher domain.Publisher
	if cfg.Publish.Enabled {
		p, err := publish.NewS3Publisher(ctx, cfg.Publish.Bucket, cfg.Publish.Prefix, log)
		if err != nil {
			registry.Close()
			return nil, nil, err
		}
		publisher = p
	}

	pipelineCfg := usecase.PipelineConfig{
		TopN:        cfg.Dataset.TopN,
		Concurrency: cfg.Pipeline.Concurrency,
		Dataset: domain.DatasetInfo{
			Title:    cfg.Dataset.Title,
			ID:       cfg.Dataset.ID,
			License:  cfg.Dataset.License,
			Keywords: cfg.Dataset.Keywords,
		},
	}

	return usecase.NewPipeline(ranking, prices, store, registry, publisher, pipelineCfg, log), registry, nil
}
