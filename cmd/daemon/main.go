// Command daemon keeps the pipeline resident and triggers a run on a
// cron schedule (weekly by default). The pipeline itself stays
// trigger-agnostic; this wrapper only supplies the schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/HrushiSanap/crypto-top100-automation/internal/config"
	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/coingecko"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/logger"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/publish"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/storage"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/yahoo"
	"github.com/HrushiSanap/crypto-top100-automation/internal/usecase"
	"github.com/HrushiSanap/crypto-top100-automation/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	logFile := flag.String("log-file", "", "write logs to this file instead of stderr")
	runNow := flag.Bool("run-now", false, "run once immediately on startup, then follow the schedule")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if *logFile != "" {
		log, err = logger.NewFileLogger(*logFile, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Build Pipeline
	store, err := storage.NewCSVStore(cfg.Dataset.Dir)
	if err != nil {
		log.Fatal("Failed to init series store", zap.Error(err))
	}
	registry, err := storage.NewSQLiteRegistry(cfg.Registry.Path)
	if err != nil {
		log.Fatal("Failed to init registry", zap.Error(err))
	}
	defer registry.Close()

	minInterval := time.Duration(cfg.Sources.MinIntervalMs) * time.Millisecond
	ranking := coingecko.NewClient(cfg.Sources.RankingURL, minInterval, log,
		coingecko.WithBackoff(cfg.Sources.MaxAttempts, 2*time.Second))
	prices := yahoo.NewClient(cfg.Sources.PriceURL, minInterval, log,
		yahoo.WithBackoff(cfg.Sources.MaxAttempts, 2*time.Second))

	var publisher domain.Publisher
	if cfg.Publish.Enabled {
		p, err := publish.NewS3Publisher(context.Background(), cfg.Publish.Bucket, cfg.Publish.Prefix, log)
		if err != nil {
			log.Fatal("Failed to init publisher", zap.Error(err))
		}
		publisher = p
	}

	pipeline := usecase.NewPipeline(ranking, prices, store, registry, publisher, usecase.PipelineConfig{
		TopN:        cfg.Dataset.TopN,
		Concurrency: cfg.Pipeline.Concurrency,
		Dataset: domain.DatasetInfo{
			Title:    cfg.Dataset.Title,
			ID:       cfg.Dataset.ID,
			License:  cfg.Dataset.License,
			Keywords: cfg.Dataset.Keywords,
		},
	}, log)

	// Overlapping runs are skipped, not queued; a run that outlives the
	// schedule interval should not stampede the sources.
	var running atomic.Bool
	runOnce := func() {
		if !running.CompareAndSwap(false, true) {
			log.Warn("Previous run still in progress, skipping trigger")
			return
		}
		defer running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Pipeline.TimeoutMinutes)*time.Minute)
		defer cancel()

		result, err := pipeline.Run(ctx)
		if err != nil {
			log.Error("Run aborted", zap.Error(err))
			return
		}
		log.Info("Scheduled run finished", zap.String("status", string(result.Status)))
	}

	// 4. Status Server
	var statusSrv *web.Server
	if cfg.Status.Enabled {
		statusSrv = web.NewServer(cfg.Status.Port, registry, cfg.Dataset.Dir, log)
		go func() {
			if err := statusSrv.Start(); err != nil {
				log.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	// 5. Schedule
	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule.Cron, runOnce); err != nil {
		log.Fatal("Invalid cron schedule", zap.String("schedule", cfg.Schedule.Cron), zap.Error(err))
	}
	c.Start()
	log.Info("Scheduler started", zap.String("schedule", cfg.Schedule.Cron))

	if *runNow {
		go runOnce()
	}

	// 6. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("Status server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	<-c.Stop().Done()
}
