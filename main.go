package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"media-pipeline/internal/catalog"
	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/ops"
	"media-pipeline/internal/processor"
	"media-pipeline/internal/queue"
	"media-pipeline/internal/reaper"
	"media-pipeline/internal/startup"
	"media-pipeline/internal/storage"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize catalog
	dbStart := time.Now()
	cat, err := catalog.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog: %v", err)
	}
	defer cat.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize the media pipeline
	startup.LogPipelineInit(config.FFmpegPath, config.FFprobePath)
	processor.InitVips()
	defer processor.ShutdownVips()

	runner := ffmpeg.NewRunner(config.FFmpegPath, config.FFprobePath)
	proc := processor.New(runner, ffmpeg.DefaultLoudnessOptions())

	// Start the processing queue (sweeps work abandoned by a prior run,
	// then picks up anything already queued)
	q := queue.New(cat, proc, queue.Config{
		ContentDir: config.ContentDir,
		IntakeDir:  config.IntakeDir,
		ScratchDir: config.ScratchDir,
		Retry:      storage.DefaultRetryConfig(),
	})
	if err := q.Start(ctx); err != nil {
		startup.LogFatal("Failed to start queue: %v", err)
	}

	// Start housekeeping
	reaper.New(cat, config.ContentDir, reaper.Config{
		Interval: config.ExpirySweepInterval,
		StaleAge: config.StaleProcessingAge,
	}).Start(ctx)

	// Ops HTTP surface
	server := ops.NewServer(cat)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ops.ListenAndServe(ctx, ":"+config.Port, server.Router(config.LogHealthChecks), 30*time.Second); err != nil {
			logging.Error("Ops server error: %v", err)
		}
	}()

	if config.MetricsEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ops.ListenAndServe(ctx, ":"+config.MetricsPort, ops.MetricsRouter(), 30*time.Second); err != nil {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	// Wait for a shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	startup.LogShutdownStep("Stopping queue and background sweeps")
	cancel()
	startup.LogShutdownStepComplete("Background work stopped")

	startup.LogShutdownStep("Shutting down HTTP servers")
	wg.Wait()
	startup.LogShutdownStepComplete("HTTP servers stopped")

	startup.LogShutdownComplete()
}
