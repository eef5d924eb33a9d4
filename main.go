package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	qhttp "liverrisk/http"
	"liverrisk/logging"
	"liverrisk/ml"
	"liverrisk/monitoring"
)

func main() {
	// 1. Load config
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Load artifacts; without them the form is never offered
	loader := ml.NewLoader(config.artifactPaths())
	bundle, err := loader.Load()
	if err != nil {
		var loadErr *ml.ArtifactLoadError
		if errors.As(err, &loadErr) {
			logger.Fatal("failed to load model artifacts",
				zap.String("artifact", loadErr.Artifact),
				zap.String("path", loadErr.Path),
				zap.Error(loadErr.Err))
		}
		logger.Fatal("failed to load model artifacts", zap.Error(err))
	}
	pipeline, err := ml.NewPipeline(bundle, ml.WithCache(config.Cache.Size))
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}
	logger.Info("artifacts loaded",
		zap.String("model_type", bundle.Classifier.Type()),
		zap.Float64("threshold", bundle.Classifier.Threshold()),
		zap.Strings("columns", bundle.Columns.Names()),
		zap.String("fingerprint", bundle.Fingerprint()))

	deps := qhttp.Deps{
		Pipeline: pipeline,
		Metrics:  monitoring.NewMetricsCollector(),
		Logger:   logger,
	}
	if config.Artifacts.Watch {
		watcher, err := monitoring.WatchArtifacts(loader.Paths().ByArtifact(), logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			deps.Artifacts = watcher
		}
	}

	// 3. Start HTTP server
	server := qhttp.NewServer(config.Http, deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
		return
	}
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}
