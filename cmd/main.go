// Command trafficcast serves the traffic volume prediction form.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trafficcast/config"
	"trafficcast/db"
	qhttp "trafficcast/http"
	"trafficcast/logging"
	"trafficcast/ml"
	"trafficcast/monitoring"
	"trafficcast/pipeline"
	"trafficcast/predictor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	modelPath := flag.String("model_path", "", "model artifact (overrides model.path)")
	port := flag.Int("port", 0, "listen port (overrides http.port)")
	flag.Parse()

	if err := run(*configPath, *modelPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "trafficcast: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, modelPath string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if port != 0 {
		cfg.Http.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Domains come from the dataset the model was trained on.
	dataset, err := pipeline.LoadDatasetFile(cfg.Dataset.Path, cfg.Dataset.Encoding)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	domains := pipeline.CategoricalDomains(dataset)

	// 2. The artifact is loaded once and never reloaded.
	model, err := ml.LoadArtifact(cfg.Model.Path, ml.TrafficSchema)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Int("trees", len(model.Forest.Trees)),
		zap.Int("features", model.Forest.Width),
		zap.Int("domains", len(domains)),
	)

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	hub := monitoring.NewHub(logger, metrics)
	go hub.Run(ctx)

	opts := predictor.Options{
		CacheSize: cfg.Cache.Size,
		Feed:      hub,
		Metrics:   metrics,
		Logger:    logger,
	}
	deps := qhttp.Deps{
		Feed:     hub,
		Metrics:  metrics,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path, nil)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		logger.Info("database opened", zap.String("path", cfg.Database.Path))
		opts.Recorder = store
		deps.History = store
	}

	svc, err := predictor.New(model, domains, opts)
	if err != nil {
		return err
	}
	deps.Service = svc

	if err := predictor.WatchArtifact(ctx, cfg.Model.Path, logger, metrics, nil); err != nil {
		logger.Warn("artifact watch disabled", zap.Error(err))
	}

	// 3. Start HTTP server
	server, err := qhttp.NewServer(qhttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	}, deps)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 4. Handle graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
