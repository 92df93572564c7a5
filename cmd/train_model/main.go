// Command train_model fits the traffic volume pipeline and writes the model
// artifact. It exits 1 without writing anything if any stage fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trafficcast/config"
	"trafficcast/db"
	"trafficcast/logging"
	"trafficcast/ml"
	"trafficcast/trainer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	dataset := flag.String("dataset", "", "training CSV (overrides dataset.path)")
	modelPath := flag.String("model_path", "", "model output path (overrides model.path)")
	trees := flag.Int("trees", 0, "number of trees (overrides model.trees)")
	maxDepth := flag.Int("max_depth", -1, "max tree depth, 0 = unlimited (overrides model.max_depth)")
	testRatio := flag.Float64("test_ratio", 0, "held-out fraction (overrides model.test_ratio)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "train_model: load config: %v\n", err)
		os.Exit(1)
	}
	if *dataset != "" {
		cfg.Dataset.Path = *dataset
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *trees > 0 {
		cfg.Model.Trees = *trees
	}
	if *maxDepth >= 0 {
		cfg.Model.MaxDepth = *maxDepth
	}
	if *testRatio > 0 {
		cfg.Model.TestRatio = *testRatio
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "train_model: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "train_model: init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("training failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := trainer.Options{
		DatasetPath: cfg.Dataset.Path,
		Encoding:    cfg.Dataset.Encoding,
		ModelPath:   cfg.Model.Path,
		Forest: ml.ForestParams{
			Trees: cfg.Model.Trees,
			Seed:  cfg.Model.Seed,
			Tree: ml.TreeParams{
				MaxDepth:       cfg.Model.MaxDepth,
				MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
			},
		},
		TestRatio: cfg.Model.TestRatio,
		Logger:    logger,
	}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path, nil)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
	}

	report, err := trainer.Run(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("model saved to %s (rmse=%.2f r2=%.4f)\n", report.Artifact, report.Evaluation.RMSE, report.Evaluation.R2)
	return nil
}
