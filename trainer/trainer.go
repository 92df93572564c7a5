// Package trainer turns a traffic CSV into a persisted model artifact.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"trafficcast/db"
	"trafficcast/ml"
	"trafficcast/pipeline"
)

// RunRecorder receives one entry per successful run.
type RunRecorder interface {
	RecordTraining(ctx context.Context, entry db.TrainingLog) error
}

// Options configure one training run.
type Options struct {
	DatasetPath string
	Encoding    string
	ModelPath   string
	Forest      ml.ForestParams
	TestRatio   float64

	Recorder RunRecorder
	Logger   *zap.Logger
	Clock    clockwork.Clock
}

// Report describes a successful run.
type Report struct {
	RunID      string                 `json:"run_id"`
	Artifact   string                 `json:"artifact"`
	TrainRows  int                    `json:"train_rows"`
	TestRows   int                    `json:"test_rows"`
	Cleaning   pipeline.CleaningStats `json:"cleaning"`
	Evaluation ml.Evaluation          `json:"evaluation"`
	Duration   time.Duration          `json:"duration"`
}

// Run loads, cleans and splits the dataset, fits the pipeline on the
// training partition, scores it on the test partition and saves it to
// opts.ModelPath. Any failure before the save leaves no artifact behind.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.ModelPath == "" {
		return nil, errors.New("trainer: model path is required")
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	start := clock.Now()

	raw, err := pipeline.LoadDatasetFile(opts.DatasetPath, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", opts.DatasetPath), zap.Int("rows", raw.Nrow()))

	cleaned, stats, err := pipeline.NewDataCleaner(logger).Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("clean dataset: %w", err)
	}
	x, y, err := pipeline.SplitLabel(cleaned, ml.ColTrafficVolume)
	if err != nil {
		return nil, fmt.Errorf("split label: %w", err)
	}

	trainIdx, testIdx := ml.TrainTestSplit(x.Nrow(), opts.TestRatio, opts.Forest.Seed)
	trainX := x.Subset(trainIdx)
	if trainX.Err != nil {
		return nil, trainX.Err
	}
	testX := x.Subset(testIdx)
	if testX.Err != nil {
		return nil, testX.Err
	}

	model := ml.NewPipeline(ml.TrafficSchema, opts.Forest)
	fitStart := clock.Now()
	if err := model.Fit(ctx, trainX, ml.Gather(y, trainIdx)); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	logger.Info("model fitted",
		zap.Int("trees", len(model.Forest.Trees)),
		zap.Int("features", model.Forest.Width),
		zap.Int("train_rows", len(trainIdx)),
		zap.Duration("elapsed", clock.Since(fitStart)),
	)

	predicted, err := model.Predict(testX)
	if err != nil {
		return nil, fmt.Errorf("score test partition: %w", err)
	}
	eval, err := ml.Evaluate(predicted, ml.Gather(y, testIdx))
	if err != nil {
		return nil, fmt.Errorf("score test partition: %w", err)
	}
	logger.Info("model evaluated",
		zap.Float64("mae", eval.MAE),
		zap.Float64("rmse", eval.RMSE),
		zap.Float64("r2", eval.R2),
		zap.Float64("explained_variance", eval.ExplainedVariance),
	)

	if err := ml.SaveArtifact(opts.ModelPath, model); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}

	report := &Report{
		RunID:      runID,
		Artifact:   opts.ModelPath,
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		Cleaning:   stats,
		Evaluation: eval,
		Duration:   clock.Since(start),
	}
	logger.Info("artifact saved", zap.String("path", opts.ModelPath), zap.Duration("duration", report.Duration))

	if opts.Recorder != nil {
		entry := db.TrainingLog{
			RunID:             runID,
			Dataset:           opts.DatasetPath,
			Artifact:          opts.ModelPath,
			Trees:             opts.Forest.Trees,
			Seed:              opts.Forest.Seed,
			TrainRows:         report.TrainRows,
			TestRows:          report.TestRows,
			MAE:               eval.MAE,
			MSE:               eval.MSE,
			RMSE:              eval.RMSE,
			R2:                eval.R2,
			ExplainedVariance: eval.ExplainedVariance,
			DurationMs:        report.Duration.Milliseconds(),
			TrainedAt:         clock.Now().UTC(),
		}
		// the artifact is already in place; a lost log row is not a failed run
		if err := opts.Recorder.RecordTraining(ctx, entry); err != nil {
			logger.Warn("failed to record training run", zap.Error(err))
		}
	}
	return report, nil
}
