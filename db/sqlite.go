// Package db keeps the training run log and the prediction log in SQLite.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    dataset TEXT NOT NULL,
    artifact TEXT NOT NULL,
    trees INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    train_rows INTEGER NOT NULL,
    test_rows INTEGER NOT NULL,
    mae REAL,
    mse REAL,
    rmse REAL,
    r2 REAL,
    explained_variance REAL,
    duration_ms INTEGER NOT NULL,
    trained_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    input TEXT NOT NULL,
    predicted REAL,
    error TEXT NOT NULL DEFAULT '',
    cached INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
`

// TrainingLog is one row of training_log: a finished trainer run.
type TrainingLog struct {
	RunID             string    `db:"run_id" json:"run_id"`
	Dataset           string    `db:"dataset" json:"dataset"`
	Artifact          string    `db:"artifact" json:"artifact"`
	Trees             int       `db:"trees" json:"trees"`
	Seed              int64     `db:"seed" json:"seed"`
	TrainRows         int       `db:"train_rows" json:"train_rows"`
	TestRows          int       `db:"test_rows" json:"test_rows"`
	MAE               float64   `db:"mae" json:"mae"`
	MSE               float64   `db:"mse" json:"mse"`
	RMSE              float64   `db:"rmse" json:"rmse"`
	R2                float64   `db:"r2" json:"r2"`
	ExplainedVariance float64   `db:"explained_variance" json:"explained_variance"`
	DurationMs        int64     `db:"duration_ms" json:"duration_ms"`
	TrainedAt         time.Time `db:"trained_at" json:"trained_at"`
}

// PredictionLog is one predict action. Input holds the canonical row key;
// Error is empty on success.
type PredictionLog struct {
	RequestID string    `db:"request_id" json:"request_id"`
	Input     string    `db:"input" json:"input"`
	Predicted float64   `db:"predicted" json:"predicted"`
	Error     string    `db:"error" json:"error,omitempty"`
	Cached    bool      `db:"cached" json:"cached"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store is the sqlite-backed run and prediction log.
type Store struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

// Open creates the database file and its parent directory if needed. A nil
// clock means wall time.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: conn, clock: clock}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTraining stamps TrainedAt from the store clock when it is zero.
func (s *Store) RecordTraining(ctx context.Context, entry TrainingLog) error {
	if entry.TrainedAt.IsZero() {
		entry.TrainedAt = s.clock.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO training_log (run_id, dataset, artifact, trees, seed, train_rows, test_rows,
            mae, mse, rmse, r2, explained_variance, duration_ms, trained_at)
        VALUES (:run_id, :dataset, :artifact, :trees, :seed, :train_rows, :test_rows,
            :mae, :mse, :rmse, :r2, :explained_variance, :duration_ms, :trained_at)`, entry)
	if err != nil {
		return fmt.Errorf("record training %s: %w", entry.RunID, err)
	}
	return nil
}

// RecordPrediction appends one served prediction, stamped with the store clock.
func (s *Store) RecordPrediction(ctx context.Context, entry PredictionLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO predictions (request_id, input, predicted, error, cached, created_at)
        VALUES (:request_id, :input, :predicted, :error, :cached, :created_at)`, entry)
	if err != nil {
		return fmt.Errorf("record prediction: %w", err)
	}
	return nil
}

// RecentTrainings returns at most limit runs, newest first.
func (s *Store) RecentTrainings(ctx context.Context, limit int) ([]TrainingLog, error) {
	logs := make([]TrainingLog, 0)
	err := s.db.SelectContext(ctx, &logs, `
        SELECT run_id, dataset, artifact, trees, seed, train_rows, test_rows,
            mae, mse, rmse, r2, explained_variance, duration_ms, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// RecentPredictions returns at most limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionLog, error) {
	logs := make([]PredictionLog, 0)
	err := s.db.SelectContext(ctx, &logs, `
        SELECT request_id, input, predicted, error, cached, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
