package ml

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// Model is what the predictor needs from a loaded artifact.
type Model interface {
	Predict(df dataframe.DataFrame) ([]float64, error)
}

// Pipeline chains the column transformer and the forest into one fit/predict
// unit. It is the thing persisted as the artifact.
type Pipeline struct {
	Transformer *ColumnTransformer
	Forest      *RandomForest
}

// NewPipeline returns an unfitted pipeline for schema.
func NewPipeline(schema Schema, params ForestParams) *Pipeline {
	return &Pipeline{
		Transformer: NewColumnTransformer(schema),
		Forest:      NewRandomForest(params),
	}
}

// Schema is the feature schema the pipeline was built for.
func (p *Pipeline) Schema() Schema {
	return p.Transformer.Schema
}

// Fit fits the transformer and then the forest on df and targets.
func (p *Pipeline) Fit(ctx context.Context, df dataframe.DataFrame, targets []float64) error {
	if df.Nrow() != len(targets) {
		return fmt.Errorf("pipeline: %d rows but %d targets", df.Nrow(), len(targets))
	}
	if err := p.Transformer.Fit(df); err != nil {
		return err
	}
	features, err := p.Transformer.Transform(df)
	if err != nil {
		return err
	}
	return p.Forest.Fit(ctx, features, targets)
}

// Predict returns one value per row of df.
func (p *Pipeline) Predict(df dataframe.DataFrame) ([]float64, error) {
	if p.Transformer == nil || p.Forest == nil {
		return nil, errors.New("pipeline is incomplete")
	}
	features, err := p.Transformer.Transform(df)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, row := range features {
		v, err := p.Forest.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
