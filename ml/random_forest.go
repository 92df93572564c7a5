package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures forest training.
type ForestParams struct {
	Trees int        `json:"trees"`
	Seed  int64      `json:"seed"`
	Tree  TreeParams `json:"tree"`
}

// DefaultForestParams mirrors the trainer's fixed settings: 100 fully grown
// trees, seed 42.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, Seed: 42, Tree: TreeParams{MinSamplesLeaf: 1}}
}

// RandomForest averages regression trees, each fit on a bootstrap sample of
// the training rows.
type RandomForest struct {
	Params ForestParams      `json:"params"`
	Width  int               `json:"width"`
	Trees  []*RegressionTree `json:"-"`
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit trains the trees in parallel. Every tree's bootstrap seed is drawn from
// the forest seed before any work starts, so results do not depend on
// scheduling.
func (f *RandomForest) Fit(ctx context.Context, features [][]float64, targets []float64) error {
	if f.Params.Trees <= 0 {
		return fmt.Errorf("forest needs at least one tree, got %d", f.Params.Trees)
	}
	if len(features) == 0 {
		return errors.New("features empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}

	rnd := rand.New(rand.NewSource(f.Params.Seed))
	seeds := make([]int64, f.Params.Trees)
	for i := range seeds {
		seeds[i] = rnd.Int63()
	}

	trees := make([]*RegressionTree, f.Params.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples := bootstrap(len(features), seeds[i])
			tree := &RegressionTree{}
			if err := tree.Train(features, targets, samples, f.Params.Tree); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Width = len(features[0])
	f.Trees = trees
	return nil
}

// Predict averages the trees' predictions for one feature row.
func (f *RandomForest) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("forest: %w", ErrNotFitted)
	}
	if len(features) != f.Width {
		return 0, fmt.Errorf("forest: got %d features, want %d", len(features), f.Width)
	}
	var sum float64
	for i, tree := range f.Trees {
		v, err := tree.Predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

func bootstrap(n int, seed int64) []int {
	rnd := rand.New(rand.NewSource(seed))
	samples := make([]int, n)
	for i := range samples {
		samples[i] = rnd.Intn(n)
	}
	return samples
}
