package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allSamples(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func TestRegressionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	targets := []float64{10, 12, 100, 110}

	model := &RegressionTree{}
	require.NoError(t, model.Train(features, targets, allSamples(len(features)), TreeParams{}))

	got, err := model.Predict([]float64{0.15, 0.15})
	require.NoError(t, err)
	assert.InDelta(t, 11, got, 1.01)

	got, err = model.Predict([]float64{0.95, 0.95})
	require.NoError(t, err)
	assert.InDelta(t, 105, got, 5.01)
}

func TestRegressionTreeFitsTrainingDataExactly(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}}
	targets := []float64{3, 1, 4, 1, 5}

	model := &RegressionTree{}
	require.NoError(t, model.Train(features, targets, allSamples(5), TreeParams{}))

	for i, row := range features {
		got, err := model.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, targets[i], got)
	}
}

func TestRegressionTreeMaxDepth(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	targets := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	model := &RegressionTree{}
	require.NoError(t, model.Train(features, targets, allSamples(8), TreeParams{MaxDepth: 1}))
	assert.Equal(t, 1, model.Depth())

	got, err := model.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestRegressionTreeMinSamplesLeaf(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {4}}
	targets := []float64{0, 0, 0, 100}

	model := &RegressionTree{}
	require.NoError(t, model.Train(features, targets, allSamples(4), TreeParams{MinSamplesLeaf: 2}))

	got, err := model.Predict([]float64{4})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got)
}

func TestRegressionTreeConstantFeatureIsLeaf(t *testing.T) {
	features := [][]float64{{1}, {1}, {1}}
	targets := []float64{1, 2, 3}

	model := &RegressionTree{}
	require.NoError(t, model.Train(features, targets, allSamples(3), TreeParams{}))
	require.Len(t, model.Nodes, 1)
	assert.Equal(t, 2.0, model.Nodes[0].Value)
}

func TestRegressionTreeErrors(t *testing.T) {
	model := &RegressionTree{}
	_, err := model.Predict([]float64{1})
	assert.Error(t, err, "untrained")

	assert.Error(t, model.Train(nil, nil, nil, TreeParams{}))
	assert.Error(t, model.Train([][]float64{{1}}, []float64{1, 2}, []int{0}, TreeParams{}))
	assert.Error(t, model.Train([][]float64{{1}}, []float64{1}, nil, TreeParams{}))
}
