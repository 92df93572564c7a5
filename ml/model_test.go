package ml

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallParams() ForestParams {
	return ForestParams{Trees: 8, Seed: 42, Tree: TreeParams{MinSamplesLeaf: 1}}
}

func fitPipeline(t *testing.T, n int) *Pipeline {
	t.Helper()
	p := NewPipeline(TrafficSchema, smallParams())
	require.NoError(t, p.Fit(context.Background(), featureFrame(n), featureTargets(n)))
	return p
}

func TestRandomForestDeterministic(t *testing.T) {
	features := [][]float64{{1, 0}, {2, 1}, {3, 0}, {4, 1}, {5, 0}, {6, 1}}
	targets := []float64{10, 20, 30, 40, 50, 60}

	a := NewRandomForest(smallParams())
	b := NewRandomForest(smallParams())
	require.NoError(t, a.Fit(context.Background(), features, targets))
	require.NoError(t, b.Fit(context.Background(), features, targets))

	for _, row := range features {
		pa, err := a.Predict(row)
		require.NoError(t, err)
		pb, err := b.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
		assert.GreaterOrEqual(t, pa, 10.0)
		assert.LessOrEqual(t, pa, 60.0)
	}
}

func TestRandomForestErrors(t *testing.T) {
	f := NewRandomForest(ForestParams{Trees: 0})
	assert.Error(t, f.Fit(context.Background(), [][]float64{{1}}, []float64{1}))

	f = NewRandomForest(smallParams())
	_, err := f.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, f.Fit(context.Background(), [][]float64{{1}, {2}}, []float64{1, 2}))
	_, err = f.Predict([]float64{1, 2})
	assert.Error(t, err, "width mismatch")
}

func TestRandomForestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewRandomForest(smallParams())
	err := f.Fit(ctx, [][]float64{{1}, {2}}, []float64{1, 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelinePredictsFiniteNonNegative(t *testing.T) {
	p := fitPipeline(t, 24*14)

	out, err := p.Predict(featureFrame(24 * 7))
	require.NoError(t, err)
	require.Len(t, out, 24*7)
	for _, v := range out {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestPipelineUnknownCategoryStillPredicts(t *testing.T) {
	p := fitPipeline(t, 24*7)

	row := dataframe.New(
		series.New([]string{"Festivus"}, series.String, ColHoliday),
		series.New([]float64{290}, series.Float, ColTemp),
		series.New([]float64{0}, series.Float, ColRain1h),
		series.New([]float64{0}, series.Float, ColSnow1h),
		series.New([]float64{20}, series.Float, ColCloudsAll),
		series.New([]string{"Squall"}, series.String, ColWeatherMain),
		series.New([]string{"sky is on fire"}, series.String, ColWeatherDescription),
		series.New([]int{8}, series.Int, ColHour),
		series.New([]int{2}, series.Int, ColDayOfWeek),
	)
	out, err := p.Predict(row)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, math.IsNaN(out[0]))
}

func TestPipelineFitRowTargetMismatch(t *testing.T) {
	p := NewPipeline(TrafficSchema, smallParams())
	err := p.Fit(context.Background(), featureFrame(10), featureTargets(9))
	assert.Error(t, err)
}

func TestArtifactRoundTrip(t *testing.T) {
	p := fitPipeline(t, 24*7)
	path := filepath.Join(t.TempDir(), "models", "traffic.bin")
	require.NoError(t, SaveArtifact(path, p))

	loaded, err := LoadArtifact(path, TrafficSchema)
	require.NoError(t, err)
	assert.Len(t, loaded.Forest.Trees, len(p.Forest.Trees))

	input := featureFrame(30)
	want, err := p.Predict(input)
	require.NoError(t, err)
	got, err := loaded.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestArtifactSchemaDrift(t *testing.T) {
	p := fitPipeline(t, 48)
	path := filepath.Join(t.TempDir(), "traffic.bin")
	require.NoError(t, SaveArtifact(path, p))

	other := Schema{Fields: TrafficSchema.Fields[:len(TrafficSchema.Fields)-1]}
	_, err := LoadArtifact(path, other)
	assert.ErrorIs(t, err, ErrSchemaDrift)
}

func TestSaveArtifactKeepsPreviousOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.bin")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	err := SaveArtifact(path, NewPipeline(TrafficSchema, smallParams()))
	assert.ErrorIs(t, err, ErrNotFitted)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestLoadArtifactRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an artifact"), 0o600))
	_, err := LoadArtifact(path, TrafficSchema)
	assert.Error(t, err)
}

func TestTreeNodeJSON(t *testing.T) {
	tree := &RegressionTree{}
	require.NoError(t, tree.Train([][]float64{{1}, {2}}, []float64{5, 7}, []int{0, 1}, TreeParams{}))

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[[0,1.5,1,2,6],[5],[7]]}`, string(data))

	var decoded RegressionTree
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tree.Nodes, decoded.Nodes)
}
