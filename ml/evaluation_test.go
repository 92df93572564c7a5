package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	actual := []float64{3, -0.5, 2, 7}
	predicted := []float64{2.5, 0.0, 2, 8}

	ev, err := Evaluate(predicted, actual)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, ev.MAE, 1e-12)
	assert.InDelta(t, 0.375, ev.MSE, 1e-12)
	assert.InDelta(t, 0.6123724356957945, ev.RMSE, 1e-12)
	assert.InDelta(t, 0.9486081370449679, ev.R2, 1e-12)
	assert.InDelta(t, 0.9571734475374732, ev.ExplainedVariance, 1e-12)
}

func TestEvaluateDegenerate(t *testing.T) {
	ev, err := Evaluate([]float64{4, 4}, []float64{4, 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.R2)

	ev, err = Evaluate([]float64{3, 5}, []float64{4, 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.R2)

	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
	_, err = Evaluate([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	train, test := TrainTestSplit(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d repeated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train2, test2 := TrainTestSplit(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3 := TrainTestSplit(5, 0.2, 1)
	assert.Len(t, test3, 1)
}

func TestGather(t *testing.T) {
	assert.Equal(t, []float64{30, 10}, Gather([]float64{10, 20, 30}, []int{2, 0}))
}

func TestSchema(t *testing.T) {
	assert.Equal(t, []string{ColTemp, ColRain1h, ColSnow1h, ColCloudsAll, ColHour}, TrafficSchema.Numeric())
	assert.Equal(t, []string{ColHoliday, ColWeatherMain, ColWeatherDescription, ColDayOfWeek}, TrafficSchema.Categorical())
	assert.True(t, TrafficSchema.Equal(TrafficSchema))

	text, err := Categorical.MarshalText()
	require.NoError(t, err)
	var k Kind
	require.NoError(t, k.UnmarshalText(text))
	assert.Equal(t, Categorical, k)
	assert.Error(t, k.UnmarshalText([]byte("ordinal")))
}
