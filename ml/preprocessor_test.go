package ml

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// featureFrame builds a table with every TrafficSchema column.
func featureFrame(n int) dataframe.DataFrame {
	temps := make([]float64, n)
	rain := make([]float64, n)
	snow := make([]float64, n)
	clouds := make([]float64, n)
	hours := make([]int, n)
	days := make([]int, n)
	holidays := make([]string, n)
	mains := make([]string, n)
	descs := make([]string, n)
	for i := 0; i < n; i++ {
		temps[i] = 270 + float64(i%20)
		rain[i] = float64(i%3) * 0.5
		clouds[i] = float64(i * 7 % 100)
		hours[i] = i % 24
		days[i] = (i / 24) % 7
		holidays[i] = "None"
		if i%25 == 0 {
			holidays[i] = "Labor Day"
		}
		switch i % 3 {
		case 0:
			mains[i], descs[i] = "Clear", "sky is clear"
		case 1:
			mains[i], descs[i] = "Clouds", "scattered clouds"
		default:
			mains[i], descs[i] = "Rain", "light rain"
		}
	}
	return dataframe.New(
		series.New(holidays, series.String, ColHoliday),
		series.New(temps, series.Float, ColTemp),
		series.New(rain, series.Float, ColRain1h),
		series.New(snow, series.Float, ColSnow1h),
		series.New(clouds, series.Float, ColCloudsAll),
		series.New(mains, series.String, ColWeatherMain),
		series.New(descs, series.String, ColWeatherDescription),
		series.New(hours, series.Int, ColHour),
		series.New(days, series.Int, ColDayOfWeek),
	)
}

// featureTargets is a deterministic function of the frame built above.
func featureTargets(n int) []float64 {
	y := make([]float64, n)
	for i := range y {
		hour := i % 24
		y[i] = 500 + 250*float64(hour)
		if (i/24)%7 >= 5 {
			y[i] -= 300
		}
	}
	return y
}

func TestStandardScaler(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{1, 2, 3, 4}, series.Float, "a"),
		series.New([]int{5, 5, 5, 5}, series.Int, "b"),
	)
	scaler := &StandardScaler{Columns: []string{"a", "b"}}
	require.NoError(t, scaler.Fit(df))

	assert.Equal(t, []float64{2.5, 5}, scaler.Mean)
	assert.InDelta(t, math.Sqrt(1.25), scaler.Scale[0], 1e-12)
	assert.Equal(t, 1.0, scaler.Scale[1], "zero variance keeps scale 1")

	rows, err := scaler.Transform(df)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	var sum float64
	for _, row := range rows {
		sum += row[0]
		assert.Equal(t, 0.0, row[1])
	}
	assert.InDelta(t, 0, sum, 1e-12)
}

func TestStandardScalerRejectsNaN(t *testing.T) {
	df := dataframe.New(series.New([]float64{1, math.NaN()}, series.Float, "a"))
	scaler := &StandardScaler{Columns: []string{"a"}}
	err := scaler.Fit(df)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNaN)
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := &StandardScaler{Columns: []string{"a"}}
	_, err := scaler.Transform(dataframe.New(series.New([]float64{1}, series.Float, "a")))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestOneHotEncoderIgnoresUnknown(t *testing.T) {
	train := dataframe.New(
		series.New([]string{"Rain", "Clear", "Rain"}, series.String, "weather"),
		series.New([]int{0, 6, 3}, series.Int, "dow"),
	)
	enc := &OneHotEncoder{Columns: []string{"weather", "dow"}}
	require.NoError(t, enc.Fit(train))
	assert.Equal(t, [][]string{{"Clear", "Rain"}, {"0", "3", "6"}}, enc.Categories)
	assert.Equal(t, 5, enc.Width())

	rows, err := enc.Transform(dataframe.New(
		series.New([]string{"Clear", "Tornado"}, series.String, "weather"),
		series.New([]int{6, 4}, series.Int, "dow"),
	))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 1}, rows[0])
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, rows[1], "unseen categories encode as zeros")
}

func TestOneHotEncoderMissingCellEncodesAsZeros(t *testing.T) {
	enc := &OneHotEncoder{Columns: []string{"weather"}}
	require.NoError(t, enc.Fit(dataframe.New(
		series.New([]string{"Rain", "Clear"}, series.String, "weather"),
	)))

	// gota reads the literal "NaN" as a missing string
	rows, err := enc.Transform(dataframe.New(
		series.New([]string{"NaN", "Rain"}, series.String, "weather"),
	))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, rows[0])
	assert.Equal(t, []float64{0, 1}, rows[1])
}

func TestOneHotEncoderFitRejectsMissing(t *testing.T) {
	enc := &OneHotEncoder{Columns: []string{"weather"}}
	err := enc.Fit(dataframe.New(
		series.New([]string{"Rain", "NaN"}, series.String, "weather"),
	))
	assert.ErrorIs(t, err, ErrNaN)
}

func TestColumnTransformer(t *testing.T) {
	df := featureFrame(48)
	ct := NewColumnTransformer(TrafficSchema)
	require.NoError(t, ct.Fit(df))

	rows, err := ct.Transform(df)
	require.NoError(t, err)
	require.Len(t, rows, 48)

	names := ct.FeatureNames()
	assert.Len(t, rows[0], len(names))
	assert.Equal(t, "num__temp", names[0])
	assert.Contains(t, names, "cat__holiday_Labor Day")
	assert.Contains(t, names, "cat__day_of_week_1")
}

func TestColumnTransformerDropsExtraColumns(t *testing.T) {
	df := featureFrame(24)
	ct := NewColumnTransformer(TrafficSchema)
	require.NoError(t, ct.Fit(df))

	withExtra := df.Mutate(series.New(make([]string, 24), series.String, ColDateTime))
	a, err := ct.Transform(df)
	require.NoError(t, err)
	b, err := ct.Transform(withExtra)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestColumnTransformerSchemaMismatch(t *testing.T) {
	df := featureFrame(24)
	ct := NewColumnTransformer(TrafficSchema)
	require.NoError(t, ct.Fit(df))

	_, err := ct.Transform(df.Drop(ColWeatherMain))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), ColWeatherMain)

	wrongType := df.Mutate(series.New(make([]string, 24), series.String, ColTemp))
	_, err = ct.Transform(wrongType)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}
