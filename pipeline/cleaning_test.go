package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"trafficcast/ml"
)

const sampleCSV = "testdata/traffic_sample.csv"

func TestLoadDatasetFile(t *testing.T) {
	df, err := LoadDatasetFile(sampleCSV, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, 96, df.Nrow())
	require.NoError(t, RequireColumns(df, RequiredColumns...))

	assert.Equal(t, series.String, df.Col(ml.ColHoliday).Type())
	assert.Equal(t, series.Float, df.Col(ml.ColCloudsAll).Type())
	assert.Equal(t, "None", df.Col(ml.ColHoliday).Records()[0], "None is a category, not a missing value")
	assert.True(t, df.Col(ml.ColRain1h).IsNaN()[3])
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDatasetFile(filepath.Join(t.TempDir(), "nope.csv"), "")
	assert.Error(t, err)
}

func TestLoadDatasetEncoding(t *testing.T) {
	raw := "holiday,weather_description\nNone,café fog\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(raw)
	require.NoError(t, err)

	r, err := decodeReader(strings.NewReader(encoded), "windows-1252")
	require.NoError(t, err)
	df, err := LoadDataset(r)
	require.NoError(t, err)
	assert.Equal(t, "café fog", df.Col(ml.ColWeatherDescription).Records()[0])

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte(raw)...)
	r, err = decodeReader(bytes.NewReader(bom), "utf-8")
	require.NoError(t, err)
	df, err = LoadDataset(r)
	require.NoError(t, err)
	assert.Equal(t, []string{ml.ColHoliday, ml.ColWeatherDescription}, df.Names())

	_, err = decodeReader(strings.NewReader(raw), "klingon")
	assert.Error(t, err)
}

func TestCleanSample(t *testing.T) {
	df, err := LoadDatasetFile(sampleCSV, "utf-8")
	require.NoError(t, err)

	cleaned, stats, err := NewDataCleaner(nil).Clean(df)
	require.NoError(t, err)
	assert.Equal(t, 96, stats.Rows)
	assert.Equal(t, 9, stats.Imputed[ml.ColRain1h])
	assert.Equal(t, 7, stats.Imputed[ml.ColSnow1h])

	assert.NotContains(t, cleaned.Names(), ml.ColDateTime)
	for _, col := range []string{ml.ColRain1h, ml.ColSnow1h} {
		for _, isNaN := range cleaned.Col(col).IsNaN() {
			require.False(t, isNaN, col)
		}
	}

	// 2013-09-16 was a Monday.
	hours, err := cleaned.Col(ml.ColHour).Int()
	require.NoError(t, err)
	days, err := cleaned.Col(ml.ColDayOfWeek).Int()
	require.NoError(t, err)
	assert.Equal(t, 12, hours[12])
	assert.Equal(t, 0, days[12])
	assert.Equal(t, 1, days[24])
	assert.Equal(t, 5545.0, cleaned.Col(ml.ColTrafficVolume).Float()[12])

	x, y, err := SplitLabel(cleaned, ml.ColTrafficVolume)
	require.NoError(t, err)
	assert.Len(t, y, 96)
	assert.NotContains(t, x.Names(), ml.ColTrafficVolume)
	require.NoError(t, ml.TrafficSchema.Validate(x))
}

func TestImputeZeroAddsAbsentColumn(t *testing.T) {
	df, err := LoadDataset(strings.NewReader("temp,rain_1h\n280,\n281,0.5\n"))
	require.NoError(t, err)

	df, filled := ImputeZero(df, ml.ColRain1h)
	assert.Equal(t, 1, filled)
	assert.Equal(t, []float64{0, 0.5}, df.Col(ml.ColRain1h).Float())

	df, filled = ImputeZero(df, ml.ColSnow1h)
	assert.Equal(t, 2, filled)
	assert.Equal(t, []float64{0, 0}, df.Col(ml.ColSnow1h).Float())
}

func TestCleanFailures(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr error
		msg     string
	}{
		{
			name:    "missing column",
			csv:     "holiday,temp,clouds_all,weather_main,weather_description,traffic_volume\nNone,280,1,Clear,sky is clear,100\n",
			wantErr: ErrMissingColumn,
			msg:     "date_time",
		},
		{
			name: "bad timestamp",
			csv: "holiday,temp,clouds_all,weather_main,weather_description,date_time,traffic_volume\n" +
				"None,280,1,Clear,sky is clear,2013-09-16 00:00:00,100\n" +
				"None,280,1,Clear,sky is clear,yesterday-ish,100\n",
			msg: "row 1",
		},
		{
			name: "missing timestamp",
			csv: "holiday,temp,clouds_all,weather_main,weather_description,date_time,traffic_volume\n" +
				"None,280,1,Clear,sky is clear,,100\n",
			msg: "date_time is missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df, err := LoadDataset(strings.NewReader(tt.csv))
			require.NoError(t, err)
			_, _, err = NewDataCleaner(nil).Clean(df)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSplitLabelMissingValue(t *testing.T) {
	df, err := LoadDataset(strings.NewReader("temp,traffic_volume\n280,100\n281,\n"))
	require.NoError(t, err)
	_, _, err = SplitLabel(df, ml.ColTrafficVolume)
	assert.ErrorContains(t, err, "row 1")
}

func TestParseTimestamp(t *testing.T) {
	for _, v := range []string{
		"2013-09-16 12:00:00",
		"2013-09-16T12:00:00",
		"2013-09-16T12:00:00Z",
		"2013-09-16 12:00",
		"09/16/2013 12:00",
	} {
		ts, err := ParseTimestamp(v)
		require.NoError(t, err, v)
		assert.Equal(t, 12, ts.Hour(), v)
		assert.Equal(t, 0, DayOfWeek(ts), v)
	}
	_, err := ParseTimestamp("16.09.2013")
	assert.Error(t, err)
}
