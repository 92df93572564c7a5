// Package pipeline loads the traffic dataset and prepares it for training.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"trafficcast/ml"
)

// ErrMissingColumn is returned when the dataset lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RequiredColumns must be present in the raw dataset. rain_1h and snow_1h are
// not listed: absent ones are filled with zeros by ImputeZero.
var RequiredColumns = []string{
	ml.ColDateTime,
	ml.ColHoliday,
	ml.ColTemp,
	ml.ColCloudsAll,
	ml.ColWeatherMain,
	ml.ColWeatherDescription,
	ml.ColTrafficVolume,
}

// columnTypes pins the storage type of known columns; anything else is
// detected from the data and passed through.
var columnTypes = map[string]series.Type{
	ml.ColDateTime:           series.String,
	ml.ColHoliday:            series.String,
	ml.ColTemp:               series.Float,
	ml.ColRain1h:             series.Float,
	ml.ColSnow1h:             series.Float,
	ml.ColCloudsAll:          series.Float,
	ml.ColWeatherMain:        series.String,
	ml.ColWeatherDescription: series.String,
	ml.ColTrafficVolume:      series.Float,
}

// naValues are the cells read as missing. "None" is a holiday category, not
// a missing value.
var naValues = []string{"", "NA", "NaN", "nan", "<nil>"}

// LoadDatasetFile opens a CSV file written in the named text encoding
// (WHATWG label, e.g. "utf-8", "windows-1252", "gbk").
func LoadDatasetFile(path, encoding string) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer file.Close()

	r, err := decodeReader(file, encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	df, err := LoadDataset(r)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load %s: %w", path, err)
	}
	return df, nil
}

// LoadDataset parses UTF-8 CSV with a header row.
func LoadDataset(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(columnTypes),
		dataframe.NaNValues(naValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

// RequireColumns fails with ErrMissingColumn naming the first absent column.
func RequireColumns(df dataframe.DataFrame, names ...string) error {
	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, name := range names {
		if !present[name] {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

func decodeReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("dataset encoding %q: %w", name, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
