package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficcast/ml"
)

func TestCategoricalDomainsSample(t *testing.T) {
	df, err := LoadDatasetFile(sampleCSV, "utf-8")
	require.NoError(t, err)

	domains := CategoricalDomains(df)
	require.Len(t, domains, 4)

	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = d.Column
	}
	assert.Equal(t, []string{ml.ColHoliday, ml.ColWeatherMain, ml.ColWeatherDescription, ml.ColDateTime}, names)

	assert.Equal(t, []string{"None", "Labor Day"}, domains[0].Values)
	assert.Equal(t, []string{"Clouds", "Clear", "Rain", "Mist"}, domains[1].Values)
	assert.Equal(t, "Clouds", domains[1].Default())
	assert.True(t, domains[2].Contains("light rain"))
	assert.Len(t, domains[3].Values, 96)
}

func TestCategoricalDomainsSkipsMissing(t *testing.T) {
	df, err := LoadDataset(strings.NewReader("holiday,weather_main,temp\n,Snow,270\nNA,Snow,271\n"))
	require.NoError(t, err)

	domains := CategoricalDomains(df)
	require.Len(t, domains, 2)
	assert.Empty(t, domains[0].Values)
	assert.Equal(t, "", domains[0].Default())
	assert.Equal(t, []string{"Snow"}, domains[1].Values)
}
