package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"trafficcast/ml"
)

// CleaningRule is one stage of the fixed cleaning sequence.
type CleaningRule interface {
	Apply(df dataframe.DataFrame, stats *CleaningStats) (dataframe.DataFrame, error)
	Name() string
}

// CleaningStats summarises one Clean call.
type CleaningStats struct {
	Rows    int            `json:"rows"`
	Imputed map[string]int `json:"imputed"`
}

// DataCleaner runs its rules in order. The first failing rule aborts the run.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger
}

// NewDataCleaner returns the training cleaner: required column check, rain
// and snow imputation, then hour/day_of_week extraction.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{logger: logger}
	cleaner.AddRule(RequiredColumnsRule{Columns: RequiredColumns})
	cleaner.AddRule(ZeroImputeRule{Columns: []string{ml.ColRain1h, ml.ColSnow1h}})
	cleaner.AddRule(TimeFeatureRule{Column: ml.ColDateTime})
	return cleaner
}

// AddRule appends a rule after the built-in ones.
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean applies the rules in order and stops at the first error.
func (dc *DataCleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, CleaningStats, error) {
	stats := CleaningStats{Rows: df.Nrow(), Imputed: make(map[string]int)}
	for _, rule := range dc.rules {
		var err error
		df, err = rule.Apply(df, &stats)
		if err != nil {
			return dataframe.DataFrame{}, stats, fmt.Errorf("%s: %w", rule.Name(), err)
		}
	}
	dc.logger.Info("dataset cleaned",
		zap.Int("rows", stats.Rows),
		zap.Any("imputed", stats.Imputed),
		zap.Strings("columns", df.Names()),
	)
	return df, stats, nil
}

// ============ rules ============

// RequiredColumnsRule rejects empty frames and missing columns.
type RequiredColumnsRule struct {
	Columns []string
}

func (r RequiredColumnsRule) Name() string { return "required_columns" }

func (r RequiredColumnsRule) Apply(df dataframe.DataFrame, _ *CleaningStats) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}
	if df.Nrow() == 0 {
		return df, errors.New("dataset has no rows")
	}
	return df, RequireColumns(df, r.Columns...)
}

// ZeroImputeRule replaces missing values with 0.0. A column absent from the
// dataset is added as all zeros.
type ZeroImputeRule struct {
	Columns []string
}

func (r ZeroImputeRule) Name() string { return "zero_impute" }

func (r ZeroImputeRule) Apply(df dataframe.DataFrame, stats *CleaningStats) (dataframe.DataFrame, error) {
	for _, col := range r.Columns {
		var filled int
		df, filled = ImputeZero(df, col)
		if df.Err != nil {
			return df, df.Err
		}
		if stats != nil && filled > 0 {
			stats.Imputed[col] += filled
		}
	}
	return df, nil
}

// ImputeZero returns df with NaN cells of col set to 0 and the number of
// cells filled.
func ImputeZero(df dataframe.DataFrame, col string) (dataframe.DataFrame, int) {
	if RequireColumns(df, col) != nil {
		return df.Mutate(series.New(make([]float64, df.Nrow()), series.Float, col)), df.Nrow()
	}
	values := df.Col(col).Float()
	filled := 0
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = 0
			filled++
		}
	}
	return df.Mutate(series.New(values, series.Float, col)), filled
}

// TimeFeatureRule replaces the timestamp column with hour (0-23) and
// day_of_week (0=Monday .. 6=Sunday).
type TimeFeatureRule struct {
	Column string
}

func (r TimeFeatureRule) Name() string { return "time_features" }

func (r TimeFeatureRule) Apply(df dataframe.DataFrame, _ *CleaningStats) (dataframe.DataFrame, error) {
	return ExtractTimeFeatures(df, r.Column)
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// ParseTimestamp accepts the date-time layouts seen in traffic exports.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// DayOfWeek numbers days from Monday=0.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ExtractTimeFeatures replaces col with hour and day_of_week (Monday=0) columns.
func ExtractTimeFeatures(df dataframe.DataFrame, col string) (dataframe.DataFrame, error) {
	if err := RequireColumns(df, col); err != nil {
		return df, err
	}
	s := df.Col(col)
	nas := s.IsNaN()
	hours := make([]int, s.Len())
	days := make([]int, s.Len())
	for i, raw := range s.Records() {
		if nas[i] {
			return df, fmt.Errorf("row %d: %s is missing", i, col)
		}
		t, err := ParseTimestamp(raw)
		if err != nil {
			return df, fmt.Errorf("row %d: %w", i, err)
		}
		hours[i] = t.Hour()
		days[i] = DayOfWeek(t)
	}

	out := df.
		Mutate(series.New(hours, series.Int, ml.ColHour)).
		Mutate(series.New(days, series.Int, ml.ColDayOfWeek)).
		Drop(col)
	if out.Err != nil {
		return df, out.Err
	}
	return out, nil
}

// SplitLabel separates the label column from the feature columns.
func SplitLabel(df dataframe.DataFrame, label string) (dataframe.DataFrame, []float64, error) {
	if err := RequireColumns(df, label); err != nil {
		return df, nil, err
	}
	y := df.Col(label).Float()
	for i, v := range y {
		if math.IsNaN(v) {
			return df, nil, fmt.Errorf("row %d: %s is missing or not numeric", i, label)
		}
	}
	x := df.Drop(label)
	if x.Err != nil {
		return df, nil, x.Err
	}
	return x, y, nil
}
