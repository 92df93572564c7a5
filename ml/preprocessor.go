package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNaN is returned when a numeric cell, or a categorical cell at fit time, is missing.
	ErrNaN       = errors.New("input contains NaN")
	// ErrNotFitted is returned by Transform and Predict before Fit.
	ErrNotFitted = errors.New("not fitted")
)

// StandardScaler centres numeric columns on the training mean and divides by
// the training (population) standard deviation.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// Fit records the mean and population standard deviation of each column.
func (s *StandardScaler) Fit(df dataframe.DataFrame) error {
	s.Mean = make([]float64, len(s.Columns))
	s.Scale = make([]float64, len(s.Columns))
	for i, col := range s.Columns {
		values := df.Col(col).Float()
		if len(values) == 0 {
			return fmt.Errorf("scaler: column %q is empty", col)
		}
		if row := firstNaN(values); row >= 0 {
			return fmt.Errorf("scaler: column %q row %d: %w", col, row, ErrNaN)
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[i] = mean
		s.Scale[i] = std
	}
	return nil
}

// Transform returns one scaled vector per row.
func (s *StandardScaler) Transform(df dataframe.DataFrame) ([][]float64, error) {
	if len(s.Mean) != len(s.Columns) {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}
	rows := make([][]float64, df.Nrow())
	for i := range rows {
		rows[i] = make([]float64, len(s.Columns))
	}
	for j, col := range s.Columns {
		values := df.Col(col).Float()
		if row := firstNaN(values); row >= 0 {
			return nil, fmt.Errorf("scaler: column %q row %d: %w", col, row, ErrNaN)
		}
		for i, v := range values {
			rows[i][j] = (v - s.Mean[j]) / s.Scale[j]
		}
	}
	return rows, nil
}

// OneHotEncoder expands each categorical column into one indicator per
// category seen during Fit. A category not seen during Fit encodes as all
// zeros.
type OneHotEncoder struct {
	Columns    []string   `json:"columns"`
	Categories [][]string `json:"categories"`
}

// Fit collects each column's categories, sorted. A missing cell is an error.
func (e *OneHotEncoder) Fit(df dataframe.DataFrame) error {
	e.Categories = make([][]string, len(e.Columns))
	for i, col := range e.Columns {
		s := df.Col(col)
		if row := firstTrue(s.IsNaN()); row >= 0 {
			return fmt.Errorf("encoder: column %q row %d: %w", col, row, ErrNaN)
		}
		seen := make(map[string]struct{})
		for _, v := range s.Records() {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[i] = cats
	}
	return nil
}

// Width is the number of output columns.
func (e *OneHotEncoder) Width() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// Transform one-hot encodes df. Unseen and missing values get an all-zero block.
func (e *OneHotEncoder) Transform(df dataframe.DataFrame) ([][]float64, error) {
	if len(e.Categories) != len(e.Columns) {
		return nil, fmt.Errorf("encoder: %w", ErrNotFitted)
	}
	rows := make([][]float64, df.Nrow())
	width := e.Width()
	for i := range rows {
		rows[i] = make([]float64, width)
	}
	offset := 0
	for j, col := range e.Columns {
		s := df.Col(col)
		missing := s.IsNaN()
		index := make(map[string]int, len(e.Categories[j]))
		for k, c := range e.Categories[j] {
			index[c] = k
		}
		for i, v := range s.Records() {
			// a missing cell is one more unseen category
			if missing[i] {
				continue
			}
			if k, ok := index[v]; ok {
				rows[i][offset+k] = 1
			}
		}
		offset += len(e.Categories[j])
	}
	return rows, nil
}

// ColumnTransformer routes the schema's numeric columns through a
// StandardScaler and its categorical columns through a OneHotEncoder, then
// concatenates the two blocks. Columns outside the schema are dropped.
type ColumnTransformer struct {
	Schema  Schema          `json:"schema"`
	Scaler  *StandardScaler `json:"scaler"`
	Encoder *OneHotEncoder  `json:"encoder"`
}

// NewColumnTransformer returns an unfitted transformer for schema.
func NewColumnTransformer(schema Schema) *ColumnTransformer {
	return &ColumnTransformer{
		Schema:  schema,
		Scaler:  &StandardScaler{Columns: schema.Numeric()},
		Encoder: &OneHotEncoder{Columns: schema.Categorical()},
	}
}

// Fit validates df against the schema and fits both blocks.
func (t *ColumnTransformer) Fit(df dataframe.DataFrame) error {
	if err := t.Schema.Validate(df); err != nil {
		return err
	}
	if df.Nrow() == 0 {
		return errors.New("column transformer: no rows to fit")
	}
	if err := t.Scaler.Fit(df); err != nil {
		return err
	}
	return t.Encoder.Fit(df)
}

// Transform returns the scaled numeric block followed by the one-hot block, per row.
func (t *ColumnTransformer) Transform(df dataframe.DataFrame) ([][]float64, error) {
	if err := t.Schema.Validate(df); err != nil {
		return nil, err
	}
	numeric, err := t.Scaler.Transform(df)
	if err != nil {
		return nil, err
	}
	categorical, err := t.Encoder.Transform(df)
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, len(numeric))
	for i := range rows {
		row := make([]float64, 0, len(numeric[i])+len(categorical[i]))
		row = append(row, numeric[i]...)
		rows[i] = append(row, categorical[i]...)
	}
	return rows, nil
}

// FeatureNames names the transformed columns, numeric first.
func (t *ColumnTransformer) FeatureNames() []string {
	names := make([]string, 0, len(t.Scaler.Columns)+t.Encoder.Width())
	for _, col := range t.Scaler.Columns {
		names = append(names, "num__"+col)
	}
	for j, col := range t.Encoder.Columns {
		if j >= len(t.Encoder.Categories) {
			break
		}
		for _, c := range t.Encoder.Categories[j] {
			names = append(names, "cat__"+col+"_"+c)
		}
	}
	return names
}

func firstNaN(values []float64) int {
	for i, v := range values {
		if math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func firstTrue(flags []bool) int {
	for i, f := range flags {
		if f {
			return i
		}
	}
	return -1
}
