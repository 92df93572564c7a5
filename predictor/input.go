package predictor

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"trafficcast/pipeline"
)

// Input is one set of form values: a number per numeric control and a
// selection per categorical domain.
type Input struct {
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}

// Defaults is the form's initial state.
func (s *Service) Defaults() Input {
	in := Input{
		Numeric:     make(map[string]float64, len(NumericControls)),
		Categorical: make(map[string]string, len(s.domains)),
	}
	for _, c := range NumericControls {
		in.Numeric[c.Field] = c.Default
	}
	for _, d := range s.domains {
		in.Categorical[d.Column] = d.Default()
	}
	return in
}

// ParseForm reads submitted form values on top of the defaults. Absent
// fields keep their default; a numeric field that does not parse is an
// error naming the field.
func (s *Service) ParseForm(values url.Values) (Input, error) {
	in := s.Defaults()
	for _, c := range NumericControls {
		raw := strings.TrimSpace(values.Get(c.Field))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return in, fmt.Errorf("%s: %q is not a number", c.Field, raw)
		}
		in.Numeric[c.Field] = v
	}
	for _, d := range s.domains {
		if _, ok := values[d.Column]; ok {
			in.Categorical[d.Column] = values.Get(d.Column)
		}
	}
	return in, nil
}

// Merge fills fields missing from in with the defaults.
func (s *Service) Merge(in Input) Input {
	out := s.Defaults()
	for k, v := range in.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range in.Categorical {
		out.Categorical[k] = v
	}
	return out
}

// BuildRow lays the input out as a one-row frame with the trainer's column
// names: the numeric controls first, then every categorical selection.
func (s *Service) BuildRow(in Input) (dataframe.DataFrame, error) {
	cols := make([]series.Series, 0, len(NumericControls)+len(s.domains))
	for _, c := range NumericControls {
		v := in.numeric(c)
		if c.Integer {
			cols = append(cols, series.New([]int{int(math.Round(v))}, series.Int, c.Field))
		} else {
			cols = append(cols, series.New([]float64{v}, series.Float, c.Field))
		}
	}
	for _, d := range s.domains {
		v := in.categorical(d)
		cols = append(cols, series.New([]string{v}, series.String, d.Column))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

// Key is the canonical form of the input, used as the cache key.
func (s *Service) Key(in Input) string {
	values := make(url.Values, len(NumericControls)+len(s.domains))
	for _, c := range NumericControls {
		v := in.numeric(c)
		if c.Integer {
			v = math.Round(v)
		}
		values.Set(c.Field, strconv.FormatFloat(v, 'g', -1, 64))
	}
	for _, d := range s.domains {
		values.Set(d.Column, in.categorical(d))
	}
	return values.Encode()
}

// Labels maps display labels to values for the "selected input values"
// listing, in form order.
func (s *Service) Labels(in Input) [][2]string {
	out := make([][2]string, 0, len(NumericControls)+len(s.domains))
	for _, c := range NumericControls {
		label := c.Label
		if c.Short != "" {
			label = c.Short
		}
		v := in.numeric(c)
		if c.Integer {
			v = math.Round(v)
		}
		out = append(out, [2]string{label, strconv.FormatFloat(v, 'f', -1, 64)})
	}
	for _, d := range s.domains {
		out = append(out, [2]string{d.Column, in.categorical(d)})
	}
	return out
}

// numeric is the value BuildRow uses for c: the submitted one, else the
// control's default.
func (in Input) numeric(c NumericControl) float64 {
	if v, ok := in.Numeric[c.Field]; ok {
		return v
	}
	return c.Default
}

func (in Input) categorical(d pipeline.Domain) string {
	if v, ok := in.Categorical[d.Column]; ok {
		return v
	}
	return d.Default()
}
