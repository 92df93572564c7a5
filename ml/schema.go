package ml

import (
	"errors"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Dataset column names.
const (
	ColDateTime           = "date_time"
	ColHoliday            = "holiday"
	ColTemp               = "temp"
	ColRain1h             = "rain_1h"
	ColSnow1h             = "snow_1h"
	ColCloudsAll          = "clouds_all"
	ColWeatherMain        = "weather_main"
	ColWeatherDescription = "weather_description"
	ColTrafficVolume      = "traffic_volume"
	ColHour               = "hour"
	ColDayOfWeek          = "day_of_week"
)

var (
	// ErrSchemaMismatch is returned when a table does not carry the columns,
	// or the column types, a schema requires.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrSchemaDrift is returned when a loaded artifact was fit against a
	// different schema than the one this binary builds rows for.
	ErrSchemaDrift = errors.New("artifact schema drift")
)

// Kind says how a feature is encoded.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText writes the kind by name so artifacts stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	if k != Numeric && k != Categorical {
		return nil, fmt.Errorf("unknown field kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "numeric":
		*k = Numeric
	case "categorical":
		*k = Categorical
	default:
		return fmt.Errorf("unknown field kind %q", text)
	}
	return nil
}

// Field is one named, typed feature.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered feature contract between training and prediction.
type Schema struct {
	Fields []Field `json:"fields"`
}

// TrafficSchema is the feature set the trainer fits and the predictor builds
// rows for.
var TrafficSchema = Schema{Fields: []Field{
	{Name: ColTemp, Kind: Numeric},
	{Name: ColRain1h, Kind: Numeric},
	{Name: ColSnow1h, Kind: Numeric},
	{Name: ColCloudsAll, Kind: Numeric},
	{Name: ColHour, Kind: Numeric},
	{Name: ColHoliday, Kind: Categorical},
	{Name: ColWeatherMain, Kind: Categorical},
	{Name: ColWeatherDescription, Kind: Categorical},
	{Name: ColDayOfWeek, Kind: Categorical},
}}

func (s Schema) names(kind Kind) []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// Numeric and Categorical list field names of that kind, in schema order.
func (s Schema) Numeric() []string     { return s.names(Numeric) }
func (s Schema) Categorical() []string { return s.names(Categorical) }

// Names lists every field name in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether both schemas have the same fields in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// Validate checks that df has every schema column with a usable storage type.
// Numeric fields accept float or int columns; categorical fields accept string
// or int columns. Extra columns are allowed.
func (s Schema) Validate(df dataframe.DataFrame) error {
	if df.Err != nil {
		return df.Err
	}
	colTypes := df.Types()
	types := make(map[string]series.Type, len(colTypes))
	for i, name := range df.Names() {
		types[name] = colTypes[i]
	}
	for _, f := range s.Fields {
		t, ok := types[f.Name]
		if !ok {
			return fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, f.Name)
		}
		switch f.Kind {
		case Numeric:
			if t != series.Float && t != series.Int {
				return fmt.Errorf("%w: column %q is %s, want numeric", ErrSchemaMismatch, f.Name, t)
			}
		case Categorical:
			if t != series.String && t != series.Int {
				return fmt.Errorf("%w: column %q is %s, want string or int", ErrSchemaMismatch, f.Name, t)
			}
		}
	}
	return nil
}
