// Package predictor serves single-row traffic volume predictions from a
// loaded model artifact.
package predictor

import (
	"trafficcast/ml"
)

// NumericControl describes one numeric input. Bounds are rendered into the
// form controls; the service does not enforce them.
type NumericControl struct {
	Field   string
	Label   string
	Short   string // listing label when it differs from Label
	Min     float64
	Max     float64
	Default float64
	Step    float64
	Slider  bool
	// Integer controls are sent to the model as whole numbers.
	Integer bool
}

// NumericControls are the form's number inputs, in display order.
var NumericControls = []NumericControl{
	{Field: ml.ColTemp, Label: "Temperature (K)", Min: 0, Max: 500, Default: 300, Step: 0.1},
	{Field: ml.ColRain1h, Label: "Rain in 1h (mm)", Min: 0, Max: 200, Default: 0, Step: 0.1},
	{Field: ml.ColSnow1h, Label: "Snow in 1h (mm)", Min: 0, Max: 200, Default: 0, Step: 0.1},
	{Field: ml.ColCloudsAll, Label: "Clouds all (%)", Min: 0, Max: 100, Default: 0, Step: 1},
	{Field: ml.ColHour, Label: "Hour", Min: 0, Max: 23, Default: 12, Step: 1, Slider: true, Integer: true},
	{Field: ml.ColDayOfWeek, Label: "Day of Week (0=Monday, 6=Sunday)", Short: "Day of Week", Min: 0, Max: 6, Default: 0, Step: 1, Slider: true, Integer: true},
}
