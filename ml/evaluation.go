package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Evaluation holds held-out regression diagnostics. It is logged and
// recorded by the trainer, never stored in the artifact.
type Evaluation struct {
	MAE               float64 `json:"mae" db:"mae"`
	MSE               float64 `json:"mse" db:"mse"`
	RMSE              float64 `json:"rmse" db:"rmse"`
	R2                float64 `json:"r2" db:"r2"`
	ExplainedVariance float64 `json:"explained_variance" db:"explained_variance"`
}

// Evaluate scores predicted against actual. Both must be non-empty and the same length.
func Evaluate(predicted, actual []float64) (Evaluation, error) {
	if len(predicted) == 0 {
		return Evaluation{}, errors.New("nothing to evaluate")
	}
	if len(predicted) != len(actual) {
		return Evaluation{}, errors.New("predicted and actual size mismatch")
	}

	n := float64(len(actual))
	residuals := make([]float64, len(actual))
	floats.SubTo(residuals, actual, predicted)

	ev := Evaluation{
		MAE: floats.Norm(residuals, 1) / n,
		MSE: floats.Dot(residuals, residuals) / n,
	}
	ev.RMSE = math.Sqrt(ev.MSE)

	variance := stat.PopVariance(actual, nil)
	if variance == 0 {
		// Degenerate target: perfect predictions score 1, anything else 0.
		if ev.MSE == 0 {
			ev.R2, ev.ExplainedVariance = 1, 1
		}
		return ev, nil
	}
	ev.R2 = 1 - ev.MSE/variance
	ev.ExplainedVariance = 1 - stat.PopVariance(residuals, nil)/variance
	return ev, nil
}
