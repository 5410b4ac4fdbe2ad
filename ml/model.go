package ml

import "errors"

var (
	ErrNotFitted       = errors.New("model not trained")
	ErrEmptyTraining   = errors.New("features or labels empty")
	ErrSizeMismatch    = errors.New("features and labels size mismatch")
	ErrFeatureMismatch = errors.New("feature vector length mismatch")

	errInvalidTree = errors.New("invalid tree state")
)

// Classifier is the fit/predict capability the trainer and the prediction
// service depend on. Implementations must be safe for concurrent Predict and
// PredictProba calls once Fit has returned.
type Classifier interface {
	Fit(features [][]float64, labels []int) error
	Predict(features [][]float64) ([]int, error)
	// PredictProba returns one row per sample with a probability per class,
	// ordered as Classes.
	PredictProba(features [][]float64) ([][]float64, error)
	Classes() []int
}

// MaxProbability returns the largest value of a probability row.
func MaxProbability(row []float64) (float64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	best := row[0]
	for _, p := range row[1:] {
		if p > best {
			best = p
		}
	}
	return best, true
}
