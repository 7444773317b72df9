package mlmodel

import (
	"github.com/YuminosukeSato/slamd/sklearn/ensemble"
	"gonum.org/v1/gonum/mat"
)

// Padding applied when a forest gets fewer rows than the estimator minimum.
const (
	PaddingThreshold = ensemble.DefaultMinSamples
	PaddingFactor    = 4
)

// PaddedForest is a random forest that tiles its training set 4x when it
// has fewer than 8 rows. The copies add no information; they only let the
// forest accept small training sets. Predictions and uncertainties come from
// the forest fitted on the tiled data.
type PaddedForest struct {
	*ensemble.RandomForestRegressor

	// Padded reports whether the last Fit tiled its input.
	Padded bool
}

// NewPaddedForest creates a PaddedForest around a forest built with opts.
func NewPaddedForest(opts ...ensemble.Option) *PaddedForest {
	return &PaddedForest{RandomForestRegressor: ensemble.NewRandomForestRegressor(opts...)}
}

// Fit tiles X and y when needed and fits the forest.
func (p *PaddedForest) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	p.Padded = rows < PaddingThreshold
	if p.Padded {
		X, y = Tile(X, PaddingFactor), Tile(y, PaddingFactor)
	}
	return p.RandomForestRegressor.Fit(X, y)
}

// Tile stacks times copies of m vertically.
func Tile(m mat.Matrix, times int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r*times, c, nil)
	for k := 0; k < times; k++ {
		out.Slice(k*r, (k+1)*r, 0, c).(*mat.Dense).Copy(m)
	}
	return out
}
