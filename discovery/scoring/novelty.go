package scoring

import (
	"math"

	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/preprocessing"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Novelty は各候補行から最も近いラベル付き行までの距離を返す。
// 距離は全行で標準化した特徴空間で測り、最大値で割って [0, 1] に収める。
func Novelty(labelled, candidates mat.Matrix) ([]float64, error) {
	nl, d := labelled.Dims()
	nc, dc := candidates.Dims()
	if nl == 0 {
		return nil, errors.NewDataSufficiencyError("novelty", 1, 0, "novelty requires at least 1 labelled row, found 0")
	}
	if nc == 0 {
		return []float64{}, nil
	}
	if d != dc {
		return nil, errors.NewDimensionError("scoring.Novelty", d, dc, 1)
	}

	all := mat.NewDense(nl+nc, d, nil)
	all.Slice(0, nl, 0, d).(*mat.Dense).Copy(labelled)
	all.Slice(nl, nl+nc, 0, d).(*mat.Dense).Copy(candidates)

	scaled, err := preprocessing.NewStandardScalerDefault().FitTransform(all)
	if err != nil {
		return nil, errors.Wrap(err, "scaling features for novelty")
	}
	z := scaled.(*mat.Dense)

	out := make([]float64, nc)
	maxDist := 0.0
	for i := 0; i < nc; i++ {
		c := z.RawRowView(nl + i)
		best := math.Inf(1)
		for j := 0; j < nl; j++ {
			if dist := floats.Distance(c, z.RawRowView(j), 2); dist < best {
				best = dist
			}
		}
		out[i] = best
		maxDist = math.Max(maxDist, best)
	}
	if maxDist > 0 {
		floats.Scale(1/maxDist, out)
	}
	return out, nil
}
