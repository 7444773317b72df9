// Package scoring turns per-target predictions into a ranked list of
// candidate rows.
//
// Utility of candidate i is
//
//	Σ_t w_t (s_t z_t(μ_ti) + c σ_ti / sd_t) + Σ_a w_a s_a z_a(v_ai)
//
// where z is the z-score over the candidates, s is -1 for min columns and +1
// otherwise, sd_t is the sample standard deviation of the predicted means of
// target t and c is the curiosity.
package scoring

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// Target is the prediction of one target over the candidate rows.
type Target struct {
	Name      string
	Weight    float64
	Threshold *float64
	Direction experiment.Direction
	Mean      []float64
	Std       []float64
}

// Apriori holds the values of one a-priori column over the candidate rows.
// Missing values are NaN and contribute nothing.
type Apriori struct {
	Name      string
	Weight    float64
	Direction experiment.Direction
	Values    []float64
}

// Input is everything Score needs.
type Input struct {
	Curiosity float64
	Targets   []Target
	Apriori   []Apriori
}

// Scores is the output of Score, one entry per candidate.
type Scores struct {
	Utility         []float64
	MeetsThresholds []bool
}

// Score computes the utility of every candidate row.
func Score(in Input) (*Scores, error) {
	if len(in.Targets) == 0 {
		return nil, errors.NewConfigurationError("target_columns", "at least one target is required for scoring")
	}
	n := len(in.Targets[0].Mean)
	out := &Scores{Utility: make([]float64, n), MeetsThresholds: make([]bool, n)}
	for i := range out.MeetsThresholds {
		out.MeetsThresholds[i] = true
	}

	for _, t := range in.Targets {
		if len(t.Mean) != n {
			return nil, errors.NewDimensionError(fmt.Sprintf("scoring target %s", t.Name), n, len(t.Mean), 0)
		}
		if len(t.Std) != n {
			return nil, errors.NewDimensionError(fmt.Sprintf("scoring uncertainty %s", t.Name), n, len(t.Std), 0)
		}
		mean, sd, err := moments(t.Mean)
		if err != nil {
			return nil, errors.Wrapf(err, "normalizing target %s", t.Name)
		}
		sign := directionSign(t.Direction)
		for i := 0; i < n; i++ {
			z := (t.Mean[i] - mean) / sd
			out.Utility[i] += t.Weight * (sign*z + in.Curiosity*t.Std[i]/sd)
			if t.Threshold != nil && !Meets(t.Mean[i], *t.Threshold, t.Direction) {
				out.MeetsThresholds[i] = false
			}
		}
	}

	for _, a := range in.Apriori {
		if len(a.Values) != n {
			return nil, errors.NewDimensionError(fmt.Sprintf("scoring a-priori %s", a.Name), n, len(a.Values), 0)
		}
		mean, sd, err := moments(a.Values)
		if err != nil {
			// every value missing
			continue
		}
		sign := directionSign(a.Direction)
		for i, v := range a.Values {
			if math.IsNaN(v) {
				continue
			}
			out.Utility[i] += a.Weight * sign * (v - mean) / sd
		}
	}
	return out, nil
}

// Meets reports whether v satisfies threshold in direction dir.
func Meets(v, threshold float64, dir experiment.Direction) bool {
	if dir == experiment.Min {
		return v <= threshold
	}
	return v >= threshold
}

func directionSign(d experiment.Direction) float64 {
	if d == experiment.Min {
		return -1
	}
	return 1
}

// moments returns the mean and sample standard deviation of the non-NaN
// values. A zero or undefined deviation is reported as 1.
func moments(values []float64) (float64, float64, error) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, 0, errors.Wrap(err, "mean")
	}
	if len(data) < 2 {
		return mean, 1, nil
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return 0, 0, errors.Wrap(err, "standard deviation")
	}
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}
	return mean, sd, nil
}
