// Package discovery runs one sequential-learning iteration: preprocess the
// experiment, fit one model per target, predict every candidate row, then
// score and rank the candidates.
package discovery

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/discovery/mlmodel"
	"github.com/YuminosukeSato/slamd/discovery/scoring"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
)

// Conductor drives experiments through the pipeline. A Conductor holds no
// per-run state and may serve concurrent runs on distinct experiments.
type Conductor struct {
	factory *mlmodel.Factory
	novelty bool
	logger  log.Logger
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithFactory replaces the model factory.
func WithFactory(f *mlmodel.Factory) Option {
	return func(c *Conductor) { c.factory = f }
}

// WithNovelty toggles novelty computation. It is on by default.
func WithNovelty(enabled bool) Option {
	return func(c *Conductor) { c.novelty = enabled }
}

// NewConductor creates a Conductor.
func NewConductor(opts ...Option) *Conductor {
	c := &Conductor{
		factory: mlmodel.NewFactory(),
		novelty: true,
		logger:  log.GetLoggerWithName("discovery.conductor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run preprocesses e in place and returns the ranked candidates. Any
// validation or fitting error aborts the run before scoring.
func (c *Conductor) Run(ctx context.Context, e *experiment.Experiment) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := c.logger.With(log.RunIDKey, runID)

	if err := experiment.Preprocess(e); err != nil {
		logger.Warn("preprocessing rejected experiment", log.ErrorTypeKey, errorType(err))
		return nil, err
	}

	candidates := e.PredictedRows()
	logger.Info("experiment preprocessed",
		log.ModelKindKey, string(e.Model),
		log.CandidatesKey, len(candidates),
		log.TargetsKey, len(e.TargetNames),
		log.CuriosityKey, e.Curiosity)

	X, err := mlmodel.FeatureMatrix(e, candidates)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Model:       e.Model,
		Targets:     append([]string(nil), e.TargetNames...),
		Index:       candidates,
		Prediction:  mat.NewDense(len(candidates), len(e.TargetNames), nil),
		Uncertainty: mat.NewDense(len(candidates), len(e.TargetNames), nil),
		Table:       e.OriginalTable,
	}

	in := scoring.Input{Curiosity: e.Curiosity}
	for j, target := range e.TargetNames {
		mean, std, err := c.predictTarget(ctx, e, target, X, candidates)
		if err != nil {
			logger.Error("target prediction failed", err, log.TargetKey, target)
			return nil, err
		}
		res.Prediction.SetCol(j, mean)
		res.Uncertainty.SetCol(j, std)
		in.Targets = append(in.Targets, scoring.Target{
			Name:      target,
			Weight:    e.TargetWeights[j],
			Threshold: e.TargetThresholds[j],
			Direction: e.TargetDirections[j],
			Mean:      mean,
			Std:       std,
		})
	}

	for j, name := range e.AprioriNames {
		values, err := e.Table.Float64s(name)
		if err != nil {
			return nil, err
		}
		picked := pick(values, candidates)
		for i, v := range picked {
			if math.IsInf(v, 0) {
				return nil, errors.NewDataQualityError("a-priori conversion", name,
					fmt.Sprintf("non-finite value %v at row %d", v, candidates[i]))
			}
		}
		in.Apriori = append(in.Apriori, scoring.Apriori{
			Name:      name,
			Weight:    e.AprioriWeights[j],
			Direction: e.AprioriDirections[j],
			Values:    picked,
		})
	}

	scores, err := scoring.Score(in)
	if err != nil {
		return nil, err
	}
	res.Utility = scores.Utility
	res.MeetsThresholds = scores.MeetsThresholds

	if c.novelty {
		if res.Novelty, err = c.novelties(e, X); err != nil {
			return nil, err
		}
	}

	res.Recommendations = recommend(res)
	logger.Info("discovery run finished",
		log.CandidatesKey, len(candidates),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return res, nil
}

// predictTarget trains the model for target and predicts the candidates.
// Candidates with a measured value keep it with zero uncertainty.
func (c *Conductor) predictTarget(ctx context.Context, e *experiment.Experiment, target string, X *mat.Dense, candidates []int) ([]float64, []float64, error) {
	reg, err := c.factory.Train(ctx, e, target)
	if err != nil {
		return nil, nil, err
	}
	meanVec, stdVec, err := reg.PredictWithStd(X)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "predicting target %s", target)
	}

	measured, err := e.Table.Float64s(target)
	if err != nil {
		return nil, nil, err
	}
	mean := make([]float64, len(candidates))
	std := make([]float64, len(candidates))
	for i, r := range candidates {
		if v := measured[r]; !math.IsNaN(v) {
			mean[i], std[i] = v, 0
			continue
		}
		mean[i], std[i] = meanVec.AtVec(i), stdVec.AtVec(i)
	}
	return mean, std, nil
}

func (c *Conductor) novelties(e *experiment.Experiment, candidates *mat.Dense) ([]float64, error) {
	labelled := e.LabelledRows()
	if len(labelled) == 0 {
		c.logger.Warn("no fully labelled rows, novelty skipped")
		return nil, nil
	}
	L, err := mlmodel.FeatureMatrix(e, labelled)
	if err != nil {
		return nil, err
	}
	return scoring.Novelty(L, candidates)
}

func pick(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

func errorType(err error) string {
	switch {
	case errors.Is(err, errors.ErrValueNotSupported):
		return "value_not_supported"
	case errors.Is(err, errors.ErrConfiguration):
		return "configuration"
	case errors.Is(err, errors.ErrDataSufficiency):
		return "data_sufficiency"
	case errors.Is(err, errors.ErrDataQuality):
		return "data_quality"
	default:
		return "internal"
	}
}
