// Package mlmodel builds and trains the regressor an experiment asks for.
//
// Every model kind maps to one builder. Adding a kind means registering it in
// package experiment and adding its builder here.
package mlmodel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
	"github.com/YuminosukeSato/slamd/preprocessing"
	"github.com/YuminosukeSato/slamd/sklearn/ensemble"
	"github.com/YuminosukeSato/slamd/sklearn/gaussian_process"
	"github.com/YuminosukeSato/slamd/sklearn/pipeline"
	"gonum.org/v1/gonum/mat"
)

// DefaultSeed is the random seed of every model.
const DefaultSeed = 42

// pcaVariance is the explained variance kept by the PCA stage.
const pcaVariance = 0.99

type builder func(f *Factory) model.ProbabilisticRegressor

var builders = map[experiment.ModelKind]builder{
	experiment.RandomForest: func(f *Factory) model.ProbabilisticRegressor {
		return f.forest()
	},
	experiment.GaussianProcess: func(f *Factory) model.ProbabilisticRegressor {
		kernel := gaussian_process.NewProduct(
			gaussian_process.NewConstantKernel(1.0, gaussian_process.Bounds{Low: 1e-3, High: 1e3}),
			gaussian_process.NewRBF(10, gaussian_process.Bounds{Low: 1e-2, High: 1e2}),
		)
		return gaussian_process.NewGaussianProcessRegressor(
			gaussian_process.WithKernel(kernel),
			gaussian_process.WithNRestarts(9),
			gaussian_process.WithRandomState(f.seed),
		)
	},
	experiment.PCAGaussianProcess: func(f *Factory) model.ProbabilisticRegressor {
		gp := gaussian_process.NewGaussianProcessRegressor(
			gaussian_process.WithNRestarts(3),
			gaussian_process.WithRandomState(f.seed),
		)
		return pipeline.New(preprocessing.NewPCA(pcaVariance), gp)
	},
	experiment.PCARandomForest: func(f *Factory) model.ProbabilisticRegressor {
		return pipeline.New(preprocessing.NewPCA(pcaVariance), f.forest())
	},
	experiment.TunedRandomForest: func(f *Factory) model.ProbabilisticRegressor {
		return NewTunedRandomForest(f.seed, f.nJobs)
	},
	experiment.TunedGaussianProcess: func(f *Factory) model.ProbabilisticRegressor {
		return NewTunedGaussianProcess(f.seed, f.nJobs)
	},
}

// Factory creates and trains regressors.
type Factory struct {
	seed   int64
	nJobs  int
	logger log.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithSeed overrides the random seed.
func WithSeed(seed int64) FactoryOption {
	return func(f *Factory) { f.seed = seed }
}

// WithNJobs sets the worker count of forest construction and grid search.
func WithNJobs(n int) FactoryOption {
	return func(f *Factory) { f.nJobs = n }
}

// NewFactory creates a Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{seed: DefaultSeed, logger: log.GetLoggerWithName("mlmodel.factory")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) forest() *PaddedForest {
	return NewPaddedForest(ensemble.WithRandomState(f.seed), ensemble.WithNJobs(f.nJobs))
}

// New returns an unfitted regressor for kind.
func (f *Factory) New(kind experiment.ModelKind) (model.ProbabilisticRegressor, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, errors.NewValueNotSupportedError("model", string(kind), fmt.Sprintf("Invalid model: %s", kind))
	}
	return build(f), nil
}

// FeatureMatrix converts the given rows of the feature columns to float64.
// A missing, infinite or non-numeric value is a data-quality error naming its column.
func FeatureMatrix(e *experiment.Experiment, rows []int) (*mat.Dense, error) {
	if len(rows) == 0 || len(e.FeatureNames) == 0 {
		return nil, errors.NewDataQualityError("feature conversion", "", "no rows or no feature columns to convert")
	}
	X := mat.NewDense(len(rows), len(e.FeatureNames), nil)
	for j, name := range e.FeatureNames {
		values, err := e.Table.Float64s(name)
		if err != nil {
			return nil, err
		}
		for i, r := range rows {
			v := values[r]
			if math.IsNaN(v) {
				return nil, errors.NewDataQualityError("feature conversion", name,
					fmt.Sprintf("missing value at row %d", r))
			}
			if math.IsInf(v, 0) {
				return nil, errors.NewDataQualityError("feature conversion", name,
					fmt.Sprintf("non-finite value %v at row %d", v, r))
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

// TrainingData returns the feature matrix and n×1 target of the rows where
// target is present, together with those row positions. An infinite label
// is a data-quality error.
func (f *Factory) TrainingData(e *experiment.Experiment, target string) (*mat.Dense, *mat.Dense, []int, error) {
	yAll, err := e.Table.Float64s(target)
	if err != nil {
		return nil, nil, nil, err
	}
	var rows []int
	for r, v := range yAll {
		if math.IsNaN(v) {
			continue
		}
		if math.IsInf(v, 0) {
			return nil, nil, nil, errors.NewDataQualityError("target conversion", target,
				fmt.Sprintf("non-finite value %v at row %d", v, r))
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, nil, nil, errors.NewDataSufficiencyError(target, 1, 0,
			fmt.Sprintf("no labelled values for target %s", target))
	}

	X, err := FeatureMatrix(e, rows)
	if err != nil {
		return nil, nil, nil, err
	}
	y := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		y.Set(i, 0, yAll[r])
	}
	return X, y, rows, nil
}

// Train builds the experiment's model and fits it on the labelled rows of
// target. Fitting itself is not interruptible; ctx is checked before it starts.
func (f *Factory) Train(ctx context.Context, e *experiment.Experiment, target string) (model.ProbabilisticRegressor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg, err := f.New(e.Model)
	if err != nil {
		return nil, err
	}
	X, y, rows, err := f.TrainingData(e, target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := reg.Fit(X, y); err != nil {
		return nil, errors.Wrapf(err, "fitting %s for target %s", e.Model, target)
	}
	_, nFeatures := X.Dims()
	f.logger.Info("model trained",
		log.ModelKindKey, string(e.Model),
		log.TargetKey, target,
		log.SamplesKey, len(rows),
		log.FeaturesKey, nFeatures,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return reg, nil
}
