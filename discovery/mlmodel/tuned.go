package mlmodel

import (
	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/sklearn/ensemble"
	"github.com/YuminosukeSato/slamd/sklearn/gaussian_process"
	"github.com/YuminosukeSato/slamd/sklearn/model_selection"
	"gonum.org/v1/gonum/mat"
)

// maxFolds caps the number of cross-validation folds of the tuned models.
const maxFolds = 5

// forestGrid is the search space of TunedRandomForest.
var forestGrid = map[string][]interface{}{
	"max_depth":        {-1, 3, 6},
	"min_samples_leaf": {1, 2},
	"max_features":     {1.0, 0.5},
}

// gpGrid is the search space of TunedGaussianProcess. Each candidate still
// optimizes its kernel from the given starting length scale.
var gpGrid = map[string][]interface{}{
	"length_scale": {0.1, 1.0, 10.0},
	"alpha":        {1e-10, 1e-2},
	"normalize_y":  {false, true},
}

// tuned runs a grid search and delegates predictions to the refitted winner.
type tuned struct {
	name    string
	seed    int64
	nJobs   int
	factory model_selection.EstimatorFactory
	grid    map[string][]interface{}
	search  *model_selection.GridSearchCV
}

func (t *tuned) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	folds := maxFolds
	if rows < folds {
		folds = rows
	}
	cv := &model_selection.KFold{NSplits: folds, Shuffle: true, RandomState: t.seed}

	search := model_selection.NewGridSearchCV(t.factory, model_selection.ParameterGrid(t.grid), cv)
	search.NJobs = t.nJobs
	if err := search.Fit(X, y); err != nil {
		return errors.Wrapf(err, "%s hyperparameter search", t.name)
	}
	t.search = search
	return nil
}

func (t *tuned) Predict(X mat.Matrix) (mat.Matrix, error) {
	if t.search == nil {
		return nil, errors.NewNotFittedError(t.name, "Predict")
	}
	return t.search.Predict(X)
}

func (t *tuned) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if t.search == nil {
		return nil, nil, errors.NewNotFittedError(t.name, "PredictWithStd")
	}
	return t.search.PredictWithStd(X)
}

// BestParams returns the winning hyperparameters, or nil before Fit.
func (t *tuned) BestParams() model_selection.Params {
	if t.search == nil {
		return nil
	}
	return t.search.BestParams
}

// TunedRandomForest searches forest depth, leaf size and feature fraction
// with shuffled k-fold cross-validation (k = min(5, n)).
type TunedRandomForest struct{ tuned }

// NewTunedRandomForest creates a TunedRandomForest with a fixed seed.
func NewTunedRandomForest(seed int64, nJobs int) *TunedRandomForest {
	t := &TunedRandomForest{tuned{name: "TunedRandomForest", seed: seed, nJobs: nJobs, grid: forestGrid}}
	t.factory = func(p model_selection.Params) (model.ProbabilisticRegressor, error) {
		return NewPaddedForest(
			ensemble.WithMaxDepth(p["max_depth"].(int)),
			ensemble.WithMinSamplesLeaf(p["min_samples_leaf"].(int)),
			ensemble.WithMaxFeatures(p["max_features"].(float64)),
			ensemble.WithRandomState(seed),
			ensemble.WithNJobs(1),
		), nil
	}
	return t
}

// TunedGaussianProcess searches the initial length scale, noise level and
// target normalization of a Constant × RBF Gaussian process.
type TunedGaussianProcess struct{ tuned }

// NewTunedGaussianProcess creates a TunedGaussianProcess with a fixed seed.
func NewTunedGaussianProcess(seed int64, nJobs int) *TunedGaussianProcess {
	t := &TunedGaussianProcess{tuned{name: "TunedGaussianProcess", seed: seed, nJobs: nJobs, grid: gpGrid}}
	t.factory = func(p model_selection.Params) (model.ProbabilisticRegressor, error) {
		kernel := gaussian_process.NewProduct(
			gaussian_process.NewConstantKernel(1.0, gaussian_process.Bounds{Low: 1e-3, High: 1e3}),
			gaussian_process.NewRBF(p["length_scale"].(float64), gaussian_process.Bounds{Low: 1e-2, High: 1e2}),
		)
		return gaussian_process.NewGaussianProcessRegressor(
			gaussian_process.WithKernel(kernel),
			gaussian_process.WithAlpha(p["alpha"].(float64)),
			gaussian_process.WithNormalizeY(p["normalize_y"].(bool)),
			gaussian_process.WithNRestarts(2),
			gaussian_process.WithRandomState(seed),
		), nil
	}
	return t
}
