package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/core/parallel"
	"github.com/YuminosukeSato/slamd/metrics"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Params はハイパーパラメータの組
type Params map[string]interface{}

// EstimatorFactory はパラメータから未学習の推定器を作る
type EstimatorFactory func(params Params) (model.ProbabilisticRegressor, error)

// ParameterGrid は各キーの候補値の直積を返す。キーは名前順に展開される
func ParameterGrid(grid map[string][]interface{}) []Params {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []Params{{}}
	for _, k := range keys {
		var next []Params
		for _, base := range out {
			for _, v := range grid[k] {
				p := make(Params, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

// CVResult は一つの候補のクロスバリデーション結果
type CVResult struct {
	Params     Params
	FoldScores []float64
	MeanScore  float64
	Failed     bool
}

// GridSearchCV は候補ごとに KFold で評価し、最良の候補を全データで再学習する
//
// 候補は並列に評価されるが、結果は候補の順序で保持され、同点なら先の候補を選ぶ。
type GridSearchCV struct {
	Factory    EstimatorFactory
	Candidates []Params
	CV         *KFold
	Scorer     metrics.Scorer
	NJobs      int

	BestParams    Params
	BestScore     float64
	BestEstimator model.ProbabilisticRegressor
	Results       []CVResult

	logger log.Logger
}

// NewGridSearchCV は負のMSEで評価するグリッドサーチを作成する
func NewGridSearchCV(factory EstimatorFactory, candidates []Params, cv *KFold) *GridSearchCV {
	return &GridSearchCV{
		Factory:    factory,
		Candidates: candidates,
		CV:         cv,
		Scorer:     metrics.NegMSE,
		logger:     log.GetLoggerWithName("model_selection.grid_search"),
	}
}

// Fit は全候補を評価して最良の推定器を学習する
func (gs *GridSearchCV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GridSearchCV.Fit")

	if len(gs.Candidates) == 0 {
		return errors.NewValidationError("candidates", "must not be empty", 0)
	}
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("GridSearchCV.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GridSearchCV.Fit", 1, yCols, 1)
	}

	folds, err := gs.CV.Split(rows)
	if err != nil {
		return err
	}

	results := make([]CVResult, len(gs.Candidates))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(parallel.Workers(gs.NJobs))
	for idx, params := range gs.Candidates {
		idx, params := idx, params
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[idx] = gs.evaluate(params, X, y, folds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	best := -1
	for i, r := range results {
		if r.Failed {
			continue
		}
		if best < 0 || r.MeanScore > results[best].MeanScore {
			best = i
		}
	}
	gs.Results = results
	if best < 0 {
		return errors.NewModelError("GridSearchCV.Fit", "all candidates failed to fit", nil)
	}

	estimator, err := gs.Factory(results[best].Params)
	if err != nil {
		return err
	}
	if err := estimator.Fit(X, y); err != nil {
		return errors.Wrap(err, "refitting best candidate")
	}

	gs.BestParams = results[best].Params
	gs.BestScore = results[best].MeanScore
	gs.BestEstimator = estimator

	gs.logger.Info("grid search finished",
		"candidates", len(gs.Candidates),
		"folds", len(folds),
		log.HyperParamsKey, fmt.Sprint(gs.BestParams),
		log.ScoreKey, gs.BestScore)
	return nil
}

func (gs *GridSearchCV) evaluate(params Params, X, y mat.Matrix, folds []Fold) CVResult {
	res := CVResult{Params: params, FoldScores: make([]float64, len(folds))}
	for f, fold := range folds {
		var score float64
		err := errors.SafeExecute("GridSearchCV.scoreFold", func() error {
			var err error
			score, err = gs.scoreFold(params, X, y, fold)
			return err
		})
		if err != nil {
			gs.logger.Warn("candidate failed on fold",
				log.HyperParamsKey, fmt.Sprint(params),
				"fold", f,
				"error", err.Error())
			res.Failed = true
			res.MeanScore = math.NaN()
			return res
		}
		res.FoldScores[f] = score
		res.MeanScore += score / float64(len(folds))
	}
	return res
}

func (gs *GridSearchCV) scoreFold(params Params, X, y mat.Matrix, fold Fold) (float64, error) {
	est, err := gs.Factory(params)
	if err != nil {
		return 0, err
	}
	if err := est.Fit(Rows(X, fold.Train), Rows(y, fold.Train)); err != nil {
		return 0, err
	}
	mean, _, err := est.PredictWithStd(Rows(X, fold.Test))
	if err != nil {
		return 0, err
	}
	yTest := Rows(y, fold.Test)
	score, err := gs.Scorer(yTest.ColView(0), mean)
	if err != nil {
		return 0, err
	}
	if err := errors.CheckScalar("GridSearchCV.score", score, 0); err != nil {
		return 0, err
	}
	return score, nil
}

// Predict は最良の推定器で予測する
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator.Predict(X)
}

// PredictWithStd は最良の推定器で平均と標準偏差を返す
func (gs *GridSearchCV) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if gs.BestEstimator == nil {
		return nil, nil, errors.NewNotFittedError("GridSearchCV", "PredictWithStd")
	}
	return gs.BestEstimator.PredictWithStd(X)
}
