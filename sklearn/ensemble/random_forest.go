// Package ensemble はランダムフォレスト回帰と予測不確実性の推定を提供する。
//
// 不確実性は各木の予測とブートストラップの出現回数から計算する
// infinitesimal jackknife 分散（Wager, Hastie, Efron 2014）にバイアス補正を加えたもの。
package ensemble

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/core/parallel"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
	"github.com/YuminosukeSato/slamd/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// DefaultMinSamples は学習に必要な最小サンプル数
const DefaultMinSamples = 8

// minAutoEstimators is the lower bound on the tree count when nEstimators is 0.
const minAutoEstimators = 64

// Option は RandomForestRegressor の設定オプション
type Option func(*RandomForestRegressor)

// WithNEstimators は木の本数を設定する。0 なら max(学習サンプル数, 64)
func WithNEstimators(n int) Option {
	return func(rf *RandomForestRegressor) { rf.nEstimators = n }
}

// WithMaxDepth は各木の最大深さを設定する
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestRegressor) { rf.maxDepth = depth }
}

// WithMinSamplesLeaf は各木の葉の最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestRegressor) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures は分割ごとに考慮する特徴量の割合を設定する
func WithMaxFeatures(fraction float64) Option {
	return func(rf *RandomForestRegressor) { rf.maxFeatures = fraction }
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestRegressor) { rf.randomState = seed }
}

// WithNJobs は並列ワーカー数を設定する（0以下でCPU数）
func WithNJobs(n int) Option {
	return func(rf *RandomForestRegressor) { rf.nJobs = n }
}

// WithMinSamples は学習に必要な最小サンプル数を設定する
func WithMinSamples(n int) Option {
	return func(rf *RandomForestRegressor) { rf.minSamples = n }
}

// RandomForestRegressor はブートストラップ集約による回帰木アンサンブル
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    float64
	randomState    int64
	nJobs          int
	minSamples     int

	trees []*tree.DecisionTreeRegressor
	// inbag[b][i] はブートストラップ b におけるサンプル i の出現回数
	inbag  *mat.Dense
	logger log.Logger
}

// NewRandomForestRegressor は新しいランダムフォレストを作成する
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:          model.NewStateManager(),
		maxDepth:       -1,
		minSamplesLeaf: 1,
		maxFeatures:    1.0,
		randomState:    42,
		minSamples:     DefaultMinSamples,
		logger:         log.GetLoggerWithName("ensemble.random_forest"),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit はフォレストを学習する
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("RandomForestRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestRegressor.Fit", 1, yCols, 1)
	}
	if rows < rf.minSamples {
		return errors.NewDataSufficiencyError("", rf.minSamples, rows,
			fmt.Sprintf("RandomForestRegressor requires at least %d training rows, got %d", rf.minSamples, rows))
	}
	if err := errors.CheckMatrix("RandomForestRegressor.Fit", X, rows, cols, 0); err != nil {
		return err
	}
	if err := errors.CheckNumericalStability("RandomForestRegressor.Fit", mat.Col(nil, 0, y), 0); err != nil {
		return err
	}

	nTrees := rf.nEstimators
	if nTrees <= 0 {
		nTrees = rows
		if nTrees < minAutoEstimators {
			nTrees = minAutoEstimators
		}
	}

	rf.logger.Debug("fitting random forest",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", nTrees)

	trees := make([]*tree.DecisionTreeRegressor, nTrees)
	inbag := mat.NewDense(nTrees, rows, nil)
	errs := make([]error, nTrees)

	parallel.ForEach(nTrees, rf.nJobs, func(b int) {
		seed := rf.randomState + int64(b)
		rng := rand.New(rand.NewSource(seed))

		Xb := mat.NewDense(rows, cols, nil)
		yb := mat.NewDense(rows, 1, nil)
		for i := 0; i < rows; i++ {
			src := rng.Intn(rows)
			inbag.Set(b, src, inbag.At(b, src)+1)
			for j := 0; j < cols; j++ {
				Xb.Set(i, j, X.At(src, j))
			}
			yb.Set(i, 0, y.At(src, 0))
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(seed),
		)
		errs[b] = t.Fit(Xb, yb)
		trees[b] = t
	})

	for _, e := range errs {
		if e != nil {
			return errors.Wrap(e, "fitting forest tree")
		}
	}

	rf.trees = trees
	rf.inbag = inbag
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// treePredictions returns a B×m matrix holding each tree's prediction for each row of X.
func (rf *RandomForestRegressor) treePredictions(X mat.Matrix) (*mat.Dense, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(len(rf.trees), rows, nil)
	errs := make([]error, len(rf.trees))

	parallel.ForEach(len(rf.trees), rf.nJobs, func(b int) {
		pred, err := rf.trees[b].Predict(X)
		if err != nil {
			errs[b] = err
			return
		}
		for j := 0; j < rows; j++ {
			out.Set(b, j, pred.At(j, 0))
		}
	})

	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return out, nil
}

// Predict は全木の平均予測を返す（n×1行列）
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	mean, _, err := rf.PredictWithStd(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(mean.Len(), 1, nil)
	out.SetCol(0, mean.RawVector().Data)
	return out, nil
}

// PredictWithStd は平均予測と infinitesimal jackknife による標準偏差を返す。
// バイアス補正後の分散が正にならない場合は補正前の値を使う。
func (rf *RandomForestRegressor) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "PredictWithStd"); err != nil {
		return nil, nil, err
	}
	if err := rf.state.RequireFeatures("RandomForestRegressor.PredictWithStd", X); err != nil {
		return nil, nil, err
	}

	preds, err := rf.treePredictions(X)
	if err != nil {
		return nil, nil, err
	}

	B, m := preds.Dims()
	_, n := rf.inbag.Dims()
	fB := float64(B)

	mean := mat.NewVecDense(m, nil)
	centered := mat.NewDense(B, m, nil)
	for j := 0; j < m; j++ {
		col := mat.Col(nil, j, preds)
		s := 0.0
		for _, v := range col {
			s += v
		}
		mu := s / fB
		mean.SetVec(j, mu)
		for b, v := range col {
			centered.Set(b, j, v-mu)
		}
	}

	inbagCentered := mat.NewDense(B, n, nil)
	for i := 0; i < n; i++ {
		col := mat.Col(nil, i, rf.inbag)
		s := 0.0
		for _, v := range col {
			s += v
		}
		mu := s / fB
		for b, v := range col {
			inbagCentered.Set(b, i, v-mu)
		}
	}

	// cov[i][j] = Cov_b(N_bi, t_b(x_j))
	var cov mat.Dense
	cov.Mul(inbagCentered.T(), centered)
	cov.Scale(1/fB, &cov)

	std := mat.NewVecDense(m, nil)
	for j := 0; j < m; j++ {
		vij := 0.0
		for i := 0; i < n; i++ {
			c := cov.At(i, j)
			vij += c * c
		}

		sq := 0.0
		for b := 0; b < B; b++ {
			d := centered.At(b, j)
			sq += d * d
		}
		corrected := vij - float64(n)*sq/(fB*fB)

		v := corrected
		if v <= 0 {
			v = vij
		}
		std.SetVec(j, math.Sqrt(math.Max(v, 0)))
	}
	return mean, std, nil
}

// NEstimators は学習済みの木の本数を返す
func (rf *RandomForestRegressor) NEstimators() int { return len(rf.trees) }

// NSamples は学習に使ったサンプル数を返す
func (rf *RandomForestRegressor) NSamples() int {
	_, n := rf.state.GetDimensions()
	return n
}

// GetFeatureImportances は木ごとの重要度の平均を返す
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	if len(rf.trees) == 0 {
		return nil
	}
	out := make([]float64, len(rf.trees[0].GetFeatureImportances()))
	for _, t := range rf.trees {
		for i, v := range t.GetFeatureImportances() {
			out[i] += v / float64(len(rf.trees))
		}
	}
	return out
}

// GetParams はハイパーパラメータを返す
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.nEstimators,
		"max_depth":        rf.maxDepth,
		"min_samples_leaf": rf.minSamplesLeaf,
		"max_features":     rf.maxFeatures,
		"random_state":     rf.randomState,
		"min_samples":      rf.minSamples,
	}
}

// String はフォレストの文字列表現を返す
func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, min_samples_leaf=%d, max_features=%g)",
		rf.nEstimators, rf.maxDepth, rf.minSamplesLeaf, rf.maxFeatures)
}
