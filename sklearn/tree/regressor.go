// Package tree は決定木による回帰を提供する。
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/metrics"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Option は DecisionTreeRegressor の設定オプション
type Option func(*DecisionTreeRegressor)

// WithMaxDepth は木の最大深さを設定する（-1で無制限）
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures は各分割で考慮する特徴量の割合を設定する
func WithMaxFeatures(fraction float64) Option {
	return func(dt *DecisionTreeRegressor) { dt.maxFeatures = fraction }
}

// WithRandomState は特徴量サンプリングの乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeRegressor) { dt.randomState = seed }
}

type node struct {
	feature   int
	threshold float64
	value     float64
	nSamples  int
	left      *node
	right     *node
}

func (n *node) isLeaf() bool { return n.left == nil }

// DecisionTreeRegressor は分散減少（二乗誤差）基準のCART回帰木
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     float64
	randomState     int64

	root               *node
	depth              int
	nLeaves            int
	featureImportances []float64
	rng                *rand.Rand
}

// NewDecisionTreeRegressor は新しい回帰木を作成する
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     1.0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit は回帰木を学習する
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	if dt.maxFeatures <= 0 || dt.maxFeatures > 1 {
		return errors.NewValidationError("max_features", "must be in (0, 1]", dt.maxFeatures)
	}

	Xd := mat.DenseCopyOf(X)
	target := mat.Col(nil, 0, y)
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}

	dt.rng = rand.New(rand.NewSource(dt.randomState))
	dt.depth = 0
	dt.nLeaves = 0
	dt.featureImportances = make([]float64, cols)
	dt.root = dt.build(Xd, target, indices, 0)

	total := 0.0
	for _, v := range dt.featureImportances {
		total += v
	}
	if total > 0 {
		for i := range dt.featureImportances {
			dt.featureImportances[i] /= total
		}
	}

	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

func (dt *DecisionTreeRegressor) build(X *mat.Dense, y []float64, idx []int, depth int) *node {
	if depth > dt.depth {
		dt.depth = depth
	}

	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	mean := sum / float64(n)
	sse := sumSq - sum*sum/float64(n)

	leaf := &node{feature: -1, value: mean, nSamples: n}
	if n < dt.minSamplesSplit || n < 2*dt.minSamplesLeaf ||
		(dt.maxDepth >= 0 && depth >= dt.maxDepth) || sse <= 1e-12 {
		dt.nLeaves++
		return leaf
	}

	feature, threshold, childSSE, ok := dt.bestSplit(X, y, idx, sum, sumSq)
	if !ok {
		dt.nLeaves++
		return leaf
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	dt.featureImportances[feature] += sse - childSSE
	leaf.feature = feature
	leaf.threshold = threshold
	leaf.left = dt.build(X, y, left, depth+1)
	leaf.right = dt.build(X, y, right, depth+1)
	return leaf
}

// bestSplit scans every candidate threshold of the sampled features and
// returns the split with the smallest summed child SSE.
func (dt *DecisionTreeRegressor) bestSplit(X *mat.Dense, y []float64, idx []int, sum, sumSq float64) (int, float64, float64, bool) {
	_, cols := X.Dims()
	features := dt.candidateFeatures(cols)

	n := len(idx)
	sorted := make([]int, n)
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := math.Inf(1)

	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X.At(sorted[a], f) < X.At(sorted[b], f)
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := y[sorted[k]]
			leftSum += v
			leftSq += v * v

			cur, next := X.At(sorted[k], f), X.At(sorted[k+1], f)
			if cur == next {
				continue
			}
			nLeft := k + 1
			nRight := n - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			rightSum := sum - leftSum
			rightSq := sumSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nLeft)) + (rightSq - rightSum*rightSum/float64(nRight))
			if childSSE < bestSSE-1e-12 {
				bestSSE = childSSE
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				if bestThreshold >= next {
					bestThreshold = cur
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestSSE, bestFeature >= 0
}

func (dt *DecisionTreeRegressor) candidateFeatures(cols int) []int {
	k := int(math.Ceil(dt.maxFeatures * float64(cols)))
	if k >= cols {
		all := make([]int, cols)
		for i := range all {
			all[i] = i
		}
		return all
	}
	if k < 1 {
		k = 1
	}
	return dt.rng.Perm(cols)[:k]
}

// Predict は各サンプルの予測値を返す（n×1行列）
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, dt.predictRow(X, i))
	}
	return out, nil
}

func (dt *DecisionTreeRegressor) predictRow(X mat.Matrix, row int) float64 {
	n := dt.root
	for !n.isLeaf() {
		if X.At(row, n.feature) <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Score は決定係数R²を返す
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	return metrics.R2Score(
		mat.NewVecDense(rows, mat.Col(nil, 0, y)),
		mat.NewVecDense(rows, mat.Col(nil, 0, pred)),
	)
}

// GetDepth は学習済みの木の深さを返す
func (dt *DecisionTreeRegressor) GetDepth() int { return dt.depth }

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeRegressor) GetNLeaves() int { return dt.nLeaves }

// GetFeatureImportances は正規化された不純度減少量を返す
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances...)
}

// IsFitted は学習済みかどうかを返す
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         "squared_error",
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams はハイパーパラメータを設定する
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "max_depth":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			dt.maxDepth = v
		case "min_samples_split":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			dt.minSamplesSplit = v
		case "min_samples_leaf":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be int", value)
			}
			dt.minSamplesLeaf = v
		case "max_features":
			v, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be float64", value)
			}
			dt.maxFeatures = v
		case "random_state":
			v, ok := value.(int64)
			if !ok {
				return errors.NewValidationError(key, "must be int64", value)
			}
			dt.randomState = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	dt.state.Reset()
	return nil
}

// String は回帰木の文字列表現を返す
func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}
