// Package gaussian_process はガウス過程回帰を提供する。
//
// カーネルのハイパーパラメータは対数周辺尤度を L-BFGS で最大化して決める。
// 境界はシグモイド変換で守り、初期値に加えて境界内の一様乱数から
// 複数回のリスタートを並列に行う。
package gaussian_process

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"github.com/YuminosukeSato/slamd/pkg/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Option は GaussianProcessRegressor の設定オプション
type Option func(*GaussianProcessRegressor)

// WithKernel はカーネルを設定する
func WithKernel(k Kernel) Option {
	return func(gp *GaussianProcessRegressor) { gp.kernel = k }
}

// WithAlpha は共分散行列の対角に加える値を設定する
func WithAlpha(alpha float64) Option {
	return func(gp *GaussianProcessRegressor) { gp.alpha = alpha }
}

// WithNRestarts はオプティマイザのリスタート回数を設定する
func WithNRestarts(n int) Option {
	return func(gp *GaussianProcessRegressor) { gp.nRestarts = n }
}

// WithRandomState はリスタート初期値の乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(gp *GaussianProcessRegressor) { gp.randomState = seed }
}

// WithNormalizeY は目的変数を平均0分散1に正規化するかを設定する
func WithNormalizeY(normalize bool) Option {
	return func(gp *GaussianProcessRegressor) { gp.normalizeY = normalize }
}

// WithMaxIter は各最適化の最大反復回数を設定する
func WithMaxIter(n int) Option {
	return func(gp *GaussianProcessRegressor) { gp.maxIter = n }
}

// GaussianProcessRegressor はガウス過程による回帰
type GaussianProcessRegressor struct {
	state *model.StateManager

	kernel      Kernel
	alpha       float64
	nRestarts   int
	randomState int64
	normalizeY  bool
	maxIter     int

	// 学習後の状態
	kernel_ Kernel
	xTrain  *mat.Dense
	yMean   float64
	yStd    float64
	chol    *mat.Cholesky
	dual    *mat.VecDense
	lml     float64
	logger  log.Logger
}

// NewGaussianProcessRegressor は新しいガウス過程回帰を作成する
func NewGaussianProcessRegressor(opts ...Option) *GaussianProcessRegressor {
	gp := &GaussianProcessRegressor{
		state:       model.NewStateManager(),
		kernel:      DefaultKernel(),
		alpha:       1e-10,
		randomState: 42,
		maxIter:     200,
		logger:      log.GetLoggerWithName("gaussian_process"),
	}
	for _, opt := range opts {
		opt(gp)
	}
	return gp
}

// Fit はハイパーパラメータを最適化し、学習データの事後分布を計算する
func (gp *GaussianProcessRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianProcessRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("GaussianProcessRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("GaussianProcessRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GaussianProcessRegressor.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("GaussianProcessRegressor.Fit", X, rows, cols, 0); err != nil {
		return err
	}
	if err := errors.CheckNumericalStability("GaussianProcessRegressor.Fit", mat.Col(nil, 0, y), 0); err != nil {
		return err
	}

	xTrain := mat.DenseCopyOf(X)
	target := mat.Col(nil, 0, y)

	yMean, yStd := 0.0, 1.0
	if gp.normalizeY {
		for _, v := range target {
			yMean += v
		}
		yMean /= float64(rows)
		ss := 0.0
		for _, v := range target {
			ss += (v - yMean) * (v - yMean)
		}
		yStd = math.Sqrt(ss / float64(rows))
		if yStd == 0 {
			yStd = 1
		}
		for i := range target {
			target[i] = (target[i] - yMean) / yStd
		}
	}
	yVec := mat.NewVecDense(rows, target)

	kernel := gp.kernel.Clone()
	if len(kernel.Theta()) > 0 {
		best, err := gp.optimize(kernel, xTrain, yVec)
		if err != nil {
			return err
		}
		kernel.SetTheta(best)
	}

	chol, dual, lml, ok := posterior(kernel, xTrain, yVec, gp.alpha)
	if !ok {
		return errors.NewModelError("GaussianProcessRegressor.Fit",
			fmt.Sprintf("kernel matrix is not positive definite for %s; try increasing alpha", kernel), errors.ErrSingularMatrix)
	}

	gp.kernel_ = kernel
	gp.xTrain = xTrain
	gp.yMean = yMean
	gp.yStd = yStd
	gp.chol = chol
	gp.dual = dual
	gp.lml = lml

	gp.logger.Debug("fitted gaussian process",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.HyperParamsKey, kernel.String(),
		log.ScoreKey, lml)

	gp.state.SetDimensions(cols, rows)
	gp.state.SetFitted()
	return nil
}

type restartResult struct {
	theta []float64
	nlml  float64
	ok    bool
}

// optimize runs L-BFGS from the kernel's initial theta and nRestarts uniform
// draws inside the log bounds and returns the theta with the best likelihood.
func (gp *GaussianProcessRegressor) optimize(kernel Kernel, X *mat.Dense, y *mat.VecDense) ([]float64, error) {
	bounds := kernel.LogBounds()
	starts := [][]float64{clampTheta(kernel.Theta(), bounds)}

	rng := rand.New(rand.NewSource(gp.randomState))
	for r := 0; r < gp.nRestarts; r++ {
		theta := make([]float64, len(bounds))
		for i, b := range bounds {
			theta[i] = b.Low + rng.Float64()*(b.High-b.Low)
		}
		starts = append(starts, theta)
	}

	results := make([]restartResult, len(starts))
	var g errgroup.Group
	for idx, start := range starts {
		idx, start := idx, start
		g.Go(func() error {
			results[idx] = gp.minimize(kernel.Clone(), X, y, start, bounds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := -1
	for i, r := range results {
		if !r.ok {
			continue
		}
		if best < 0 || r.nlml < results[best].nlml {
			best = i
		}
	}
	if best < 0 {
		return nil, errors.NewModelError("GaussianProcessRegressor.Fit",
			"log marginal likelihood could not be evaluated from any starting point", errors.ErrSingularMatrix)
	}
	return results[best].theta, nil
}

func (gp *GaussianProcessRegressor) minimize(kernel Kernel, X *mat.Dense, y *mat.VecDense, start []float64, bounds []Bounds) restartResult {
	toTheta := func(u []float64) []float64 {
		theta := make([]float64, len(u))
		for i, b := range bounds {
			theta[i] = b.Low + (b.High-b.Low)*sigmoid(u[i])
		}
		return theta
	}

	u0 := make([]float64, len(start))
	for i, b := range bounds {
		p := (start[i] - b.Low) / (b.High - b.Low)
		p = errors.ClipValue(p, 1e-6, 1-1e-6)
		u0[i] = math.Log(p / (1 - p))
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			kernel.SetTheta(toTheta(u))
			nlml, _, ok := negLogLikelihood(kernel, X, y, gp.alpha, false)
			if !ok {
				return math.Inf(1)
			}
			return nlml
		},
		Grad: func(grad, u []float64) {
			kernel.SetTheta(toTheta(u))
			_, g, ok := negLogLikelihood(kernel, X, y, gp.alpha, true)
			for i, b := range bounds {
				if !ok {
					grad[i] = 0
					continue
				}
				s := sigmoid(u[i])
				grad[i] = g[i] * (b.High - b.Low) * s * (1 - s)
			}
		},
	}

	settings := &optimize.Settings{MajorIterations: gp.maxIter}
	result, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{})
	if err != nil || (result != nil && result.Status == optimize.IterationLimit) {
		msg := "iteration limit reached"
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("L-BFGS", gp.maxIter, msg))
	}
	if result == nil || math.IsInf(result.F, 1) || math.IsNaN(result.F) {
		kernel.SetTheta(start)
		nlml, _, ok := negLogLikelihood(kernel, X, y, gp.alpha, false)
		return restartResult{theta: start, nlml: nlml, ok: ok}
	}
	return restartResult{theta: toTheta(result.X), nlml: result.F, ok: true}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampTheta(theta []float64, bounds []Bounds) []float64 {
	out := make([]float64, len(theta))
	for i, b := range bounds {
		out[i] = math.Min(math.Max(theta[i], b.Low), b.High)
	}
	return out
}

// kernelMatrix returns K(X, X) + alpha·I.
func kernelMatrix(kernel Kernel, X *mat.Dense, alpha float64) *mat.SymDense {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		for j := i; j < n; j++ {
			v := kernel.Eval(xi, X.RawRowView(j))
			if i == j {
				v += alpha
			}
			K.SetSym(i, j, v)
		}
	}
	return K
}

// posterior factorizes the kernel matrix and returns the Cholesky factor,
// K⁻¹y and the log marginal likelihood.
func posterior(kernel Kernel, X *mat.Dense, y *mat.VecDense, alpha float64) (*mat.Cholesky, *mat.VecDense, float64, bool) {
	n, _ := X.Dims()
	var chol mat.Cholesky
	if ok := chol.Factorize(kernelMatrix(kernel, X, alpha)); !ok {
		return nil, nil, 0, false
	}
	dual := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(dual, y); err != nil {
		return nil, nil, 0, false
	}
	lml := -0.5*mat.Dot(y, dual) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
	return &chol, dual, lml, true
}

// negLogLikelihood returns the negative log marginal likelihood and, when
// withGrad is set, its gradient with respect to the log hyperparameters.
func negLogLikelihood(kernel Kernel, X *mat.Dense, y *mat.VecDense, alpha float64, withGrad bool) (float64, []float64, bool) {
	chol, dual, lml, ok := posterior(kernel, X, y, alpha)
	if !ok || math.IsNaN(lml) {
		return 0, nil, false
	}
	if !withGrad {
		return -lml, nil, true
	}

	n, _ := X.Dims()
	var kInv mat.SymDense
	if err := chol.InverseTo(&kInv); err != nil {
		return 0, nil, false
	}

	nTheta := len(kernel.Theta())
	grad := make([]float64, nTheta)
	dK := make([]float64, nTheta)
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		for j := i; j < n; j++ {
			kernel.Gradient(dK, xi, X.RawRowView(j))
			// W = αα^T - K⁻¹
			w := dual.AtVec(i)*dual.AtVec(j) - kInv.At(i, j)
			if i != j {
				w *= 2
			}
			for p := range grad {
				grad[p] += 0.5 * w * dK[p]
			}
		}
	}
	for p := range grad {
		grad[p] = -grad[p]
	}
	return -lml, grad, true
}

// Predict は予測平均を返す（n×1行列）
func (gp *GaussianProcessRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	mean, _, err := gp.PredictWithStd(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(mean.Len(), 1, nil)
	out.SetCol(0, mean.RawVector().Data)
	return out, nil
}

// PredictWithStd は予測平均と予測標準偏差を返す
func (gp *GaussianProcessRegressor) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if err := gp.state.RequireFitted("GaussianProcessRegressor", "PredictWithStd"); err != nil {
		return nil, nil, err
	}
	if err := gp.state.RequireFeatures("GaussianProcessRegressor.PredictWithStd", X); err != nil {
		return nil, nil, err
	}

	Xq := mat.DenseCopyOf(X)
	m, _ := Xq.Dims()
	n, _ := gp.xTrain.Dims()

	// K(X_train, X_query)
	kStar := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		xi := gp.xTrain.RawRowView(i)
		for j := 0; j < m; j++ {
			kStar.Set(i, j, gp.kernel_.Eval(xi, Xq.RawRowView(j)))
		}
	}

	mean := mat.NewVecDense(m, nil)
	mean.MulVec(kStar.T(), gp.dual)

	var v mat.Dense
	if err := gp.chol.SolveTo(&v, kStar); err != nil {
		return nil, nil, errors.NewModelError("GaussianProcessRegressor.PredictWithStd", "solve failed", err)
	}

	std := mat.NewVecDense(m, nil)
	for j := 0; j < m; j++ {
		xj := Xq.RawRowView(j)
		variance := gp.kernel_.Eval(xj, xj)
		for i := 0; i < n; i++ {
			variance -= kStar.At(i, j) * v.At(i, j)
		}
		// 数値誤差で負になる分散は0に切り上げる
		if variance < 0 {
			variance = 0
		}
		std.SetVec(j, math.Sqrt(variance)*gp.yStd)
		mean.SetVec(j, mean.AtVec(j)*gp.yStd+gp.yMean)
	}
	return mean, std, nil
}

// Kernel は学習後のカーネルを返す。未学習なら初期カーネル
func (gp *GaussianProcessRegressor) Kernel() Kernel {
	if gp.kernel_ != nil {
		return gp.kernel_
	}
	return gp.kernel
}

// LogMarginalLikelihood は学習後の対数周辺尤度を返す
func (gp *GaussianProcessRegressor) LogMarginalLikelihood() float64 { return gp.lml }

// GetParams はハイパーパラメータを返す
func (gp *GaussianProcessRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":               gp.kernel.String(),
		"alpha":                gp.alpha,
		"n_restarts_optimizer": gp.nRestarts,
		"normalize_y":          gp.normalizeY,
		"random_state":         gp.randomState,
	}
}

// String はモデルの文字列表現を返す
func (gp *GaussianProcessRegressor) String() string {
	return fmt.Sprintf("GaussianProcessRegressor(kernel=%s, alpha=%g, n_restarts_optimizer=%d)",
		gp.Kernel(), gp.alpha, gp.nRestarts)
}
