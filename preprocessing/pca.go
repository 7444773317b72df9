package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA は主成分分析による次元削減
//
// NComponents が (0, 1) の範囲なら累積寄与率がその値を超える最小の成分数を、
// 1 以上なら整数の成分数をそのまま使う。
type PCA struct {
	state *model.StateManager

	NComponents float64

	// Mean は各特徴量の平均値
	Mean []float64
	// Components は d × k の主成分ベクトル（列が成分）
	Components *mat.Dense
	// ExplainedVariance は採用した成分の分散
	ExplainedVariance []float64
	// ExplainedVarianceRatio は採用した成分の寄与率
	ExplainedVarianceRatio []float64
}

// NewPCA は新しいPCAを作成する
func NewPCA(nComponents float64) *PCA {
	return &PCA{
		state:       model.NewStateManager(),
		NComponents: nComponents,
	}
}

// Fit は主成分を計算する
func (p *PCA) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}
	if p.NComponents <= 0 {
		return errors.NewValidationError("n_components", "must be positive", p.NComponents)
	}

	p.Mean = make([]float64, c)
	for j := 0; j < c; j++ {
		p.Mean[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}

	// 1行では分散が定義できないため第1軸のみを残す
	if r < 2 {
		p.Components = mat.NewDense(c, 1, nil)
		p.Components.Set(0, 0, 1)
		p.ExplainedVariance = []float64{0}
		p.ExplainedVarianceRatio = []float64{1}
		p.state.SetDimensions(c, r)
		p.state.SetFitted()
		return nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "SVD failed to converge", errors.ErrSingularMatrix)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	ratios := make([]float64, len(vars))
	for i, v := range vars {
		ratios[i] = errors.SafeDivide(v, total)
	}

	k := p.selectComponents(ratios)
	d, _ := vecs.Dims()
	p.Components = mat.DenseCopyOf(vecs.Slice(0, d, 0, k))
	p.ExplainedVariance = append([]float64(nil), vars[:k]...)
	p.ExplainedVarianceRatio = append([]float64(nil), ratios[:k]...)

	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

// selectComponents returns the number of components to keep given the
// descending explained-variance ratios.
func (p *PCA) selectComponents(ratios []float64) int {
	available := len(ratios)
	if p.NComponents >= 1 {
		k := int(math.Floor(p.NComponents))
		if k > available {
			k = available
		}
		return k
	}

	cumulative := 0.0
	for i, r := range ratios {
		cumulative += r
		if cumulative > p.NComponents {
			return i + 1
		}
	}
	// 分散がすべて0の場合など
	if available == 0 {
		return 0
	}
	if cumulative == 0 {
		return 1
	}
	return available
}

// Transform はデータを主成分空間に射影する
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	if err := p.state.RequireFeatures("PCA.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(i, j int, v float64) float64 {
		return v - p.Mean[j]
	}, X)

	_, k := p.Components.Dims()
	result := mat.NewDense(r, k, nil)
	result.Mul(centered, p.Components)
	return result, nil
}

// FitTransform は学習と変換を同時に行う
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// NComponentsFitted は採用された成分数を返す
func (p *PCA) NComponentsFitted() int {
	if p.Components == nil {
		return 0
	}
	_, k := p.Components.Dims()
	return k
}

// GetParams はパラメータを返す
func (p *PCA) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_components": p.NComponents}
}

// String はPCAの文字列表現を返す
func (p *PCA) String() string {
	return fmt.Sprintf("PCA(n_components=%g)", p.NComponents)
}
