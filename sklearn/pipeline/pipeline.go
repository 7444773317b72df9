// Package pipeline は前処理と回帰器を連結する。
package pipeline

import (
	"fmt"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pipeline は Transformer の出力を ProbabilisticRegressor に渡す二段構成のモデル
type Pipeline struct {
	Transformer model.Transformer
	Regressor   model.ProbabilisticRegressor
}

// New は新しいPipelineを作成する
func New(t model.Transformer, r model.ProbabilisticRegressor) *Pipeline {
	return &Pipeline{Transformer: t, Regressor: r}
}

// Fit は変換器を学習し、変換後のデータで回帰器を学習する
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	Xt, err := p.Transformer.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "pipeline transform step")
	}
	if err := p.Regressor.Fit(Xt, y); err != nil {
		return errors.Wrap(err, "pipeline regressor step")
	}
	return nil
}

// Predict は変換後のデータに対する予測を返す
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.Transformer.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Regressor.Predict(Xt)
}

// PredictWithStd は変換後のデータに対する平均と標準偏差を返す
func (p *Pipeline) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	Xt, err := p.Transformer.Transform(X)
	if err != nil {
		return nil, nil, err
	}
	return p.Regressor.PredictWithStd(Xt)
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(%v -> %v)", p.Transformer, p.Regressor)
}
