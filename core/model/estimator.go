package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// UncertaintyPredictor is implemented by regressors that report a standard
// deviation next to every mean prediction.
type UncertaintyPredictor interface {
	// PredictWithStd returns the predictive mean and standard deviation for
	// each row of X. Both vectors have one entry per row.
	PredictWithStd(X mat.Matrix) (mean, std *mat.VecDense, err error)
}

// Regressor combines fitting and point prediction.
type Regressor interface {
	Fitter
	Predictor
}

// ProbabilisticRegressor is the capability the discovery pipeline consumes:
// fit on labelled rows, then predict mean and uncertainty on candidates.
type ProbabilisticRegressor interface {
	Regressor
	UncertaintyPredictor
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
