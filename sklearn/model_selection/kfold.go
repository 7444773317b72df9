// Package model_selection はクロスバリデーションとハイパーパラメータ探索を提供する。
package model_selection

import (
	"math/rand"

	"github.com/YuminosukeSato/slamd/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Fold は一回分の学習用・検証用インデックス
type Fold struct {
	Train []int
	Test  []int
}

// KFold はデータを k 個の連続したブロックに分割する
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold は新しいKFoldを作成する
func NewKFold(nSplits int) *KFold {
	return &KFold{NSplits: nSplits}
}

// Split は n サンプルを分割する。先頭の n%k 個のフォールドが1つ大きくなる
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		rng := rand.New(rand.NewSource(kf.RandomState))
		rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]Fold, 0, kf.NSplits)
	start := 0
	for k := 0; k < kf.NSplits; k++ {
		size := n / kf.NSplits
		if k < n%kf.NSplits {
			size++
		}
		end := start + size

		test := append([]int(nil), indices[start:end]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)
		folds = append(folds, Fold{Train: train, Test: test})
		start = end
	}
	return folds, nil
}

// Rows は X から指定行を抜き出した新しい行列を返す
func Rows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}
