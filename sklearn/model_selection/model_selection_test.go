package model_selection

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/slamd/core/model"
	"github.com/YuminosukeSato/slamd/sklearn/gaussian_process"
	"gonum.org/v1/gonum/mat"
)

func TestKFold_Split(t *testing.T) {
	folds, err := NewKFold(3).Split(7)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(folds) != 3 {
		t.Fatalf("expected 3 folds, got %d", len(folds))
	}

	wantSizes := []int{3, 2, 2}
	seen := make(map[int]int)
	for i, f := range folds {
		if len(f.Test) != wantSizes[i] {
			t.Errorf("fold %d: test size %d, want %d", i, len(f.Test), wantSizes[i])
		}
		if len(f.Train)+len(f.Test) != 7 {
			t.Errorf("fold %d: train+test = %d, want 7", i, len(f.Train)+len(f.Test))
		}
		for _, idx := range f.Test {
			seen[idx]++
		}
	}
	for i := 0; i < 7; i++ {
		if seen[i] != 1 {
			t.Errorf("index %d appears %d times in test folds", i, seen[i])
		}
	}
}

func TestKFold_Errors(t *testing.T) {
	if _, err := NewKFold(1).Split(5); err == nil {
		t.Error("expected error for a single split")
	}
	if _, err := NewKFold(5).Split(4); err == nil {
		t.Error("expected error when splits exceed samples")
	}
}

func TestKFold_ShuffleIsSeeded(t *testing.T) {
	a, _ := (&KFold{NSplits: 2, Shuffle: true, RandomState: 1}).Split(10)
	b, _ := (&KFold{NSplits: 2, Shuffle: true, RandomState: 1}).Split(10)
	for i := range a {
		for j := range a[i].Test {
			if a[i].Test[j] != b[i].Test[j] {
				t.Fatal("shuffled folds differ for the same seed")
			}
		}
	}
}

func TestParameterGrid(t *testing.T) {
	grid := ParameterGrid(map[string][]interface{}{
		"b": {1, 2},
		"a": {"x", "y", "z"},
	})
	if len(grid) != 6 {
		t.Fatalf("expected 6 combinations, got %d", len(grid))
	}
	// a が外側のループ
	if grid[0]["a"] != "x" || grid[0]["b"] != 1 || grid[1]["b"] != 2 {
		t.Errorf("unexpected order: %v", grid)
	}
}

func gpFactory(p Params) (model.ProbabilisticRegressor, error) {
	ls := p["length_scale"].(float64)
	return gaussian_process.NewGaussianProcessRegressor(
		gaussian_process.WithKernel(gaussian_process.NewProduct(
			gaussian_process.NewFixedConstantKernel(1),
			gaussian_process.NewFixedRBF(ls),
		)),
		gaussian_process.WithAlpha(1e-6),
	), nil
}

func TestGridSearchCV_SelectsBestCandidate(t *testing.T) {
	n := 12
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) * 0.5
		X.Set(i, 0, x)
		y.Set(i, 0, math.Sin(x))
	}

	candidates := ParameterGrid(map[string][]interface{}{
		"length_scale": {0.01, 1.0},
	})
	gs := NewGridSearchCV(gpFactory, candidates, NewKFold(4))
	gs.NJobs = 2
	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if gs.BestParams["length_scale"] != 1.0 {
		t.Errorf("expected length_scale 1.0 to win, got %v", gs.BestParams)
	}
	if len(gs.Results) != 2 || gs.Results[0].Params["length_scale"] != 0.01 {
		t.Errorf("results must keep candidate order: %v", gs.Results)
	}
	if gs.BestScore > 0 {
		t.Errorf("negative MSE must be <= 0, got %v", gs.BestScore)
	}

	mean, _, err := gs.PredictWithStd(X)
	if err != nil {
		t.Fatalf("PredictWithStd failed: %v", err)
	}
	if math.Abs(mean.AtVec(3)-y.At(3, 0)) > 1e-2 {
		t.Errorf("refit model should interpolate training data, got %v", mean.AtVec(3))
	}
}

func TestGridSearchCV_NotFitted(t *testing.T) {
	gs := NewGridSearchCV(gpFactory, nil, NewKFold(2))
	if _, _, err := gs.PredictWithStd(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := gs.Fit(mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected error for empty candidate list")
	}
}

// brokenRegressor はグリッドサーチの失敗扱いを確かめるための推定器
type brokenRegressor struct {
	panics bool
}

func (b *brokenRegressor) Fit(X, y mat.Matrix) error {
	if b.panics {
		var idx []int
		_ = idx[3]
	}
	return nil
}

func (b *brokenRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	mean, _, err := b.PredictWithStd(X)
	return mean, err
}

func (b *brokenRegressor) PredictWithStd(X mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	n, _ := X.Dims()
	mean := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		mean.SetVec(i, math.NaN())
	}
	return mean, mat.NewVecDense(n, nil), nil
}

func TestGridSearchCV_BrokenCandidatesFail(t *testing.T) {
	n := 8
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, math.Sin(float64(i)))
	}

	factory := func(p Params) (model.ProbabilisticRegressor, error) {
		switch p["mode"] {
		case "panic":
			return &brokenRegressor{panics: true}, nil
		case "nan":
			return &brokenRegressor{}, nil
		}
		return gpFactory(Params{"length_scale": 1.0})
	}
	candidates := ParameterGrid(map[string][]interface{}{
		"mode": {"panic", "nan", "gp"},
	})
	gs := NewGridSearchCV(factory, candidates, NewKFold(2))
	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if !gs.Results[i].Failed {
			t.Errorf("candidate %v must be marked failed", gs.Results[i].Params)
		}
	}
	if gs.Results[2].Failed {
		t.Errorf("gp candidate must succeed: %+v", gs.Results[2])
	}
	if gs.BestParams["mode"] != "gp" {
		t.Errorf("expected gp candidate to win, got %v", gs.BestParams)
	}
}
