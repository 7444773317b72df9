package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if math.Abs(scaler.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v, want 2.5", scaler.Mean[0])
	}
	// 定数列はスケール1のまま
	if scaler.Scale[1] != 1.0 {
		t.Errorf("Scale[1] = %v, want 1 for constant column", scaler.Scale[1])
	}

	sum := 0.0
	for i := 0; i < 4; i++ {
		sum += Xs.At(i, 0)
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("standardized column should have zero mean, got sum %v", sum)
	}

	back, err := scaler.InverseTransform(Xs)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Error("InverseTransform did not restore input")
	}
}

func TestStandardScaler_NotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	}
}

func TestPCA_VarianceRatioSelection(t *testing.T) {
	// 2列目は1列目のほぼ定数倍、3列目は定数
	X := mat.NewDense(6, 3, []float64{
		1, 2.0, 5,
		2, 4.1, 5,
		3, 5.9, 5,
		4, 8.0, 5,
		5, 10.1, 5,
		6, 11.9, 5,
	})

	pca := NewPCA(0.99)
	Z, err := pca.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if got := pca.NComponentsFitted(); got != 1 {
		t.Errorf("NComponentsFitted = %d, want 1", got)
	}
	r, c := Z.Dims()
	if r != 6 || c != 1 {
		t.Errorf("transformed dims = %d×%d, want 6×1", r, c)
	}
	if pca.ExplainedVarianceRatio[0] < 0.99 {
		t.Errorf("first component ratio = %v, want >= 0.99", pca.ExplainedVarianceRatio[0])
	}
}

func TestPCA_IntegerComponents(t *testing.T) {
	X := mat.NewDense(5, 3, []float64{
		1, 0, 3,
		0, 1, 2,
		2, 1, 0,
		1, 3, 1,
		0, 2, 4,
	})

	pca := NewPCA(2)
	if err := pca.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := pca.NComponentsFitted(); got != 2 {
		t.Errorf("NComponentsFitted = %d, want 2", got)
	}
}

func TestPCA_SingleRow(t *testing.T) {
	X := mat.NewDense(1, 3, []float64{1, 2, 3})

	pca := NewPCA(0.99)
	Z, err := pca.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if Z.At(0, 0) != 0 {
		t.Errorf("single centered row should project to 0, got %v", Z.At(0, 0))
	}
}

func TestPCA_DimensionMismatch(t *testing.T) {
	pca := NewPCA(0.99)
	if err := pca.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 7})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := pca.Transform(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected dimension error")
	}
}
