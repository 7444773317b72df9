package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/slamd/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(3, []float64{1, 2, 3}),
			yPred: mat.NewVecDense(3, []float64{1, 2, 3}),
			want:  0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred: mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:  0.25,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10.0, 20.0, 30.0}),
			yPred: mat.NewVecDense(3, []float64{12.0, 18.0, 33.0}),
			want:  17.0 / 3.0,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MSE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNegMSEAndRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(2, []float64{0, 0})
	yPred := mat.NewVecDense(2, []float64{3, 3})

	neg, err := NegMSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("NegMSE failed: %v", err)
	}
	if neg != -9 {
		t.Errorf("NegMSE = %v, want -9", neg)
	}

	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("RMSE failed: %v", err)
	}
	if rmse != 3 {
		t.Errorf("RMSE = %v, want 3", rmse)
	}
}

func TestMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(2, 1, []float64{1, 2})
	yPred := mat.NewDense(2, 1, []float64{2, 2})

	got, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("MSEMatrix failed: %v", err)
	}
	if got != 0.5 {
		t.Errorf("MSEMatrix = %v, want 0.5", got)
	}

	if _, err := MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for non column input")
	}
}

func TestMAE(t *testing.T) {
	got, err := MAE(mat.NewVecDense(3, []float64{1, 2, 3}), mat.NewVecDense(3, []float64{2, 2, 1}))
	if err != nil {
		t.Fatalf("MAE failed: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("MAE = %v, want 1", got)
	}
}

func TestR2Score(t *testing.T) {
	got, err := R2Score(mat.NewVecDense(4, []float64{1, 2, 3, 4}), mat.NewVecDense(4, []float64{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if got != 1 {
		t.Errorf("R2Score = %v, want 1", got)
	}
}

func TestR2Score_ConstantTarget(t *testing.T) {
	var warned error
	errors.SetWarningHandler(func(w error) { warned = w })
	defer errors.SetWarningHandler(func(error) {})

	got, err := R2Score(mat.NewVecDense(3, []float64{2, 2, 2}), mat.NewVecDense(3, []float64{1, 2, 3}))
	if err != nil {
		t.Fatalf("R2Score failed: %v", err)
	}
	if got != 0 {
		t.Errorf("R2Score = %v, want 0", got)
	}
	if warned == nil {
		t.Error("expected UndefinedMetricWarning")
	}
}
