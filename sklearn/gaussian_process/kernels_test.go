package gaussian_process

import (
	"math"
	"testing"
)

func TestProductKernel_Theta(t *testing.T) {
	k := NewProduct(
		NewConstantKernel(1.0, Bounds{1e-3, 1e3}),
		NewRBF(10, Bounds{1e-2, 1e2}),
	)

	theta := k.Theta()
	if len(theta) != 2 {
		t.Fatalf("expected 2 hyperparameters, got %d", len(theta))
	}
	if math.Abs(theta[1]-math.Log(10)) > 1e-12 {
		t.Errorf("theta[1] = %v, want log(10)", theta[1])
	}

	k.SetTheta([]float64{math.Log(4), math.Log(2)})
	if got := k.Eval([]float64{0}, []float64{0}); math.Abs(got-4) > 1e-12 {
		t.Errorf("k(x, x) = %v, want 4", got)
	}

	bounds := k.LogBounds()
	if math.Abs(bounds[0].Low-math.Log(1e-3)) > 1e-12 || math.Abs(bounds[1].High-math.Log(1e2)) > 1e-12 {
		t.Errorf("unexpected bounds %v", bounds)
	}
}

func TestFixedKernel_HasNoTheta(t *testing.T) {
	k := DefaultKernel()
	if len(k.Theta()) != 0 {
		t.Errorf("default kernel should be fixed, got theta %v", k.Theta())
	}
	if got := k.Eval([]float64{0, 0}, []float64{0, 0}); got != 1 {
		t.Errorf("k(x, x) = %v, want 1", got)
	}
}

func TestKernelGradient_MatchesFiniteDifference(t *testing.T) {
	k := NewProduct(
		NewConstantKernel(2.0, Bounds{1e-3, 1e3}),
		NewRBF(1.5, Bounds{1e-2, 1e2}),
	)
	a := []float64{0.3, -1.2}
	b := []float64{1.1, 0.4}

	grad := make([]float64, 2)
	k.Gradient(grad, a, b)

	theta := k.Theta()
	const h = 1e-6
	for p := range theta {
		plus := append([]float64(nil), theta...)
		minus := append([]float64(nil), theta...)
		plus[p] += h
		minus[p] -= h

		kp := k.Clone()
		kp.SetTheta(plus)
		km := k.Clone()
		km.SetTheta(minus)

		numeric := (kp.Eval(a, b) - km.Eval(a, b)) / (2 * h)
		if math.Abs(numeric-grad[p]) > 1e-6 {
			t.Errorf("gradient[%d] = %v, finite difference %v", p, grad[p], numeric)
		}
	}
}

func TestKernelClone_IsIndependent(t *testing.T) {
	k := NewRBF(1.0, Bounds{1e-2, 1e2})
	c := k.Clone()
	c.SetTheta([]float64{math.Log(5)})
	if k.LengthScale != 1.0 {
		t.Errorf("clone mutated original: %v", k.LengthScale)
	}
}
