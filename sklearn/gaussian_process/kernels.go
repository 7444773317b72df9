package gaussian_process

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Bounds は正のハイパーパラメータの下限と上限
type Bounds struct {
	Low, High float64
}

// Kernel は共分散関数
//
// ハイパーパラメータは対数空間で扱い、固定されたものは Theta に含まれない。
type Kernel interface {
	// Eval は k(a, b) を返す
	Eval(a, b []float64) float64
	// Gradient は対数ハイパーパラメータに関する k(a, b) の勾配を dst に書き込む
	Gradient(dst, a, b []float64)
	// Theta は最適化対象の対数ハイパーパラメータを返す
	Theta() []float64
	// SetTheta は対数ハイパーパラメータを設定する
	SetTheta(theta []float64)
	// LogBounds は Theta の各要素の対数境界を返す
	LogBounds() []Bounds
	// Clone は独立したコピーを返す
	Clone() Kernel
	String() string
}

// ConstantKernel は定数倍のカーネル k(a, b) = c
type ConstantKernel struct {
	Value  float64
	Bounds Bounds
	Fixed  bool
}

// NewConstantKernel は境界付きの定数カーネルを作成する
func NewConstantKernel(value float64, bounds Bounds) *ConstantKernel {
	return &ConstantKernel{Value: value, Bounds: bounds}
}

// NewFixedConstantKernel は最適化されない定数カーネルを作成する
func NewFixedConstantKernel(value float64) *ConstantKernel {
	return &ConstantKernel{Value: value, Fixed: true}
}

func (k *ConstantKernel) Eval(_, _ []float64) float64 { return k.Value }

func (k *ConstantKernel) Gradient(dst, _, _ []float64) {
	if !k.Fixed {
		dst[0] = k.Value
	}
}

func (k *ConstantKernel) Theta() []float64 {
	if k.Fixed {
		return nil
	}
	return []float64{math.Log(k.Value)}
}

func (k *ConstantKernel) SetTheta(theta []float64) {
	if !k.Fixed {
		k.Value = math.Exp(theta[0])
	}
}

func (k *ConstantKernel) LogBounds() []Bounds {
	if k.Fixed {
		return nil
	}
	return []Bounds{{Low: math.Log(k.Bounds.Low), High: math.Log(k.Bounds.High)}}
}

func (k *ConstantKernel) Clone() Kernel {
	c := *k
	return &c
}

func (k *ConstantKernel) String() string {
	return fmt.Sprintf("%.3g**2", math.Sqrt(k.Value))
}

// RBF は等方的な二乗指数カーネル k(a, b) = exp(-|a-b|² / (2 l²))
type RBF struct {
	LengthScale float64
	Bounds      Bounds
	Fixed       bool
}

// NewRBF は境界付きのRBFカーネルを作成する
func NewRBF(lengthScale float64, bounds Bounds) *RBF {
	return &RBF{LengthScale: lengthScale, Bounds: bounds}
}

// NewFixedRBF は最適化されないRBFカーネルを作成する
func NewFixedRBF(lengthScale float64) *RBF {
	return &RBF{LengthScale: lengthScale, Fixed: true}
}

func (k *RBF) Eval(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-0.5 * d * d / (k.LengthScale * k.LengthScale))
}

func (k *RBF) Gradient(dst, a, b []float64) {
	if k.Fixed {
		return
	}
	d := floats.Distance(a, b, 2)
	sq := d * d / (k.LengthScale * k.LengthScale)
	dst[0] = math.Exp(-0.5*sq) * sq
}

func (k *RBF) Theta() []float64 {
	if k.Fixed {
		return nil
	}
	return []float64{math.Log(k.LengthScale)}
}

func (k *RBF) SetTheta(theta []float64) {
	if !k.Fixed {
		k.LengthScale = math.Exp(theta[0])
	}
}

func (k *RBF) LogBounds() []Bounds {
	if k.Fixed {
		return nil
	}
	return []Bounds{{Low: math.Log(k.Bounds.Low), High: math.Log(k.Bounds.High)}}
}

func (k *RBF) Clone() Kernel {
	c := *k
	return &c
}

func (k *RBF) String() string {
	return fmt.Sprintf("RBF(length_scale=%.3g)", k.LengthScale)
}

// Product は二つのカーネルの積
type Product struct {
	K1, K2 Kernel
}

// NewProduct は k1 * k2 を作成する
func NewProduct(k1, k2 Kernel) *Product {
	return &Product{K1: k1, K2: k2}
}

func (k *Product) Eval(a, b []float64) float64 {
	return k.K1.Eval(a, b) * k.K2.Eval(a, b)
}

func (k *Product) Gradient(dst, a, b []float64) {
	n1 := len(k.K1.Theta())
	k.K1.Gradient(dst[:n1], a, b)
	k.K2.Gradient(dst[n1:], a, b)

	v1 := k.K1.Eval(a, b)
	v2 := k.K2.Eval(a, b)
	for i := 0; i < n1; i++ {
		dst[i] *= v2
	}
	for i := n1; i < len(dst); i++ {
		dst[i] *= v1
	}
}

func (k *Product) Theta() []float64 {
	return append(k.K1.Theta(), k.K2.Theta()...)
}

func (k *Product) SetTheta(theta []float64) {
	n1 := len(k.K1.Theta())
	k.K1.SetTheta(theta[:n1])
	k.K2.SetTheta(theta[n1:])
}

func (k *Product) LogBounds() []Bounds {
	return append(k.K1.LogBounds(), k.K2.LogBounds()...)
}

func (k *Product) Clone() Kernel {
	return &Product{K1: k.K1.Clone(), K2: k.K2.Clone()}
}

func (k *Product) String() string {
	return k.K1.String() + " * " + k.K2.String()
}

// DefaultKernel は 1.0 * RBF(1.0) を両方固定で返す
func DefaultKernel() Kernel {
	return NewProduct(NewFixedConstantKernel(1.0), NewFixedRBF(1.0))
}
