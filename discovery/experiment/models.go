package experiment

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// ModelKind names a regression strategy.
type ModelKind string

const (
	RandomForest         ModelKind = "random_forest"
	GaussianProcess      ModelKind = "gaussian_process"
	PCAGaussianProcess   ModelKind = "pca_gaussian_process"
	PCARandomForest      ModelKind = "pca_random_forest"
	TunedRandomForest    ModelKind = "tuned_random_forest"
	TunedGaussianProcess ModelKind = "tuned_gaussian_process"
)

// KindInfo describes a registered model kind.
type KindInfo struct {
	Kind        ModelKind `json:"kind"`
	Label       string    `json:"label"`
	MinLabelled int       `json:"min_labelled"`
	Tuned       bool      `json:"tuned"`
}

// registry is the closed set of supported kinds, in display order.
var registry = []KindInfo{
	{Kind: RandomForest, Label: "Random Forest", MinLabelled: 2},
	{Kind: GaussianProcess, Label: "Gaussian Process", MinLabelled: 1},
	{Kind: PCAGaussianProcess, Label: "PCA + Gaussian Process", MinLabelled: 1},
	// the forest stage tiles fewer than 8 rows 4x, so a single row is still too few
	{Kind: PCARandomForest, Label: "PCA + Random Forest", MinLabelled: 2},
	{Kind: TunedRandomForest, Label: "Tuned Random Forest", MinLabelled: 4, Tuned: true},
	{Kind: TunedGaussianProcess, Label: "Tuned Gaussian Process", MinLabelled: 4, Tuned: true},
}

// Kinds returns every supported model kind.
func Kinds() []KindInfo {
	return append([]KindInfo(nil), registry...)
}

// Info returns the registry entry for k.
func (k ModelKind) Info() (KindInfo, bool) {
	for _, info := range registry {
		if info.Kind == k {
			return info, true
		}
	}
	return KindInfo{}, false
}

// Valid reports whether k is a registered kind.
func (k ModelKind) Valid() bool {
	_, ok := k.Info()
	return ok
}

// MinLabelled is the minimum number of labelled values each target needs.
func (k ModelKind) MinLabelled() int {
	info, _ := k.Info()
	return info.MinLabelled
}

// Tuned reports whether the kind runs a hyperparameter search. Tuned kinds
// accept a single target only.
func (k ModelKind) Tuned() bool {
	info, _ := k.Info()
	return info.Tuned
}

// Label returns the display name, or the raw value for unknown kinds.
func (k ModelKind) Label() string {
	if info, ok := k.Info(); ok {
		return info.Label
	}
	return string(k)
}

// ParseModelKind accepts a kind identifier or its display label, ignoring case.
func ParseModelKind(s string) (ModelKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, info := range registry {
		if norm == string(info.Kind) || norm == strings.ToLower(info.Label) {
			return info.Kind, nil
		}
	}
	return "", errors.NewValueNotSupportedError("model", s, fmt.Sprintf("Invalid model: %s", s))
}
