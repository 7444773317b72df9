// Package experiment describes a sequential-learning run and prepares its
// data for modelling.
//
// An Experiment owns a working copy of the dataset. Preprocess mutates that
// copy in place; callers must not share one Experiment between concurrent runs.
package experiment

import (
	"github.com/YuminosukeSato/slamd/dataset"
)

// Direction says whether larger or smaller values of a column are better.
type Direction string

const (
	Max Direction = "max"
	Min Direction = "min"
)

// Valid reports whether d is min or max.
func (d Direction) Valid() bool { return d == Max || d == Min }

// Experiment is the descriptor of one run. Targets and a-priori columns are
// parallel quadruples of names, weights, optional thresholds and directions.
type Experiment struct {
	Table         *dataset.Table
	OriginalTable *dataset.Table

	Model     ModelKind
	Curiosity float64

	TargetNames      []string
	TargetWeights    []float64
	TargetThresholds []*float64
	TargetDirections []Direction

	AprioriNames      []string
	AprioriWeights    []float64
	AprioriThresholds []*float64
	AprioriDirections []Direction

	FeatureNames []string
}

// Option configures an Experiment.
type Option func(*Experiment)

// WithModel sets the model kind.
func WithModel(kind ModelKind) Option {
	return func(e *Experiment) { e.Model = kind }
}

// WithCuriosity sets the curiosity scalar.
func WithCuriosity(c float64) Option {
	return func(e *Experiment) { e.Curiosity = c }
}

// WithFeatures sets the feature columns.
func WithFeatures(names ...string) Option {
	return func(e *Experiment) { e.FeatureNames = append([]string(nil), names...) }
}

// WithTarget appends a target column. A nil threshold means none.
func WithTarget(name string, weight float64, threshold *float64, dir Direction) Option {
	return func(e *Experiment) {
		e.TargetNames = append(e.TargetNames, name)
		e.TargetWeights = append(e.TargetWeights, weight)
		e.TargetThresholds = append(e.TargetThresholds, threshold)
		e.TargetDirections = append(e.TargetDirections, dir)
	}
}

// WithApriori appends an a-priori column.
func WithApriori(name string, weight float64, threshold *float64, dir Direction) Option {
	return func(e *Experiment) {
		e.AprioriNames = append(e.AprioriNames, name)
		e.AprioriWeights = append(e.AprioriWeights, weight)
		e.AprioriThresholds = append(e.AprioriThresholds, threshold)
		e.AprioriDirections = append(e.AprioriDirections, dir)
	}
}

// New creates an Experiment over a private copy of table. OriginalTable
// starts as a second copy and is replaced after a-priori filtering.
func New(table *dataset.Table, opts ...Option) *Experiment {
	e := &Experiment{
		Table:         table.Clone(),
		OriginalTable: table.Clone(),
		Model:         RandomForest,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns a pointer to v, for building threshold lists.
func Threshold(v float64) *float64 { return &v }

// Features returns a copy of the feature columns.
func (e *Experiment) Features() (*dataset.Table, error) {
	return e.Table.Select(e.FeatureNames...)
}

// Targets returns a copy of the target columns.
func (e *Experiment) Targets() (*dataset.Table, error) {
	return e.Table.Select(e.TargetNames...)
}

// AprioriTable returns a copy of the a-priori columns.
func (e *Experiment) AprioriTable() (*dataset.Table, error) {
	return e.Table.Select(e.AprioriNames...)
}

// labelCount returns how many target cells of row are present.
func (e *Experiment) labelCount(row int) int {
	n := 0
	for _, name := range e.TargetNames {
		if !e.Table.At(row, name).IsMissing() {
			n++
		}
	}
	return n
}

func (e *Experiment) rowsWhere(keep func(labelled int) bool) []int {
	rows := []int{}
	for r := 0; r < e.Table.NumRows(); r++ {
		if keep(e.labelCount(r)) {
			rows = append(rows, r)
		}
	}
	return rows
}

// LabelledRows returns rows with every target present. With no targets
// configured no row is labelled.
func (e *Experiment) LabelledRows() []int {
	nt := len(e.TargetNames)
	return e.rowsWhere(func(n int) bool { return nt > 0 && n == nt })
}

// UnlabelledRows returns rows with every target missing.
func (e *Experiment) UnlabelledRows() []int {
	return e.rowsWhere(func(n int) bool { return n == 0 })
}

// PartiallyLabelledRows returns rows with some but not all targets present.
func (e *Experiment) PartiallyLabelledRows() []int {
	nt := len(e.TargetNames)
	return e.rowsWhere(func(n int) bool { return n > 0 && n < nt })
}

// PredictedRows returns the union of unlabelled and partially labelled rows
// in ascending order.
func (e *Experiment) PredictedRows() []int {
	nt := len(e.TargetNames)
	return e.rowsWhere(func(n int) bool { return n < nt || nt == 0 })
}

// LabelledCount returns the number of non-missing values in a target column.
func (e *Experiment) LabelledCount(target string) int {
	col, err := e.Table.Column(target)
	if err != nil {
		return 0
	}
	n := 0
	for _, c := range col {
		if !c.IsMissing() {
			n++
		}
	}
	return n
}
