package discovery

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/slamd/dataset"
	"github.com/YuminosukeSato/slamd/discovery/experiment"
	"github.com/YuminosukeSato/slamd/discovery/scoring"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// Result holds the per-candidate outputs of one run. Row i of Prediction and
// Uncertainty and entry i of Utility, Novelty and MeetsThresholds belong to
// table row Index[i]; column j belongs to Targets[j].
type Result struct {
	RunID   string
	Model   experiment.ModelKind
	Targets []string
	Index   []int

	Prediction  *mat.Dense
	Uncertainty *mat.Dense
	Utility     []float64
	// Novelty is nil when it was disabled or no row is fully labelled.
	Novelty         []float64
	MeetsThresholds []bool

	// Recommendations are sorted by Rank.
	Recommendations []Recommendation

	// Table is the post-filter original table the indices refer to.
	Table *dataset.Table
}

// Recommendation is one ranked candidate.
type Recommendation struct {
	Row             int                `json:"row"`
	Rank            int                `json:"rank"`
	Utility         float64            `json:"utility"`
	Novelty         *float64           `json:"novelty,omitempty"`
	MeetsThresholds bool               `json:"meets_thresholds"`
	Predicted       map[string]float64 `json:"predicted"`
	Uncertainty     map[string]float64 `json:"uncertainty"`
}

func recommend(r *Result) []Recommendation {
	order := scoring.Rank(r.Utility, r.MeetsThresholds)
	out := make([]Recommendation, len(order))
	for rank, i := range order {
		rec := Recommendation{
			Row:             r.Index[i],
			Rank:            rank + 1,
			Utility:         r.Utility[i],
			MeetsThresholds: r.MeetsThresholds[i],
			Predicted:       make(map[string]float64, len(r.Targets)),
			Uncertainty:     make(map[string]float64, len(r.Targets)),
		}
		if r.Novelty != nil {
			v := r.Novelty[i]
			rec.Novelty = &v
		}
		for j, t := range r.Targets {
			rec.Predicted[t] = r.Prediction.At(i, j)
			rec.Uncertainty[t] = r.Uncertainty.At(i, j)
		}
		out[rank] = rec
	}
	return out
}

// Top returns the n best recommendations, or all of them when n <= 0.
func (r *Result) Top(n int) []Recommendation {
	if n <= 0 || n > len(r.Recommendations) {
		n = len(r.Recommendations)
	}
	return r.Recommendations[:n]
}

// ResultTable returns the original table with Utility, Novelty, Predicted and
// Uncertainty columns. Candidates come first in rank order, followed by the
// remaining rows with empty score cells.
func (r *Result) ResultTable() (*dataset.Table, error) {
	if r.Table == nil {
		return nil, errors.NewValueError("Result.ResultTable", "result has no table")
	}
	base := r.Table.Columns()
	columns := append([]string(nil), base...)
	columns = append(columns, "Utility")
	if r.Novelty != nil {
		columns = append(columns, "Novelty")
	}
	for _, t := range r.Targets {
		columns = append(columns, "Predicted "+t, "Uncertainty "+t)
	}

	position := make(map[int]int, len(r.Index))
	for i, row := range r.Index {
		position[row] = i
	}
	order := make([]int, 0, r.Table.NumRows())
	for _, rec := range r.Recommendations {
		order = append(order, rec.Row)
	}
	for row := 0; row < r.Table.NumRows(); row++ {
		if _, ok := position[row]; !ok {
			order = append(order, row)
		}
	}

	rows := make([][]dataset.Cell, 0, len(order))
	for _, row := range order {
		cells := make([]dataset.Cell, 0, len(columns))
		for _, name := range base {
			cells = append(cells, r.Table.At(row, name))
		}
		i, candidate := position[row]
		if !candidate {
			for len(cells) < len(columns) {
				cells = append(cells, dataset.Missing())
			}
			rows = append(rows, cells)
			continue
		}
		cells = append(cells, dataset.Number(r.Utility[i]))
		if r.Novelty != nil {
			cells = append(cells, dataset.Number(r.Novelty[i]))
		}
		for j := range r.Targets {
			cells = append(cells, dataset.Number(r.Prediction.At(i, j)), dataset.Number(r.Uncertainty.At(i, j)))
		}
		rows = append(rows, cells)
	}
	return dataset.NewTable(columns, rows)
}

// ExportExcel writes the result table as a single-sheet workbook.
func ExportExcel(w io.Writer, r *Result) error {
	t, err := r.ResultTable()
	if err != nil {
		return err
	}
	return dataset.WriteXLSX(w, t, "Predictions")
}

// ExportCSV writes the result table as CSV.
func ExportCSV(w io.Writer, r *Result) error {
	t, err := r.ResultTable()
	if err != nil {
		return err
	}
	return dataset.WriteCSV(w, t)
}
