// Package report は探索結果の可視化を行う。
package report

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/slamd/discovery"
	"github.com/YuminosukeSato/slamd/pkg/errors"
)

// Size is the edge length of saved plots.
const Size = 6 * vg.Inch

var (
	meetsColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	missesColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	validFormats = []string{"png", "svg", "pdf", "jpg", "jpeg", "tif", "tiff", "eps"}
)

// ScatterPlot は候補ごとの Utility を Novelty に対してプロットする。
// Novelty が無い場合は横軸を順位にする。閾値を満たさない候補は赤で描く。
func ScatterPlot(r *discovery.Result) (*plot.Plot, error) {
	if r == nil || len(r.Recommendations) == 0 {
		return nil, errors.NewValueError("report.ScatterPlot", "result has no candidates to plot")
	}

	p := plot.New()
	p.Title.Text = "Candidate utility"
	p.Y.Label.Text = "Utility"
	p.X.Label.Text = "Novelty"
	if r.Novelty == nil {
		p.X.Label.Text = "Rank"
	}

	var meets, misses plotter.XYs
	for _, rec := range r.Recommendations {
		x := float64(rec.Rank)
		if rec.Novelty != nil {
			x = *rec.Novelty
		}
		pt := plotter.XY{X: x, Y: rec.Utility}
		if rec.MeetsThresholds {
			meets = append(meets, pt)
		} else {
			misses = append(misses, pt)
		}
	}

	for _, series := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"meets thresholds", meets, meetsColor},
		{"misses thresholds", misses, missesColor},
	} {
		if len(series.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(series.pts)
		if err != nil {
			return nil, errors.Wrap(err, "building scatter")
		}
		s.GlyphStyle.Color = series.color
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(series.name, s)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// WriteScatter renders the plot to w in format (png, svg, pdf, ...).
func WriteScatter(w io.Writer, r *discovery.Result, format string) error {
	format = strings.ToLower(format)
	if !supported(format) {
		return errors.NewValueNotSupportedError("plot_format", format, "")
	}
	p, err := ScatterPlot(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Size, Size, format)
	if err != nil {
		return errors.Wrap(err, "rendering plot")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing plot")
	}
	return nil
}

// SaveScatter writes the plot to path; the extension picks the format.
func SaveScatter(path string, r *discovery.Result) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !supported(ext) {
		return errors.NewValueNotSupportedError("plot_format", ext, "")
	}
	p, err := ScatterPlot(r)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(Size, Size, path), "saving plot")
}

func supported(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
