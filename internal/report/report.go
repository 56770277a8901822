// Package report renders extraction-run diagnostics: a PNG plot of the
// per-order detector boxes and an interactive HTML chart of object
// positions on the sky.
package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/skycal-data/skycal/internal/grism"
)

// PlotExtractionBoxes renders every object's per-order extraction box on a
// detector-coordinate PNG, with object centroids marked.
func PlotExtractionBoxes(objects []grism.Object, xsize, ysize int, path string) error {
	p := plot.New()
	p.Title.Text = "Grism extraction boxes"
	p.X.Label.Text = "detector x (pix)"
	p.Y.Label.Text = "detector y (pix)"
	p.X.Min, p.X.Max = 0, float64(xsize)
	p.Y.Min, p.Y.Max = 0, float64(ysize)

	centroids := make(plotter.XYs, 0, len(objects))
	for _, obj := range objects {
		centroids = append(centroids, plotter.XY{X: obj.XCentroid, Y: obj.YCentroid})

		orders := make([]int, 0, len(obj.OrderBounding))
		for order := range obj.OrderBounding {
			orders = append(orders, order)
		}
		sort.Ints(orders)

		for _, order := range orders {
			b := obj.OrderBounding[order]
			box := plotter.XYs{
				{X: float64(b.XMin), Y: float64(b.YMin)},
				{X: float64(b.XMax), Y: float64(b.YMin)},
				{X: float64(b.XMax), Y: float64(b.YMax)},
				{X: float64(b.XMin), Y: float64(b.YMax)},
				{X: float64(b.XMin), Y: float64(b.YMin)},
			}
			line, err := plotter.NewLine(box)
			if err != nil {
				return fmt.Errorf("failed to build box outline for object %d: %w", obj.SID, err)
			}
			line.Width = vg.Points(1)
			p.Add(line)
		}
	}

	scatter, err := plotter.NewScatter(centroids)
	if err != nil {
		return fmt.Errorf("failed to build centroid scatter: %w", err)
	}
	p.Add(scatter)

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// WriteSkyChart writes an interactive HTML scatter of object sky positions
// sized by brightness (brighter sources draw larger).
func WriteSkyChart(objects []grism.Object, path string) error {
	data := make([]opts.ScatterData, 0, len(objects))
	for _, obj := range objects {
		data = append(data, opts.ScatterData{
			Value: []interface{}{obj.SkyCentroid.RA, obj.SkyCentroid.Dec, obj.IsophotalABMag},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Extracted sources"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "RA (deg)", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Dec (deg)", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	scatter.AddSeries("sources", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
