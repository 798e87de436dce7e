// Package report renders a classified matched track as a static PNG
// chart or an interactive HTML chart, for local inspection. Neither
// output is required by the matching pipeline itself — both are
// CLI-triggered, optional views over a pipeline.Result.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trackmatch/internal/track/reference"
	"github.com/banshee-data/trackmatch/internal/track/severity"
	"github.com/banshee-data/trackmatch/internal/track/snap"
)

// severityColors assigns a distinct color per Severity class, ordered
// Ok (green) through Max (deep red).
var severityColors = map[severity.Severity]color.RGBA{
	severity.Ok:       {R: 0x2e, G: 0xb8, B: 0x3c, A: 0xff},
	severity.Minor:    {R: 0xcc, G: 0xc2, B: 0x0f, A: 0xff},
	severity.Moderate: {R: 0xe6, G: 0x8a, B: 0x00, A: 0xff},
	severity.Severe:   {R: 0xe6, G: 0x3a, B: 0x00, A: 0xff},
	severity.Max:      {R: 0x99, G: 0x00, B: 0x00, A: 0xff},
}

// arcLength returns, for each matched point, the reference track's
// cumulative distance at that point's matched index — the chart's
// x-axis.
func arcLength(mt *snap.MatchedTrack, refTrack *reference.Track) []float64 {
	out := make([]float64, len(mt.Points))
	for i, m := range mt.Points {
		if m.ReferenceIndex >= 0 && m.ReferenceIndex < len(refTrack.Points) {
			out[i] = refTrack.Points[m.ReferenceIndex].TotalDistance
		}
	}
	return out
}

// PlotPNG renders a lateral-deviation-vs-arc-length chart for mt,
// colored by severity class, and saves it as a PNG at path. Following
// gridplotter.go's per-series plotter.Scatter + legend pattern, scaled
// down from one plot per ring to one plot per severity class.
func PlotPNG(path string, mt *snap.MatchedTrack, refTrack *reference.Track, sevs []severity.Severity) error {
	if len(mt.Points) != len(sevs) {
		return fmt.Errorf("report: %d matched points but %d severities", len(mt.Points), len(sevs))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lateral deviation — rider %s", mt.RiderID)
	p.X.Label.Text = "Arc length (m)"
	p.Y.Label.Text = "Lateral deviation (m)"

	xs := arcLength(mt, refTrack)

	bySeverity := make(map[severity.Severity]plotter.XYs)
	for i, m := range mt.Points {
		s := sevs[i]
		bySeverity[s] = append(bySeverity[s], plotter.XY{X: xs[i], Y: m.Lateral})
	}

	for _, s := range []severity.Severity{severity.Ok, severity.Minor, severity.Moderate, severity.Severe, severity.Max} {
		pts := bySeverity[s]
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("report: build scatter for %s: %w", s, err)
		}
		sc.Color = severityColors[s]
		sc.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(s.String(), sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save PNG: %w", err)
	}
	return nil
}

// RenderHTML writes an interactive scatter chart of mt to w, colored by
// severity class. Following echarts_handlers.go's per-category
// charts.NewScatter/opts.ScatterData construction, scaled down from an
// HTTP handler to a direct io.Writer so it can be driven from a CLI
// flag instead of a web route.
func RenderHTML(w io.Writer, mt *snap.MatchedTrack, refTrack *reference.Track, sevs []severity.Severity) error {
	if len(mt.Points) != len(sevs) {
		return fmt.Errorf("report: %d matched points but %d severities", len(mt.Points), len(sevs))
	}

	xs := arcLength(mt, refTrack)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Deviation", Theme: "dark", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lateral deviation", Subtitle: fmt.Sprintf("rider %s, %d points", mt.RiderID, len(mt.Points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Arc length (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Lateral deviation (m)", NameLocation: "middle", NameGap: 30}),
	)

	byClass := make(map[severity.Severity][]opts.ScatterData)
	for i, m := range mt.Points {
		s := sevs[i]
		byClass[s] = append(byClass[s], opts.ScatterData{Value: []interface{}{xs[i], m.Lateral}})
	}

	for _, s := range []severity.Severity{severity.Ok, severity.Minor, severity.Moderate, severity.Severe, severity.Max} {
		pts := byClass[s]
		if len(pts) == 0 {
			continue
		}
		c := severityColors[s]
		scatter.AddSeries(s.String(), pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)}),
		)
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("report: render HTML chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
