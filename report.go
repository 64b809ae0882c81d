package thick

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoSamples is returned when a measurement produced no samples at all.
var ErrNoSamples = errors.New("thick: no surface samples to report on")

// Method values recorded in a Report.
const (
	// MethodRayCast means thickness came from bidirectional ray probing.
	MethodRayCast = "ray-cast"
	// MethodExtentFallback means every probe escaped the mesh, so the
	// minimum bounding-box extent stands in for the thickness. Open or
	// non-manifold inputs end up here.
	MethodExtentFallback = "extent-fallback"
)

// ThinSpot pins a below-threshold measurement to a location on the surface.
type ThinSpot struct {
	Point     r3.Vec  `json:"point"`
	Normal    r3.Vec  `json:"normal"`
	Thickness float64 `json:"thickness"`
}

// Report summarizes a thickness measurement over a mesh. The fifth
// percentile P5 is the compliance figure: it ignores the thinnest 5% of
// samples, which on real scans are dominated by slivers and scan noise.
type Report struct {
	Samples   int        `json:"samples"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Mean      float64    `json:"mean"`
	StdDev    float64    `json:"std_dev"`
	Median    float64    `json:"median"`
	P5        float64    `json:"p5"`
	P10       float64    `json:"p10"`
	Threshold float64    `json:"threshold"`
	Below     int        `json:"below_threshold"`
	BelowPct  float64    `json:"below_threshold_pct"`
	ThinSpots []ThinSpot `json:"thin_spots,omitempty"`
	Method    string     `json:"method"`

	values []float64 // sorted per-sample thicknesses, kept for histograms
}

// buildReport computes the statistics over the raw per-sample values.
// values must be finite; the caller substitutes extents for escapes.
func buildReport(values []float64, spots []ThinSpot, threshold float64, method string) (*Report, error) {
	if len(values) == 0 {
		return nil, ErrNoSamples
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	below := 0
	for _, v := range sorted {
		if v >= threshold {
			break
		}
		below++
	}
	r := &Report{
		Samples:   len(sorted),
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      stat.Mean(sorted, nil),
		StdDev:    stat.StdDev(sorted, nil),
		Median:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P5:        stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P10:       stat.Quantile(0.10, stat.Empirical, sorted, nil),
		Threshold: threshold,
		Below:     below,
		BelowPct:  100 * float64(below) / float64(len(sorted)),
		ThinSpots: spots,
		Method:    method,
		values:    sorted,
	}
	if len(sorted) == 1 {
		r.StdDev = 0
	}
	return r, nil
}

// MeetsThreshold reports whether the part passes at the compliance
// percentile.
func (r *Report) MeetsThreshold() bool {
	return r.P5 >= r.Threshold
}

// String renders the report in one line for logs.
func (r *Report) String() string {
	return fmt.Sprintf("thickness n=%d min=%.3f p5=%.3f median=%.3f mean=%.3f max=%.3f below %.2f: %.1f%% (%s)",
		r.Samples, r.Min, r.P5, r.Median, r.Mean, r.Max, r.Threshold, r.BelowPct, r.Method)
}

// WriteHistogram saves a histogram of the per-sample thicknesses to path.
// The image format follows the file extension (png, svg, pdf).
func (r *Report) WriteHistogram(path string) error {
	if len(r.values) == 0 {
		return ErrNoSamples
	}
	p := plot.New()
	p.Title.Text = "Wall thickness distribution"
	p.X.Label.Text = "thickness (mm)"
	p.Y.Label.Text = "samples"
	h, err := plotter.NewHist(plotter.Values(r.values), 40)
	if err != nil {
		return err
	}
	p.Add(h)
	_, _, _, ymax := h.DataRange()
	thr := plotter.XYs{{X: r.Threshold, Y: 0}, {X: r.Threshold, Y: ymax}}
	line, err := plotter.NewLine(thr)
	if err == nil {
		p.Add(line)
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
