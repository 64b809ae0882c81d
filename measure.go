package thick

import (
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/printbed/thick/internal/d3"
)

// MeasureOpts controls a thickness measurement. The zero value is usable:
// defaults fill in below.
type MeasureOpts struct {
	// Samples is the number of surface probes. Defaults to 5000.
	Samples int
	// Seed seeds the sampling RNG. Zero means seed from the clock.
	Seed int64
	// Threshold is the minimum acceptable wall thickness in model units.
	// Defaults to 1.
	Threshold float64
	// MaxThinSpots caps the number of below-threshold locations recorded
	// in the report. Defaults to 100.
	MaxThinSpots int
}

func (o *MeasureOpts) setDefaults() {
	if o.Samples <= 0 {
		o.Samples = 5000
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Threshold <= 0 {
		o.Threshold = 1
	}
	if o.MaxThinSpots <= 0 {
		o.MaxThinSpots = 100
	}
}

// Measure estimates the wall thickness distribution of m by probing
// random surface samples with bidirectional rays. Probes that escape the
// mesh entirely are substituted with the largest bounding-box extent so
// one bad sample cannot sink the statistics; if every probe escapes the
// mesh is treated as unmeasurable and the report falls back to the
// minimum extent with Method set to MethodExtentFallback.
func Measure(m *Mesh, opt MeasureOpts) (*Report, error) {
	opt.setDefaults()
	rnd := rand.New(rand.NewSource(opt.Seed))
	samples := m.SampleSurface(opt.Samples, rnd)
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	values := make([]float64, len(samples))
	var wg sync.WaitGroup
	workers := runtime.NumCPU()
	if workers > len(samples) {
		workers = len(samples)
	}
	chunk := (len(samples) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(samples) {
			hi = len(samples)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				values[i] = m.thicknessAt(samples[i])
			}
		}(lo, hi)
	}
	wg.Wait()

	size := m.Bounds().Size()
	maxExtent := d3.Max(size)
	minExtent := d3.Min(size)

	finite := 0
	for i, v := range values {
		if math.IsInf(v, 1) {
			values[i] = maxExtent
			continue
		}
		finite++
	}
	if finite == 0 {
		// Nothing hit a far wall. Report the minimum extent so callers
		// still get a number, flagged so they know not to trust it.
		flat := []float64{minExtent}
		return buildReport(flat, nil, opt.Threshold, MethodExtentFallback)
	}

	var spots []ThinSpot
	for i, v := range values {
		if v < opt.Threshold {
			spots = append(spots, ThinSpot{Point: samples[i].Point, Normal: samples[i].Normal, Thickness: v})
		}
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].Thickness < spots[j].Thickness })
	if len(spots) > opt.MaxThinSpots {
		spots = spots[:opt.MaxThinSpots]
	}
	return buildReport(values, spots, opt.Threshold, MethodRayCast)
}
