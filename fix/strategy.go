package fix

import (
	"math"

	"github.com/printbed/thick"
	"github.com/printbed/thick/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// offsetNormals thickens the mesh by pushing every vertex outward along
// its area-weighted vertex normal. A distance of d grows opposing walls
// by roughly 2d, so the target offset is half the thickness deficit,
// clamped to half the allowed size increase. Offsetting shifts the
// centroid on asymmetric parts, so the mesh is re-centered afterwards.
func (f *Fixer) offsetNormals(m *thick.Mesh, before *thick.Report, policy Policy, opts thick.MeasureOpts) (*thick.Mesh, error) {
	origin := m.Centroid()
	budget := policy.MaxSizeIncrease / 2
	p5 := before.P5
	for it := 0; it < policy.MaxIterations && budget > 0; it++ {
		deficit := policy.MinThickness - p5
		if deficit <= 0 {
			return m, nil
		}
		// Aim slightly past the minimum so sampling noise and faceting
		// on re-measure do not land exactly on the threshold.
		offset := math.Min(deficit/2*1.1, budget)
		budget -= offset
		m.OffsetAlongNormals(offset)
		m.Translate(r3.Sub(origin, m.Centroid()))
		rep, err := thick.Measure(m, opts)
		if err != nil {
			return nil, err
		}
		f.logf("offset iteration %d: moved %.3f, %v", it+1, offset, rep)
		p5 = rep.P5
	}
	if p5 < policy.MinThickness {
		// Budget or iterations ran out. The caller re-measures what was
		// achieved and keeps it as a candidate anyway.
		f.logf("offset: budget exhausted at p5=%.3f", p5)
	}
	return m, nil
}

// uniformScale grows the whole part about its centroid until the thinnest
// measured wall reaches the minimum. Scaling preserves shape exactly but
// grows every dimension, so the factor is clamped to the size-increase
// budget on the smallest extent and hard-capped at 2x.
func (f *Fixer) uniformScale(m *thick.Mesh, before *thick.Report, policy Policy, opts thick.MeasureOpts) (*thick.Mesh, error) {
	if before.P5 <= 0 {
		return nil, ErrExhausted
	}
	// The 1.02 overshoot keeps re-measure noise from landing exactly on
	// the threshold.
	factor := policy.MinThickness / before.P5 * 1.02
	minExtent := d3.Min(m.Bounds().Size())
	if minExtent > 0 {
		if limit := 1 + policy.MaxSizeIncrease/minExtent; factor > limit {
			factor = limit
		}
	}
	const hardCap = 2.0
	factor = math.Min(factor, hardCap)
	if factor <= 1 {
		return nil, ErrExhausted
	}
	m.ScaleAbout(m.Centroid(), factor)
	return m, nil
}
