// Package fix corrects triangulated solids whose wall thickness falls
// below a manufacturing minimum. Three correctors are tried in order of
// decreasing fidelity: voxel dilation, vertex-normal offsetting, and
// uniform scaling. Every candidate is re-measured and checked against
// shape-preservation limits before it can be accepted.
package fix

import (
	"errors"
	"fmt"
	"log"

	"github.com/printbed/thick"
	"gonum.org/v1/gonum/spatial/r3"
)

// Status classifies the outcome of a fix attempt.
type Status string

const (
	// StatusOK means the part already met the minimum and was untouched.
	StatusOK Status = "ok"
	// StatusFixed means a corrector brought the part to the minimum
	// within all shape limits.
	StatusFixed Status = "fixed"
	// StatusFixedWithIssues means thickness reached the minimum but a
	// shape limit was exceeded; the result needs review.
	StatusFixedWithIssues Status = "fixed_with_issues"
	// StatusFailed means no corrector reached the minimum. The best
	// candidate found is still returned.
	StatusFailed Status = "failed"
)

// Strategy names the corrector that produced a result.
type Strategy string

const (
	StrategyNone   Strategy = "none"
	StrategyVoxel  Strategy = "voxel_dilation"
	StrategyOffset Strategy = "normal_offset"
	StrategyScale  Strategy = "uniform_scale"
)

// Errors reported by the correctors.
var (
	// ErrVoxelize is returned when a mesh cannot be voxelized at the
	// configured pitch, usually because the grid would be too large.
	ErrVoxelize = errors.New("fix: mesh cannot be voxelized at this pitch")
	// ErrExhausted is returned by a corrector that ran out of headroom
	// before reaching the target thickness.
	ErrExhausted = errors.New("fix: corrector exhausted its growth budget")
)

// Policy bounds what a fix is allowed to do to a part.
type Policy struct {
	// MinThickness is the wall thickness the part must reach, measured
	// at the fifth percentile.
	MinThickness float64 `json:"min_thickness"`
	// MaxThickness is the ceiling correctors aim under so parts are not
	// thickened more than needed.
	MaxThickness float64 `json:"max_thickness"`
	// MaxCentroidDrift is the largest allowed displacement of the
	// vertex centroid, after re-centering.
	MaxCentroidDrift float64 `json:"max_centroid_drift"`
	// MaxSizeIncrease is the largest allowed growth of any bounding-box
	// axis.
	MaxSizeIncrease float64 `json:"max_size_increase"`
	// VoxelPitch is the dilation grid resolution.
	VoxelPitch float64 `json:"voxel_pitch"`
	// MaxIterations caps the dilation loop.
	MaxIterations int `json:"max_iterations"`
	// Samples is the probe count per measurement.
	Samples int `json:"samples"`
	// Seed seeds measurement sampling. Zero seeds from the clock, which
	// makes runs non-reproducible.
	Seed int64 `json:"seed,omitempty"`
	// NoVoxel disables the voxel corrector, falling straight through to
	// offsetting. Useful for very large parts where the grid would not
	// fit, or when topology must be preserved exactly.
	NoVoxel bool `json:"no_voxel,omitempty"`
}

// DefaultPolicy returns the policy used for unattended batch fixing.
func DefaultPolicy() Policy {
	return Policy{
		MinThickness:     1.0,
		MaxThickness:     1.25,
		MaxCentroidDrift: 0.1,
		MaxSizeIncrease:  2.0,
		VoxelPitch:       0.15,
		MaxIterations:    10,
		Samples:          3000,
	}
}

func (p *Policy) setDefaults() {
	d := DefaultPolicy()
	if p.MinThickness <= 0 {
		p.MinThickness = d.MinThickness
	}
	if p.MaxThickness < p.MinThickness {
		p.MaxThickness = p.MinThickness * d.MaxThickness / d.MinThickness
	}
	if p.MaxCentroidDrift <= 0 {
		p.MaxCentroidDrift = d.MaxCentroidDrift
	}
	if p.MaxSizeIncrease <= 0 {
		p.MaxSizeIncrease = d.MaxSizeIncrease
	}
	if p.VoxelPitch <= 0 {
		p.VoxelPitch = d.VoxelPitch
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.Samples <= 0 {
		p.Samples = d.Samples
	}
}

// Result describes the outcome of Fix.
type Result struct {
	Status   Status   `json:"status"`
	Strategy Strategy `json:"strategy"`
	// Mesh is the corrected geometry, or the input when Status is
	// StatusOK. On StatusFailed it holds the best candidate found.
	Mesh *thick.Mesh `json:"-"`
	// Before and After are the thickness reports bracketing the fix.
	Before *thick.Report `json:"before"`
	After  *thick.Report `json:"after"`
	// Issues lists shape-limit violations when Status is
	// StatusFixedWithIssues.
	Issues []string `json:"issues,omitempty"`
	// CentroidDrift is the residual centroid displacement after
	// re-centering.
	CentroidDrift float64 `json:"centroid_drift"`
	// SizeGrowth is the absolute bounding-box growth per axis.
	SizeGrowth r3.Vec `json:"size_growth"`
}

// Fixer runs the correction pipeline. The zero value is usable; Log
// defaults to discarding.
type Fixer struct {
	Log *log.Logger
}

func (f *Fixer) logf(format string, args ...any) {
	if f.Log != nil {
		f.Log.Printf(format, args...)
	}
}

// Fix is shorthand for (&Fixer{}).Fix.
func Fix(m *thick.Mesh, policy Policy) (*Result, error) {
	return (&Fixer{}).Fix(m, policy)
}

// Fix measures m and, if it falls below policy.MinThickness at the fifth
// percentile, runs the correctors until one produces a compliant mesh.
// Correctors that error are skipped, not fatal; the best non-compliant
// candidate is retained so a failed run still returns the closest
// geometry achieved.
func (f *Fixer) Fix(m *thick.Mesh, policy Policy) (*Result, error) {
	policy.setDefaults()
	opts := thick.MeasureOpts{
		Samples:   policy.Samples,
		Seed:      policy.Seed,
		Threshold: policy.MinThickness,
	}
	before, err := thick.Measure(m, opts)
	if err != nil {
		return nil, fmt.Errorf("measuring input: %w", err)
	}
	f.logf("input: %v", before)

	res := &Result{
		Status:   StatusOK,
		Strategy: StrategyNone,
		Mesh:     m,
		Before:   before,
		After:    before,
	}
	if before.MeetsThreshold() {
		return res, nil
	}

	type attempt struct {
		strategy Strategy
		run      corrector
	}
	attempts := []attempt{
		{StrategyVoxel, f.voxelDilate},
		{StrategyOffset, f.offsetNormals},
		{StrategyScale, f.uniformScale},
	}
	if policy.NoVoxel {
		attempts = attempts[1:]
	}

	guard := newGuard(m, policy)
	var best *Result
	for _, a := range attempts {
		fixed, err := a.run(m.Copy(), before, policy, opts)
		if err != nil {
			f.logf("%s: %v", a.strategy, err)
			continue
		}
		after, err := thick.Measure(fixed, opts)
		if err != nil {
			f.logf("%s: remeasure: %v", a.strategy, err)
			continue
		}
		verdict := guard.check(fixed)
		cand := &Result{
			Strategy:      a.strategy,
			Mesh:          fixed,
			Before:        before,
			After:         after,
			Issues:        verdict.issues,
			CentroidDrift: verdict.drift,
			SizeGrowth:    verdict.growth,
		}
		f.logf("%s: %v drift=%.4f issues=%d", a.strategy, after, verdict.drift, len(verdict.issues))
		if after.MeetsThreshold() {
			if len(verdict.issues) == 0 {
				cand.Status = StatusFixed
			} else {
				cand.Status = StatusFixedWithIssues
			}
			return cand, nil
		}
		cand.Status = StatusFailed
		if best == nil || cand.After.P5 > best.After.P5 {
			best = cand
		}
	}
	if best != nil {
		return best, nil
	}
	res.Status = StatusFailed
	return res, nil
}

// corrector transforms the mesh in place toward the policy minimum. The
// input report describes the mesh before correction.
type corrector func(m *thick.Mesh, before *thick.Report, policy Policy, opts thick.MeasureOpts) (*thick.Mesh, error)
