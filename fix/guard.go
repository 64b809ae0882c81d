package fix

import (
	"fmt"

	"github.com/printbed/thick"
	"github.com/printbed/thick/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// shapeGuard checks corrected meshes against the shape-preservation
// limits of a policy, relative to a snapshot of the original geometry.
type shapeGuard struct {
	centroid r3.Vec
	size     r3.Vec
	policy   Policy
}

type verdict struct {
	drift  float64
	growth r3.Vec
	issues []string
}

func newGuard(original *thick.Mesh, policy Policy) *shapeGuard {
	return &shapeGuard{
		centroid: original.Centroid(),
		size:     original.Bounds().Size(),
		policy:   policy,
	}
}

// check re-centers the candidate onto the original centroid when the
// drift is measurable, then reports residual drift and any bounding-box
// growth beyond the allowed increase. Growth is compared with a 1.1
// tolerance factor so a corrector that used its full budget does not
// fail on rasterization noise.
func (g *shapeGuard) check(m *thick.Mesh) verdict {
	const recenterAbove = 1e-3
	drift := r3.Norm(r3.Sub(m.Centroid(), g.centroid))
	if drift > recenterAbove {
		m.Translate(r3.Sub(g.centroid, m.Centroid()))
		drift = r3.Norm(r3.Sub(m.Centroid(), g.centroid))
	}

	var v verdict
	v.drift = drift
	if drift > g.policy.MaxCentroidDrift {
		v.issues = append(v.issues, fmt.Sprintf(
			"centroid drift %.4f exceeds %.4f", drift, g.policy.MaxCentroidDrift))
	}
	growth := d3.AbsElem(r3.Sub(m.Bounds().Size(), g.size))
	v.growth = growth
	limit := g.policy.MaxSizeIncrease * 1.1
	axes := []struct {
		name string
		grew float64
	}{{"x", growth.X}, {"y", growth.Y}, {"z", growth.Z}}
	for _, a := range axes {
		axis, gr := a.name, a.grew
		if gr > limit {
			v.issues = append(v.issues, fmt.Sprintf(
				"%s size grew %.3f, more than %.3f allowed", axis, gr, g.policy.MaxSizeIncrease))
		}
	}
	return v
}
