// Package thick measures the local wall thickness of triangulated solids.
//
// The package samples a mesh surface with an area-weighted point cloud and
// probes each point with bidirectional ray casts along the surface normal,
// aggregating the per-point estimates into a statistical Report. The 5th
// percentile of the distribution is the noise-resistant compliance metric;
// the bare minimum is kept for diagnostics only.
//
// Corrective strategies that repair meshes failing a minimum-thickness
// requirement live in the fix subpackage.
package thick

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a triangle in 3D space described by its three vertices.
type Triangle [3]r3.Vec

// Normal returns the triangle's unit normal following the right hand rule
// on the vertex ordering. Returns the zero vector for degenerate triangles.
func (t Triangle) Normal() r3.Vec {
	n := t.cross()
	norm := r3.Norm(n)
	if norm < 1e-16 {
		return r3.Vec{}
	}
	return r3.Scale(1/norm, n)
}

// Area returns the triangle's surface area.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(t.cross())
}

// Centroid returns the triangle's center of mass.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1./3., r3.Add(r3.Add(t[0], t[1]), t[2]))
}

// Degenerate returns true if the triangle has near-zero area.
func (t Triangle) Degenerate(tol float64) bool {
	return t.Area() <= tol
}

func (t Triangle) cross() r3.Vec {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	return r3.Cross(e1, e2)
}

func (t Triangle) minEdge() float64 {
	return math.Min(r3.Norm(r3.Sub(t[1], t[0])),
		math.Min(r3.Norm(r3.Sub(t[2], t[1])), r3.Norm(r3.Sub(t[0], t[2]))))
}
