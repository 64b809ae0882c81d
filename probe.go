package thick

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// probeOffset is how far a probe ray origin is pushed off the surface
// before casting, so the ray does not immediately re-hit the face the
// sample was drawn from. Hits closer than this to the sample point are
// treated as self-intersections and discarded.
const probeOffset = 0.01

// rayTriangle computes the Möller-Trumbore intersection of the ray
// (orig, dir) with the triangle and returns the ray parameter t, or false
// when the ray misses or runs parallel to the triangle plane.
func rayTriangle(orig, dir r3.Vec, tri Triangle) (float64, bool) {
	const eps = 1e-9
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])
	h := r3.Cross(dir, e2)
	det := r3.Dot(e1, h)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(orig, tri[0])
	u := inv * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := inv * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := inv * r3.Dot(e2, q)
	if t <= eps {
		return 0, false
	}
	return t, true
}

// castThrough fires a ray from just off the sample point and returns the
// distance from the sample point to the nearest real hit, or +Inf when
// the ray escapes. Hits within probeOffset of the sample are rejected as
// grazes of the originating face.
func (m *Mesh) castThrough(sp SurfacePoint, dir r3.Vec) float64 {
	orig := r3.Add(sp.Point, r3.Scale(probeOffset, dir))
	best := math.Inf(1)
	for i := range m.Faces {
		t, ok := rayTriangle(orig, dir, m.Triangle(i))
		if !ok {
			continue
		}
		// t is measured from the offset origin; shift back to the sample.
		d := t + probeOffset
		if d <= probeOffset+1e-12 {
			continue
		}
		if d < best {
			best = d
		}
	}
	return best
}

// thicknessAt measures local wall thickness at a surface sample by casting
// along the inward normal and along the outward normal, taking the
// smaller crossing distance. Probing both directions keeps the estimate
// honest when the face winding is inconsistent or the sample sits on a
// sliver whose normal points the wrong way. Returns +Inf when neither ray
// hits the far wall.
func (m *Mesh) thicknessAt(sp SurfacePoint) float64 {
	if r3.Norm(sp.Normal) < 1e-12 {
		return math.Inf(1)
	}
	in := m.castThrough(sp, r3.Scale(-1, sp.Normal))
	out := m.castThrough(sp, sp.Normal)
	return math.Min(in, out)
}
