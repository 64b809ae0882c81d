package thick

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// SurfacePoint is a sampled location on a mesh surface together with the
// outward normal of the face it was drawn from.
type SurfacePoint struct {
	Point  r3.Vec
	Normal r3.Vec
}

// SampleSurface draws n points uniformly over the mesh surface area.
// Faces are selected with probability proportional to their area and the
// point within the face is drawn with the square-root barycentric trick so
// the density stays uniform inside the triangle. Degenerate faces carry no
// area and are never selected.
func (m *Mesh) SampleSurface(n int, rnd *rand.Rand) []SurfacePoint {
	if n <= 0 || len(m.Faces) == 0 {
		return nil
	}
	cum := make([]float64, len(m.Faces))
	var total float64
	for i := range m.Faces {
		total += m.Triangle(i).Area()
		cum[i] = total
	}
	if total <= 0 {
		return nil
	}
	normals := m.FaceNormals()
	out := make([]SurfacePoint, 0, n)
	for k := 0; k < n; k++ {
		r := rnd.Float64() * total
		i := sort.SearchFloat64s(cum, r)
		if i >= len(cum) {
			i = len(cum) - 1
		}
		tri := m.Triangle(i)
		sr1 := math.Sqrt(rnd.Float64())
		r2 := rnd.Float64()
		a := 1 - sr1
		b := sr1 * (1 - r2)
		c := sr1 * r2
		p := r3.Add(r3.Add(r3.Scale(a, tri[0]), r3.Scale(b, tri[1])), r3.Scale(c, tri[2]))
		out = append(out, SurfacePoint{Point: p, Normal: normals[i]})
	}
	return out
}
