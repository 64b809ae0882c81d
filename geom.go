package thick

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Primitive generators used by the test suite and by callers that want
// quick synthetic parts. All generators produce watertight, outward-wound
// triangle soups suitable for NewMesh.

// boxVertices returns the 8 corners of the box [min,max] in the fixed
// order the face tables below index into.
func boxVertices(min, max r3.Vec) [8]r3.Vec {
	return [8]r3.Vec{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
}

// boxFaces is the outward winding for a solid box over boxVertices order.
var boxFaces = [12][3]int{
	{0, 2, 1}, {0, 3, 2}, // -Z
	{4, 5, 6}, {4, 6, 7}, // +Z
	{0, 1, 5}, {0, 5, 4}, // -Y
	{2, 7, 6}, {2, 3, 7}, // +Y
	{0, 4, 7}, {0, 7, 3}, // -X
	{1, 2, 6}, {1, 6, 5}, // +X
}

func boxTriangles(min, max r3.Vec, invert bool) []Triangle {
	v := boxVertices(min, max)
	tris := make([]Triangle, 0, 12)
	for _, f := range boxFaces {
		t := Triangle{v[f[0]], v[f[1]], v[f[2]]}
		if invert {
			t[1], t[2] = t[2], t[1]
		}
		tris = append(tris, t)
	}
	return tris
}

// SolidBox returns a solid axis-aligned box of the given size centered at
// the origin.
func SolidBox(size r3.Vec) *Mesh {
	h := r3.Scale(0.5, size)
	m, _ := NewMesh(boxTriangles(r3.Scale(-1, h), h, false), 0)
	return m
}

// HollowBox returns a box shell of outer size with the given uniform wall
// thickness. The inner cavity is wound inward so both shells face away
// from the material.
func HollowBox(size r3.Vec, wall float64) *Mesh {
	h := r3.Scale(0.5, size)
	tris := boxTriangles(r3.Scale(-1, h), h, false)
	inner := r3.Sub(h, Elem3(wall))
	tris = append(tris, boxTriangles(r3.Scale(-1, inner), inner, true)...)
	m, _ := NewMesh(tris, 0)
	return m
}

// Elem3 returns a vector with all components set to v.
func Elem3(v float64) r3.Vec {
	return r3.Vec{X: v, Y: v, Z: v}
}

// sphereTriangles tessellates a UV sphere of the given radius centered at
// the origin. invert flips the winding for interior cavities. Cap quads
// that collapse at the poles become degenerate triangles which NewMesh
// discards.
func sphereTriangles(radius float64, lat, lon int, invert bool) []Triangle {
	at := func(i, j int) r3.Vec {
		theta := math.Pi * float64(i) / float64(lat)
		phi := 2 * math.Pi * float64(j%lon) / float64(lon)
		st, ct := math.Sincos(theta)
		sp, cp := math.Sincos(phi)
		return r3.Vec{
			X: radius * st * cp,
			Y: radius * st * sp,
			Z: radius * ct,
		}
	}
	var tris []Triangle
	for i := 0; i < lat; i++ {
		for j := 0; j < lon; j++ {
			a := at(i, j)
			b := at(i+1, j)
			c := at(i+1, j+1)
			d := at(i, j+1)
			t1 := Triangle{a, b, c}
			t2 := Triangle{a, c, d}
			if invert {
				t1[1], t1[2] = t1[2], t1[1]
				t2[1], t2[2] = t2[2], t2[1]
			}
			tris = append(tris, t1, t2)
		}
	}
	return tris
}

// Sphere returns a solid UV sphere with the given radius and tessellation.
func Sphere(radius float64, segments int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	m, _ := NewMesh(sphereTriangles(radius, segments, 2*segments, false), 0)
	return m
}

// HollowSphere returns a spherical shell with outer radius and the given
// uniform wall thickness. Unlike a hollow box it has no corner regions, so
// a bidirectional probe measures the wall thickness everywhere.
func HollowSphere(radius, wall float64, segments int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	tris := sphereTriangles(radius, segments, 2*segments, false)
	tris = append(tris, sphereTriangles(radius-wall, segments, 2*segments, true)...)
	m, _ := NewMesh(tris, 0)
	return m
}
