package thick

import (
	"errors"
	"fmt"
	"math"

	"github.com/printbed/thick/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle surface. Vertices and Faces describe the
// geometry; every other attribute (normals, bounds, centroid, area,
// watertightness) is derived and cached lazily, and invalidated by the
// mutating methods. Mutate the slices directly only through Copy.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int

	faceN      []r3.Vec
	vertN      []r3.Vec
	bounds     *d3.Box
	centroid   *r3.Vec
	area       float64
	hasArea    bool
	watertight int8 // 0 unknown, 1 yes, 2 no
}

// ErrEmptyMesh is returned when a mesh with no usable faces is constructed.
var ErrEmptyMesh = errors.New("thick: mesh has no non-degenerate faces")

// NewMesh builds an indexed mesh from a triangle soup, merging coincident
// vertices with a quantizing cache. vertexTol is the merge distance; zero
// means infer it from the smallest triangle edge in the model. Triangles
// that collapse onto fewer than three distinct vertices are dropped.
func NewMesh(triangles []Triangle, vertexTol float64) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, ErrEmptyMesh
	}
	if vertexTol <= 0 {
		minEdge := math.MaxFloat64
		for _, tri := range triangles {
			if e := tri.minEdge(); e > 1e-16 && e < minEdge {
				minEdge = e
			}
		}
		if minEdge == math.MaxFloat64 {
			return nil, ErrEmptyMesh
		}
		vertexTol = minEdge / 256
	}
	m := &Mesh{}
	cache := make(map[[3]int64]int)
	htol := 0.5 * vertexTol
	quantize := func(v r3.Vec) [3]int64 {
		return [3]int64{
			int64(math.Floor((v.X + htol) / vertexTol)),
			int64(math.Floor((v.Y + htol) / vertexTol)),
			int64(math.Floor((v.Z + htol) / vertexTol)),
		}
	}
	for _, tri := range triangles {
		var face [3]int
		for j, vert := range tri {
			key := quantize(vert)
			idx, ok := cache[key]
			if !ok {
				idx = len(m.Vertices)
				cache[key] = idx
				m.Vertices = append(m.Vertices, vert)
			}
			face[j] = idx
		}
		if face[0] == face[1] || face[1] == face[2] || face[2] == face[0] {
			continue // collapsed under the merge tolerance
		}
		m.Faces = append(m.Faces, face)
	}
	if len(m.Faces) == 0 {
		return nil, ErrEmptyMesh
	}
	return m, nil
}

// Copy returns a deep copy of the mesh. Derived caches are not carried over.
func (m *Mesh) Copy() *Mesh {
	c := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	return c
}

func (m *Mesh) invalidate() {
	m.faceN = nil
	m.vertN = nil
	m.bounds = nil
	m.centroid = nil
	m.hasArea = false
	m.watertight = 0
}

// Triangle returns the ith face as a Triangle.
func (m *Mesh) Triangle(i int) Triangle {
	f := m.Faces[i]
	return Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles expands the indexed mesh back into a triangle soup.
func (m *Mesh) Triangles() []Triangle {
	out := make([]Triangle, len(m.Faces))
	for i := range m.Faces {
		out[i] = m.Triangle(i)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the mesh.
func (m *Mesh) Bounds() d3.Box {
	if m.bounds == nil {
		bb := d3.Box{Min: d3.Elem(math.MaxFloat64), Max: d3.Elem(-math.MaxFloat64)}
		for _, v := range m.Vertices {
			bb = bb.Include(v)
		}
		m.bounds = &bb
	}
	return *m.bounds
}

// Centroid returns the mean of the mesh vertices.
func (m *Mesh) Centroid() r3.Vec {
	if m.centroid == nil {
		var c r3.Vec
		for _, v := range m.Vertices {
			c = r3.Add(c, v)
		}
		c = r3.Scale(1/float64(len(m.Vertices)), c)
		m.centroid = &c
	}
	return *m.centroid
}

// SurfaceArea returns the summed area of all faces.
func (m *Mesh) SurfaceArea() float64 {
	if !m.hasArea {
		var a float64
		for i := range m.Faces {
			a += m.Triangle(i).Area()
		}
		m.area = a
		m.hasArea = true
	}
	return m.area
}

// FaceNormals returns the unit normal of every face. Degenerate faces get
// the zero vector.
func (m *Mesh) FaceNormals() []r3.Vec {
	if m.faceN == nil {
		m.faceN = make([]r3.Vec, len(m.Faces))
		for i := range m.Faces {
			m.faceN[i] = m.Triangle(i).Normal()
		}
	}
	return m.faceN
}

// VertexNormals returns the area-weighted vertex normals. Summing the raw
// cross products of adjacent faces weights each face by its area; vertices
// whose summed normal is near zero fall back to +Z so no NaN propagates
// into offsetting.
func (m *Mesh) VertexNormals() []r3.Vec {
	if m.vertN == nil {
		m.vertN = make([]r3.Vec, len(m.Vertices))
		for i := range m.Faces {
			w := m.Triangle(i).cross() // 2*area weighted normal
			for _, vi := range m.Faces[i] {
				m.vertN[vi] = r3.Add(m.vertN[vi], w)
			}
		}
		for i, n := range m.vertN {
			norm := r3.Norm(n)
			if norm < 1e-12 {
				m.vertN[i] = r3.Vec{Z: 1}
				continue
			}
			m.vertN[i] = r3.Scale(1/norm, n)
		}
	}
	return m.vertN
}

// IsWatertight reports whether every edge is shared by exactly two faces.
func (m *Mesh) IsWatertight() bool {
	if m.watertight == 0 {
		use := make(map[[2]int]int, 3*len(m.Faces))
		for _, f := range m.Faces {
			for j := 0; j < 3; j++ {
				e := edgeKey(f[j], f[(j+1)%3])
				use[e]++
			}
		}
		m.watertight = 1
		for _, n := range use {
			if n != 2 {
				m.watertight = 2
				break
			}
		}
	}
	return m.watertight == 1
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Translate moves every vertex by v.
func (m *Mesh) Translate(v r3.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], v)
	}
	m.invalidate()
}

// ScaleAbout maps every vertex as (v-about)*k + about. Scaling about the
// centroid preserves it exactly.
func (m *Mesh) ScaleAbout(about r3.Vec, k float64) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(r3.Scale(k, r3.Sub(m.Vertices[i], about)), about)
	}
	m.invalidate()
}

// OffsetAlongNormals moves every vertex by dist along its vertex normal.
// The caller is responsible for re-centering afterwards: offsetting along
// non-uniform normals shifts the centroid by an amount correlated with
// local curvature.
func (m *Mesh) OffsetAlongNormals(dist float64) {
	normals := m.VertexNormals()
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], r3.Scale(dist, normals[i]))
	}
	m.invalidate()
}

// vertexAdjacency returns, per vertex, the set of vertices connected to it
// by an edge.
func (m *Mesh) vertexAdjacency() [][]int {
	adj := make([][]int, len(m.Vertices))
	seen := make(map[[2]int]bool, 3*len(m.Faces))
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			e := edgeKey(f[j], f[(j+1)%3])
			if seen[e] {
				continue
			}
			seen[e] = true
			adj[e[0]] = append(adj[e[0]], e[1])
			adj[e[1]] = append(adj[e[1]], e[0])
		}
	}
	return adj
}

// Smooth applies iterations of one-pass Laplacian smoothing with a 0.5
// blending factor, reducing voxel stair-step artifacts. Smoothing pulls
// vertices toward their neighborhood mean and may slightly reduce measured
// thickness.
func (m *Mesh) Smooth(iterations int) {
	adj := m.vertexAdjacency()
	const lambda = 0.5
	for it := 0; it < iterations; it++ {
		next := make([]r3.Vec, len(m.Vertices))
		for i, v := range m.Vertices {
			if len(adj[i]) == 0 {
				next[i] = v
				continue
			}
			var avg r3.Vec
			for _, j := range adj[i] {
				avg = r3.Add(avg, m.Vertices[j])
			}
			avg = r3.Scale(1/float64(len(adj[i])), avg)
			next[i] = r3.Add(v, r3.Scale(lambda, r3.Sub(avg, v)))
		}
		m.Vertices = next
	}
	m.invalidate()
}

// Components splits the mesh into its connected shells.
func (m *Mesh) Components() []*Mesh {
	parent := make([]int, len(m.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, f := range m.Faces {
		union(f[0], f[1])
		union(f[1], f[2])
	}
	groups := make(map[int][][3]int)
	for _, f := range m.Faces {
		r := find(f[0])
		groups[r] = append(groups[r], f)
	}
	if len(groups) == 1 {
		return []*Mesh{m.Copy()}
	}
	out := make([]*Mesh, 0, len(groups))
	for _, faces := range groups {
		remap := make(map[int]int)
		sub := &Mesh{}
		for _, f := range faces {
			var nf [3]int
			for j, vi := range f {
				ni, ok := remap[vi]
				if !ok {
					ni = len(sub.Vertices)
					remap[vi] = ni
					sub.Vertices = append(sub.Vertices, m.Vertices[vi])
				}
				nf[j] = ni
			}
			sub.Faces = append(sub.Faces, nf)
		}
		out = append(out, sub)
	}
	return out
}

// LargestComponent returns the connected shell with the most vertices.
// Voxelization artifacts commonly spawn small disconnected fragments; this
// keeps only the part that matters.
func (m *Mesh) LargestComponent() *Mesh {
	comps := m.Components()
	best := comps[0]
	for _, c := range comps[1:] {
		if len(c.Vertices) > len(best.Vertices) {
			best = c
		}
	}
	return best
}

// String implements fmt.Stringer with a short geometric summary.
func (m *Mesh) String() string {
	bb := m.Bounds()
	sz := bb.Size()
	return fmt.Sprintf("mesh{%d verts, %d faces, %.3gx%.3gx%.3g}",
		len(m.Vertices), len(m.Faces), sz.X, sz.Y, sz.Z)
}
