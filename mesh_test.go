package thick

import (
	"math"
	"testing"

	"github.com/printbed/thick/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewMeshMergesVertices(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	if len(m.Vertices) != 8 {
		t.Errorf("box should merge to 8 vertices, got %d", len(m.Vertices))
	}
	if len(m.Faces) != 12 {
		t.Errorf("box should have 12 faces, got %d", len(m.Faces))
	}
	if !m.IsWatertight() {
		t.Error("merged box should be watertight")
	}
}

func TestNewMeshRejectsEmpty(t *testing.T) {
	if _, err := NewMesh(nil, 0); err == nil {
		t.Error("expected error for empty triangle slice")
	}
	degen := Triangle{r3.Vec{}, r3.Vec{}, r3.Vec{X: 1}}
	if _, err := NewMesh([]Triangle{degen}, 0.1); err == nil {
		t.Error("expected error when all triangles collapse")
	}
}

func TestMeshBoundsCentroid(t *testing.T) {
	m := SolidBox(r3.Vec{X: 4, Y: 2, Z: 6})
	bb := m.Bounds()
	want := r3.Vec{X: 4, Y: 2, Z: 6}
	if !bb.Equals(d3.NewBox(r3.Vec{}, want), 1e-12) {
		t.Errorf("bounds = %+v, want %v about origin", bb, want)
	}
	if !vecClose(m.Centroid(), r3.Vec{}, 1e-12) {
		t.Errorf("centroid = %v, want origin", m.Centroid())
	}
	if !vecClose(bb.Center(), r3.Vec{}, 1e-12) {
		t.Errorf("box center = %v, want origin", bb.Center())
	}
	if !bb.Contains(r3.Vec{X: 1.9}) || bb.Contains(r3.Vec{X: 2.1}) {
		t.Error("bounds containment check wrong on x axis")
	}
}

func TestMeshSurfaceArea(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	if got, want := m.SurfaceArea(), 24.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("surface area = %g, want %g", got, want)
	}
}

func TestVertexNormalsPointOutward(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	normals := m.VertexNormals()
	for i, n := range normals {
		v := m.Vertices[i]
		if r3.Dot(n, v) <= 0 {
			t.Errorf("vertex %d normal %v points inward at %v", i, n, v)
		}
		if math.Abs(r3.Norm(n)-1) > 1e-9 {
			t.Errorf("vertex %d normal not unit length: %v", i, n)
		}
	}
}

func TestTranslateAndScale(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	m.Translate(r3.Vec{X: 1, Y: -2, Z: 3})
	if !vecClose(m.Centroid(), r3.Vec{X: 1, Y: -2, Z: 3}, 1e-12) {
		t.Errorf("centroid after translate = %v", m.Centroid())
	}
	c := m.Centroid()
	m.ScaleAbout(c, 2)
	if !vecClose(m.Centroid(), c, 1e-9) {
		t.Errorf("scaling about centroid moved it to %v", m.Centroid())
	}
	if got := d3SizeX(m); math.Abs(got-4) > 1e-9 {
		t.Errorf("x size after 2x scale = %g, want 4", got)
	}
}

func d3SizeX(m *Mesh) float64 { return m.Bounds().Size().X }

func TestOffsetAlongNormalsGrowsBox(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	m.OffsetAlongNormals(0.5)
	sz := m.Bounds().Size()
	// Box corner normals are diagonal, so each axis grows by less than
	// 2*0.5 but must grow.
	if sz.X <= 2 || sz.X > 3 {
		t.Errorf("x size after offset = %g, want in (2, 3]", sz.X)
	}
}

func TestComponents(t *testing.T) {
	a := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	b := SolidBox(r3.Vec{X: 1, Y: 1, Z: 1})
	b.Translate(r3.Vec{X: 10})
	tris := append(a.Triangles(), b.Triangles()...)
	m, err := NewMesh(tris, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	comps := m.Components()
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2", len(comps))
	}
	largest := m.LargestComponent()
	if got := largest.Bounds().Size().X; math.Abs(got-2) > 1e-9 {
		t.Errorf("largest component x size = %g, want 2", got)
	}
}

func TestHollowBoxWatertight(t *testing.T) {
	m := HollowBox(r3.Vec{X: 4, Y: 4, Z: 4}, 1)
	if !m.IsWatertight() {
		t.Error("hollow box should be watertight")
	}
	if len(m.Faces) != 24 {
		t.Errorf("hollow box should have 24 faces, got %d", len(m.Faces))
	}
}

func TestHollowSphereWatertight(t *testing.T) {
	m := HollowSphere(5, 1, 16)
	if !m.IsWatertight() {
		t.Error("hollow sphere should be watertight")
	}
	comps := m.Components()
	if len(comps) != 2 {
		t.Errorf("hollow sphere should have 2 shells, got %d", len(comps))
	}
}

func TestSmoothKeepsVertexCount(t *testing.T) {
	m := Sphere(3, 12)
	n := len(m.Vertices)
	before := m.Bounds().Size()
	m.Smooth(1)
	if len(m.Vertices) != n {
		t.Errorf("smoothing changed vertex count %d -> %d", n, len(m.Vertices))
	}
	after := m.Bounds().Size()
	if after.X > before.X+1e-9 {
		t.Error("laplacian smoothing should not grow the mesh")
	}
}

func TestTriangleDegenerate(t *testing.T) {
	good := Triangle{r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}}
	if good.Degenerate(1e-9) {
		t.Error("right triangle flagged degenerate")
	}
	if got, want := good.Area(), 0.5; math.Abs(got-want) > 1e-12 {
		t.Errorf("area = %g, want %g", got, want)
	}
	sliver := Triangle{r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 2}}
	if !sliver.Degenerate(1e-9) {
		t.Error("collinear triangle not flagged degenerate")
	}
}

func vecClose(a, b r3.Vec, tol float64) bool {
	d := r3.Sub(a, b)
	return math.Abs(d.X) <= tol && math.Abs(d.Y) <= tol && math.Abs(d.Z) <= tol
}
