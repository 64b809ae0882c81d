package thick

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSampleSurfaceOnBox(t *testing.T) {
	m := SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	rnd := rand.New(rand.NewSource(1))
	pts := m.SampleSurface(1000, rnd)
	if len(pts) != 1000 {
		t.Fatalf("got %d samples, want 1000", len(pts))
	}
	for _, sp := range pts {
		onFace := math.Abs(math.Abs(sp.Point.X)-1) < 1e-9 ||
			math.Abs(math.Abs(sp.Point.Y)-1) < 1e-9 ||
			math.Abs(math.Abs(sp.Point.Z)-1) < 1e-9
		if !onFace {
			t.Fatalf("sample %v not on box surface", sp.Point)
		}
		if math.Abs(r3.Norm(sp.Normal)-1) > 1e-9 {
			t.Fatalf("sample normal %v not unit", sp.Normal)
		}
	}
}

func TestSampleSurfaceAreaWeighted(t *testing.T) {
	// A 10x10x0.5 slab: over 90% of the area is the two big faces, so
	// roughly that share of samples must land on them.
	m := SolidBox(r3.Vec{X: 10, Y: 10, Z: 0.5})
	rnd := rand.New(rand.NewSource(7))
	pts := m.SampleSurface(4000, rnd)
	onSlab := 0
	for _, sp := range pts {
		if math.Abs(math.Abs(sp.Point.Z)-0.25) < 1e-9 {
			onSlab++
		}
	}
	frac := float64(onSlab) / float64(len(pts))
	want := 200.0 / 220.0
	if math.Abs(frac-want) > 0.05 {
		t.Errorf("slab face fraction = %.3f, want about %.3f", frac, want)
	}
}

func TestSampleSurfaceDeterministicBySeed(t *testing.T) {
	m := Sphere(3, 12)
	a := m.SampleSurface(50, rand.New(rand.NewSource(42)))
	b := m.SampleSurface(50, rand.New(rand.NewSource(42)))
	for i := range a {
		if a[i].Point != b[i].Point {
			t.Fatalf("sample %d differs across identical seeds", i)
		}
	}
}

func TestSampleSurfaceEmpty(t *testing.T) {
	m := SolidBox(r3.Vec{X: 1, Y: 1, Z: 1})
	if got := m.SampleSurface(0, rand.New(rand.NewSource(1))); got != nil {
		t.Errorf("zero samples should return nil, got %d", len(got))
	}
}
