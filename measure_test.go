package thick

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestMeasureUniformShell(t *testing.T) {
	// A spherical shell has the same wall thickness at every sample, so
	// the mean must land near the nominal wall. Faceting of the UV
	// tessellation shaves a few hundredths off.
	const wall = 1.5
	m := HollowSphere(5, wall, 24)
	rep, err := Measure(m, MeasureOpts{Samples: 800, Seed: 3, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Method != MethodRayCast {
		t.Fatalf("method = %q, want %q", rep.Method, MethodRayCast)
	}
	if math.Abs(rep.Mean-wall) > 0.15 {
		t.Errorf("mean thickness = %.3f, want about %.2f", rep.Mean, wall)
	}
	if rep.StdDev > 0.3 {
		t.Errorf("uniform shell std dev = %.3f, too high", rep.StdDev)
	}
	if !rep.MeetsThreshold() {
		t.Errorf("p5 = %.3f should clear threshold 1", rep.P5)
	}
}

func TestMeasureSolidBox(t *testing.T) {
	m := SolidBox(r3.Vec{X: 10, Y: 10, Z: 10})
	rep, err := Measure(m, MeasureOpts{Samples: 500, Seed: 5, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	// Probing a solid cube from any face crosses to the opposite face.
	if math.Abs(rep.Median-10) > 0.1 {
		t.Errorf("median = %.3f, want about 10", rep.Median)
	}
	if rep.Below != 0 {
		t.Errorf("no sample of a 10mm cube should be below 1mm, got %d", rep.Below)
	}
}

func TestMeasureDeterministicBySeed(t *testing.T) {
	m := HollowBox(r3.Vec{X: 8, Y: 8, Z: 8}, 1.2)
	a, err := Measure(m, MeasureOpts{Samples: 400, Seed: 11, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Measure(m, MeasureOpts{Samples: 400, Seed: 11, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a.Mean != b.Mean || a.P5 != b.P5 || a.Min != b.Min {
		t.Errorf("identical seeds disagree: %v vs %v", a, b)
	}
}

func TestMeasureOpenMeshFallsBack(t *testing.T) {
	// A lone triangle has no far wall anywhere; every probe escapes and
	// the report must say so instead of inventing statistics.
	tri := Triangle{r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 3}}
	m, err := NewMesh([]Triangle{tri}, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := Measure(m, MeasureOpts{Samples: 50, Seed: 2, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Method != MethodExtentFallback {
		t.Fatalf("method = %q, want %q", rep.Method, MethodExtentFallback)
	}
}

func TestMeasureEscapeSubstitution(t *testing.T) {
	// Remove one face from a cube. Samples near the hole may escape in
	// both directions; those get the largest extent substituted rather
	// than poisoning the report with infinities.
	box := SolidBox(r3.Vec{X: 5, Y: 5, Z: 5})
	open := &Mesh{Vertices: box.Vertices, Faces: box.Faces[2:]}
	rep, err := Measure(open, MeasureOpts{Samples: 600, Seed: 9, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Method != MethodRayCast {
		t.Fatalf("method = %q, want %q", rep.Method, MethodRayCast)
	}
	if math.IsInf(rep.Max, 1) || math.IsNaN(rep.Max) {
		t.Errorf("max = %v, infinities must be substituted", rep.Max)
	}
	if rep.Max > 5+1e-6 {
		t.Errorf("max = %.3f exceeds the largest extent", rep.Max)
	}
}

func TestMeasureThinSpots(t *testing.T) {
	m := HollowBox(r3.Vec{X: 10, Y: 10, Z: 10}, 0.5)
	rep, err := Measure(m, MeasureOpts{Samples: 500, Seed: 4, Threshold: 1, MaxThinSpots: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.ThinSpots) == 0 {
		t.Fatal("0.5mm walls must produce thin spots at threshold 1")
	}
	if len(rep.ThinSpots) > 10 {
		t.Errorf("thin spots not capped: %d", len(rep.ThinSpots))
	}
	for i := 1; i < len(rep.ThinSpots); i++ {
		if rep.ThinSpots[i].Thickness < rep.ThinSpots[i-1].Thickness {
			t.Fatal("thin spots not sorted thinnest first")
		}
	}
	for _, s := range rep.ThinSpots {
		if s.Thickness >= rep.Threshold {
			t.Errorf("thin spot %.3f not below threshold", s.Thickness)
		}
	}
}
