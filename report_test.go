package thick

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildReportStats(t *testing.T) {
	values := []float64{2, 1, 3, 4, 5}
	rep, err := buildReport(values, nil, 2.5, MethodRayCast)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Samples != 5 || rep.Min != 1 || rep.Max != 5 {
		t.Errorf("min/max/samples wrong: %+v", rep)
	}
	if math.Abs(rep.Mean-3) > 1e-12 {
		t.Errorf("mean = %g, want 3", rep.Mean)
	}
	if rep.Median != 3 {
		t.Errorf("median = %g, want 3", rep.Median)
	}
	if rep.Below != 2 {
		t.Errorf("below = %d, want 2", rep.Below)
	}
	if math.Abs(rep.BelowPct-40) > 1e-12 {
		t.Errorf("below pct = %g, want 40", rep.BelowPct)
	}
	if rep.MeetsThreshold() {
		t.Error("p5 of {1..5} should not clear threshold 2.5")
	}
}

func TestBuildReportEmpty(t *testing.T) {
	if _, err := buildReport(nil, nil, 1, MethodRayCast); err != ErrNoSamples {
		t.Errorf("got %v, want ErrNoSamples", err)
	}
}

func TestBuildReportSingleValue(t *testing.T) {
	rep, err := buildReport([]float64{2}, nil, 1, MethodExtentFallback)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StdDev != 0 {
		t.Errorf("std dev of one value = %g, want 0", rep.StdDev)
	}
	if rep.P5 != 2 || rep.Median != 2 {
		t.Errorf("percentiles of one value: %+v", rep)
	}
}

func TestReportJSONShape(t *testing.T) {
	rep, err := buildReport([]float64{0.5, 1.5, 2}, []ThinSpot{{Thickness: 0.5}}, 1, MethodRayCast)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"samples", "p5", "below_threshold_pct", "method", "thin_spots"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("report JSON missing %q", key)
		}
	}
}

func TestWriteHistogram(t *testing.T) {
	m := HollowBox(Elem3(8), 1)
	rep, err := Measure(m, MeasureOpts{Samples: 300, Seed: 6, Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "hist.png")
	if err := rep.WriteHistogram(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("histogram file is empty")
	}
}
