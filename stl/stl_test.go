package stl

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/printbed/thick"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestWriteReadback(t *testing.T) {
	want := thick.HollowBox(r3.Vec{X: 8, Y: 6, Z: 4}, 1)
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatal(err)
	}
	if got, wantLen := buf.Len(), 84+50*len(want.Faces); got != wantLen {
		t.Errorf("encoded length = %d, want %d", got, wantLen)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Faces) != len(want.Faces) {
		t.Errorf("face count %d -> %d after round trip", len(want.Faces), len(got.Faces))
	}
	gs, ws := got.Bounds().Size(), want.Bounds().Size()
	if math.Abs(gs.X-ws.X) > 1e-5 || math.Abs(gs.Y-ws.Y) > 1e-5 || math.Abs(gs.Z-ws.Z) > 1e-5 {
		t.Errorf("bounds %v -> %v after round trip", ws, gs)
	}
	if !got.IsWatertight() {
		t.Error("round-tripped mesh lost watertightness")
	}
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.stl")
	want := thick.Sphere(3, 12)
	if err := WriteFile(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Faces) != len(want.Faces) {
		t.Errorf("face count %d -> %d", len(want.Faces), len(got.Faces))
	}
}

func TestReadRejectsZeroTriangles(t *testing.T) {
	var buf bytes.Buffer
	var header [84]byte
	buf.Write(header[:])
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for 0-triangle header")
	}
}

func TestReadRejectsTruncated(t *testing.T) {
	want := thick.SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatal(err)
	}
	trunc := buf.Bytes()[:buf.Len()-30]
	if _, err := Read(bytes.NewReader(trunc)); err == nil {
		t.Error("expected error for truncated file")
	}
}

func TestReadRejectsNaNVertex(t *testing.T) {
	want := thick.SolidBox(r3.Vec{X: 2, Y: 2, Z: 2})
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	// Corrupt the first vertex X of the first triangle with a NaN.
	binary.LittleEndian.PutUint32(b[84+12:], math.Float32bits(float32(math.NaN())))
	if _, err := Read(bytes.NewReader(b)); err == nil {
		t.Error("expected error for NaN vertex")
	}
}
