package fix

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/printbed/thick"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxVoxels caps the occupancy grid so a pathological pitch cannot eat
// all memory. At one byte per cell this is 64 MB.
const maxVoxels = 64 << 20

// voxelGrid is a dense boolean occupancy grid over a padded bounding box.
// Cell (i,j,k) covers the cube whose center is origin + pitch*(i+.5, j+.5,
// k+.5).
type voxelGrid struct {
	origin     r3.Vec
	pitch      float64
	nx, ny, nz int
	cells      []bool
}

func (g *voxelGrid) idx(i, j, k int) int { return (k*g.ny+j)*g.nx + i }

func (g *voxelGrid) at(i, j, k int) bool {
	if i < 0 || j < 0 || k < 0 || i >= g.nx || j >= g.ny || k >= g.nz {
		return false
	}
	return g.cells[g.idx(i, j, k)]
}

func (g *voxelGrid) mark(p r3.Vec) {
	i := int(math.Floor((p.X - g.origin.X) / g.pitch))
	j := int(math.Floor((p.Y - g.origin.Y) / g.pitch))
	k := int(math.Floor((p.Z - g.origin.Z) / g.pitch))
	if i < 0 || j < 0 || k < 0 || i >= g.nx || j >= g.ny || k >= g.nz {
		return
	}
	g.cells[g.idx(i, j, k)] = true
}

// voxelize rasterizes the mesh into an occupancy grid at the given pitch.
// pad extra empty cells surround the part on every side so later dilation
// never runs into the grid wall. Occupancy is the union of surface cells,
// found by sub-pitch sampling of every triangle, and interior cells,
// found by a Z-parity fill per XY column. The surface pass protects walls
// thinner than one pitch that parity fill alone would miss.
func voxelize(m *thick.Mesh, pitch float64, pad int) (*voxelGrid, error) {
	if pitch <= 0 {
		return nil, fmt.Errorf("%w: pitch %g", ErrVoxelize, pitch)
	}
	bb := m.Bounds()
	size := bb.Size()
	padLen := float64(pad) * pitch
	g := &voxelGrid{
		origin: r3.Sub(bb.Min, thick.Elem3(padLen)),
		pitch:  pitch,
		nx:     int(math.Ceil(size.X/pitch)) + 2*pad,
		ny:     int(math.Ceil(size.Y/pitch)) + 2*pad,
		nz:     int(math.Ceil(size.Z/pitch)) + 2*pad,
	}
	total := g.nx * g.ny * g.nz
	if g.nx <= 0 || g.ny <= 0 || g.nz <= 0 || total > maxVoxels {
		return nil, fmt.Errorf("%w: grid %dx%dx%d at pitch %g", ErrVoxelize, g.nx, g.ny, g.nz, pitch)
	}
	g.cells = make([]bool, total)

	// Surface pass.
	for fi := range m.Faces {
		tri := m.Triangle(fi)
		e1 := r3.Norm(r3.Sub(tri[1], tri[0]))
		e2 := r3.Norm(r3.Sub(tri[2], tri[0]))
		steps := int(math.Ceil(math.Max(e1, e2)/(pitch/2))) + 1
		for a := 0; a <= steps; a++ {
			for b := 0; a+b <= steps; b++ {
				u := float64(a) / float64(steps)
				v := float64(b) / float64(steps)
				p := r3.Add(tri[0], r3.Add(
					r3.Scale(u, r3.Sub(tri[1], tri[0])),
					r3.Scale(v, r3.Sub(tri[2], tri[0]))))
				g.mark(p)
			}
		}
	}

	// Interior pass: per-triangle rasterization into XY columns, then a
	// parity fill along each column. Column centers carry a small fixed
	// jitter so axis-aligned faces do not land exactly on cell borders.
	crossings := make([][]float64, g.nx*g.ny)
	const jitter = 1e-4
	for fi := range m.Faces {
		tri := m.Triangle(fi)
		minX := math.Min(tri[0].X, math.Min(tri[1].X, tri[2].X))
		maxX := math.Max(tri[0].X, math.Max(tri[1].X, tri[2].X))
		minY := math.Min(tri[0].Y, math.Min(tri[1].Y, tri[2].Y))
		maxY := math.Max(tri[0].Y, math.Max(tri[1].Y, tri[2].Y))
		i0 := int(math.Floor((minX - g.origin.X) / pitch))
		i1 := int(math.Floor((maxX - g.origin.X) / pitch))
		j0 := int(math.Floor((minY - g.origin.Y) / pitch))
		j1 := int(math.Floor((maxY - g.origin.Y) / pitch))
		for j := max(j0, 0); j <= j1 && j < g.ny; j++ {
			for i := max(i0, 0); i <= i1 && i < g.nx; i++ {
				cx := g.origin.X + pitch*(float64(i)+0.5) + jitter
				cy := g.origin.Y + pitch*(float64(j)+0.5) + jitter
				z, ok := triangleZAt(tri, cx, cy)
				if !ok {
					continue
				}
				crossings[j*g.nx+i] = append(crossings[j*g.nx+i], z)
			}
		}
	}
	for col, zs := range crossings {
		if len(zs) < 2 {
			continue
		}
		sort.Float64s(zs)
		i := col % g.nx
		j := col / g.nx
		// An odd crossing count means the column grazed an edge; drop the
		// last crossing and fill what pairs cleanly.
		for c := 0; c+1 < len(zs); c += 2 {
			k0 := int(math.Ceil((zs[c] - g.origin.Z) / pitch))
			k1 := int(math.Floor((zs[c+1]-g.origin.Z)/pitch)) - 1
			for k := max(k0, 0); k <= k1 && k < g.nz; k++ {
				g.cells[g.idx(i, j, k)] = true
			}
		}
	}
	return g, nil
}

// triangleZAt intersects the vertical line through (x, y) with the
// triangle, using 2D barycentric coordinates of its XY projection.
func triangleZAt(tri thick.Triangle, x, y float64) (float64, bool) {
	d1x, d1y := tri[1].X-tri[0].X, tri[1].Y-tri[0].Y
	d2x, d2y := tri[2].X-tri[0].X, tri[2].Y-tri[0].Y
	det := d1x*d2y - d2x*d1y
	if math.Abs(det) < 1e-14 {
		return 0, false // vertical triangle, no area in XY
	}
	px, py := x-tri[0].X, y-tri[0].Y
	u := (px*d2y - d2x*py) / det
	v := (d1x*py - px*d1y) / det
	if u < 0 || v < 0 || u+v > 1 {
		return 0, false
	}
	return tri[0].Z + u*(tri[1].Z-tri[0].Z) + v*(tri[2].Z-tri[0].Z), true
}

// dilate grows the occupied region by one cell with 6-connectivity,
// thickening every wall by one pitch per side. Slices are processed in
// parallel; reads come from the previous generation so the result is
// order-independent.
func (g *voxelGrid) dilate() {
	next := make([]bool, len(g.cells))
	copy(next, g.cells)
	workers := runtime.NumCPU()
	if workers > g.nz {
		workers = g.nz
	}
	var wg sync.WaitGroup
	chunk := (g.nz + workers - 1) / workers
	for w := 0; w < workers; w++ {
		k0 := w * chunk
		k1 := min(k0+chunk, g.nz)
		if k0 >= k1 {
			break
		}
		wg.Add(1)
		go func(k0, k1 int) {
			defer wg.Done()
			for k := k0; k < k1; k++ {
				for j := 0; j < g.ny; j++ {
					for i := 0; i < g.nx; i++ {
						if g.cells[g.idx(i, j, k)] {
							continue
						}
						if g.at(i-1, j, k) || g.at(i+1, j, k) ||
							g.at(i, j-1, k) || g.at(i, j+1, k) ||
							g.at(i, j, k-1) || g.at(i, j, k+1) {
							next[g.idx(i, j, k)] = true
						}
					}
				}
			}
		}(k0, k1)
	}
	wg.Wait()
	g.cells = next
}

// gridSDF exposes the occupancy grid as a binary signed distance field:
// half a pitch inside occupied cells, half a pitch outside. Marching
// cubes places the isosurface on cell boundaries, which is accurate to
// the pitch and all the dilation loop needs.
type gridSDF struct {
	g *voxelGrid
}

func (s *gridSDF) Evaluate(p v3.Vec) float64 {
	g := s.g
	i := int(math.Floor((p.X - g.origin.X) / g.pitch))
	j := int(math.Floor((p.Y - g.origin.Y) / g.pitch))
	k := int(math.Floor((p.Z - g.origin.Z) / g.pitch))
	if g.at(i, j, k) {
		return -g.pitch / 2
	}
	return g.pitch / 2
}

func (s *gridSDF) BoundingBox() sdf.Box3 {
	g := s.g
	hi := r3.Add(g.origin, r3.Vec{
		X: g.pitch * float64(g.nx),
		Y: g.pitch * float64(g.ny),
		Z: g.pitch * float64(g.nz),
	})
	return sdf.Box3{
		Min: v3.Vec{X: g.origin.X, Y: g.origin.Y, Z: g.origin.Z},
		Max: v3.Vec{X: hi.X, Y: hi.Y, Z: hi.Z},
	}
}

// reconstruct meshes the occupancy grid with marching cubes, prunes
// voxelization debris, and applies one smoothing pass to knock down the
// voxel stair-steps.
func (g *voxelGrid) reconstruct() (*thick.Mesh, error) {
	// Two marching-cubes samples per voxel, otherwise one-cell-wide
	// features can fall between lattice points and vanish.
	cells := 2 * max(g.nx, g.ny, g.nz)
	renderer := render.NewMarchingCubesUniform(cells)
	raw := render.ToTriangles(&gridSDF{g: g}, renderer)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty isosurface", ErrVoxelize)
	}
	tris := make([]thick.Triangle, 0, len(raw))
	for _, t := range raw {
		tris = append(tris, thick.Triangle{
			{X: t[0].X, Y: t[0].Y, Z: t[0].Z},
			{X: t[1].X, Y: t[1].Y, Z: t[1].Z},
			{X: t[2].X, Y: t[2].Y, Z: t[2].Z},
		})
	}
	m, err := thick.NewMesh(tris, g.pitch/16)
	if err != nil {
		return nil, fmt.Errorf("meshing voxel grid: %w", err)
	}
	m = pruneDebris(m)
	m.Smooth(1)
	return m, nil
}

// pruneDebris drops the small disconnected fragments voxelization tends
// to spawn. Shells holding at least a tenth of the largest shell's
// vertices survive: an internal cavity wall is a legitimate disconnected
// shell and removing it would silently fill the part solid.
func pruneDebris(m *thick.Mesh) *thick.Mesh {
	comps := m.Components()
	if len(comps) == 1 {
		return comps[0]
	}
	largest := 0
	for _, c := range comps {
		if len(c.Vertices) > largest {
			largest = len(c.Vertices)
		}
	}
	var tris []thick.Triangle
	for _, c := range comps {
		if len(c.Vertices)*10 >= largest {
			tris = append(tris, c.Triangles()...)
		}
	}
	kept, err := thick.NewMesh(tris, 1e-9)
	if err != nil {
		return m
	}
	return kept
}

// voxelDilate thickens the part by iterated voxel dilation. Each
// iteration grows every wall by one pitch per side, so the iteration
// budget is the thickness deficit against the policy ceiling divided by
// two pitches, capped by the policy. After each iteration the grid is
// re-meshed and re-measured; the loop stops as soon as the compliance
// percentile reaches the minimum, or earlier when at most a tenth of the
// samples remain thin, which in practice means only isolated features are
// left and further dilation would only bloat the part.
func (f *Fixer) voxelDilate(m *thick.Mesh, before *thick.Report, policy Policy, opts thick.MeasureOpts) (*thick.Mesh, error) {
	maxIter := int(math.Ceil((policy.MaxThickness - before.P5) / (2 * policy.VoxelPitch)))
	if maxIter < 1 {
		maxIter = 1
	}
	if maxIter > policy.MaxIterations {
		maxIter = policy.MaxIterations
	}
	grid, err := voxelize(m, policy.VoxelPitch, maxIter+1)
	if err != nil {
		return nil, err
	}

	origin := m.Centroid()
	var best *thick.Mesh
	bestP5 := math.Inf(-1)
	for it := 1; it <= maxIter; it++ {
		grid.dilate()
		cand, err := grid.reconstruct()
		if err != nil {
			f.logf("voxel iteration %d: %v", it, err)
			continue
		}
		cand.Translate(r3.Sub(origin, cand.Centroid()))
		rep, err := thick.Measure(cand, opts)
		if err != nil {
			f.logf("voxel iteration %d: measure: %v", it, err)
			continue
		}
		f.logf("voxel iteration %d/%d: %v", it, maxIter, rep)
		if rep.P5 > bestP5 {
			best, bestP5 = cand, rep.P5
		}
		if rep.MeetsThreshold() || rep.P5 >= policy.MaxThickness || rep.BelowPct <= 10 {
			break
		}
	}
	// Once a reconstruction succeeded the best of them is returned,
	// never the input, even when the target was not reached.
	if best == nil {
		return nil, fmt.Errorf("%w after %d dilation iterations", ErrExhausted, maxIter)
	}
	return best, nil
}
