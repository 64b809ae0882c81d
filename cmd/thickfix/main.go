// Command thickfix measures and corrects the wall thickness of binary STL
// parts in bulk. Parts below the minimum are thickened by voxel dilation,
// normal offsetting or uniform scaling, whichever succeeds first within
// the shape-preservation limits, and a JSON report of every part is
// written next to the output.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/printbed/thick"
	"github.com/printbed/thick/fix"
	"github.com/printbed/thick/stl"
)

type partRecord struct {
	File          string        `json:"file"`
	Status        fix.Status    `json:"status"`
	Strategy      fix.Strategy  `json:"strategy"`
	Before        *thick.Report `json:"before"`
	After         *thick.Report `json:"after"`
	Issues        []string      `json:"issues,omitempty"`
	CentroidDrift float64       `json:"centroid_drift"`
	Error         string        `json:"error,omitempty"`
	Elapsed       string        `json:"elapsed"`
}

type batchReport struct {
	Generated time.Time    `json:"generated"`
	Policy    fix.Policy   `json:"policy"`
	Parts     []partRecord `json:"parts"`
	Summary   summary      `json:"summary"`
}

type summary struct {
	Total           int `json:"total"`
	OK              int `json:"ok"`
	Fixed           int `json:"fixed"`
	FixedWithIssues int `json:"fixed_with_issues"`
	Failed          int `json:"failed"`
	Errors          int `json:"errors"`
}

func main() {
	var (
		in      = flag.String("in", ".", "input STL file or directory")
		out     = flag.String("out", "fixed", "output directory for corrected STLs")
		minT    = flag.Float64("min", 1.0, "minimum wall thickness (mm)")
		maxT    = flag.Float64("max", 1.25, "target thickness ceiling (mm)")
		pitch   = flag.Float64("pitch", 0.15, "voxel dilation pitch (mm)")
		samples = flag.Int("samples", 3000, "thickness probes per measurement")
		drift   = flag.Float64("drift", 0.1, "maximum centroid drift (mm)")
		growth  = flag.Float64("growth", 2.0, "maximum per-axis size increase (mm)")
		iters   = flag.Int("iters", 10, "maximum voxel dilation iterations")
		jobs    = flag.Int("jobs", 4, "parts processed concurrently")
		seed    = flag.Int64("seed", 0, "sampling seed, 0 for time-based")
		report  = flag.String("report", "fix_report.json", "JSON report path, relative to -out")
		png     = flag.Bool("png", false, "render a PNG preview of each output part")
		hist    = flag.Bool("hist", false, "save a thickness histogram per part")
		noVoxel = flag.Bool("novoxel", false, "skip the voxel corrector")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "thickfix: ", log.LstdFlags)
	policy := fix.Policy{
		MinThickness:     *minT,
		MaxThickness:     *maxT,
		MaxCentroidDrift: *drift,
		MaxSizeIncrease:  *growth,
		VoxelPitch:       *pitch,
		MaxIterations:    *iters,
		Samples:          *samples,
		Seed:             *seed,
		NoVoxel:          *noVoxel,
	}

	files, err := collectSTLs(*in)
	if err != nil {
		logger.Fatal(err)
	}
	if len(files) == 0 {
		logger.Fatalf("no STL files under %s", *in)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Fatal(err)
	}

	records := make([]partRecord, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(*jobs, 1))
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = processPart(logger, path, *out, policy, *png, *hist)
		}(i, path)
	}
	wg.Wait()

	rep := batchReport{
		Generated: time.Now(),
		Policy:    policy,
		Parts:     records,
	}
	for _, r := range records {
		rep.Summary.Total++
		switch {
		case r.Error != "":
			rep.Summary.Errors++
		case r.Status == fix.StatusOK:
			rep.Summary.OK++
		case r.Status == fix.StatusFixed:
			rep.Summary.Fixed++
		case r.Status == fix.StatusFixedWithIssues:
			rep.Summary.FixedWithIssues++
		default:
			rep.Summary.Failed++
		}
	}

	reportPath := filepath.Join(*out, *report)
	if err := writeJSON(reportPath, rep); err != nil {
		logger.Fatal(err)
	}
	logger.Printf("%d parts: %d ok, %d fixed, %d with issues, %d failed, %d errors (report: %s)",
		rep.Summary.Total, rep.Summary.OK, rep.Summary.Fixed,
		rep.Summary.FixedWithIssues, rep.Summary.Failed, rep.Summary.Errors, reportPath)
	if rep.Summary.Failed > 0 || rep.Summary.Errors > 0 {
		os.Exit(1)
	}
}

func collectSTLs(in string) ([]string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{in}, nil
	}
	var files []string
	err = filepath.WalkDir(in, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".stl") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func processPart(logger *log.Logger, path, outDir string, policy fix.Policy, png, hist bool) partRecord {
	start := time.Now()
	rec := partRecord{File: path}
	fail := func(err error) partRecord {
		logger.Printf("%s: %v", path, err)
		rec.Error = err.Error()
		rec.Elapsed = time.Since(start).Round(time.Millisecond).String()
		return rec
	}

	m, err := stl.ReadFile(path)
	if err != nil && m == nil {
		return fail(err)
	}
	if err != nil {
		logger.Printf("%s: %v (continuing)", path, err)
	}

	fixer := &fix.Fixer{Log: logger}
	res, err := fixer.Fix(m, policy)
	if err != nil {
		return fail(err)
	}
	rec.Status = res.Status
	rec.Strategy = res.Strategy
	rec.Before = res.Before
	rec.After = res.After
	rec.Issues = res.Issues
	rec.CentroidDrift = res.CentroidDrift

	base := filepath.Base(path)
	outPath := filepath.Join(outDir, base)
	if err := stl.WriteFile(outPath, res.Mesh); err != nil {
		return fail(err)
	}
	stem := strings.TrimSuffix(outPath, filepath.Ext(outPath))
	if hist {
		if err := res.After.WriteHistogram(stem + "_hist.png"); err != nil {
			logger.Printf("%s: histogram: %v", path, err)
		}
	}
	if png {
		if err := renderPreview(outPath, stem+".png"); err != nil {
			logger.Printf("%s: preview: %v", path, err)
		}
	}
	rec.Elapsed = time.Since(start).Round(time.Millisecond).String()
	logger.Printf("%s: %s via %s in %s", base, rec.Status, rec.Strategy, rec.Elapsed)
	return rec
}

// renderPreview rasterizes the written STL from a fixed three-quarter
// view for quick visual inspection of the corrected part.
func renderPreview(stlPath, pngPath string) error {
	mesh, err := fauxgl.LoadSTL(stlPath)
	if err != nil {
		return err
	}
	const (
		width, height = 960, 720
		scale         = 2 // supersampling factor
		fovy          = 30
		near, far     = 1, 10
	)
	var (
		eye    = fauxgl.V(3, 1.5, 2)
		center = fauxgl.V(0, 0, 0)
		up     = fauxgl.V(0, 0, 1)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	mesh.BiUnitCube()
	context := fauxgl.NewContext(width*scale, height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, near, far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#468966")
	context.Shader = shader
	context.DrawMesh(mesh)
	image := resize.Resize(width, height, context.Image(), resize.Bilinear)
	return fauxgl.SavePNG(pngPath, image)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
