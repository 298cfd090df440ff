package recon

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel/fake"
)

// squareSketch builds a sketch with one square profile of the given size,
// lower-left corner at (x0, y0).
func squareSketch(name, profile string, x0, y0, size float64) *design.Sketch {
	p := func(x, y float64) design.Vec3 { return design.Vec3{X: x, Y: y} }
	segs := []design.Segment{
		{Kind: design.SegmentLine, Curve: "SketchLine1", Start: p(x0, y0), End: p(x0+size, y0)},
		{Kind: design.SegmentLine, Curve: "SketchLine2", Start: p(x0+size, y0), End: p(x0+size, y0+size)},
		{Kind: design.SegmentLine, Curve: "SketchLine3", Start: p(x0+size, y0+size), End: p(x0, y0+size)},
		{Kind: design.SegmentLine, Curve: "SketchLine4", Start: p(x0, y0+size), End: p(x0, y0)},
	}
	return &design.Sketch{
		Name: name,
		Profiles: []*design.Profile{
			{Name: profile, Loops: []design.Loop{{IsOuter: true, Segments: segs}}},
		},
		Frame: design.IdentityFrame(),
	}
}

func extrude(name, profile, sketch string, op design.Operation, d1 float64) *design.Extrude {
	return &design.Extrude{
		Name:        name,
		Profiles:    []design.ProfileRef{{Profile: profile, Sketch: sketch}},
		Operation:   op,
		Extent:      design.ExtentOneSide,
		StartExtent: design.StartExtentProfilePlane,
		One:         design.Extent{Distance: d1},
	}
}

func buildTree(entities ...design.Entity) *design.Tree {
	tree := &design.Tree{Entities: entities}
	tree.Sequence = design.CanonicalSequence(tree)
	return tree
}

func TestBuildUnitBox(t *testing.T) {
	k := fake.New()
	d := New(k, Options{TraceVolumes: true})
	tree := buildTree(
		squareSketch("Sketch1", "Profile1", 0, 0, 1),
		extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
	)

	res, err := d.Build(context.Background(), tree)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.State != StateFinalized {
		t.Errorf("state = %v, want finalized", res.State)
	}
	if res.Features != 1 || res.Bodies != 1 {
		t.Errorf("features/bodies = %d/%d, want 1/1", res.Features, res.Bodies)
	}
	if got := fake.SolidVolume(res.Solid); math.Abs(got-1) > 1e-12 {
		t.Errorf("volume = %g, want 1", got)
	}
	// A box solid carries 4 side faces plus 2 caps.
	if got := fake.SolidFaces(res.Solid); got != 6 {
		t.Errorf("faces = %d, want 6", got)
	}
	if len(res.Traces) != 1 || math.Abs(res.Traces[0].Volume-1) > 1e-12 {
		t.Errorf("traces = %+v, want single trace with volume 1", res.Traces)
	}
}

func TestBuildCutShrinksVolume(t *testing.T) {
	k := fake.New()
	d := New(k, Options{TraceVolumes: true})
	tree := buildTree(
		squareSketch("Sketch1", "Profile1", 0, 0, 1),
		extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
		squareSketch("Sketch2", "Profile2", 0.5, 0, 1),
		extrude("Extrude2", "Profile2", "Sketch2", design.OpCut, 1),
	)

	res, err := d.Build(context.Background(), tree)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Traces) != 2 {
		t.Fatalf("traces = %d, want 2", len(res.Traces))
	}
	if res.Traces[1].Volume >= res.Traces[0].Volume {
		t.Errorf("cut did not shrink volume: %g -> %g", res.Traces[0].Volume, res.Traces[1].Volume)
	}
	if got := fake.SolidVolume(res.Solid); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("final volume = %g, want 0.5", got)
	}
}

func TestBuildJoinAndIntersect(t *testing.T) {
	t.Run("join unions bodies", func(t *testing.T) {
		k := fake.New()
		d := New(k, Options{})
		tree := buildTree(
			squareSketch("Sketch1", "Profile1", 0, 0, 1),
			extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
			squareSketch("Sketch2", "Profile2", 2, 0, 1),
			extrude("Extrude2", "Profile2", "Sketch2", design.OpJoin, 1),
		)
		res, err := d.Build(context.Background(), tree)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := fake.SolidVolume(res.Solid); math.Abs(got-2) > 1e-12 {
			t.Errorf("volume = %g, want 2", got)
		}
	})
	t.Run("intersect keeps overlap", func(t *testing.T) {
		k := fake.New()
		d := New(k, Options{})
		tree := buildTree(
			squareSketch("Sketch1", "Profile1", 0, 0, 1),
			extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
			squareSketch("Sketch2", "Profile2", 0.25, 0, 1),
			extrude("Extrude2", "Profile2", "Sketch2", design.OpIntersect, 1),
		)
		res, err := d.Build(context.Background(), tree)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := fake.SolidVolume(res.Solid); math.Abs(got-0.75) > 1e-12 {
			t.Errorf("volume = %g, want 0.75", got)
		}
	})
}

func TestBuildExtentPlacement(t *testing.T) {
	tests := []struct {
		name   string
		extent design.ExtentType
		d1, d2 float64
		wantZ0 float64
		wantZ1 float64
	}{
		{"one side", design.ExtentOneSide, 2, 0, 0, 2},
		{"one side negative", design.ExtentOneSide, -2, 0, -2, 0},
		{"two sides", design.ExtentTwoSides, 2, 1, -1, 2},
		{"symmetric", design.ExtentSymmetric, 2, 0, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := fake.New()
			d := New(k, Options{})
			ex := extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, tt.d1)
			ex.Extent = tt.extent
			if tt.extent == design.ExtentTwoSides || tt.extent == design.ExtentSymmetric {
				ex.Two = &design.Extent{Distance: tt.d2}
			}
			tree := buildTree(squareSketch("Sketch1", "Profile1", 0, 0, 1), ex)
			res, err := d.Build(context.Background(), tree)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			min, max := res.Solid.BoundingBox()
			if math.Abs(min[2]-tt.wantZ0) > 1e-9 || math.Abs(max[2]-tt.wantZ1) > 1e-9 {
				t.Errorf("z span = [%g, %g], want [%g, %g]", min[2], max[2], tt.wantZ0, tt.wantZ1)
			}
		})
	}
}

func TestBuildFramePlacement(t *testing.T) {
	t.Run("translated sketch plane", func(t *testing.T) {
		k := fake.New()
		d := New(k, Options{})
		sk := squareSketch("Sketch1", "Profile1", 0, 0, 1)
		sk.Frame.Origin = design.Vec3{Z: 5}
		tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
		res, err := d.Build(context.Background(), tree)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		min, max := res.Solid.BoundingBox()
		if math.Abs(min[2]-5) > 1e-9 || math.Abs(max[2]-6) > 1e-9 {
			t.Errorf("z span = [%g, %g], want [5, 6]", min[2], max[2])
		}
	})
	t.Run("rotated sketch plane", func(t *testing.T) {
		k := fake.New()
		d := New(k, Options{})
		sk := squareSketch("Sketch1", "Profile1", 0, 0, 1)
		// Plane normal along -Y: local w maps onto world -y.
		sk.Frame = design.Frame{
			XAxis: design.Vec3{X: 1},
			YAxis: design.Vec3{Z: 1},
			ZAxis: design.Vec3{Y: -1},
		}
		tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
		res, err := d.Build(context.Background(), tree)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		min, max := res.Solid.BoundingBox()
		if math.Abs(min[1]-(-1)) > 1e-9 || math.Abs(max[1]) > 1e-9 {
			t.Errorf("y span = [%g, %g], want [-1, 0]", min[1], max[1])
		}
		if got := fake.SolidVolume(res.Solid); math.Abs(got-1) > 1e-9 {
			t.Errorf("volume = %g, want 1", got)
		}
	})
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		tree *design.Tree
	}{
		{
			"no features",
			buildTree(squareSketch("Sketch1", "Profile1", 0, 0, 1)),
		},
		{
			"zero length extrude",
			buildTree(
				squareSketch("Sketch1", "Profile1", 0, 0, 1),
				extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 0),
			),
		},
		{
			"cut with no body",
			buildTree(
				squareSketch("Sketch1", "Profile1", 0, 0, 1),
				extrude("Extrude1", "Profile1", "Sketch1", design.OpCut, 1),
			),
		},
		{
			"missing profile",
			buildTree(
				squareSketch("Sketch1", "Profile1", 0, 0, 1),
				extrude("Extrude1", "Profile9", "Sketch1", design.OpNewBody, 1),
			),
		},
		{
			"missing sketch",
			buildTree(
				squareSketch("Sketch1", "Profile1", 0, 0, 1),
				extrude("Extrude1", "Profile1", "Sketch9", design.OpNewBody, 1),
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(fake.New(), Options{})
			res, err := d.Build(context.Background(), tt.tree)
			if err == nil {
				t.Fatal("Build() succeeded, want error")
			}
			var re *ReconstructionError
			if !errors.As(err, &re) {
				t.Errorf("error type = %T, want *ReconstructionError", err)
			}
			if res.State != StateFailed {
				t.Errorf("state = %v, want failed", res.State)
			}
		})
	}
}

func TestBuildLoopValidation(t *testing.T) {
	t.Run("non-contiguous loop", func(t *testing.T) {
		sk := squareSketch("Sketch1", "Profile1", 0, 0, 1)
		sk.Profiles[0].Loops[0].Segments[1].Start = design.Vec3{X: 9, Y: 9}
		sk.Profiles[0].Loops[0].Segments[1].End = design.Vec3{X: 9, Y: 10}
		tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
		d := New(fake.New(), Options{})
		if _, err := d.Build(context.Background(), tree); err == nil {
			t.Fatal("Build() succeeded with broken loop, want error")
		}
	})
	t.Run("reversed segment is chained", func(t *testing.T) {
		sk := squareSketch("Sketch1", "Profile1", 0, 0, 1)
		seg := &sk.Profiles[0].Loops[0].Segments[1]
		seg.Start, seg.End = seg.End, seg.Start
		tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
		d := New(fake.New(), Options{})
		res, err := d.Build(context.Background(), tree)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if got := fake.SolidVolume(res.Solid); math.Abs(got-1) > 1e-12 {
			t.Errorf("volume = %g, want 1", got)
		}
	})
	t.Run("open loop", func(t *testing.T) {
		sk := squareSketch("Sketch1", "Profile1", 0, 0, 1)
		sk.Profiles[0].Loops[0].Segments = sk.Profiles[0].Loops[0].Segments[:3]
		tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
		d := New(fake.New(), Options{})
		if _, err := d.Build(context.Background(), tree); err == nil {
			t.Fatal("Build() succeeded with open loop, want error")
		}
	})
}

func TestBuildHoleProfile(t *testing.T) {
	sk := squareSketch("Sketch1", "Profile1", 0, 0, 2)
	sk.Profiles[0].Loops = append(sk.Profiles[0].Loops, design.Loop{
		IsOuter: false,
		Segments: []design.Segment{
			{
				Kind:   design.SegmentCircle,
				Curve:  "SketchCircle1",
				Center: design.Vec3{X: 1, Y: 1},
				Normal: design.Vec3{Z: 1},
				Radius: 0.5,
			},
		},
	})
	tree := buildTree(sk, extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1))
	d := New(fake.New(), Options{})
	res, err := d.Build(context.Background(), tree)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := 4 - math.Pi*0.25
	if got := fake.SolidVolume(res.Solid); math.Abs(got-want) > 1e-9 {
		t.Errorf("volume = %g, want %g", got, want)
	}
}

// slowKernel delays extrusion so timeout handling can be exercised.
type slowKernel struct {
	*fake.Kernel
	delay time.Duration
}

func (s *slowKernel) Extrude(f kernel.Face, height float64) (kernel.Solid, error) {
	time.Sleep(s.delay)
	return s.Kernel.Extrude(f, height)
}

func TestBuildTimeout(t *testing.T) {
	k := &slowKernel{Kernel: fake.New(), delay: 200 * time.Millisecond}
	d := New(k, Options{Timeout: 10 * time.Millisecond})
	tree := buildTree(
		squareSketch("Sketch1", "Profile1", 0, 0, 1),
		extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
	)
	res, err := d.Build(context.Background(), tree)
	if err == nil {
		t.Fatal("Build() succeeded, want timeout")
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *TimeoutError", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %v, want failed", res.State)
	}
}

func TestBuildContextCancel(t *testing.T) {
	k := &slowKernel{Kernel: fake.New(), delay: 200 * time.Millisecond}
	d := New(k, Options{})
	tree := buildTree(
		squareSketch("Sketch1", "Profile1", 0, 0, 1),
		extrude("Extrude1", "Profile1", "Sketch1", design.OpNewBody, 1),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Build(ctx, tree); err == nil {
		t.Fatal("Build() succeeded with cancelled context, want error")
	}
}

func TestEulerDecomposition(t *testing.T) {
	frames := []design.Frame{
		design.IdentityFrame(),
		{XAxis: design.Vec3{X: 1}, YAxis: design.Vec3{Z: 1}, ZAxis: design.Vec3{Y: -1}},
		{XAxis: design.Vec3{Y: 1}, YAxis: design.Vec3{X: -1}, ZAxis: design.Vec3{Z: 1}},
		{XAxis: design.Vec3{Z: 1}, YAxis: design.Vec3{Y: 1}, ZAxis: design.Vec3{X: -1}},
	}
	for i, f := range frames {
		_, rx, ry, rz, err := framePlacement(f)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		// Recompose Rz*Ry*Rx and verify the X axis lands on f.XAxis.
		got := rotate(design.Vec3{X: 1}, rx, ry, rz)
		if math.Abs(got.X-f.XAxis.X) > 1e-9 ||
			math.Abs(got.Y-f.XAxis.Y) > 1e-9 ||
			math.Abs(got.Z-f.XAxis.Z) > 1e-9 {
			t.Errorf("frame %d: rotated X axis = %+v, want %+v", i, got, f.XAxis)
		}
		got = rotate(design.Vec3{Z: 1}, rx, ry, rz)
		if math.Abs(got.X-f.ZAxis.X) > 1e-9 ||
			math.Abs(got.Y-f.ZAxis.Y) > 1e-9 ||
			math.Abs(got.Z-f.ZAxis.Z) > 1e-9 {
			t.Errorf("frame %d: rotated Z axis = %+v, want %+v", i, got, f.ZAxis)
		}
	}
}

// rotate applies X, Y, then Z rotations in degrees, the same order the
// kernel placement contract specifies.
func rotate(v design.Vec3, rx, ry, rz float64) design.Vec3 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	// X
	s, c := math.Sincos(rad(rx))
	v = design.Vec3{X: v.X, Y: c*v.Y - s*v.Z, Z: s*v.Y + c*v.Z}
	// Y
	s, c = math.Sincos(rad(ry))
	v = design.Vec3{X: c*v.X + s*v.Z, Y: v.Y, Z: -s*v.X + c*v.Z}
	// Z
	s, c = math.Sincos(rad(rz))
	return design.Vec3{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}
