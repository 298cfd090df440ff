// Package recon replays a normalized design tree through a geometry
// kernel, producing a solid body. It is the executable-semantics check of
// the command grammar: a tree that encodes and decodes cleanly must also
// rebuild into the solid its feature sequence describes.
package recon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
)

// DefaultTimeout is the hard wall-clock limit for a single build.
const DefaultTimeout = 30 * time.Second

// DefaultArcSegments is the polygonization resolution of one arc span.
const DefaultArcSegments = 16

// State tracks build progress through the driver's phases.
type State int

const (
	StateInit State = iota
	StateSketchesBuilt
	StateFeaturesApplied
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSketchesBuilt:
		return "sketches_built"
	case StateFeaturesApplied:
		return "features_applied"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Driver. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration
	ArcSegments  int
	TraceVolumes bool // requires a kernel implementing kernel.VolumeMeasurer
	Logger       *zap.Logger
}

// FeatureTrace records the total body volume after one feature was
// applied. Only populated when Options.TraceVolumes is set and the
// kernel can measure volumes.
type FeatureTrace struct {
	Feature   string
	Operation design.Operation
	Volume    float64
}

// Result is the outcome of a build.
type Result struct {
	Solid    kernel.Solid
	State    State
	Features int
	Bodies   int
	Traces   []FeatureTrace
	Elapsed  time.Duration
}

// Driver replays design trees through a kernel.
type Driver struct {
	k    kernel.Kernel
	opts Options
	log  *zap.Logger
}

// New returns a Driver over the given kernel.
func New(k kernel.Kernel, opts Options) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ArcSegments <= 0 {
		opts.ArcSegments = DefaultArcSegments
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{k: k, opts: opts, log: log}
}

type buildOut struct {
	res *Result
	err error
}

// Build replays the tree and returns the finalized solid. The build runs
// in its own goroutine under the configured timeout; on timeout the
// goroutine may still be running but its result is discarded.
func (d *Driver) Build(ctx context.Context, tree *design.Tree) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan buildOut, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- buildOut{err: &ReconstructionError{
					Stage: "build", Msg: fmt.Sprintf("panic: %v", r),
				}}
			}
		}()
		res, err := d.run(ctx, tree)
		ch <- buildOut{res: res, err: err}
	}()

	timer := time.NewTimer(d.opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.res != nil {
			out.res.Elapsed = time.Since(start)
		}
		return out.res, out.err
	case <-timer.C:
		return &Result{State: StateFailed, Elapsed: time.Since(start)},
			&TimeoutError{Stage: "build", Budget: d.opts.Timeout}
	case <-ctx.Done():
		return &Result{State: StateFailed, Elapsed: time.Since(start)}, ctx.Err()
	}
}

func (d *Driver) run(ctx context.Context, tree *design.Tree) (*Result, error) {
	res := &Result{State: StateInit}
	fail := func(err error) (*Result, error) {
		res.State = StateFailed
		return res, err
	}

	features := tree.Features()
	if len(features) == 0 {
		return fail(reconErr("sketch", "", "design has no features"))
	}

	// Phase 1: build faces for every referenced profile.
	faces := map[design.ProfileRef]kernel.Face{}
	for _, f := range features {
		for _, ref := range f.Profiles {
			if _, ok := faces[ref]; ok {
				continue
			}
			sk := tree.Sketch(ref.Sketch)
			if sk == nil {
				return fail(reconErr("sketch", f.Name, "references missing sketch %q", ref.Sketch))
			}
			p := sk.Profile(ref.Profile)
			if p == nil {
				return fail(reconErr("sketch", f.Name, "references missing profile %q in %q", ref.Profile, ref.Sketch))
			}
			face, err := profileFace(d.k, ref.Sketch, ref.Profile, p, d.opts.ArcSegments)
			if err != nil {
				return fail(err)
			}
			faces[ref] = face
		}
	}
	res.State = StateSketchesBuilt
	d.log.Debug("profile faces built", zap.Int("faces", len(faces)))

	// Phase 2: apply features in sequence order.
	var bodies []kernel.Solid
	for _, f := range features {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		tool, err := d.featureTool(tree, f, faces)
		if err != nil {
			return fail(err)
		}
		bodies, err = d.applyOperation(f, tool, bodies)
		if err != nil {
			return fail(err)
		}
		res.Features++
		d.trace(res, f, bodies)
		d.log.Debug("feature applied",
			zap.String("feature", f.Name),
			zap.String("operation", string(f.Operation)),
			zap.Int("bodies", len(bodies)))
	}
	res.State = StateFeaturesApplied

	// Phase 3: fuse remaining bodies into the final solid.
	if len(bodies) == 0 {
		return fail(reconErr("finalize", "", "design produced no bodies"))
	}
	res.Solid = fuse(d.k, bodies)
	res.Bodies = len(bodies)
	res.State = StateFinalized
	return res, nil
}

// featureTool builds the feature's tool solid: each profile face extruded
// per the extent and placed by its sketch frame, unioned together.
func (d *Driver) featureTool(tree *design.Tree, f *design.Extrude, faces map[design.ProfileRef]kernel.Face) (kernel.Solid, error) {
	height, zOffset, err := extentSpan(f)
	if err != nil {
		return nil, err
	}

	var tool kernel.Solid
	for _, ref := range f.Profiles {
		solid, err := d.k.Extrude(faces[ref], height)
		if err != nil {
			return nil, reconErr("feature", f.Name, "extrude failed").wrap(err)
		}
		if zOffset != 0 {
			solid = d.k.Translate(solid, 0, 0, zOffset)
		}

		frame := tree.Sketch(ref.Sketch).Frame
		origin, rx, ry, rz, err := framePlacement(frame)
		if err != nil {
			return nil, reconErr("feature", f.Name, "sketch %q frame", ref.Sketch).wrap(err)
		}
		if rx != 0 || ry != 0 || rz != 0 {
			solid = d.k.Rotate(solid, rx, ry, rz)
		}
		if origin != (design.Vec3{}) {
			solid = d.k.Translate(solid, origin.X, origin.Y, origin.Z)
		}

		if tool == nil {
			tool = solid
		} else {
			tool = d.k.Union(tool, solid)
		}
	}
	return tool, nil
}

// extentSpan maps the feature extent onto the sketch-local z interval
// [zOffset, zOffset+height]. A one-sided extrude spans [0, d1], a
// two-sided one spans [-d2, d1], a symmetric one is centered on the
// sketch plane.
func extentSpan(f *design.Extrude) (height, zOffset float64, err error) {
	d1 := f.One.Distance
	switch f.Extent {
	case design.ExtentOneSide:
		if d1 == 0 {
			return 0, 0, reconErr("feature", f.Name, "zero-length extrude")
		}
		if d1 < 0 {
			return -d1, d1, nil
		}
		return d1, 0, nil
	case design.ExtentTwoSides:
		var d2 float64
		if f.Two != nil {
			d2 = f.Two.Distance
		}
		height = abs(d1) + abs(d2)
		if height == 0 {
			return 0, 0, reconErr("feature", f.Name, "zero-length extrude")
		}
		return height, -abs(d2), nil
	case design.ExtentSymmetric:
		height = abs(d1)
		if height == 0 {
			return 0, 0, reconErr("feature", f.Name, "zero-length extrude")
		}
		return height, -height / 2, nil
	default:
		return 0, 0, reconErr("feature", f.Name, "extent type %q has no span", f.Extent)
	}
}

// applyOperation combines the feature tool with the existing bodies.
// NewBody keeps the tool separate; Join, Cut, and Intersect first fold
// all bodies into one, then combine.
func (d *Driver) applyOperation(f *design.Extrude, tool kernel.Solid, bodies []kernel.Solid) ([]kernel.Solid, error) {
	switch f.Operation {
	case design.OpNewBody:
		return append(bodies, tool), nil
	case design.OpJoin:
		if len(bodies) == 0 {
			return []kernel.Solid{tool}, nil
		}
		return []kernel.Solid{d.k.Union(fuse(d.k, bodies), tool)}, nil
	case design.OpCut:
		if len(bodies) == 0 {
			return nil, reconErr("feature", f.Name, "cut with no existing body")
		}
		return []kernel.Solid{d.k.Difference(fuse(d.k, bodies), tool)}, nil
	case design.OpIntersect:
		if len(bodies) == 0 {
			return nil, reconErr("feature", f.Name, "intersect with no existing body")
		}
		return []kernel.Solid{d.k.Intersection(fuse(d.k, bodies), tool)}, nil
	default:
		return nil, reconErr("feature", f.Name, "operation %q is not buildable", f.Operation)
	}
}

func (d *Driver) trace(res *Result, f *design.Extrude, bodies []kernel.Solid) {
	if !d.opts.TraceVolumes {
		return
	}
	vm, ok := d.k.(kernel.VolumeMeasurer)
	if !ok {
		return
	}
	var v float64
	for _, b := range bodies {
		v += vm.Volume(b)
	}
	res.Traces = append(res.Traces, FeatureTrace{
		Feature:   f.Name,
		Operation: f.Operation,
		Volume:    v,
	})
}

func fuse(k kernel.Kernel, bodies []kernel.Solid) kernel.Solid {
	out := bodies[0]
	for _, b := range bodies[1:] {
		out = k.Union(out, b)
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
