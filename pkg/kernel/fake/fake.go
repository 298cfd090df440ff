// Package fake provides an analytic in-memory kernel.Kernel for tests.
// Faces track exact areas and edge counts; solids track volumes and
// bounding boxes. Boolean volumes are bounding-box estimates, which is
// enough for tests that assert direction of change rather than exact
// overlap geometry.
package fake

import (
	"fmt"
	"math"
	"sync"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
)

var (
	_ kernel.Kernel         = (*Kernel)(nil)
	_ kernel.VolumeMeasurer = (*Kernel)(nil)
)

type face struct {
	area  float64
	edges int
	min   [2]float64
	max   [2]float64
}

func (f *face) BoundingBox() (min, max [2]float64) { return f.min, f.max }

type solid struct {
	volume float64
	faces  int
	min    [3]float64
	max    [3]float64
}

func (s *solid) BoundingBox() (min, max [3]float64) { return s.min, s.max }

// Kernel is an analytic fake. It records every operation applied to it so
// tests can assert on the call sequence.
type Kernel struct {
	mu  sync.Mutex
	ops []string
}

// New returns a fresh fake kernel.
func New() *Kernel {
	return &Kernel{}
}

// Ops returns a copy of the recorded operation log.
func (k *Kernel) Ops() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.ops...)
}

func (k *Kernel) record(format string, args ...any) {
	k.mu.Lock()
	k.ops = append(k.ops, fmt.Sprintf(format, args...))
	k.mu.Unlock()
}

// Polygon builds a face with the exact shoelace area of the vertex chain.
func (k *Kernel) Polygon(points [][2]float64) (kernel.Face, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("fake: polygon needs at least 3 vertices, got %d", len(points))
	}
	k.record("polygon(%d)", len(points))
	f := &face{
		edges: len(points),
		min:   points[0],
		max:   points[0],
	}
	var area float64
	for i, p := range points {
		q := points[(i+1)%len(points)]
		area += p[0]*q[1] - q[0]*p[1]
		for c := 0; c < 2; c++ {
			if p[c] < f.min[c] {
				f.min[c] = p[c]
			}
			if p[c] > f.max[c] {
				f.max[c] = p[c]
			}
		}
	}
	f.area = math.Abs(area) / 2
	return f, nil
}

// Circle builds a face of area pi*r^2 with a single edge.
func (k *Kernel) Circle(cx, cy, r float64) (kernel.Face, error) {
	if r <= 0 {
		return nil, fmt.Errorf("fake: circle radius must be positive, got %g", r)
	}
	k.record("circle(%g)", r)
	return &face{
		area:  math.Pi * r * r,
		edges: 1,
		min:   [2]float64{cx - r, cy - r},
		max:   [2]float64{cx + r, cy + r},
	}, nil
}

// Subtract removes hole areas from the outer face. Hole edges still bound
// the region, so they add to the edge count.
func (k *Kernel) Subtract(outer kernel.Face, holes ...kernel.Face) kernel.Face {
	k.record("subtract(%d)", len(holes))
	o := outer.(*face)
	out := &face{area: o.area, edges: o.edges, min: o.min, max: o.max}
	for _, h := range holes {
		hf := h.(*face)
		out.area -= hf.area
		out.edges += hf.edges
	}
	if out.area < 0 {
		out.area = 0
	}
	return out
}

// Extrude sweeps a face from z=0 to z=height. The solid gains one side
// face per profile edge plus two caps.
func (k *Kernel) Extrude(f kernel.Face, height float64) (kernel.Solid, error) {
	if height <= 0 {
		return nil, fmt.Errorf("fake: extrude height must be positive, got %g", height)
	}
	k.record("extrude(%g)", height)
	ff := f.(*face)
	return &solid{
		volume: ff.area * height,
		faces:  ff.edges + 2,
		min:    [3]float64{ff.min[0], ff.min[1], 0},
		max:    [3]float64{ff.max[0], ff.max[1], height},
	}, nil
}

// overlap returns the volume of the bounding-box intersection of a and b,
// clamped to the smaller operand volume.
func overlap(a, b *solid) float64 {
	var v float64 = 1
	for c := 0; c < 3; c++ {
		lo := math.Max(a.min[c], b.min[c])
		hi := math.Min(a.max[c], b.max[c])
		if hi <= lo {
			return 0
		}
		v *= hi - lo
	}
	return math.Min(v, math.Min(a.volume, b.volume))
}

// Union merges two solids. Volume is a + b minus the overlap estimate.
func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	k.record("union")
	sa, sb := a.(*solid), b.(*solid)
	out := &solid{
		volume: sa.volume + sb.volume - overlap(sa, sb),
		faces:  sa.faces + sb.faces,
	}
	for c := 0; c < 3; c++ {
		out.min[c] = math.Min(sa.min[c], sb.min[c])
		out.max[c] = math.Max(sa.max[c], sb.max[c])
	}
	return out
}

// Difference removes b from a. Volume never increases and never goes
// negative.
func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	k.record("difference")
	sa, sb := a.(*solid), b.(*solid)
	return &solid{
		volume: math.Max(sa.volume-overlap(sa, sb), 0),
		faces:  sa.faces + sb.faces,
		min:    sa.min,
		max:    sa.max,
	}
}

// Intersection keeps the common region of a and b.
func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	k.record("intersection")
	sa, sb := a.(*solid), b.(*solid)
	out := &solid{
		volume: overlap(sa, sb),
		faces:  sa.faces,
	}
	for c := 0; c < 3; c++ {
		out.min[c] = math.Max(sa.min[c], sb.min[c])
		out.max[c] = math.Min(sa.max[c], sb.max[c])
		if out.max[c] < out.min[c] {
			out.min[c], out.max[c] = 0, 0
		}
	}
	return out
}

// Translate shifts the bounding box; volume is unchanged.
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	k.record("translate(%g,%g,%g)", x, y, z)
	ss := s.(*solid)
	d := [3]float64{x, y, z}
	out := &solid{volume: ss.volume, faces: ss.faces}
	for c := 0; c < 3; c++ {
		out.min[c] = ss.min[c] + d[c]
		out.max[c] = ss.max[c] + d[c]
	}
	return out
}

// Rotate rotates the bounding box corners by Euler angles (degrees,
// X then Y then Z) and rebounds them; volume is unchanged.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	k.record("rotate(%g,%g,%g)", x, y, z)
	ss := s.(*solid)
	out := &solid{volume: ss.volume, faces: ss.faces}
	for c := 0; c < 3; c++ {
		out.min[c] = math.Inf(1)
		out.max[c] = math.Inf(-1)
	}
	for i := 0; i < 8; i++ {
		p := [3]float64{
			pick(i&1 == 0, ss.min[0], ss.max[0]),
			pick(i&2 == 0, ss.min[1], ss.max[1]),
			pick(i&4 == 0, ss.min[2], ss.max[2]),
		}
		p = rotX(p, x)
		p = rotY(p, y)
		p = rotZ(p, z)
		for c := 0; c < 3; c++ {
			if p[c] < out.min[c] {
				out.min[c] = p[c]
			}
			if p[c] > out.max[c] {
				out.max[c] = p[c]
			}
		}
	}
	return out
}

// ToMesh emits a 12-triangle box spanning the solid's bounding box. Good
// enough for export and preview plumbing in tests.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	k.record("tomesh")
	ss := s.(*solid)
	lo, hi := ss.min, ss.max

	corner := func(i int) [3]float64 {
		return [3]float64{
			pick(i&1 == 0, lo[0], hi[0]),
			pick(i&2 == 0, lo[1], hi[1]),
			pick(i&4 == 0, lo[2], hi[2]),
		}
	}

	// Each face as two triangles with outward winding.
	quads := [][5]int{
		// corner indices a,b,c,d plus the normal axis (+1..+3, negative for -axis)
		{0, 2, 3, 1, -3}, // z = lo
		{4, 5, 7, 6, +3}, // z = hi
		{0, 1, 5, 4, -2}, // y = lo
		{2, 6, 7, 3, +2}, // y = hi
		{0, 4, 6, 2, -1}, // x = lo
		{1, 3, 7, 5, +1}, // x = hi
	}

	m := &kernel.Mesh{}
	var idx uint32
	for _, q := range quads {
		n := [3]float64{}
		axis := q[4]
		if axis < 0 {
			n[-axis-1] = -1
		} else {
			n[axis-1] = 1
		}
		for _, tri := range [][3]int{{q[0], q[1], q[2]}, {q[0], q[2], q[3]}} {
			for _, ci := range tri {
				v := corner(ci)
				m.Vertices = append(m.Vertices, float32(v[0]), float32(v[1]), float32(v[2]))
				m.Normals = append(m.Normals, float32(n[0]), float32(n[1]), float32(n[2]))
				m.Indices = append(m.Indices, idx)
				idx++
			}
		}
	}
	return m, nil
}

// Volume returns the tracked analytic volume.
func (k *Kernel) Volume(s kernel.Solid) float64 {
	return s.(*solid).volume
}

// SolidVolume exposes a solid's tracked volume without going through the
// kernel, for direct assertions in tests.
func SolidVolume(s kernel.Solid) float64 {
	return s.(*solid).volume
}

// SolidFaces returns the tracked face count of a solid.
func SolidFaces(s kernel.Solid) int {
	return s.(*solid).faces
}

func pick(lo bool, a, b float64) float64 {
	if lo {
		return a
	}
	return b
}

func rotX(p [3]float64, deg float64) [3]float64 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return [3]float64{p[0], c*p[1] - s*p[2], s*p[1] + c*p[2]}
}

func rotY(p [3]float64, deg float64) [3]float64 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return [3]float64{c*p[0] + s*p[2], p[1], -s*p[0] + c*p[2]}
}

func rotZ(p [3]float64, deg float64) [3]float64 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return [3]float64{c*p[0] - s*p[1], s*p[0] + c*p[1], p[2]}
}
