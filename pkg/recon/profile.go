package recon

import (
	"math"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
)

// weldTol is the distance below which two profile endpoints are the same
// vertex. Coordinates are quantized upstream, so this only absorbs float
// noise, not modeling slop.
const weldTol = 1e-6

// profileFace builds the planar face of one profile: the outer loop with
// every inner loop subtracted as a hole.
func profileFace(k kernel.Kernel, sketch, profile string, p *design.Profile, arcSegments int) (kernel.Face, error) {
	var outer kernel.Face
	var holes []kernel.Face

	for _, loop := range p.Loops {
		f, err := loopFace(k, sketch, profile, loop, arcSegments)
		if err != nil {
			return nil, err
		}
		if loop.IsOuter {
			if outer != nil {
				return nil, reconErr("profile", sketch+"/"+profile, "multiple outer loops")
			}
			outer = f
		} else {
			holes = append(holes, f)
		}
	}
	if outer == nil {
		return nil, reconErr("profile", sketch+"/"+profile, "no outer loop")
	}
	if len(holes) == 0 {
		return outer, nil
	}
	return k.Subtract(outer, holes...), nil
}

// loopFace turns one closed loop into a face. A loop that is a single
// full circle maps to a circle primitive; everything else is chained and
// polygonized.
func loopFace(k kernel.Kernel, sketch, profile string, loop design.Loop, arcSegments int) (kernel.Face, error) {
	if len(loop.Segments) == 0 {
		return nil, reconErr("profile", sketch+"/"+profile, "empty loop")
	}
	if len(loop.Segments) == 1 && loop.Segments[0].Kind == design.SegmentCircle {
		s := loop.Segments[0]
		return k.Circle(s.Center.X, s.Center.Y, s.Radius)
	}
	pts, err := chainLoop(sketch, profile, loop, arcSegments)
	if err != nil {
		return nil, err
	}
	return k.Polygon(pts)
}

// chainLoop walks the loop's segments end to end and emits the polygon
// vertex chain. Segments may be stored in either direction; each one is
// oriented to continue from the previous endpoint.
func chainLoop(sketch, profile string, loop design.Loop, arcSegments int) ([][2]float64, error) {
	var pts [][2]float64
	var cur [2]float64

	for i, seg := range loop.Segments {
		var start, end [2]float64
		switch seg.Kind {
		case design.SegmentLine, design.SegmentArc:
			start = [2]float64{seg.Start.X, seg.Start.Y}
			end = [2]float64{seg.End.X, seg.End.Y}
		case design.SegmentCircle:
			return nil, reconErr("profile", sketch+"/"+profile,
				"full circle inside a multi-segment loop")
		default:
			return nil, reconErr("profile", sketch+"/"+profile,
				"segment kind %q has no geometry", seg.Kind)
		}

		reversed := false
		if i == 0 {
			pts = append(pts, start)
		} else {
			switch {
			case dist2(start, cur) <= weldTol:
			case dist2(end, cur) <= weldTol:
				start, end = end, start
				reversed = true
			default:
				return nil, reconErr("profile", sketch+"/"+profile,
					"loop is not contiguous at segment %d", i)
			}
		}

		if seg.Kind == design.SegmentArc {
			pts = append(pts, arcPoints(seg, start, end, reversed, arcSegments)...)
		}
		pts = append(pts, end)
		cur = end
	}

	if len(pts) < 3 {
		return nil, reconErr("profile", sketch+"/"+profile, "loop degenerates to %d vertices", len(pts))
	}
	if dist2(pts[0], pts[len(pts)-1]) > weldTol {
		return nil, reconErr("profile", sketch+"/"+profile, "loop does not close")
	}
	pts = pts[:len(pts)-1]

	// Normalize to counterclockwise winding.
	if signedArea(pts) < 0 {
		for l, r := 0, len(pts)-1; l < r; l, r = l+1, r-1 {
			pts[l], pts[r] = pts[r], pts[l]
		}
	}
	return pts, nil
}

// arcPoints returns the interior sample points of an arc, walking from
// start to end. The sweep direction follows the arc normal: +Z sweeps
// counterclockwise. reversed flips the walk when the segment was oriented
// backwards during chaining.
func arcPoints(seg design.Segment, start, end [2]float64, reversed bool, n int) [][2]float64 {
	c := [2]float64{seg.Center.X, seg.Center.Y}
	a0 := math.Atan2(start[1]-c[1], start[0]-c[0])
	a1 := math.Atan2(end[1]-c[1], end[0]-c[0])

	ccw := seg.Normal.Z >= 0
	if reversed {
		ccw = !ccw
	}

	delta := a1 - a0
	if ccw {
		for delta <= 0 {
			delta += 2 * math.Pi
		}
	} else {
		for delta >= 0 {
			delta -= 2 * math.Pi
		}
	}

	r := seg.Radius
	if r == 0 {
		r = math.Hypot(start[0]-c[0], start[1]-c[1])
	}

	out := make([][2]float64, 0, n)
	for i := 1; i < n; i++ {
		a := a0 + delta*float64(i)/float64(n)
		out = append(out, [2]float64{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)})
	}
	return out
}

func dist2(a, b [2]float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func signedArea(pts [][2]float64) float64 {
	var s float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		s += p[0]*q[1] - q[0]*p[1]
	}
	return s / 2
}
