package grammar

import (
	"fmt"
	"math"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
)

// Code is the outcome of classifying a tree against the grammar.
type Code int

const (
	Supported Code = iota
	UnsupportedKind
	UnsupportedCombination
)

func (c Code) String() string {
	switch c {
	case Supported:
		return "supported"
	case UnsupportedKind:
		return "unsupported-kind"
	case UnsupportedCombination:
		return "unsupported-combination"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Verdict is the filter's classification of one tree. Kind names the
// offending kind for UnsupportedKind; Detail explains an
// UnsupportedCombination.
type Verdict struct {
	Code   Code
	Kind   string
	Detail string
}

func (v Verdict) Supported() bool { return v.Code == Supported }

func (v Verdict) String() string {
	switch v.Code {
	case Supported:
		return "supported"
	case UnsupportedKind:
		return fmt.Sprintf("unsupported kind %q", v.Kind)
	default:
		return fmt.Sprintf("unsupported combination: %s", v.Detail)
	}
}

// UnsupportedFeatureError reports a grammar rejection. It is an expected
// input-filtering outcome, not a defect.
type UnsupportedFeatureError struct {
	Verdict Verdict
}

func (e *UnsupportedFeatureError) Error() string {
	return "unsupported feature: " + e.Verdict.String()
}

func supported() Verdict { return Verdict{Code: Supported} }

func badKind(kind string) Verdict {
	return Verdict{Code: UnsupportedKind, Kind: kind}
}

func badCombination(format string, args ...interface{}) Verdict {
	return Verdict{Code: UnsupportedCombination, Detail: fmt.Sprintf(format, args...)}
}

// Classify checks every entity of a normalized tree against the table.
// It is a pure predicate: no mutation, first offense wins. The encoder is
// entitled to assume a Supported verdict.
func (t *Table) Classify(tree *design.Tree) Verdict {
	for _, e := range tree.Entities {
		var v Verdict
		switch ent := e.(type) {
		case *design.Sketch:
			v = t.classifySketch(ent)
		case *design.Extrude:
			v = t.classifyExtrude(ent)
		default:
			v = badKind(e.EntityType())
		}
		if !v.Supported() {
			return v
		}
	}
	return supported()
}

func (t *Table) classifySketch(s *design.Sketch) Verdict {
	for _, c := range s.Curves {
		if !t.SupportsCurve(c.CurveType()) {
			return badKind(c.CurveType())
		}
		switch cv := c.(type) {
		case *design.Circle:
			if v := t.checkRadius(s.Name, cv.Name, cv.Radius); !v.Supported() {
				return v
			}
		case *design.Arc:
			if v := t.checkRadius(s.Name, cv.Name, cv.Radius); !v.Supported() {
				return v
			}
		}
	}
	for _, p := range s.Profiles {
		for _, loop := range p.Loops {
			for _, seg := range loop.Segments {
				if !t.SupportsSegment(seg.Kind) {
					return badKind(seg.Kind)
				}
				if v := t.checkSegmentCoords(s.Name, p.Name, seg); !v.Supported() {
					return v
				}
			}
		}
	}
	return supported()
}

func (t *Table) classifyExtrude(e *design.Extrude) Verdict {
	if !t.SupportsOperation(string(e.Operation)) {
		return badKind(string(e.Operation))
	}
	if !t.SupportsExtentType(string(e.Extent)) {
		return badKind(string(e.Extent))
	}
	if !t.SupportsStartExtent(e.StartExtent) {
		return badKind(e.StartExtent)
	}
	if e.Extent == design.ExtentTwoSides && e.Two == nil {
		return badCombination("%s: two-sided extent without a second distance", e.Name)
	}
	if v := t.checkDistance(e.Name, e.One.Distance); !v.Supported() {
		return v
	}
	if e.Two != nil {
		if v := t.checkDistance(e.Name, e.Two.Distance); !v.Supported() {
			return v
		}
	}
	return supported()
}

func (t *Table) checkRadius(sketch, curve string, r float64) Verdict {
	if !isFinite(r) || r < t.Limits.MinRadius {
		return badCombination("%s.%s: radius %g below minimum %g", sketch, curve, r, t.Limits.MinRadius)
	}
	return supported()
}

func (t *Table) checkDistance(feature string, d float64) Verdict {
	if !isFinite(d) || math.Abs(d) > t.Limits.MaxAbsDistance {
		return badCombination("%s: extent distance %g outside ±%g", feature, d, t.Limits.MaxAbsDistance)
	}
	return supported()
}

func (t *Table) checkSegmentCoords(sketch, profile string, seg design.Segment) Verdict {
	for _, p := range []design.Vec3{seg.Start, seg.End, seg.Center} {
		for _, c := range []float64{p.X, p.Y} {
			if !isFinite(c) || math.Abs(c) > t.Limits.MaxAbsCoordinate {
				return badCombination("%s.%s: coordinate %g outside ±%g", sketch, profile, c, t.Limits.MaxAbsCoordinate)
			}
		}
	}
	return supported()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
