package codec

import (
	"fmt"
	"strings"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/grammar"
)

// Encode transforms a normalized, filter-approved tree into its command
// sequence. It is a pure function of the tree and the grammar table; the
// table's version is stamped into the artifact header. Encountering any
// kind outside the command-tag table yields an EncodingError — after the
// support filter that is an internal invariant violation, not an input
// problem.
func Encode(tree *design.Tree, table *grammar.Table) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "G (%d)\n", table.Version)

	for _, e := range tree.Entities {
		switch ent := e.(type) {
		case *design.Sketch:
			if err := encodeSketch(&b, ent); err != nil {
				return nil, err
			}
		case *design.Extrude:
			if err := encodeExtrude(&b, ent); err != nil {
				return nil, err
			}
		default:
			return nil, encodingErr(e.EntityName(), "no command tag for entity kind %q", e.EntityType())
		}
	}
	return []byte(b.String()), nil
}

func encodeSketch(b *strings.Builder, s *design.Sketch) error {
	id, err := numericID(s.Name)
	if err != nil {
		return encodingErr(s.Name, "%v", err)
	}
	fmt.Fprintf(b, "S (%d)\n", id)

	for _, p := range s.Profiles {
		pid, err := numericID(p.Name)
		if err != nil {
			return encodingErr(s.Name+"."+p.Name, "%v", err)
		}
		fmt.Fprintf(b, "  - P (%d)\n", pid)

		for _, loop := range p.Loops {
			fmt.Fprintf(b, "    - O (%t)\n", loop.IsOuter)
			for _, seg := range loop.Segments {
				if err := encodeSegment(b, s.Name, seg); err != nil {
					return err
				}
			}
		}
	}

	encodePose(b, s.Frame)
	return nil
}

func encodeSegment(b *strings.Builder, sketch string, seg design.Segment) error {
	switch seg.Kind {
	case design.SegmentLine:
		fmt.Fprintf(b, "      - L (%s, %s, %s, %s)\n",
			q(seg.Start.X), q(seg.Start.Y), q(seg.End.X), q(seg.End.Y))
	case design.SegmentCircle:
		fmt.Fprintf(b, "      - C (%s, %s, %s)\n",
			q(seg.Center.X), q(seg.Center.Y), q(seg.Radius))
	case design.SegmentArc:
		fmt.Fprintf(b, "      - A (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)\n",
			q(seg.Start.X), q(seg.Start.Y),
			q(seg.End.X), q(seg.End.Y),
			q(seg.Center.X), q(seg.Center.Y),
			q(seg.Reference.X), q(seg.Reference.Y),
			q(seg.Radius), q(seg.StartAngle), q(seg.EndAngle))
	default:
		return encodingErr(sketch, "no command tag for segment kind %q", seg.Kind)
	}
	return nil
}

func encodePose(b *strings.Builder, f design.Frame) {
	fmt.Fprintf(b, "  - T (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)\n",
		q(f.Origin.X), q(f.Origin.Y), q(f.Origin.Z),
		q(f.XAxis.X), q(f.XAxis.Y), q(f.XAxis.Z),
		q(f.YAxis.X), q(f.YAxis.Y), q(f.YAxis.Z),
		q(f.ZAxis.X), q(f.ZAxis.Y), q(f.ZAxis.Z))
}

func encodeExtrude(b *strings.Builder, e *design.Extrude) error {
	opTag, ok := operationTags[e.Operation]
	if !ok {
		return encodingErr(e.Name, "no command tag for operation %q", e.Operation)
	}
	extTag, ok := extentTags[e.Extent]
	if !ok {
		return encodingErr(e.Name, "no command tag for extent type %q", e.Extent)
	}

	d1 := e.One.Distance
	var d2 float64
	if e.Two != nil {
		d2 = e.Two.Distance
	}

	// One E command per profile reference; the decoder folds consecutive
	// commands with identical parameters back into one feature.
	for _, ref := range e.Profiles {
		pid, err := numericID(ref.Profile)
		if err != nil {
			return encodingErr(e.Name, "%v", err)
		}
		sid, err := numericID(ref.Sketch)
		if err != nil {
			return encodingErr(e.Name, "%v", err)
		}
		fmt.Fprintf(b, "E (%d, %d, %s, %s, %s, %s)\n", pid, sid, opTag, extTag, q(d1), q(d2))
	}
	return nil
}

func q(x float64) string { return design.FormatQuantized(x) }
