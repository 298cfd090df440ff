package design

// Marshal renders a normalized tree as a design document in the same JSON
// shape the normalizer consumes. Normalize(Marshal(t)) reproduces t, which
// is what makes normalization idempotent across a write/read cycle.
func Marshal(t *Tree) ([]byte, error) {
	doc := newRawObject()
	entities := newRawObject()
	for _, e := range t.Entities {
		entities.set(e.EntityName(), marshalEntity(e))
	}
	doc.set("entities", entities)

	seq := make([]rawValue, 0, len(t.Sequence))
	for _, s := range t.Sequence {
		step := newRawObject()
		step.set("index", float64(s.Index))
		step.set("type", s.Type)
		step.set("entity", s.Entity)
		if s.Curve != "" {
			step.set("curve", s.Curve)
		}
		seq = append(seq, step)
	}
	doc.set("sequence", seq)

	return serializeRaw(doc)
}

func marshalEntity(e Entity) *rawObject {
	switch ent := e.(type) {
	case *Sketch:
		return marshalSketch(ent)
	case *Extrude:
		return marshalExtrude(ent)
	default:
		o := newRawObject()
		o.set("type", e.EntityType())
		return o
	}
}

func marshalSketch(s *Sketch) *rawObject {
	o := newRawObject()
	o.set("type", "Sketch")

	points := newRawObject()
	for _, p := range s.Points {
		points.set(p.Name, marshalPoint(p.Pos))
	}
	o.set("points", points)

	curves := newRawObject()
	for _, c := range s.Curves {
		curves.set(c.CurveName(), marshalCurve(c))
	}
	o.set("curves", curves)

	profiles := newRawObject()
	for _, p := range s.Profiles {
		profiles.set(p.Name, marshalProfile(p))
	}
	o.set("profiles", profiles)

	o.set("transform", marshalFrame(s.Frame))
	return o
}

func marshalCurve(c Curve) *rawObject {
	o := newRawObject()
	o.set("type", c.CurveType())
	switch cv := c.(type) {
	case *Line:
		o.set("start_point", cv.Start)
		o.set("end_point", cv.End)
	case *Circle:
		o.set("center_point", cv.Center)
		o.set("radius", cv.Radius)
	case *Arc:
		o.set("start_point", cv.Start)
		o.set("end_point", cv.End)
		o.set("center_point", cv.Center)
		o.set("radius", cv.Radius)
		o.set("reference_vector", marshalVector(cv.Reference))
		o.set("start_angle", cv.StartAngle)
		o.set("end_angle", cv.EndAngle)
	}
	return o
}

func marshalProfile(p *Profile) *rawObject {
	o := newRawObject()
	loops := make([]rawValue, 0, len(p.Loops))
	for _, l := range p.Loops {
		lo := newRawObject()
		lo.set("is_outer", l.IsOuter)
		segs := make([]rawValue, 0, len(l.Segments))
		for _, seg := range l.Segments {
			segs = append(segs, marshalSegment(seg))
		}
		lo.set("profile_curves", segs)
		loops = append(loops, lo)
	}
	o.set("loops", loops)
	return o
}

func marshalSegment(seg Segment) *rawObject {
	o := newRawObject()
	o.set("type", seg.Kind)
	o.set("curve", seg.Curve)
	switch seg.Kind {
	case SegmentLine:
		o.set("start_point", marshalPoint(seg.Start))
		o.set("end_point", marshalPoint(seg.End))
	case SegmentCircle:
		o.set("center_point", marshalPoint(seg.Center))
		o.set("normal", marshalVector(seg.Normal))
		o.set("radius", seg.Radius)
	case SegmentArc:
		o.set("start_point", marshalPoint(seg.Start))
		o.set("end_point", marshalPoint(seg.End))
		o.set("center_point", marshalPoint(seg.Center))
		o.set("normal", marshalVector(seg.Normal))
		o.set("reference_vector", marshalVector(seg.Reference))
		o.set("radius", seg.Radius)
		o.set("start_angle", seg.StartAngle)
		o.set("end_angle", seg.EndAngle)
	}
	return o
}

func marshalExtrude(e *Extrude) *rawObject {
	o := newRawObject()
	o.set("type", "ExtrudeFeature")

	refs := make([]rawValue, 0, len(e.Profiles))
	for _, r := range e.Profiles {
		ro := newRawObject()
		ro.set("profile", r.Profile)
		ro.set("sketch", r.Sketch)
		refs = append(refs, ro)
	}
	o.set("profiles", refs)

	o.set("operation", string(e.Operation))
	o.set("extent_type", string(e.Extent))

	se := newRawObject()
	se.set("type", e.StartExtent)
	o.set("start_extent", se)

	o.set("extent_one", marshalExtent(e.One))
	if e.Two != nil {
		o.set("extent_two", marshalExtent(*e.Two))
	}
	return o
}

func marshalExtent(e Extent) *rawObject {
	o := newRawObject()
	dist := newRawObject()
	dist.set("value", e.Distance)
	o.set("distance", dist)
	o.set("type", "DistanceExtentDefinition")
	return o
}

func marshalPoint(p Vec3) *rawObject {
	o := newRawObject()
	o.set("type", "Point3D")
	o.set("x", p.X)
	o.set("y", p.Y)
	o.set("z", p.Z)
	return o
}

func marshalVector(v Vec3) *rawObject {
	o := newRawObject()
	o.set("type", "Vector3D")
	o.set("x", v.X)
	o.set("y", v.Y)
	o.set("z", v.Z)
	o.set("length", 1.0)
	return o
}

func marshalFrame(f Frame) *rawObject {
	o := newRawObject()
	o.set("origin", marshalPoint(f.Origin))
	o.set("x_axis", marshalVector(f.XAxis))
	o.set("y_axis", marshalVector(f.YAxis))
	o.set("z_axis", marshalVector(f.ZAxis))
	return o
}
