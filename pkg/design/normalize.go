package design

import (
	"fmt"
	"strings"
)

// Normalize parses a raw design document, prunes everything that does not
// contribute to the solid (metadata, unused sketches, curves never
// referenced by a profile loop), and rebuilds the tree in canonical form:
//
//   - top-level entities named in build order (Sketch1, Extrude1, ...),
//     with a sketch always ordered before the first feature that uses it;
//   - within a sketch: profiles in declaration order, then curves and
//     points named in order of first reference walking profiles, loops,
//     and segments (line: start, end; circle: center; arc: start, end,
//     center);
//   - point coordinates taken from profile segment geometry with z = 0;
//   - a rebuilt sequence with indexes renumbered from zero.
//
// Duplicate points and curves are merged by quantized geometry, and
// adjacent features with identical parameters fold into one multi-profile
// feature, matching what the command decoder reconstructs, so
// normalization is idempotent and encode/decode is an exact structural
// round trip.
//
// Entities and curves of kinds outside the closed grammar are kept as
// Unknown* placeholders for the support filter to reject; they are never
// silently approximated. Normalize never mutates or aliases its input.
func Normalize(data []byte) (*Tree, error) {
	doc, err := parseRaw(data)
	if err != nil {
		return nil, &MalformedTreeError{Msg: err.Error()}
	}
	return normalizeDoc(doc)
}

// top-level metadata keys that carry no geometric meaning.
var prunedTopLevelKeys = []string{
	"metadata", "history", "viewport", "componentLibraries", "timeline", "properties",
}

type normalizer struct {
	counters map[string]int
	names    map[string]string // raw id -> canonical name (entities and profiles)
}

func (n *normalizer) next(prefix string) string {
	n.counters[prefix]++
	return fmt.Sprintf("%s%d", prefix, n.counters[prefix])
}

func normalizeDoc(doc *rawObject) (*Tree, error) {
	entities := doc.obj("entities")
	if entities == nil {
		return nil, malformed("entities", "missing required field")
	}
	seq := doc.arr("sequence")
	if seq == nil {
		return nil, malformed("sequence", "missing required field")
	}

	// Sketches referenced by at least one feature profile survive pruning.
	usedSketches := make(map[string]bool)
	for _, id := range entities.keys {
		ent := entities.obj(id)
		if ent == nil || ent.str("type") != "ExtrudeFeature" {
			continue
		}
		for _, pv := range ent.arr("profiles") {
			if ref, ok := pv.(*rawObject); ok {
				if sk := ref.str("sketch"); sk != "" {
					usedSketches[sk] = true
				}
			}
		}
	}

	order, err := buildOrder(entities, seq, usedSketches)
	if err != nil {
		return nil, err
	}

	n := &normalizer{
		counters: make(map[string]int),
		names:    make(map[string]string),
	}

	// First pass: assign canonical top-level names in build order.
	for _, id := range order {
		switch entities.obj(id).str("type") {
		case "Sketch":
			n.names[id] = n.next("Sketch")
		case "ExtrudeFeature":
			n.names[id] = n.next("Extrude")
		default:
			n.names[id] = n.next(entities.obj(id).str("type"))
		}
	}

	tree := &Tree{}
	for _, id := range order {
		ent := entities.obj(id)
		switch ent.str("type") {
		case "Sketch":
			sk, err := n.normalizeSketch(n.names[id], id, ent)
			if err != nil {
				return nil, err
			}
			tree.Entities = append(tree.Entities, sk)
		case "ExtrudeFeature":
			ex, err := n.normalizeExtrude(n.names[id], id, ent)
			if err != nil {
				return nil, err
			}
			tree.Entities = append(tree.Entities, ex)
		default:
			tree.Entities = append(tree.Entities, &UnknownEntity{
				Name:    n.names[id],
				RawType: ent.str("type"),
			})
		}
	}

	tree.Entities = mergeAdjacentFeatures(tree.Entities)
	tree.Sequence = CanonicalSequence(tree)
	return tree, nil
}

// mergeAdjacentFeatures folds runs of adjacent features whose encoded E
// commands would be indistinguishable into one multi-profile feature.
// The command decoder performs the same fold on adjacent E lines, so the
// canonical tree is the exact shape a decode of its encoding rebuilds.
// Feature names are renumbered after folding.
func mergeAdjacentFeatures(entities []Entity) []Entity {
	out := entities[:0]
	var last *Extrude
	features := 0
	for _, e := range entities {
		ex, ok := e.(*Extrude)
		if !ok {
			out = append(out, e)
			last = nil
			continue
		}
		if last != nil && featureSig(last, len(last.Profiles)-1) == featureSig(ex, 0) {
			last.Profiles = append(last.Profiles, ex.Profiles...)
			continue
		}
		features++
		ex.Name = fmt.Sprintf("Extrude%d", features)
		out = append(out, ex)
		last = ex
	}
	return out
}

// featureSig is the command-level identity of the E line emitted for one
// profile reference: the profile's owning sketch plus the quantized
// feature parameters. Two features merge when the last line of one and
// the first line of the next carry identical signatures.
func featureSig(ex *Extrude, profile int) string {
	var d2 float64
	if ex.Two != nil {
		d2 = ex.Two.Distance
	}
	return ex.Profiles[profile].Sketch + "|" + string(ex.Operation) + "|" +
		string(ex.Extent) + "|" + ex.StartExtent + "|" +
		FormatQuantized(ex.One.Distance) + "|" + FormatQuantized(d2)
}

// buildOrder derives the pruned build order from the raw sequence: used
// sketches and features in first-appearance order, with every sketch a
// feature depends on pulled in ahead of that feature.
func buildOrder(entities *rawObject, seq []rawValue, usedSketches map[string]bool) ([]string, error) {
	var order []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	for i, sv := range seq {
		step, ok := sv.(*rawObject)
		if !ok {
			return nil, malformed(fmt.Sprintf("sequence[%d]", i), "step is not an object")
		}
		id := step.str("entity")
		if id == "" {
			continue
		}
		ent := entities.obj(id)
		if ent == nil {
			// Steps referencing pruned or absent entities are dropped,
			// matching the source pipeline's sequence pruning.
			continue
		}
		switch ent.str("type") {
		case "Sketch":
			if usedSketches[id] {
				add(id)
			}
		case "ExtrudeFeature":
			for _, pv := range ent.arr("profiles") {
				ref, ok := pv.(*rawObject)
				if !ok {
					continue
				}
				sk := ref.str("sketch")
				if sk == "" {
					continue
				}
				dep := entities.obj(sk)
				if dep == nil || dep.str("type") != "Sketch" {
					return nil, malformed(
						fmt.Sprintf("entities.%s.profiles", id),
						"feature references unknown sketch %q", sk)
				}
				add(sk)
			}
			add(id)
		default:
			add(id)
		}
	}
	return order, nil
}

// sketchBuilder accumulates the canonical collections of one sketch while
// profiles are walked. Dedup keys match the command decoder's trackers so
// that the decoder reproduces identical names.
type sketchBuilder struct {
	n      *normalizer
	sketch *Sketch
	points map[[2]string]string // quantized (x, y) -> point name
	curves map[string]string    // geometry signature -> curve name
}

func (b *sketchBuilder) point(p Vec3) string {
	key := [2]string{FormatQuantized(p.X), FormatQuantized(p.Y)}
	if name, ok := b.points[key]; ok {
		return name
	}
	name := b.n.next("Point3D")
	b.points[key] = name
	b.sketch.Points = append(b.sketch.Points, &Point{Name: name, Pos: Vec3{X: p.X, Y: p.Y}})
	return name
}

func (b *sketchBuilder) curve(sig string, make func(name string) Curve) string {
	if name, ok := b.curves[sig]; ok {
		return name
	}
	c := make("")
	prefix := c.CurveType()
	name := b.n.next(prefix)
	b.curves[sig] = name
	b.sketch.Curves = append(b.sketch.Curves, make(name))
	return name
}

func (n *normalizer) normalizeSketch(name, rawID string, ent *rawObject) (*Sketch, error) {
	sk := &Sketch{Name: name, Frame: parseFrame(ent.obj("transform"))}
	b := &sketchBuilder{
		n:      n,
		sketch: sk,
		points: make(map[[2]string]string),
		curves: make(map[string]string),
	}

	rawCurves := ent.obj("curves")
	rawProfiles := ent.obj("profiles")
	if rawProfiles == nil {
		return sk, nil
	}

	for _, pid := range rawProfiles.keys {
		prof := rawProfiles.obj(pid)
		if prof == nil {
			continue
		}
		pname := n.next("Profile")
		n.names[pid] = pname
		p := &Profile{Name: pname}

		path := fmt.Sprintf("entities.%s.profiles.%s", name, pname)
		for li, lv := range prof.arr("loops") {
			loopObj, ok := lv.(*rawObject)
			if !ok {
				return nil, malformed(path, "loop %d is not an object", li)
			}
			loop := Loop{IsOuter: loopIsOuter(loopObj)}
			for si, sv := range loopObj.arr("profile_curves") {
				segObj, ok := sv.(*rawObject)
				if !ok {
					return nil, malformed(path, "segment %d of loop %d is not an object", si, li)
				}
				seg, err := b.segment(segObj, rawCurves, fmt.Sprintf("%s.loops[%d][%d]", path, li, si))
				if err != nil {
					return nil, err
				}
				loop.Segments = append(loop.Segments, seg)
			}
			p.Loops = append(p.Loops, loop)
		}
		sk.Profiles = append(sk.Profiles, p)
	}
	return sk, nil
}

// segment canonicalizes one profile segment and registers the points and
// the backing curve it references.
func (b *sketchBuilder) segment(segObj, rawCurves *rawObject, path string) (Segment, error) {
	kind := segObj.str("type")
	curveRef := segObj.str("curve")
	if curveRef == "" {
		return Segment{}, malformed(path, "segment has no curve reference")
	}
	if rawCurves == nil || rawCurves.obj(curveRef) == nil {
		return Segment{}, malformed(path, "segment references unknown curve %q", curveRef)
	}

	switch kind {
	case SegmentLine:
		start, err := segPoint(segObj, "start_point", path)
		if err != nil {
			return Segment{}, err
		}
		end, err := segPoint(segObj, "end_point", path)
		if err != nil {
			return Segment{}, err
		}
		sp, ep := b.point(start), b.point(end)
		sig := "L|" + sortedPair(sp, ep)
		cname := b.curve(sig, func(name string) Curve {
			return &Line{Name: name, Start: sp, End: ep}
		})
		return Segment{Kind: SegmentLine, Curve: cname, Start: start, End: end}, nil

	case SegmentCircle:
		center, err := segPoint(segObj, "center_point", path)
		if err != nil {
			return Segment{}, err
		}
		radius, ok := segObj.num("radius")
		if !ok {
			return Segment{}, malformed(path, "circle segment has no radius")
		}
		radius = Quantize(radius)
		cp := b.point(center)
		sig := "C|" + cp + "|" + FormatQuantized(radius)
		cname := b.curve(sig, func(name string) Curve {
			return &Circle{Name: name, Center: cp, Radius: radius}
		})
		return Segment{
			Kind:   SegmentCircle,
			Curve:  cname,
			Center: center,
			Normal: Vec3{Z: 1},
			Radius: radius,
		}, nil

	case SegmentArc:
		start, err := segPoint(segObj, "start_point", path)
		if err != nil {
			return Segment{}, err
		}
		end, err := segPoint(segObj, "end_point", path)
		if err != nil {
			return Segment{}, err
		}
		center, err := segPoint(segObj, "center_point", path)
		if err != nil {
			return Segment{}, err
		}
		radius, ok := segObj.num("radius")
		if !ok {
			return Segment{}, malformed(path, "arc segment has no radius")
		}
		startAngle, ok := segObj.num("start_angle")
		if !ok {
			return Segment{}, malformed(path, "arc segment has no start_angle")
		}
		endAngle, ok := segObj.num("end_angle")
		if !ok {
			return Segment{}, malformed(path, "arc segment has no end_angle")
		}
		radius = Quantize(radius)
		startAngle = Quantize(startAngle)
		endAngle = Quantize(endAngle)
		ref := parseVec2(segObj.obj("reference_vector"), Vec3{X: 1})
		ref = Vec3{X: Quantize(ref.X), Y: Quantize(ref.Y)}

		sp, ep, cp := b.point(start), b.point(end), b.point(center)
		sig := "A|" + sp + "|" + ep + "|" + cp
		cname := b.curve(sig, func(name string) Curve {
			return &Arc{
				Name:       name,
				Start:      sp,
				End:        ep,
				Center:     cp,
				Radius:     radius,
				StartAngle: startAngle,
				EndAngle:   endAngle,
				Reference:  ref,
			}
		})
		return Segment{
			Kind:       SegmentArc,
			Curve:      cname,
			Start:      start,
			End:        end,
			Center:     center,
			Normal:     Vec3{Z: 1},
			Reference:  ref,
			Radius:     radius,
			StartAngle: startAngle,
			EndAngle:   endAngle,
		}, nil

	default:
		// Outside the closed grammar: preserved for the support filter,
		// never encoded.
		sig := "U|" + curveRef
		cname := b.curve(sig, func(name string) Curve {
			return &UnknownCurve{Name: name, RawType: kind}
		})
		return Segment{Kind: kind, Curve: cname}, nil
	}
}

func (n *normalizer) normalizeExtrude(name, rawID string, ent *rawObject) (*Extrude, error) {
	path := "entities." + name
	ex := &Extrude{
		Name:        name,
		Operation:   Operation(ent.str("operation")),
		Extent:      ExtentType(ent.str("extent_type")),
		StartExtent: startExtentType(ent),
	}

	for i, pv := range ent.arr("profiles") {
		ref, ok := pv.(*rawObject)
		if !ok {
			return nil, malformed(path, "profile reference %d is not an object", i)
		}
		sketchName, ok := n.names[ref.str("sketch")]
		if !ok {
			return nil, malformed(path, "dangling sketch reference %q", ref.str("sketch"))
		}
		profileName, ok := n.names[ref.str("profile")]
		if !ok {
			return nil, malformed(path, "dangling profile reference %q", ref.str("profile"))
		}
		ex.Profiles = append(ex.Profiles, ProfileRef{Profile: profileName, Sketch: sketchName})
	}
	if len(ex.Profiles) == 0 {
		return nil, malformed(path, "feature has no profile references")
	}

	one := ent.obj("extent_one")
	if one == nil {
		return nil, malformed(path, "missing required field extent_one")
	}
	d1, err := extentDistance(one, path+".extent_one")
	if err != nil {
		return nil, err
	}
	ex.One = Extent{Distance: d1}

	// A second extent is canonical exactly for the two-sided and symmetric
	// extent types; the decoder rebuilds it for those and no others.
	if ex.Extent == ExtentTwoSides || ex.Extent == ExtentSymmetric {
		ex.Two = &Extent{}
		if two := ent.obj("extent_two"); two != nil {
			d2, err := extentDistance(two, path+".extent_two")
			if err != nil {
				return nil, err
			}
			ex.Two.Distance = d2
		}
	}
	return ex, nil
}

func extentDistance(extent *rawObject, path string) (float64, error) {
	dist := extent.obj("distance")
	if dist == nil {
		// The source format sometimes stores the distance directly.
		if v, ok := extent.num("distance"); ok {
			return Quantize(v), nil
		}
		return 0, malformed(path, "missing distance")
	}
	v, ok := dist.num("value")
	if !ok {
		return 0, malformed(path, "missing distance value")
	}
	return Quantize(v), nil
}

// startExtentType reads the feature's start extent kind. An absent start
// extent means the profile plane, which is also what the decoder assigns.
func startExtentType(ent *rawObject) string {
	if se := ent.obj("start_extent"); se != nil {
		if t := se.str("type"); t != "" {
			return t
		}
	}
	return StartExtentProfilePlane
}

func segPoint(segObj *rawObject, key, path string) (Vec3, error) {
	p := segObj.obj(key)
	if p == nil {
		return Vec3{}, malformed(path, "missing %s", key)
	}
	x, okX := p.num("x")
	y, okY := p.num("y")
	if !okX || !okY {
		return Vec3{}, malformed(path, "%s has no numeric coordinates", key)
	}
	// Sketch-space geometry is planar; z is canonically zero. Coordinates
	// are quantized here so the canonical tree holds exactly the values the
	// command text round-trips.
	return Vec3{X: Quantize(x), Y: Quantize(y)}, nil
}

// parseVec2 reads the in-plane x/y components of a vector object.
func parseVec2(o *rawObject, fallback Vec3) Vec3 {
	if o == nil {
		return fallback
	}
	x, okX := o.num("x")
	y, okY := o.num("y")
	if !okX || !okY {
		return fallback
	}
	return Vec3{X: x, Y: y}
}

func parseVec3(o *rawObject) (Vec3, bool) {
	if o == nil {
		return Vec3{}, false
	}
	x, okX := o.num("x")
	y, okY := o.num("y")
	z, okZ := o.num("z")
	if !okX || !okY || !okZ {
		return Vec3{}, false
	}
	return Vec3{X: x, Y: y, Z: z}, true
}

// parseFrame reads a sketch transform. An absent or degenerate transform
// falls back to the identity frame, matching the source pipeline.
func parseFrame(o *rawObject) Frame {
	if o == nil {
		return IdentityFrame()
	}
	origin, ok := parseVec3(o.obj("origin"))
	if !ok {
		return IdentityFrame()
	}
	x, okX := parseVec3(o.obj("x_axis"))
	y, okY := parseVec3(o.obj("y_axis"))
	z, okZ := parseVec3(o.obj("z_axis"))
	if !okX || !okY || !okZ {
		return IdentityFrame()
	}
	if lengthSq(x) < 1e-18 || lengthSq(y) < 1e-18 || lengthSq(z) < 1e-18 {
		return IdentityFrame()
	}
	return Frame{
		Origin: quantizeVec(origin),
		XAxis:  quantizeVec(x),
		YAxis:  quantizeVec(y),
		ZAxis:  quantizeVec(z),
	}
}

func quantizeVec(v Vec3) Vec3 {
	return Vec3{X: Quantize(v.X), Y: Quantize(v.Y), Z: Quantize(v.Z)}
}

func loopIsOuter(o *rawObject) bool {
	v, ok := o.get("is_outer")
	if !ok {
		return true
	}
	b, _ := v.(bool)
	return b
}

// CanonicalSequence rebuilds the build sequence from the canonical tree:
// one step per sketch curve in declaration order, one step per feature.
// The normalizer and the command decoder both use it, so a normalized tree
// and its decoded round trip carry identical sequences.
func CanonicalSequence(tree *Tree) []Step {
	var steps []Step
	for _, e := range tree.Entities {
		switch ent := e.(type) {
		case *Sketch:
			for _, c := range ent.Curves {
				steps = append(steps, Step{
					Index:  len(steps),
					Type:   "Sketch",
					Entity: ent.Name,
					Curve:  c.CurveName(),
				})
			}
		default:
			steps = append(steps, Step{
				Index:  len(steps),
				Type:   e.EntityType(),
				Entity: e.EntityName(),
			})
		}
	}
	return steps
}

func sortedPair(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

func lengthSq(v Vec3) float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}
