package codec

import (
	"fmt"
	"strings"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/grammar"
)

// Decode parses a command sequence back into a normalized design tree,
// reassigning the same position-derived names the encoder's input carried.
// It is the exact structural inverse of Encode for every filter-approved
// tree. The artifact's grammar version header must match the table.
func Decode(data []byte, table *grammar.Table) (*design.Tree, error) {
	d := &decoder{
		table:         table,
		tree:          &design.Tree{},
		sketchByID:    make(map[int]*design.Sketch),
		profileSketch: make(map[int]int),
	}

	for i, raw := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		cmd, err := parseLine(i+1, raw)
		if err != nil {
			return nil, err
		}
		if err := d.apply(cmd); err != nil {
			return nil, err
		}
	}

	if !d.sawHeader {
		return nil, decodingErr(0, "missing grammar version header")
	}
	if len(d.tree.Entities) == 0 {
		return nil, decodingErr(0, "sequence defines no entities")
	}
	if err := d.checkComplete(); err != nil {
		return nil, err
	}

	d.tree.Sequence = design.CanonicalSequence(d.tree)
	return d.tree, nil
}

type decoder struct {
	table     *grammar.Table
	tree      *design.Tree
	sawHeader bool

	// Global per-kind counters; never reset between sketches.
	pointCount   int
	lineCount    int
	circleCount  int
	arcCount     int
	extrudeCount int

	sketch   *design.Sketch
	sketchID int
	profile  *design.Profile
	hasLoop  bool

	// Per-sketch dedup trackers, reset on every S command. Keys match the
	// normalizer's canonicalization so both sides assign identical names.
	points map[[2]float64]string
	curves map[string]string

	// Consecutive E commands with identical parameters fold into one
	// multi-profile feature.
	lastExtrudeSig string
	lastExtrude    *design.Extrude

	sketchByID    map[int]*design.Sketch
	profileSketch map[int]int // profile id -> owning sketch id
}

func (d *decoder) apply(cmd command) error {
	if !d.sawHeader && cmd.tag != tagGrammar {
		return decodingErr(cmd.line, "first command must be the grammar version header")
	}
	if cmd.tag != tagExtrude {
		d.lastExtrudeSig = ""
		d.lastExtrude = nil
	}

	switch cmd.tag {
	case tagGrammar:
		return d.applyGrammar(cmd)
	case tagSketch:
		return d.applySketch(cmd)
	case tagProfile:
		return d.applyProfile(cmd)
	case tagLoop:
		return d.applyLoop(cmd)
	case tagLine, tagCircle, tagArc:
		return d.applySegment(cmd)
	case tagPose:
		return d.applyPose(cmd)
	case tagExtrude:
		return d.applyExtrude(cmd)
	default:
		return decodingErr(cmd.line, "unrecognized command tag %c", cmd.tag)
	}
}

func (d *decoder) applyGrammar(cmd command) error {
	if d.sawHeader {
		return decodingErr(cmd.line, "duplicate grammar version header")
	}
	version, err := cmd.id(0)
	if err != nil {
		return err
	}
	if version != d.table.Version {
		return decodingErr(cmd.line, "grammar version mismatch: artifact v%d, table v%d", version, d.table.Version)
	}
	d.sawHeader = true
	return nil
}

func (d *decoder) applySketch(cmd command) error {
	id, err := cmd.id(0)
	if err != nil {
		return err
	}
	if _, dup := d.sketchByID[id]; dup {
		return decodingErr(cmd.line, "sketch %d declared twice", id)
	}
	s := &design.Sketch{
		Name:  fmt.Sprintf("Sketch%d", id),
		Frame: design.IdentityFrame(),
	}
	d.sketch = s
	d.sketchID = id
	d.profile = nil
	d.hasLoop = false
	d.points = make(map[[2]float64]string)
	d.curves = make(map[string]string)
	d.sketchByID[id] = s
	d.tree.Entities = append(d.tree.Entities, s)
	return nil
}

func (d *decoder) applyProfile(cmd command) error {
	if d.sketch == nil {
		return decodingErr(cmd.line, "P command outside a sketch")
	}
	id, err := cmd.id(0)
	if err != nil {
		return err
	}
	if _, dup := d.profileSketch[id]; dup {
		return decodingErr(cmd.line, "profile %d declared twice", id)
	}
	p := &design.Profile{Name: fmt.Sprintf("Profile%d", id)}
	d.profile = p
	d.hasLoop = false
	d.sketch.Profiles = append(d.sketch.Profiles, p)
	d.profileSketch[id] = d.sketchID
	return nil
}

func (d *decoder) applyLoop(cmd command) error {
	if d.profile == nil {
		return decodingErr(cmd.line, "O command outside a profile")
	}
	var isOuter bool
	switch cmd.operands[0] {
	case "true":
		isOuter = true
	case "false":
		isOuter = false
	default:
		return decodingErr(cmd.line, "O operand %q is not a boolean", cmd.operands[0])
	}
	d.profile.Loops = append(d.profile.Loops, design.Loop{IsOuter: isOuter})
	d.hasLoop = true
	return nil
}

// currentLoop returns the loop segments are appended to.
func (d *decoder) currentLoop() *design.Loop {
	return &d.profile.Loops[len(d.profile.Loops)-1]
}

func (d *decoder) applySegment(cmd command) error {
	if d.profile == nil || !d.hasLoop {
		return decodingErr(cmd.line, "%c command outside a loop", cmd.tag)
	}
	nums := make([]float64, len(cmd.operands))
	for i := range cmd.operands {
		v, err := cmd.num(i)
		if err != nil {
			return err
		}
		nums[i] = v
	}

	loop := d.currentLoop()
	switch cmd.tag {
	case tagLine:
		start := design.Vec3{X: nums[0], Y: nums[1]}
		end := design.Vec3{X: nums[2], Y: nums[3]}
		sp := d.point(start)
		ep := d.point(end)
		sig := "L|" + sortedPair(sp, ep)
		name := d.curve(sig, func() (string, design.Curve) {
			d.lineCount++
			n := fmt.Sprintf("SketchLine%d", d.lineCount)
			return n, &design.Line{Name: n, Start: sp, End: ep}
		})
		loop.Segments = append(loop.Segments, design.Segment{
			Kind:  design.SegmentLine,
			Curve: name,
			Start: start,
			End:   end,
		})

	case tagCircle:
		center := design.Vec3{X: nums[0], Y: nums[1]}
		radius := nums[2]
		cp := d.point(center)
		sig := "C|" + cp + "|" + design.FormatQuantized(radius)
		name := d.curve(sig, func() (string, design.Curve) {
			d.circleCount++
			n := fmt.Sprintf("SketchCircle%d", d.circleCount)
			return n, &design.Circle{Name: n, Center: cp, Radius: radius}
		})
		loop.Segments = append(loop.Segments, design.Segment{
			Kind:   design.SegmentCircle,
			Curve:  name,
			Center: center,
			Normal: design.Vec3{Z: 1},
			Radius: radius,
		})

	case tagArc:
		start := design.Vec3{X: nums[0], Y: nums[1]}
		end := design.Vec3{X: nums[2], Y: nums[3]}
		center := design.Vec3{X: nums[4], Y: nums[5]}
		ref := design.Vec3{X: nums[6], Y: nums[7]}
		radius, startAngle, endAngle := nums[8], nums[9], nums[10]
		sp := d.point(start)
		ep := d.point(end)
		cp := d.point(center)
		sig := "A|" + sp + "|" + ep + "|" + cp
		name := d.curve(sig, func() (string, design.Curve) {
			d.arcCount++
			n := fmt.Sprintf("SketchArc%d", d.arcCount)
			return n, &design.Arc{
				Name:       n,
				Start:      sp,
				End:        ep,
				Center:     cp,
				Radius:     radius,
				StartAngle: startAngle,
				EndAngle:   endAngle,
				Reference:  ref,
			}
		})
		loop.Segments = append(loop.Segments, design.Segment{
			Kind:       design.SegmentArc,
			Curve:      name,
			Start:      start,
			End:        end,
			Center:     center,
			Normal:     design.Vec3{Z: 1},
			Reference:  ref,
			Radius:     radius,
			StartAngle: startAngle,
			EndAngle:   endAngle,
		})
	}
	return nil
}

func (d *decoder) applyPose(cmd command) error {
	if d.sketch == nil {
		return decodingErr(cmd.line, "T command outside a sketch")
	}
	nums := make([]float64, 12)
	for i := range nums {
		v, err := cmd.num(i)
		if err != nil {
			return err
		}
		nums[i] = v
	}
	d.sketch.Frame = design.Frame{
		Origin: design.Vec3{X: nums[0], Y: nums[1], Z: nums[2]},
		XAxis:  design.Vec3{X: nums[3], Y: nums[4], Z: nums[5]},
		YAxis:  design.Vec3{X: nums[6], Y: nums[7], Z: nums[8]},
		ZAxis:  design.Vec3{X: nums[9], Y: nums[10], Z: nums[11]},
	}
	return nil
}

func (d *decoder) applyExtrude(cmd command) error {
	pid, err := cmd.id(0)
	if err != nil {
		return err
	}
	sid, err := cmd.id(1)
	if err != nil {
		return err
	}
	opTag := cmd.operands[2]
	extTag := cmd.operands[3]
	d1, err := cmd.num(4)
	if err != nil {
		return err
	}
	d2, err := cmd.num(5)
	if err != nil {
		return err
	}

	// Reference window check: both the sketch and the profile must have
	// been declared by earlier commands, and belong together.
	if _, ok := d.sketchByID[sid]; !ok {
		return decodingErr(cmd.line, "E references undeclared sketch %d", sid)
	}
	owner, ok := d.profileSketch[pid]
	if !ok {
		return decodingErr(cmd.line, "E references undeclared profile %d", pid)
	}
	if owner != sid {
		return decodingErr(cmd.line, "E references profile %d, which belongs to sketch %d, not %d", pid, owner, sid)
	}

	op, ok := operationsByTag[opTag]
	if !ok {
		return decodingErr(cmd.line, "unrecognized operation tag %q", opTag)
	}
	ext, ok := extentsByTag[extTag]
	if !ok {
		return decodingErr(cmd.line, "unrecognized extent tag %q", extTag)
	}

	ref := design.ProfileRef{
		Profile: fmt.Sprintf("Profile%d", pid),
		Sketch:  fmt.Sprintf("Sketch%d", sid),
	}

	sig := fmt.Sprintf("%d|%s|%s|%s|%s", sid, opTag, extTag,
		design.FormatQuantized(d1), design.FormatQuantized(d2))
	if sig == d.lastExtrudeSig && d.lastExtrude != nil {
		d.lastExtrude.Profiles = append(d.lastExtrude.Profiles, ref)
		return nil
	}

	d.extrudeCount++
	ex := &design.Extrude{
		Name:        fmt.Sprintf("Extrude%d", d.extrudeCount),
		Profiles:    []design.ProfileRef{ref},
		Operation:   op,
		Extent:      ext,
		StartExtent: design.StartExtentProfilePlane,
		One:         design.Extent{Distance: d1},
	}
	if ext == design.ExtentTwoSides || ext == design.ExtentSymmetric {
		ex.Two = &design.Extent{Distance: d2}
	}
	d.tree.Entities = append(d.tree.Entities, ex)
	d.lastExtrudeSig = sig
	d.lastExtrude = ex
	return nil
}

// point returns the canonical name for a coordinate pair, creating the
// point on first sight.
func (d *decoder) point(p design.Vec3) string {
	key := [2]float64{p.X, p.Y}
	if name, ok := d.points[key]; ok {
		return name
	}
	d.pointCount++
	name := fmt.Sprintf("Point3D%d", d.pointCount)
	d.points[key] = name
	d.sketch.Points = append(d.sketch.Points, &design.Point{Name: name, Pos: p})
	return name
}

func (d *decoder) curve(sig string, create func() (string, design.Curve)) string {
	if name, ok := d.curves[sig]; ok {
		return name
	}
	name, c := create()
	d.curves[sig] = name
	d.sketch.Curves = append(d.sketch.Curves, c)
	return name
}

// checkComplete rejects truncated artifacts: every declared profile must
// carry at least one loop and every loop at least one segment.
func (d *decoder) checkComplete() error {
	for _, s := range d.tree.Sketches() {
		for _, p := range s.Profiles {
			if len(p.Loops) == 0 {
				return decodingErr(0, "%s.%s has no loops (truncated sequence)", s.Name, p.Name)
			}
			for i, loop := range p.Loops {
				if len(loop.Segments) == 0 {
					return decodingErr(0, "%s.%s loop %d has no segments (truncated sequence)", s.Name, p.Name, i)
				}
			}
		}
	}
	return nil
}

func sortedPair(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
