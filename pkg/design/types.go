package design

// Vec3 is a 3D vector or point.
type Vec3 struct {
	X, Y, Z float64
}

// Frame is the planar coordinate frame of a sketch: an origin plus three
// axis vectors. ZAxis is the sketch normal and the extrude direction.
type Frame struct {
	Origin Vec3
	XAxis  Vec3
	YAxis  Vec3
	ZAxis  Vec3
}

// IdentityFrame returns the world-aligned frame at the origin.
func IdentityFrame() Frame {
	return Frame{
		XAxis: Vec3{X: 1},
		YAxis: Vec3{Y: 1},
		ZAxis: Vec3{Z: 1},
	}
}

// Entity is a top-level design tree entity: a sketch, a feature, or an
// entity of a kind outside the closed grammar (kept so the support filter
// can report it instead of the normalizer silently dropping it).
type Entity interface {
	EntityName() string
	EntityType() string
	entity() // marker method restricting implementations to this package
}

// Sketch is an ordered collection of points, curves, and profiles on a
// planar frame. Collections are ordered by canonical declaration order;
// element names encode their position (Point3D3, SketchLine1, Profile2).
type Sketch struct {
	Name     string
	Points   []*Point
	Curves   []Curve
	Profiles []*Profile
	Frame    Frame
}

func (s *Sketch) EntityName() string { return s.Name }
func (s *Sketch) EntityType() string { return "Sketch" }
func (s *Sketch) entity()            {}

// Point is a sketch-space point. Z is always zero after normalization.
type Point struct {
	Name string
	Pos  Vec3
}

// Curve is a sketch curve primitive.
type Curve interface {
	CurveName() string
	CurveType() string
	curve()
}

// Line is a straight segment between two named points.
type Line struct {
	Name  string
	Start string // point name
	End   string // point name
}

func (l *Line) CurveName() string { return l.Name }
func (l *Line) CurveType() string { return "SketchLine" }
func (l *Line) curve()            {}

// Circle is a full circle around a named center point.
type Circle struct {
	Name   string
	Center string // point name
	Radius float64
}

func (c *Circle) CurveName() string { return c.Name }
func (c *Circle) CurveType() string { return "SketchCircle" }
func (c *Circle) curve()            {}

// Arc is a circular arc. Angles are in radians, measured from the
// reference vector.
type Arc struct {
	Name       string
	Start      string // point name
	End        string // point name
	Center     string // point name
	Radius     float64
	StartAngle float64
	EndAngle   float64
	Reference  Vec3
}

func (a *Arc) CurveName() string { return a.Name }
func (a *Arc) CurveType() string { return "SketchArc" }
func (a *Arc) curve()            {}

// UnknownCurve preserves a curve of a kind outside the closed grammar.
// It carries no geometry; the support filter rejects trees containing it.
type UnknownCurve struct {
	Name    string
	RawType string
}

func (u *UnknownCurve) CurveName() string { return u.Name }
func (u *UnknownCurve) CurveType() string { return u.RawType }
func (u *UnknownCurve) curve()            {}

// Profile is a selection of closed loops used as a feature boundary.
type Profile struct {
	Name  string
	Loops []Loop
}

// Loop is one closed chain of profile segments.
type Loop struct {
	IsOuter  bool
	Segments []Segment
}

// Segment kinds. These mirror the profile segment types of the source
// document format; the filter's grammar table enumerates the supported set.
const (
	SegmentLine   = "Line3D"
	SegmentCircle = "Circle3D"
	SegmentArc    = "Arc3D"
)

// Segment is one element of a profile loop. It references a sketch curve
// by name and carries the resolved geometry so profile consumers never
// chase point references. Only the fields relevant to Kind are meaningful.
type Segment struct {
	Kind       string
	Curve      string // curve name within the owning sketch
	Start      Vec3
	End        Vec3
	Center     Vec3
	Normal     Vec3
	Reference  Vec3
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

// Operation is the boolean combination mode of a feature.
type Operation string

const (
	OpNewBody   Operation = "NewBodyFeatureOperation"
	OpJoin      Operation = "JoinFeatureOperation"
	OpCut       Operation = "CutFeatureOperation"
	OpIntersect Operation = "IntersectFeatureOperation"
)

// ExtentType describes how far and in which directions an extrude extends.
type ExtentType string

const (
	ExtentOneSide   ExtentType = "OneSideFeatureExtentType"
	ExtentTwoSides  ExtentType = "TwoSidesFeatureExtentType"
	ExtentSymmetric ExtentType = "SymmetricFeatureExtentType"
)

// StartExtentProfilePlane is the only supported start extent: the extrude
// begins on the sketch plane itself.
const StartExtentProfilePlane = "ProfilePlaneStartDefinition"

// Extent is one directional extent of an extrude.
type Extent struct {
	Distance float64
}

// ProfileRef names a profile and its owning sketch.
type ProfileRef struct {
	Profile string
	Sketch  string
}

// Extrude is a parametric extrusion feature over one or more profiles.
type Extrude struct {
	Name        string
	Profiles    []ProfileRef
	Operation   Operation
	Extent      ExtentType
	StartExtent string
	One         Extent
	Two         *Extent // nil unless Extent is TwoSides or Symmetric
}

func (e *Extrude) EntityName() string { return e.Name }
func (e *Extrude) EntityType() string { return "ExtrudeFeature" }
func (e *Extrude) entity()            {}

// UnknownEntity preserves a top-level entity of a kind outside the closed
// grammar so the support filter can name it in its verdict.
type UnknownEntity struct {
	Name    string
	RawType string
}

func (u *UnknownEntity) EntityName() string { return u.Name }
func (u *UnknownEntity) EntityType() string { return u.RawType }
func (u *UnknownEntity) entity()            {}

// Step is one entry of the build sequence. Sketch steps carry the curve
// declared at that step; feature steps reference the feature entity only.
type Step struct {
	Index  int
	Type   string // entity type of the referenced entity
	Entity string
	Curve  string // empty for feature steps
}

// Tree is a normalized design tree: entities in build order plus the
// canonical build sequence. Feature order is semantically significant.
type Tree struct {
	Entities []Entity
	Sequence []Step
}

// Entity returns the entity with the given name, or nil.
func (t *Tree) Entity(name string) Entity {
	for _, e := range t.Entities {
		if e.EntityName() == name {
			return e
		}
	}
	return nil
}

// Sketch returns the named sketch, or nil if absent or not a sketch.
func (t *Tree) Sketch(name string) *Sketch {
	s, _ := t.Entity(name).(*Sketch)
	return s
}

// Sketches returns all sketches in build order.
func (t *Tree) Sketches() []*Sketch {
	var out []*Sketch
	for _, e := range t.Entities {
		if s, ok := e.(*Sketch); ok {
			out = append(out, s)
		}
	}
	return out
}

// Features returns all extrude features in build order.
func (t *Tree) Features() []*Extrude {
	var out []*Extrude
	for _, e := range t.Entities {
		if f, ok := e.(*Extrude); ok {
			out = append(out, f)
		}
	}
	return out
}

// Point returns the named point, or nil.
func (s *Sketch) Point(name string) *Point {
	for _, p := range s.Points {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Curve returns the named curve, or nil.
func (s *Sketch) Curve(name string) Curve {
	for _, c := range s.Curves {
		if c.CurveName() == name {
			return c
		}
	}
	return nil
}

// Profile returns the named profile, or nil.
func (s *Sketch) Profile(name string) *Profile {
	for _, p := range s.Profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}
