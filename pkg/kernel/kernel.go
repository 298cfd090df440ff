// Package kernel defines the abstract geometry kernel interface the
// reconstruction driver builds solids through. Implementations (sdfx, and
// a fake for tests) provide profile construction, extrusion, and boolean
// solid operations behind this interface, so the driver's state machine
// never depends on a concrete geometry library.
package kernel

// Face is an opaque handle to a planar profile region in sketch-local
// coordinates (the XY plane).
type Face interface {
	// BoundingBox returns the axis-aligned 2D bounding box.
	BoundingBox() (min, max [2]float64)
}

// Solid is an opaque handle to a geometry kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Profile construction. Polygon takes a closed chain of 2D vertices
	// (first and last implicitly connected); Circle is centered at (cx, cy).
	// Subtract cuts hole faces out of an outer face.
	Polygon(points [][2]float64) (Face, error)
	Circle(cx, cy, r float64) (Face, error)
	Subtract(outer Face, holes ...Face) Face

	// Extrude sweeps a face from z=0 to z=height. Height must be positive;
	// direction is the caller's concern via placement.
	Extrude(f Face, height float64) (Solid, error)

	// Boolean operations.
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Placement.
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees, X then Y then Z

	// Mesh output.
	ToMesh(s Solid) (*Mesh, error)
}

// VolumeMeasurer is an optional kernel capability. The driver uses it to
// trace per-feature volumes when the backend can measure them cheaply.
type VolumeMeasurer interface {
	Volume(s Solid) float64
}
