// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel         = (*SdfxKernel)(nil)
	_ kernel.VolumeMeasurer = (*SdfxKernel)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxFace wraps an sdf.SDF2 to implement kernel.Face.
type sdfxFace struct {
	s sdf.SDF2
}

// BoundingBox returns the axis-aligned 2D bounding box.
func (f *sdfxFace) BoundingBox() (min, max [2]float64) {
	bb := f.s.BoundingBox()
	min = [2]float64{bb.Min.X, bb.Min.Y}
	max = [2]float64{bb.Max.X, bb.Max.Y}
	return min, max
}

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// New returns a new SdfxKernel with the given marching cubes resolution.
// Pass 0 to use DefaultMeshCells.
func New(meshCells int) *SdfxKernel {
	if meshCells <= 0 {
		meshCells = DefaultMeshCells
	}
	return &SdfxKernel{meshCells: meshCells}
}

// unwrapFace extracts the underlying sdf.SDF2 from a kernel.Face.
func unwrapFace(f kernel.Face) sdf.SDF2 {
	return f.(*sdfxFace).s
}

// wrapFace creates a kernel.Face from an sdf.SDF2.
func wrapFace(s sdf.SDF2) kernel.Face {
	return &sdfxFace{s: s}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Polygon creates a planar face from a closed chain of 2D vertices.
// The first and last vertices are implicitly connected.
func (k *SdfxKernel) Polygon(points [][2]float64) (kernel.Face, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("sdfx: polygon needs at least 3 vertices, got %d", len(points))
	}
	vs := make([]v2.Vec, len(points))
	for i, p := range points {
		vs[i] = v2.Vec{X: p[0], Y: p[1]}
	}
	s, err := sdf.Polygon2D(vs)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Polygon2D: %w", err)
	}
	return wrapFace(s), nil
}

// Circle creates a circular face of radius r centered at (cx, cy).
func (k *SdfxKernel) Circle(cx, cy, r float64) (kernel.Face, error) {
	s, err := sdf.Circle2D(r)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Circle2D: %w", err)
	}
	m := sdf.Translate2d(v2.Vec{X: cx, Y: cy})
	return wrapFace(sdf.Transform2D(s, m)), nil
}

// Subtract cuts hole faces out of an outer face.
func (k *SdfxKernel) Subtract(outer kernel.Face, holes ...kernel.Face) kernel.Face {
	s := unwrapFace(outer)
	for _, h := range holes {
		s = sdf.Difference2D(s, unwrapFace(h))
	}
	return wrapFace(s)
}

// Extrude sweeps a face from z=0 to z=height. sdf.Extrude3D centers the
// solid around z=0, so we translate by half the height.
func (k *SdfxKernel) Extrude(f kernel.Face, height float64) (kernel.Solid, error) {
	if height <= 0 {
		return nil, fmt.Errorf("sdfx: extrude height must be positive, got %g", height)
	}
	s := sdf.Extrude3D(unwrapFace(f), height)
	m := sdf.Translate3d(v3.Vec{Z: height / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.meshCells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// Volume estimates the solid's volume by meshing at the configured
// resolution and integrating the mesh. Approximate by nature.
func (k *SdfxKernel) Volume(s kernel.Solid) float64 {
	m, err := k.ToMesh(s)
	if err != nil || m.IsEmpty() {
		return 0
	}
	return m.Volume()
}
