package kernel

import "math"

// Mesh is a triangle mesh suitable for rendering and export.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // source file identifier
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// vertex returns vertex i as a [3]float64.
func (m *Mesh) vertex(i uint32) [3]float64 {
	return [3]float64{
		float64(m.Vertices[3*i]),
		float64(m.Vertices[3*i+1]),
		float64(m.Vertices[3*i+2]),
	}
}

// Volume returns the enclosed volume via the divergence theorem: the sum
// of signed tetrahedron volumes against the origin. Requires a closed,
// consistently wound mesh; the sign is normalized away.
func (m *Mesh) Volume() float64 {
	var v float64
	for t := 0; t < len(m.Indices); t += 3 {
		a := m.vertex(m.Indices[t])
		b := m.vertex(m.Indices[t+1])
		c := m.vertex(m.Indices[t+2])
		v += a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	return math.Abs(v) / 6.0
}

// BoundingBox returns the axis-aligned bounds of all vertices.
// Returns zeros for an empty mesh.
func (m *Mesh) BoundingBox() (min, max [3]float64) {
	if m.IsEmpty() {
		return
	}
	for i := 0; i < 3; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}
	for v := 0; v < len(m.Vertices); v += 3 {
		for i := 0; i < 3; i++ {
			c := float64(m.Vertices[v+i])
			if c < min[i] {
				min[i] = c
			}
			if c > max[i] {
				max[i] = c
			}
		}
	}
	return
}
