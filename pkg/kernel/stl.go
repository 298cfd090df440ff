package kernel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// WriteSTL writes a mesh as a binary STL file. Binary STL is the solid
// interchange format the pipeline persists; it is deterministic for a
// given mesh, which keeps batch outputs reproducible.
func WriteSTL(m *Mesh, path string) error {
	if m.IsEmpty() {
		return fmt.Errorf("write stl %s: mesh is empty", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write stl: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	var header [80]byte
	copy(header[:], "binary stl")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write stl %s: %w", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.TriangleCount())); err != nil {
		return fmt.Errorf("write stl %s: %w", path, err)
	}

	for t := 0; t < len(m.Indices); t += 3 {
		// Normal of the first vertex; faces are flat-shaded so all three agree.
		i0 := m.Indices[t]
		rec := make([]float32, 0, 12)
		rec = append(rec, m.Normals[3*i0], m.Normals[3*i0+1], m.Normals[3*i0+2])
		for j := 0; j < 3; j++ {
			i := m.Indices[t+j]
			rec = append(rec, m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2])
		}
		if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("write stl %s: %w", path, err)
		}
		// Attribute byte count, always zero.
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("write stl %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write stl %s: %w", path, err)
	}
	return nil
}
