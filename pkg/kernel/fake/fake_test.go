package fake

import (
	"math"
	"testing"
)

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name   string
		points [][2]float64
		want   float64
	}{
		{"unit square", [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"clockwise square", [][2]float64{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, 1},
		{"triangle", [][2]float64{{0, 0}, {2, 0}, {0, 2}}, 2},
	}
	k := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := k.Polygon(tt.points)
			if err != nil {
				t.Fatalf("Polygon() error = %v", err)
			}
			got := f.(*face).area
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("area = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestPolygonTooFewVertices(t *testing.T) {
	k := New()
	if _, err := k.Polygon([][2]float64{{0, 0}, {1, 0}}); err == nil {
		t.Fatal("expected error for 2-vertex polygon")
	}
}

func TestCircleArea(t *testing.T) {
	k := New()
	f, err := k.Circle(3, -2, 2)
	if err != nil {
		t.Fatalf("Circle() error = %v", err)
	}
	got := f.(*face).area
	if math.Abs(got-4*math.Pi) > 1e-12 {
		t.Errorf("area = %g, want %g", got, 4*math.Pi)
	}
	min, max := f.BoundingBox()
	if min != [2]float64{1, -4} || max != [2]float64{5, 0} {
		t.Errorf("bbox = %v %v, want [1 -4] [5 0]", min, max)
	}
}

func TestExtrudeBox(t *testing.T) {
	k := New()
	f, err := k.Polygon([][2]float64{{0, 0}, {2, 0}, {2, 3}, {0, 3}})
	if err != nil {
		t.Fatalf("Polygon() error = %v", err)
	}
	s, err := k.Extrude(f, 4)
	if err != nil {
		t.Fatalf("Extrude() error = %v", err)
	}
	if got := SolidVolume(s); math.Abs(got-24) > 1e-12 {
		t.Errorf("volume = %g, want 24", got)
	}
	// 4 side faces plus 2 caps.
	if got := SolidFaces(s); got != 6 {
		t.Errorf("faces = %d, want 6", got)
	}
	if _, err := k.Extrude(f, 0); err == nil {
		t.Error("zero height extrude: expected error")
	}
}

func TestSubtractHole(t *testing.T) {
	k := New()
	outer, _ := k.Polygon([][2]float64{{0, 0}, {4, 0}, {4, 4}, {0, 4}})
	hole, _ := k.Circle(2, 2, 1)
	f := k.Subtract(outer, hole)
	want := 16 - math.Pi
	if got := f.(*face).area; math.Abs(got-want) > 1e-12 {
		t.Errorf("area = %g, want %g", got, want)
	}
	if got := f.(*face).edges; got != 5 {
		t.Errorf("edges = %d, want 5", got)
	}
}

func unitCube(t *testing.T, k *Kernel) *solid {
	t.Helper()
	f, err := k.Polygon([][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	if err != nil {
		t.Fatalf("Polygon() error = %v", err)
	}
	s, err := k.Extrude(f, 1)
	if err != nil {
		t.Fatalf("Extrude() error = %v", err)
	}
	return s.(*solid)
}

func TestBooleanVolumes(t *testing.T) {
	k := New()
	a := unitCube(t, k)
	b := k.Translate(unitCube(t, k), 0.5, 0, 0)

	t.Run("union", func(t *testing.T) {
		got := SolidVolume(k.Union(a, b))
		if math.Abs(got-1.5) > 1e-12 {
			t.Errorf("union volume = %g, want 1.5", got)
		}
	})
	t.Run("difference shrinks", func(t *testing.T) {
		got := SolidVolume(k.Difference(a, b))
		if math.Abs(got-0.5) > 1e-12 {
			t.Errorf("difference volume = %g, want 0.5", got)
		}
	})
	t.Run("intersection", func(t *testing.T) {
		got := SolidVolume(k.Intersection(a, b))
		if math.Abs(got-0.5) > 1e-12 {
			t.Errorf("intersection volume = %g, want 0.5", got)
		}
	})
	t.Run("disjoint intersection is empty", func(t *testing.T) {
		c := k.Translate(unitCube(t, k), 5, 5, 5)
		if got := SolidVolume(k.Intersection(a, c)); got != 0 {
			t.Errorf("disjoint intersection volume = %g, want 0", got)
		}
	})
}

func TestRotatePreservesVolume(t *testing.T) {
	k := New()
	s := unitCube(t, k)
	r := k.Rotate(s, 30, 45, 60)
	if got := SolidVolume(r); math.Abs(got-1) > 1e-12 {
		t.Errorf("rotated volume = %g, want 1", got)
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	k := New()
	s := k.Translate(unitCube(t, k), 1, 0, 0) // spans x [1,2]
	r := k.Rotate(s, 0, 0, 90)
	min, max := r.BoundingBox()
	// A 90 degree Z turn maps x [1,2] onto y [1,2].
	if math.Abs(min[1]-1) > 1e-9 || math.Abs(max[1]-2) > 1e-9 {
		t.Errorf("rotated y span = [%g, %g], want [1, 2]", min[1], max[1])
	}
}

func TestToMeshMatchesBounds(t *testing.T) {
	k := New()
	s := unitCube(t, k)
	m, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", m.TriangleCount())
	}
	if got := m.Volume(); math.Abs(got-1) > 1e-6 {
		t.Errorf("mesh volume = %g, want 1", got)
	}
}

func TestOpsLog(t *testing.T) {
	k := New()
	f, _ := k.Polygon([][2]float64{{0, 0}, {1, 0}, {1, 1}})
	s, _ := k.Extrude(f, 2)
	k.Union(s, s)
	ops := k.Ops()
	want := []string{"polygon(3)", "extrude(2)", "union"}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %q, want %q", i, ops[i], want[i])
		}
	}
}
