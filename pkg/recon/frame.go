package recon

import (
	"math"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
)

// framePlacement converts a sketch frame into the translation and Euler
// rotation the kernel placement operations understand. The rotation is
// returned as degrees around X, Y, Z, applied in that order, which
// composes to Rz*Ry*Rx and therefore matches the ZYX decomposition below.
func framePlacement(f design.Frame) (origin design.Vec3, rxDeg, ryDeg, rzDeg float64, err error) {
	x, y, z, ok := orthonormalize(f.XAxis, f.YAxis, f.ZAxis)
	if !ok {
		return design.Vec3{}, 0, 0, 0,
			reconErr("place", "", "sketch frame axes are degenerate")
	}

	// Rotation matrix with the frame axes as columns.
	// r[i][j] is row i, column j.
	r := [3][3]float64{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	}

	rx, ry, rz := eulerZYX(r)
	const deg = 180 / math.Pi
	return f.Origin, rx * deg, ry * deg, rz * deg, nil
}

// eulerZYX decomposes a rotation matrix R = Rz(c)*Ry(b)*Rx(a) into the
// angles (a, b, c) in radians. Near the gimbal singularity (|R20| = 1)
// the X angle is folded into Z.
func eulerZYX(r [3][3]float64) (a, b, c float64) {
	s := -r[2][0]
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	b = math.Asin(s)

	if math.Abs(s) > 1-1e-9 {
		// cos(b) ~ 0: a and c are coupled, pick a = 0.
		a = 0
		c = math.Atan2(-r[0][1], r[1][1])
		return a, b, c
	}

	a = math.Atan2(r[2][1], r[2][2])
	c = math.Atan2(r[1][0], r[0][0])
	return a, b, c
}

// orthonormalize runs Gram-Schmidt over the frame axes and rebuilds Z as
// X cross Y so the result is always a proper right-handed rotation.
func orthonormalize(x, y, z design.Vec3) (ox, oy, oz design.Vec3, ok bool) {
	ox, ok = unit(x)
	if !ok {
		return design.Vec3{}, design.Vec3{}, design.Vec3{}, false
	}
	y = sub(y, scale(ox, dot(y, ox)))
	oy, ok = unit(y)
	if !ok {
		return design.Vec3{}, design.Vec3{}, design.Vec3{}, false
	}
	oz = cross(ox, oy)
	// Preserve handedness hints from the declared Z axis when present.
	if dot(oz, z) < 0 && length(z) > 1e-9 {
		oz = scale(oz, -1)
		oy = scale(oy, -1)
	}
	return ox, oy, oz, true
}

func dot(a, b design.Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func length(a design.Vec3) float64 { return math.Sqrt(dot(a, a)) }

func sub(a, b design.Vec3) design.Vec3 {
	return design.Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func scale(a design.Vec3, s float64) design.Vec3 {
	return design.Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

func cross(a, b design.Vec3) design.Vec3 {
	return design.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func unit(a design.Vec3) (design.Vec3, bool) {
	l := length(a)
	if l < 1e-9 {
		return design.Vec3{}, false
	}
	return scale(a, 1/l), true
}
