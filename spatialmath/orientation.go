package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Above this |dot| two unit quaternions are treated as parallel and slerp falls back to a
// normalized lerp, where acos loses precision.
const slerpParallelThreshold = 1 - 1e-7

// QuatFromXYZW converts an (x,y,z,w) array into a quaternion.
func QuatFromXYZW(xyzw [4]float64) quat.Number {
	return quat.Number{Real: xyzw[3], Imag: xyzw[0], Jmag: xyzw[1], Kmag: xyzw[2]}
}

// QuatToXYZW converts a quaternion into an (x,y,z,w) array.
func QuatToXYZW(q quat.Number) [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// QuatNorm returns the euclidean norm of all four components of q.
func QuatNorm(q quat.Number) float64 {
	return quat.Abs(q)
}

// Normalize scales q to unit length. A zero quaternion is returned unchanged.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return q
	}
	return quat.Scale(1/n, q)
}

// Flip will multiply a quaternion by -1, returning a quaternion representing the same orientation but in the opposing octant.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// QuatDot returns the 4d dot product of two quaternions.
func QuatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// QuaternionAlmostEqual is an equality test for two quaternions. q and -q encode the same
// rotation, so both signs are accepted.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := func(a, b quat.Number) bool {
		return math.Abs(a.Real-b.Real) <= tol &&
			math.Abs(a.Imag-b.Imag) <= tol &&
			math.Abs(a.Jmag-b.Jmag) <= tol &&
			math.Abs(a.Kmag-b.Kmag) <= tol
	}
	return same(a, b) || same(a, Flip(b))
}

// QuatAngle returns the angle in radians of the rotation taking unit quaternion a onto b.
func QuatAngle(a, b quat.Number) float64 {
	d := math.Abs(QuatDot(a, b))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// RotatePoint applies the rotation of unit quaternion q to the point p.
func RotatePoint(q quat.Number, p r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Slerp spherically interpolates between two unit quaternions along the shorter arc. by = 0
// returns a, by = 1 returns b (or -b).
func Slerp(a, b quat.Number, by float64) quat.Number {
	d := QuatDot(a, b)
	if d < 0 {
		b = Flip(b)
		d = -d
	}
	if d > slerpParallelThreshold {
		return Normalize(quat.Add(quat.Scale(1-by, a), quat.Scale(by, b)))
	}

	theta := math.Acos(d)
	sinTheta := math.Sin(theta)
	s0 := math.Sin((1-by)*theta) / sinTheta
	s1 := math.Sin(by*theta) / sinTheta
	return quat.Add(quat.Scale(s0, a), quat.Scale(s1, b))
}
