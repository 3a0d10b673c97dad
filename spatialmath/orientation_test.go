package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// represent a 45 degree rotation around the x axis
var (
	th   = math.Pi / 4.
	q45x = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.), Jmag: 0, Kmag: 0}
	q90z = quat.Number{Real: math.Cos(math.Pi / 4), Imag: 0, Jmag: 0, Kmag: math.Sin(math.Pi / 4)}
)

func TestXYZWConversion(t *testing.T) {
	q := QuatFromXYZW([4]float64{0.1, 0.2, 0.3, 0.9})
	test.That(t, q, test.ShouldResemble, quat.Number{Real: 0.9, Imag: 0.1, Jmag: 0.2, Kmag: 0.3})
	test.That(t, QuatToXYZW(q), test.ShouldResemble, [4]float64{0.1, 0.2, 0.3, 0.9})
}

func TestNormalize(t *testing.T) {
	q := Normalize(quat.Number{Real: 2, Imag: 0, Jmag: 0, Kmag: 0})
	test.That(t, q, test.ShouldResemble, quat.Number{Real: 1, Imag: 0, Jmag: 0, Kmag: 0})

	q = Normalize(quat.Number{Real: 1, Imag: 1, Jmag: 1, Kmag: 1})
	test.That(t, QuatNorm(q), test.ShouldAlmostEqual, 1.)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, 0.5)

	test.That(t, Normalize(quat.Number{}), test.ShouldResemble, quat.Number{})
}

func TestQuaternionAlmostEqual(t *testing.T) {
	test.That(t, QuaternionAlmostEqual(q45x, q45x, 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(q45x, Flip(q45x), 1e-9), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(q45x, q90z, 1e-3), test.ShouldBeFalse)
}

func TestQuatAngle(t *testing.T) {
	test.That(t, QuatAngle(quat.Number{Real: 1}, q45x), test.ShouldAlmostEqual, th)
	test.That(t, QuatAngle(quat.Number{Real: 1}, Flip(q45x)), test.ShouldAlmostEqual, th)
	test.That(t, QuatAngle(q90z, q90z), test.ShouldAlmostEqual, 0.)
}

func TestRotatePoint(t *testing.T) {
	p := RotatePoint(q90z, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, p.X, test.ShouldAlmostEqual, 0.)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1.)
	test.That(t, p.Z, test.ShouldAlmostEqual, 0.)
}

func TestSlerpEndpoints(t *testing.T) {
	test.That(t, QuaternionAlmostEqual(Slerp(q45x, q90z, 0), q45x, 1e-12), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(Slerp(q45x, q90z, 1), q90z, 1e-12), test.ShouldBeTrue)
}

func TestSlerpHalfway(t *testing.T) {
	half := Slerp(quat.Number{Real: 1}, q90z, 0.5)
	expected := quat.Number{Real: math.Cos(math.Pi / 8), Imag: 0, Jmag: 0, Kmag: math.Sin(math.Pi / 8)}
	test.That(t, QuaternionAlmostEqual(half, expected, 1e-12), test.ShouldBeTrue)
}

func TestSlerpShortestArc(t *testing.T) {
	// -q90z is the same rotation, so the path must not swing through the long way round.
	for _, by := range []float64{0.1, 0.25, 0.5, 0.9} {
		viaFlip := Slerp(quat.Number{Real: 1}, Flip(q90z), by)
		direct := Slerp(quat.Number{Real: 1}, q90z, by)
		test.That(t, QuaternionAlmostEqual(viaFlip, direct, 1e-12), test.ShouldBeTrue)
		test.That(t, QuatAngle(quat.Number{Real: 1}, viaFlip), test.ShouldAlmostEqual, by*math.Pi/2)
	}
}

func TestSlerpNearParallel(t *testing.T) {
	tiny := 1e-9
	b := Normalize(quat.Number{Real: 1, Imag: tiny, Jmag: 0, Kmag: 0})
	mid := Slerp(quat.Number{Real: 1}, b, 0.5)
	test.That(t, QuatNorm(mid), test.ShouldAlmostEqual, 1.)
	test.That(t, mid.Imag, test.ShouldAlmostEqual, tiny/2, 1e-15)
	for _, v := range []float64{mid.Real, mid.Imag, mid.Jmag, mid.Kmag} {
		test.That(t, math.IsNaN(v), test.ShouldBeFalse)
	}
}

func TestSlerpSmallAngleStaysSpherical(t *testing.T) {
	// |dot| is about 0.99969 here, still on the spherical branch
	angle := 0.05
	b := quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}
	test.That(t, QuatDot(quat.Number{Real: 1}, b), test.ShouldBeLessThan, slerpParallelThreshold)
	for _, by := range []float64{0.1, 0.25, 0.8} {
		mid := Slerp(quat.Number{Real: 1}, b, by)
		test.That(t, QuatAngle(quat.Number{Real: 1}, mid), test.ShouldAlmostEqual, by*angle, 1e-12)
	}
}

func TestSlerpAngularDistance(t *testing.T) {
	a := Normalize(quat.Number{Real: 0.3, Imag: -0.2, Jmag: 0.7, Kmag: 0.1})
	b := Normalize(quat.Number{Real: -0.5, Imag: 0.4, Jmag: 0.1, Kmag: 0.6})
	total := QuatAngle(a, b)
	for _, by := range []float64{0.01, 0.3, 0.5, 0.77, 0.99} {
		mid := Slerp(a, b, by)
		test.That(t, QuatAngle(a, mid)+QuatAngle(mid, b), test.ShouldAlmostEqual, total, 1e-9)
		test.That(t, QuatAngle(a, mid), test.ShouldAlmostEqual, by*total, 1e-9)
	}
}
