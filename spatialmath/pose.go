package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
// The Point() method returns the position in (x,y,z) and Orientation() returns the rotation
// as a unit quaternion.
type Pose interface {
	Point() r3.Vector
	Orientation() quat.Number
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o quat.Number) Pose {
	q := newDualQuaternion()
	q.Real = o
	q.SetTranslation(p)
	return q
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(point r3.Vector) Pose {
	return NewPose(point, quat.Number{Real: 1})
}

// NewPoseFromXYZW builds a pose from a translation triple and an (x,y,z,w) quaternion.
func NewPoseFromXYZW(translation [3]float64, rotation [4]float64) Pose {
	return NewPose(r3.Vector{X: translation[0], Y: translation[1], Z: translation[2]}, QuatFromXYZW(rotation))
}

// Compose takes in two poses and returns a pose that is the result of the first pose being
// applied on top of the second, i.e. a∘b.
func Compose(a, b Pose) Pose {
	aq := newDualQuaternionFromPose(a)
	bq := newDualQuaternionFromPose(b)
	return &dualQuaternion{aq.Transformation(bq.Number)}
}

// PoseInverse will return the inverse of a pose. So if a given pose p is the pose of A relative to B, PoseInverse(p) will give
// the pose of B relative to A.
func PoseInverse(p Pose) Pose {
	q := newDualQuaternionFromPose(p)
	return &dualQuaternion{dualquat.ConjQuat(q.Number)}
}

// PoseBetween returns the difference between two poses, i.e. the pose of b expressed in a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same,
// with translation components and rotation components each within epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return PoseAlmostCoincidentEps(a, b, epsilon) && QuaternionAlmostEqual(a.Orientation(), b.Orientation(), epsilon)
}

// PoseAlmostCoincidentEps will return a bool describing whether 2 poses approximately are at the same 3D coordinate location.
func PoseAlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	ap, bp := a.Point(), b.Point()
	return math.Abs(ap.X-bp.X) <= epsilon && math.Abs(ap.Y-bp.Y) <= epsilon && math.Abs(ap.Z-bp.Z) <= epsilon
}

// PoseToMatrix returns the homogeneous 4x4 matrix of the pose.
func PoseToMatrix(p Pose) mgl64.Mat4 {
	o := p.Orientation()
	pt := p.Point()
	rot := mgl64.Quat{W: o.Real, V: mgl64.Vec3{o.Imag, o.Jmag, o.Kmag}}
	return mgl64.Translate3D(pt.X, pt.Y, pt.Z).Mul4(rot.Mat4())
}

// PoseTranslation returns the translation of a pose as an (x,y,z) triple.
func PoseTranslation(p Pose) [3]float64 {
	pt := p.Point()
	return [3]float64{pt.X, pt.Y, pt.Z}
}
