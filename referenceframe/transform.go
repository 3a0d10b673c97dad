package referenceframe

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/tfbuffer/spatialmath"
)

// TransformStamped is the pose of Child expressed in Parent at a single instant.
// Stamp is in nanoseconds since the unix epoch.
type TransformStamped struct {
	Parent      string
	Child       string
	Stamp       int64
	Translation r3.Vector
	Rotation    quat.Number
}

// NewTransformStamped builds a TransformStamped from a translation triple and an (x,y,z,w) rotation.
func NewTransformStamped(parent, child string, stamp int64, translation [3]float64, rotation [4]float64) TransformStamped {
	return TransformStamped{
		Parent:      parent,
		Child:       child,
		Stamp:       stamp,
		Translation: r3.Vector{X: translation[0], Y: translation[1], Z: translation[2]},
		Rotation:    spatialmath.QuatFromXYZW(rotation),
	}
}

func newTransformFromPose(parent, child string, stamp int64, pose spatialmath.Pose) TransformStamped {
	return TransformStamped{
		Parent:      parent,
		Child:       child,
		Stamp:       stamp,
		Translation: pose.Point(),
		Rotation:    pose.Orientation(),
	}
}

func identityTransform(frame string, stamp int64) TransformStamped {
	return TransformStamped{Parent: frame, Child: frame, Stamp: stamp, Rotation: quat.Number{Real: 1}}
}

// Pose returns the transform as a spatialmath pose. The rotation must already be a unit quaternion.
func (tf TransformStamped) Pose() spatialmath.Pose {
	return spatialmath.NewPose(tf.Translation, tf.Rotation)
}

// TranslationXYZ returns the translation as an (x,y,z) array.
func (tf TransformStamped) TranslationXYZ() [3]float64 {
	return [3]float64{tf.Translation.X, tf.Translation.Y, tf.Translation.Z}
}

// RotationXYZW returns the rotation as an (x,y,z,w) array.
func (tf TransformStamped) RotationXYZW() [4]float64 {
	return spatialmath.QuatToXYZW(tf.Rotation)
}

func (tf TransformStamped) String() string {
	return fmt.Sprintf("%s->%s@%d t=%v q=%v", tf.Parent, tf.Child, tf.Stamp, tf.TranslationXYZ(), tf.RotationXYZW())
}

// interpolate blends two records of the same edge at stamp, where a.Stamp <= stamp <= b.Stamp.
func interpolate(a, b TransformStamped, stamp int64) TransformStamped {
	if a.Stamp == b.Stamp {
		return a
	}
	by := float64(stamp-a.Stamp) / float64(b.Stamp-a.Stamp)
	pose := spatialmath.Interpolate(a.Pose(), b.Pose(), by)
	return newTransformFromPose(a.Parent, a.Child, stamp, pose)
}
