package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Interpolate will return a new Pose that has been interpolated the set amount between two poses.
// Translation is interpolated linearly and orientation is slerped.
// Note that position and orientation are interpolated separately, so the result is not a screw motion.
func Interpolate(p1, p2 Pose, by float64) Pose {
	pt1, pt2 := p1.Point(), p2.Point()
	point := r3.Vector{
		X: (1-by)*pt1.X + by*pt2.X,
		Y: (1-by)*pt1.Y + by*pt2.Y,
		Z: (1-by)*pt1.Z + by*pt2.Z,
	}
	return NewPose(point, Slerp(p1.Orientation(), p2.Orientation(), by))
}
