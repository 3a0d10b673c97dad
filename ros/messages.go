package ros

// Stamp is a ROS time.
type Stamp struct {
	Secs  int64
	Nsecs int64
}

// Nanoseconds returns the stamp as nanoseconds since the epoch.
func (s Stamp) Nanoseconds() int64 {
	return s.Secs*1_000_000_000 + s.Nsecs
}

// TransformStampedMessage is a geometry_msgs/TransformStamped.
type TransformStampedMessage struct {
	Header struct {
		Seq     int
		Stamp   Stamp
		FrameID string `json:"frame_id"`
	}
	ChildFrameID string `json:"child_frame_id"`
	Transform    struct {
		Translation struct {
			X float64
			Y float64
			Z float64
		}
		Rotation struct {
			X float64
			Y float64
			Z float64
			W float64
		}
	}
}

// TFMessage is a tf2_msgs/TFMessage as dumped to JSON by gobag.
type TFMessage struct {
	Meta Stamp
	Data struct {
		Transforms []TransformStampedMessage
	}
}
