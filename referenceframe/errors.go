package referenceframe

import (
	"fmt"
)

// FrameNotFoundError is returned when a frame name never appeared in any inserted transform.
type FrameNotFoundError struct {
	Frame string
}

// NewFrameNotFoundError returns an error indicating that the given frame is unknown to the buffer.
func NewFrameNotFoundError(frame string) error {
	return &FrameNotFoundError{Frame: frame}
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("frame %q does not exist in the buffer", e.Frame)
}

// ConnectivityError is returned when two frames exist but share no common ancestor.
type ConnectivityError struct {
	Target string
	Source string
	cause  error
}

// NewConnectivityError returns an error indicating there is no path between target and source.
func NewConnectivityError(target, source string) error {
	return &ConnectivityError{Target: target, Source: source}
}

func (e *ConnectivityError) Error() string {
	msg := fmt.Sprintf("could not find a connection between %q and %q because they are not part of the same tree", e.Target, e.Source)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ConnectivityError) Unwrap() error {
	return e.cause
}

// ExtrapolationDirection says on which side of the stored window a lookup fell.
type ExtrapolationDirection int

const (
	// PastExtrapolation means the requested time is older than the oldest stored record.
	PastExtrapolation ExtrapolationDirection = iota
	// FutureExtrapolation means the requested time is newer than the newest stored record.
	FutureExtrapolation
	// SingleExtrapolation means the edge holds one record and its stamp does not match.
	SingleExtrapolation
)

// ExtrapolationError is returned when a lookup falls outside a dynamic edge's retained window.
type ExtrapolationError struct {
	Parent    string
	Child     string
	Direction ExtrapolationDirection
	Requested int64
	Earliest  int64
	Latest    int64
}

func (e *ExtrapolationError) Error() string {
	switch e.Direction {
	case PastExtrapolation:
		return fmt.Sprintf(
			"lookup would require extrapolation into the past: requested time %d but the earliest data is at time %d, "+
				"when looking up transform from frame %q to frame %q",
			e.Requested, e.Earliest, e.Child, e.Parent)
	case FutureExtrapolation:
		return fmt.Sprintf(
			"lookup would require extrapolation into the future: requested time %d but the latest data is at time %d, "+
				"when looking up transform from frame %q to frame %q",
			e.Requested, e.Latest, e.Child, e.Parent)
	default:
		return fmt.Sprintf(
			"lookup would require extrapolation at time %d, but only time %d is in the buffer, "+
				"when looking up transform from frame %q to frame %q",
			e.Requested, e.Latest, e.Child, e.Parent)
	}
}

// ValidationError is returned when an inserted transform is malformed.
type ValidationError struct {
	Authority string
	Reason    string
}

// NewValidationError returns a ValidationError for a transform published by authority.
func NewValidationError(authority, format string, args ...interface{}) error {
	return &ValidationError{Authority: authority, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Authority == "" {
		return "invalid transform: " + e.Reason
	}
	return fmt.Sprintf("invalid transform from authority %q: %s", e.Authority, e.Reason)
}

// InvalidTimeError is returned for a timestamp outside the supported domain.
type InvalidTimeError struct {
	Stamp int64
}

// NewInvalidTimeError returns an InvalidTimeError for stamp.
func NewInvalidTimeError(stamp int64) error {
	return &InvalidTimeError{Stamp: stamp}
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid timestamp %d: timestamps are non-negative nanoseconds since the epoch", e.Stamp)
}

// LoopError is returned when walking from a frame to its root exceeds the maximum graph depth.
type LoopError struct {
	Frame string
	Depth int
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("walking up from frame %q exceeded the maximum depth of %d, the tree probably contains a loop", e.Frame, e.Depth)
}
