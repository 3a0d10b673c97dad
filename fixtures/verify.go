package fixtures

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"go.viam.com/tfbuffer/logging"
	"go.viam.com/tfbuffer/referenceframe"
)

// DefaultTolerance is the absolute tolerance applied to every translation and rotation component.
const DefaultTolerance = 1e-9

// VerifyConfig controls Verify.
type VerifyConfig struct {
	CacheDuration time.Duration
	Tolerance     float64
	// Parallelism bounds concurrent lookups. Zero means one per CPU.
	Parallelism int
}

// DefaultVerifyConfig keeps all history and uses DefaultTolerance.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{CacheDuration: ReplayCacheDuration, Tolerance: DefaultTolerance}
}

// VerifyResult counts what Verify checked.
type VerifyResult struct {
	Lookups       int
	FullLookups   int
	Mismatches    int
	FailedLookups int
	Transforms    int
}

// Verify loads set.Transforms into a fresh buffer and checks every query against its recorded
// answer. All mismatches are reported together.
func Verify(ctx context.Context, set *Set, cfg VerifyConfig, logger logging.Logger) (VerifyResult, error) {
	var result VerifyResult
	if err := set.validate(); err != nil {
		return result, err
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}

	buffer := referenceframe.NewBuffer(cfg.CacheDuration, logger.Sublogger("buffer"))
	if err := set.Load(buffer, ""); err != nil {
		return result, err
	}
	result.Transforms = len(set.Transforms)

	lookupErrs := make([]error, len(set.Inputs))
	fullErrs := make([]error, len(set.FullInputs))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Parallelism)
	for i, in := range set.Inputs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			got, err := buffer.LookupTransform(in.FrameID, in.ChildFrameID, in.Time)
			if err != nil {
				lookupErrs[i] = errors.Wrapf(err, "lookup %d (%s <- %s @ %d)", i, in.FrameID, in.ChildFrameID, in.Time)
				return nil
			}
			if err := compare(OutputFromTransform(got), set.Outputs[i], cfg.Tolerance); err != nil {
				lookupErrs[i] = errors.Wrapf(err, "lookup %d (%s <- %s @ %d)", i, in.FrameID, in.ChildFrameID, in.Time)
			}
			return nil
		})
	}
	for i, in := range set.FullInputs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			got, err := buffer.LookupTransformFull(in.TargetFrame, in.TargetTime, in.SourceFrame, in.SourceTime, in.FixedFrame)
			if err != nil {
				fullErrs[i] = errors.Wrapf(err, "full lookup %d", i)
				return nil
			}
			if err := compare(OutputFromTransform(got), set.FullOutputs[i], cfg.Tolerance); err != nil {
				fullErrs[i] = errors.Wrapf(err, "full lookup %d", i)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return result, err
	}

	result.Lookups = len(set.Inputs)
	result.FullLookups = len(set.FullInputs)
	all := append(lookupErrs, fullErrs...)
	for _, err := range all {
		if err == nil {
			continue
		}
		var mismatch *MismatchError
		if errors.As(err, &mismatch) {
			result.Mismatches++
		} else {
			result.FailedLookups++
		}
	}
	return result, multierr.Combine(all...)
}

// MismatchError describes a lookup whose answer differs from the recorded one.
type MismatchError struct {
	Field string
	Got   interface{}
	Want  interface{}
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatched %s: got %v, want %v", e.Field, e.Got, e.Want)
}

func compare(got, want LookupOutput, tolerance float64) error {
	switch {
	case got.FrameID != want.FrameID:
		return &MismatchError{Field: "frame_id", Got: got.FrameID, Want: want.FrameID}
	case got.ChildFrameID != want.ChildFrameID:
		return &MismatchError{Field: "child_frame_id", Got: got.ChildFrameID, Want: want.ChildFrameID}
	case got.Timestamp != want.Timestamp:
		return &MismatchError{Field: "timestamp", Got: got.Timestamp, Want: want.Timestamp}
	}
	if !equalWithinAbs(got.Translation[:], want.Translation[:], tolerance) {
		return &MismatchError{Field: "translation", Got: got.Translation, Want: want.Translation}
	}
	if !sameRotation(got.Rotation, want.Rotation, tolerance) {
		return &MismatchError{Field: "rotation", Got: got.Rotation, Want: want.Rotation}
	}
	return nil
}

func equalWithinAbs(a, b []float64, tolerance float64) bool {
	for i := range a {
		if !scalar.EqualWithinAbs(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}

// sameRotation treats q and -q as the same rotation.
func sameRotation(a, b [4]float64, tolerance float64) bool {
	if equalWithinAbs(a[:], b[:], tolerance) {
		return true
	}
	negated := b
	floats.Scale(-1, negated[:])
	return equalWithinAbs(a[:], negated[:], tolerance)
}
