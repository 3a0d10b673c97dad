package referenceframe

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/tfbuffer/spatialmath"
)

var q90z = quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}

func record(stamp int64, x float64) TransformStamped {
	return TransformStamped{
		Parent:      "parent",
		Child:       "child",
		Stamp:       stamp,
		Translation: r3.Vector{X: x, Y: 2 * x, Z: 3 * x},
		Rotation:    quat.Number{Real: 1},
	}
}

func TestTimeCacheEmpty(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Second)
	_, err := tc.getData(5)
	var notFound *FrameNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, notFound.Frame, test.ShouldEqual, "child")

	_, ok := tc.latestStamp()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestTimeCacheRepeatability(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	for i := int64(1); i < 100; i++ {
		tc.insert(record(i*1000, float64(i)), "test", false)
	}
	for i := int64(1); i < 100; i++ {
		out, err := tc.getData(i * 1000)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Stamp, test.ShouldEqual, i*1000)
		test.That(t, out.Translation.X, test.ShouldEqual, float64(i))
	}
}

func TestTimeCacheReverseOrder(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	for i := int64(99); i > 0; i-- {
		tc.insert(record(i*1000, float64(i)), "test", false)
	}
	test.That(t, tc.info().Length, test.ShouldEqual, 99)
	for i := int64(1); i < 100; i++ {
		out, err := tc.getData(i * 1000)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Translation.X, test.ShouldEqual, float64(i))
	}
	for i := 1; i < len(tc.dynamic); i++ {
		test.That(t, tc.dynamic[i-1].Stamp, test.ShouldBeLessThan, tc.dynamic[i].Stamp)
	}
}

func TestTimeCacheRepeatedStampReplaces(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 1), "test", false)
	res := tc.insert(record(10, 7), "test", false)
	test.That(t, res.replaced, test.ShouldBeTrue)
	test.That(t, tc.info().Length, test.ShouldEqual, 1)

	out, err := tc.getData(10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Translation.X, test.ShouldEqual, 7.)
}

func TestTimeCacheEviction(t *testing.T) {
	tc := newTimeCache("parent", "child", false, 10*time.Nanosecond)
	evicted := 0
	for i := int64(1); i <= 30; i++ {
		evicted += tc.insert(record(i, float64(i)), "test", false).evicted
	}
	info := tc.info()
	test.That(t, info.Oldest, test.ShouldEqual, 20)
	test.That(t, info.Latest, test.ShouldEqual, 30)
	test.That(t, info.Length, test.ShouldEqual, 11)
	test.That(t, evicted, test.ShouldEqual, 19)

	_, err := tc.getData(1)
	var extrapolation *ExtrapolationError
	test.That(t, errors.As(err, &extrapolation), test.ShouldBeTrue)
	test.That(t, extrapolation.Direction, test.ShouldEqual, PastExtrapolation)

	_, err = tc.getData(30)
	test.That(t, err, test.ShouldBeNil)
}

func TestTimeCacheNewestSurvives(t *testing.T) {
	tc := newTimeCache("parent", "child", false, 10*time.Nanosecond)
	tc.insert(record(100, 1), "test", false)
	res := tc.insert(record(5, 2), "test", false)
	test.That(t, res.droppedNew, test.ShouldBeTrue)
	test.That(t, res.evicted, test.ShouldEqual, 1)

	info := tc.info()
	test.That(t, info.Length, test.ShouldEqual, 1)
	test.That(t, info.Latest, test.ShouldEqual, 100)
}

func TestTimeCacheExtrapolation(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 1), "test", false)

	_, err := tc.getData(10)
	test.That(t, err, test.ShouldBeNil)

	var extrapolation *ExtrapolationError
	_, err = tc.getData(11)
	test.That(t, errors.As(err, &extrapolation), test.ShouldBeTrue)
	test.That(t, extrapolation.Direction, test.ShouldEqual, SingleExtrapolation)
	test.That(t, extrapolation.Latest, test.ShouldEqual, 10)

	tc.insert(record(20, 2), "test", false)
	_, err = tc.getData(9)
	test.That(t, errors.As(err, &extrapolation), test.ShouldBeTrue)
	test.That(t, extrapolation.Direction, test.ShouldEqual, PastExtrapolation)
	test.That(t, extrapolation.Earliest, test.ShouldEqual, 10)

	_, err = tc.getData(21)
	test.That(t, errors.As(err, &extrapolation), test.ShouldBeTrue)
	test.That(t, extrapolation.Direction, test.ShouldEqual, FutureExtrapolation)
	test.That(t, err.Error(), test.ShouldContainSubstring, "future")
}

func TestTimeCacheLatestForZeroStamp(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 1), "test", false)
	tc.insert(record(30, 3), "test", false)
	out, err := tc.getData(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Stamp, test.ShouldEqual, 30)
	test.That(t, out.Translation.X, test.ShouldEqual, 3.)
}

func TestTimeCacheCartesianInterpolation(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 0), "test", false)
	tc.insert(record(20, 10), "test", false)

	for stamp := int64(10); stamp <= 20; stamp++ {
		out, err := tc.getData(stamp)
		test.That(t, err, test.ShouldBeNil)
		x := float64(stamp - 10)
		test.That(t, out.Stamp, test.ShouldEqual, stamp)
		test.That(t, out.Translation.X, test.ShouldAlmostEqual, x)
		test.That(t, out.Translation.Y, test.ShouldAlmostEqual, 2*x)
		test.That(t, out.Translation.Z, test.ShouldAlmostEqual, 3*x)
	}
}

func TestTimeCacheAngularInterpolation(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	start := record(0, 0)
	end := record(1000, 0)
	end.Rotation = q90z
	tc.insert(start, "test", false)
	tc.insert(end, "test", false)

	total := spatialmath.QuatAngle(start.Rotation, end.Rotation)
	for _, stamp := range []int64{100, 250, 500, 900} {
		out, err := tc.getData(stamp)
		test.That(t, err, test.ShouldBeNil)
		fromStart := spatialmath.QuatAngle(start.Rotation, out.Rotation)
		toEnd := spatialmath.QuatAngle(out.Rotation, end.Rotation)
		test.That(t, fromStart+toEnd, test.ShouldAlmostEqual, total)
		test.That(t, fromStart, test.ShouldAlmostEqual, total*float64(stamp)/1000)
	}
}

func TestTimeCacheStatic(t *testing.T) {
	tc := newTimeCache("parent", "child", true, time.Second)
	tc.insert(record(5, 4), "static", true)

	a, err := tc.getData(1)
	test.That(t, err, test.ShouldBeNil)
	b, err := tc.getData(int64(time.Hour))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Stamp, test.ShouldEqual, 1)
	test.That(t, b.Stamp, test.ShouldEqual, int64(time.Hour))
	a.Stamp, b.Stamp = 0, 0
	test.That(t, a, test.ShouldResemble, b)

	_, ok := tc.latestStamp()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, tc.info().Static, test.ShouldBeTrue)
	test.That(t, tc.info().Authority, test.ShouldEqual, "static")
}

func TestTimeCacheModeSwitch(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 1), "test", false)
	tc.insert(record(20, 2), "test", false)

	res := tc.insert(record(30, 3), "test", true)
	test.That(t, res.modeSwitched, test.ShouldBeTrue)
	test.That(t, tc.dynamic, test.ShouldBeEmpty)
	out, err := tc.getData(15)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Translation.X, test.ShouldEqual, 3.)

	res = tc.insert(record(40, 4), "test", false)
	test.That(t, res.modeSwitched, test.ShouldBeTrue)
	test.That(t, tc.info().Length, test.ShouldEqual, 1)
	_, err = tc.getData(15)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTimeCacheReparent(t *testing.T) {
	tc := newTimeCache("parent", "child", false, time.Hour)
	tc.insert(record(10, 1), "test", false)
	tc.reparent("other", false)
	test.That(t, tc.parent, test.ShouldEqual, "other")
	test.That(t, tc.info().Length, test.ShouldEqual, 0)
}
