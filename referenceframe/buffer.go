package referenceframe

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gopkg.in/yaml.v3"

	"go.viam.com/tfbuffer/logging"
	"go.viam.com/tfbuffer/spatialmath"
)

// DefaultCacheDuration is how far behind the newest record a dynamic edge keeps history.
const DefaultCacheDuration = 10 * time.Second

// unitTolerance is how far from 1 a rotation norm may be before it counts as non-unit.
const unitTolerance = 1e-6

// BufferOption configures optional Buffer behavior.
type BufferOption func(*Buffer)

// WithRejectNonUnitRotations makes SetTransform reject rotations that are not unit quaternions
// instead of normalizing them.
func WithRejectNonUnitRotations() BufferOption {
	return func(b *Buffer) {
		b.rejectNonUnit = true
	}
}

// WithMaxGraphDepth bounds every walk from a frame to its root. Values <= 0 are ignored.
func WithMaxGraphDepth(depth int) BufferOption {
	return func(b *Buffer) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// Buffer stores a time-indexed tree of coordinate frames and answers "where is frame A relative to
// frame B at time T" by composing the transforms along the path between them.
type Buffer struct {
	mu    sync.RWMutex
	graph *frameGraph

	cacheDuration time.Duration
	rejectNonUnit bool
	maxDepth      int

	logger logging.Logger
	stats  bufferStats
}

type bufferStats struct {
	inserts       atomic.Int64
	rejected      atomic.Int64
	lookups       atomic.Int64
	failedLookups atomic.Int64
	evicted       atomic.Int64
}

// Stats is a snapshot of buffer counters.
type Stats struct {
	Inserts       int64
	Rejected      int64
	Lookups       int64
	FailedLookups int64
	Evicted       int64
}

// NewBuffer returns an empty buffer retaining cacheDuration of dynamic history per edge.
// A cacheDuration <= 0 selects DefaultCacheDuration.
func NewBuffer(cacheDuration time.Duration, logger logging.Logger, opts ...BufferOption) *Buffer {
	if cacheDuration <= 0 {
		cacheDuration = DefaultCacheDuration
	}
	if logger == nil {
		logger = logging.NewBlankLogger("tfbuffer")
	}
	b := &Buffer{
		cacheDuration: cacheDuration,
		maxDepth:      DefaultMaxGraphDepth,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.graph = newFrameGraph(b.maxDepth)
	return b
}

// CacheDuration returns the retention window of dynamic edges.
func (b *Buffer) CacheDuration() time.Duration {
	return b.cacheDuration
}

func stripFrameID(id string) string {
	return strings.TrimPrefix(id, "/")
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// validate returns tf with cleaned frame ids and a unit rotation, or why it cannot be stored.
func (b *Buffer) validate(tf TransformStamped, authority string) (TransformStamped, error) {
	tf.Parent = stripFrameID(tf.Parent)
	tf.Child = stripFrameID(tf.Child)
	switch {
	case tf.Child == "":
		return tf, NewValidationError(authority, "child frame id is empty (parent %q)", tf.Parent)
	case tf.Parent == "":
		return tf, NewValidationError(authority, "parent frame id is empty (child %q)", tf.Child)
	case tf.Parent == tf.Child:
		return tf, NewValidationError(authority, "frame %q cannot be its own parent", tf.Child)
	case tf.Stamp < 0:
		return tf, NewInvalidTimeError(tf.Stamp)
	}

	t, r := tf.Translation, tf.Rotation
	if !finite(t.X, t.Y, t.Z) {
		return tf, NewValidationError(authority, "translation of %s->%s is not finite: %v", tf.Parent, tf.Child, tf.TranslationXYZ())
	}
	if !finite(r.Real, r.Imag, r.Jmag, r.Kmag) {
		return tf, NewValidationError(authority, "rotation of %s->%s is not finite: %v", tf.Parent, tf.Child, tf.RotationXYZW())
	}
	norm := spatialmath.QuatNorm(r)
	if norm == 0 {
		return tf, NewValidationError(authority, "rotation of %s->%s has zero norm", tf.Parent, tf.Child)
	}
	if math.Abs(norm-1) > unitTolerance {
		if b.rejectNonUnit {
			return tf, NewValidationError(authority, "rotation of %s->%s is not a unit quaternion (norm %g)", tf.Parent, tf.Child, norm)
		}
		b.logger.Debugw("normalizing rotation", "parent", tf.Parent, "child", tf.Child, "norm", norm)
	}
	tf.Rotation = spatialmath.Normalize(r)
	return tf, nil
}

// SetTransform records tf as the pose of tf.Child in tf.Parent. Static transforms are valid at
// every time. Dynamic transforms join the edge history and are interpolated between.
func (b *Buffer) SetTransform(tf TransformStamped, authority string, isStatic bool) error {
	tf, err := b.validate(tf, authority)
	if err != nil {
		b.stats.rejected.Inc()
		return err
	}

	b.mu.RLock()
	if edge, ok := b.graph.edges[tf.Child]; ok && edge.parent == tf.Parent {
		res := edge.insert(tf, authority, isStatic)
		b.mu.RUnlock()
		b.recordInsert(tf, authority, res)
		return nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	edge, ok := b.graph.edges[tf.Child]
	if !ok || edge.parent != tf.Parent {
		if b.graph.isAncestor(tf.Child, tf.Parent) {
			b.stats.rejected.Inc()
			return NewValidationError(authority, "setting %q as the parent of %q would create a loop", tf.Parent, tf.Child)
		}
	}
	switch {
	case !ok:
		edge = newTimeCache(tf.Parent, tf.Child, isStatic, b.cacheDuration)
		b.graph.setEdge(tf.Parent, tf.Child, edge)
	case edge.parent != tf.Parent:
		b.logger.Warnw("frame changed parent, discarding its history",
			"child", tf.Child, "old_parent", edge.parent, "new_parent", tf.Parent, "authority", authority)
		edge.reparent(tf.Parent, isStatic)
		b.graph.setEdge(tf.Parent, tf.Child, edge)
	}
	res := edge.insert(tf, authority, isStatic)
	b.recordInsert(tf, authority, res)
	return nil
}

func (b *Buffer) recordInsert(tf TransformStamped, authority string, res insertResult) {
	b.stats.inserts.Inc()
	b.stats.evicted.Add(int64(res.evicted))
	if res.modeSwitched {
		b.logger.Debugw("edge switched between static and dynamic, discarding its history",
			"parent", tf.Parent, "child", tf.Child, "authority", authority)
	}
	if res.droppedNew {
		b.logger.Warnw("transform is older than the cache window and was discarded",
			"parent", tf.Parent, "child", tf.Child, "stamp", tf.Stamp, "authority", authority)
	}
	if res.evicted > 0 {
		b.logger.Debugw("evicted old transforms", "parent", tf.Parent, "child", tf.Child, "count", res.evicted)
	}
}

// LookupTransform returns the pose of source expressed in target at stamp. A stamp of 0 means the
// latest time at which every edge on the path has data, and the result carries that time.
func (b *Buffer) LookupTransform(target, source string, stamp int64) (TransformStamped, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countLookup(b.lookupLocked(stripFrameID(target), stripFrameID(source), stamp))
}

// LookupTransformFull returns the pose of source at sourceTime expressed in target at targetTime,
// going through fixed, a frame assumed not to move between the two times.
func (b *Buffer) LookupTransformFull(
	target string, targetTime int64, source string, sourceTime int64, fixed string,
) (TransformStamped, error) {
	target, source, fixed = stripFrameID(target), stripFrameID(source), stripFrameID(fixed)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.graph.frameExists(fixed) {
		return b.countLookup(TransformStamped{}, NewFrameNotFoundError(fixed))
	}
	targetInFixed, err := b.lookupLocked(fixed, target, targetTime)
	if err != nil {
		return b.countLookup(TransformStamped{}, err)
	}
	sourceInFixed, err := b.lookupLocked(fixed, source, sourceTime)
	if err != nil {
		return b.countLookup(TransformStamped{}, err)
	}
	pose := spatialmath.Compose(spatialmath.PoseInverse(targetInFixed.Pose()), sourceInFixed.Pose())
	return b.countLookup(newTransformFromPose(target, source, targetInFixed.Stamp, pose), nil)
}

func (b *Buffer) countLookup(tf TransformStamped, err error) (TransformStamped, error) {
	b.stats.lookups.Inc()
	if err != nil {
		b.stats.failedLookups.Inc()
	}
	return tf, err
}

// CanTransform reports whether LookupTransform would succeed.
func (b *Buffer) CanTransform(target, source string, stamp int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, err := b.lookupLocked(stripFrameID(target), stripFrameID(source), stamp)
	return err == nil
}

func (b *Buffer) checkFrames(frames ...string) error {
	for _, f := range frames {
		if !b.graph.frameExists(f) {
			return NewFrameNotFoundError(f)
		}
	}
	return nil
}

func (b *Buffer) lookupLocked(target, source string, stamp int64) (TransformStamped, error) {
	if stamp < 0 {
		return TransformStamped{}, NewInvalidTimeError(stamp)
	}
	if err := b.checkFrames(target, source); err != nil {
		return TransformStamped{}, err
	}
	if target == source {
		if stamp == 0 {
			stamp = b.ownLatest(target)
		}
		return identityTransform(target, stamp), nil
	}

	_, targetPath, sourcePath, err := b.graph.lowestCommonAncestor(target, source)
	if err != nil {
		return TransformStamped{}, err
	}
	if stamp == 0 {
		stamp = b.commonTimeLocked(targetPath, sourcePath)
	}

	targetInAncestor, err := b.accumulate(target, source, targetPath, stamp)
	if err != nil {
		return TransformStamped{}, err
	}
	sourceInAncestor, err := b.accumulate(target, source, sourcePath, stamp)
	if err != nil {
		return TransformStamped{}, err
	}
	pose := spatialmath.Compose(spatialmath.PoseInverse(targetInAncestor), sourceInAncestor)
	return newTransformFromPose(target, source, stamp, pose), nil
}

// accumulate composes the edges of path, from its first frame up to the common ancestor.
func (b *Buffer) accumulate(target, source string, path []string, stamp int64) (spatialmath.Pose, error) {
	acc := spatialmath.NewZeroPose()
	for _, frame := range path {
		rec, err := b.graph.edges[frame].getData(stamp)
		if err != nil {
			var notFound *FrameNotFoundError
			if errors.As(err, &notFound) {
				return nil, &ConnectivityError{Target: target, Source: source, cause: err}
			}
			return nil, err
		}
		acc = spatialmath.Compose(rec.Pose(), acc)
	}
	return acc, nil
}

// ownLatest is the newest stamp on frame's own edge, or 0 when it has no dynamic history.
func (b *Buffer) ownLatest(frame string) int64 {
	edge, ok := b.graph.edges[frame]
	if !ok {
		return 0
	}
	latest, _ := edge.latestStamp()
	return latest
}

// commonTimeLocked is the oldest of the newest stamps of every dynamic edge on the paths. Static
// edges do not constrain it, and a path of only static edges yields 0.
func (b *Buffer) commonTimeLocked(paths ...[]string) int64 {
	common := int64(math.MaxInt64)
	found := false
	for _, path := range paths {
		for _, frame := range path {
			latest, ok := b.graph.edges[frame].latestStamp()
			if !ok {
				continue
			}
			found = true
			if latest < common {
				common = latest
			}
		}
	}
	if !found {
		return 0
	}
	return common
}

// LatestCommonTime returns the newest time at which source can be expressed in target.
func (b *Buffer) LatestCommonTime(target, source string) (int64, error) {
	target, source = stripFrameID(target), stripFrameID(source)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkFrames(target, source); err != nil {
		return 0, err
	}
	if target == source {
		return b.ownLatest(target), nil
	}
	_, targetPath, sourcePath, err := b.graph.lowestCommonAncestor(target, source)
	if err != nil {
		return 0, err
	}
	return b.commonTimeLocked(targetPath, sourcePath), nil
}

// FrameNames returns every known frame, sorted.
func (b *Buffer) FrameNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.frameNames()
}

// Parent returns the parent of frame, if it has one.
func (b *Buffer) Parent(frame string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	parent, ok := b.graph.parents[stripFrameID(frame)]
	return parent, ok
}

// Clear drops every frame and edge.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graph = newFrameGraph(b.maxDepth)
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	return Stats{
		Inserts:       b.stats.inserts.Load(),
		Rejected:      b.stats.rejected.Load(),
		Lookups:       b.stats.lookups.Load(),
		FailedLookups: b.stats.failedLookups.Load(),
		Evicted:       b.stats.evicted.Load(),
	}
}

type frameYAML struct {
	Parent              string  `yaml:"parent"`
	Broadcaster         string  `yaml:"broadcaster"`
	Rate                float64 `yaml:"rate"`
	MostRecentTransform float64 `yaml:"most_recent_transform"`
	OldestTransform     float64 `yaml:"oldest_transform"`
	BufferLength        float64 `yaml:"buffer_length"`
	Static              bool    `yaml:"static"`
	Records             int     `yaml:"records"`
}

const staticRate = 10000

// FrameInfos summarizes every edge in the buffer, ordered by child frame.
func (b *Buffer) FrameInfos() []FrameInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	infos := make([]FrameInfo, 0, len(b.graph.edges))
	for _, edge := range b.graph.edges {
		infos = append(infos, edge.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Child < infos[j].Child })
	return infos
}

// AllFramesAsYAML describes every edge: parent, publishing authority, update rate, the stored
// window in seconds and the record count.
func (b *Buffer) AllFramesAsYAML() (string, error) {
	infos := b.FrameInfos()
	if len(infos) == 0 {
		return "", nil
	}
	frames := make(map[string]frameYAML, len(infos))
	for _, info := range infos {
		out := frameYAML{
			Parent:      info.Parent,
			Broadcaster: info.Authority,
			Static:      info.Static,
			Records:     info.Length,
		}
		if info.Static {
			out.Rate = staticRate
		} else {
			span := time.Duration(info.Latest - info.Oldest).Seconds()
			if info.Length > 1 {
				out.Rate = float64(info.Length) / math.Max(span, 0.0001)
			}
			out.MostRecentTransform = time.Duration(info.Latest).Seconds()
			out.OldestTransform = time.Duration(info.Oldest).Seconds()
			out.BufferLength = span
		}
		frames[info.Child] = out
	}
	data, err := yaml.Marshal(frames)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
