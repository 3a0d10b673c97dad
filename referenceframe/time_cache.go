package referenceframe

import (
	"slices"
	"sort"
	"sync"
	"time"
)

type edgeMode int

const (
	staticEdge edgeMode = iota
	dynamicEdge
)

// timeCache is the history of one parent->child edge. It is either static, holding exactly one
// record valid at every time, or dynamic, holding records sorted ascending by stamp and trimmed to
// maxStorage behind the newest one. Switching between the two discards the previous history.
type timeCache struct {
	mu sync.RWMutex

	parent    string
	child     string
	authority string

	mode    edgeMode
	static  TransformStamped
	dynamic []TransformStamped

	maxStorage time.Duration
}

// insertResult reports what an insert did to the history, for logging.
type insertResult struct {
	modeSwitched bool
	replaced     bool
	evicted      int
	droppedNew   bool
}

func newTimeCache(parent, child string, isStatic bool, maxStorage time.Duration) *timeCache {
	mode := dynamicEdge
	if isStatic {
		mode = staticEdge
	}
	return &timeCache{parent: parent, child: child, mode: mode, maxStorage: maxStorage}
}

// reparent points the edge at a new parent and drops everything recorded against the old one.
func (tc *timeCache) reparent(parent string, isStatic bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.parent = parent
	tc.clearLocked(isStatic)
}

func (tc *timeCache) clearLocked(isStatic bool) {
	tc.static = TransformStamped{}
	tc.dynamic = nil
	tc.mode = dynamicEdge
	if isStatic {
		tc.mode = staticEdge
	}
}

func (tc *timeCache) insert(tf TransformStamped, authority string, isStatic bool) insertResult {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var res insertResult
	tc.authority = authority
	if isStatic != (tc.mode == staticEdge) {
		res.modeSwitched = !tc.emptyLocked()
		tc.clearLocked(isStatic)
	}

	if isStatic {
		tc.static = tf
		return res
	}

	idx := sort.Search(len(tc.dynamic), func(i int) bool { return tc.dynamic[i].Stamp >= tf.Stamp })
	if idx < len(tc.dynamic) && tc.dynamic[idx].Stamp == tf.Stamp {
		tc.dynamic[idx] = tf
		res.replaced = true
	} else {
		tc.dynamic = slices.Insert(tc.dynamic, idx, tf)
	}

	res.evicted, res.droppedNew = tc.pruneLocked(tf.Stamp)
	return res
}

// pruneLocked drops records older than maxStorage behind the newest one. The newest record always
// survives.
func (tc *timeCache) pruneLocked(inserted int64) (int, bool) {
	if len(tc.dynamic) == 0 {
		return 0, false
	}
	latest := tc.dynamic[len(tc.dynamic)-1].Stamp
	cutoff := latest - tc.maxStorage.Nanoseconds()
	if cutoff > latest {
		// underflow, nothing can be old enough
		return 0, false
	}
	idx := sort.Search(len(tc.dynamic), func(i int) bool { return tc.dynamic[i].Stamp >= cutoff })
	if idx == 0 {
		return 0, false
	}
	tc.dynamic = slices.Delete(tc.dynamic, 0, idx)
	return idx, inserted < cutoff
}

func (tc *timeCache) emptyLocked() bool {
	if tc.mode == staticEdge {
		return tc.static.Child == ""
	}
	return len(tc.dynamic) == 0
}

// getData returns the edge's transform at stamp. A stamp of 0 means the newest record.
func (tc *timeCache) getData(stamp int64) (TransformStamped, error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if tc.emptyLocked() {
		return TransformStamped{}, NewFrameNotFoundError(tc.child)
	}
	if tc.mode == staticEdge {
		out := tc.static
		out.Stamp = stamp
		return out, nil
	}

	storage := tc.dynamic
	oldest := storage[0]
	latest := storage[len(storage)-1]
	if stamp == 0 {
		return latest, nil
	}
	if len(storage) == 1 {
		if stamp == latest.Stamp {
			return latest, nil
		}
		return TransformStamped{}, tc.extrapolationError(SingleExtrapolation, stamp)
	}
	if stamp < oldest.Stamp {
		return TransformStamped{}, tc.extrapolationError(PastExtrapolation, stamp)
	}
	if stamp > latest.Stamp {
		return TransformStamped{}, tc.extrapolationError(FutureExtrapolation, stamp)
	}

	idx := sort.Search(len(storage), func(i int) bool { return storage[i].Stamp >= stamp })
	if storage[idx].Stamp == stamp {
		return storage[idx], nil
	}
	return interpolate(storage[idx-1], storage[idx], stamp), nil
}

func (tc *timeCache) extrapolationError(direction ExtrapolationDirection, stamp int64) error {
	return &ExtrapolationError{
		Parent:    tc.parent,
		Child:     tc.child,
		Direction: direction,
		Requested: stamp,
		Earliest:  tc.dynamic[0].Stamp,
		Latest:    tc.dynamic[len(tc.dynamic)-1].Stamp,
	}
}

// latestStamp returns the newest stamp of a dynamic edge. Static edges constrain nothing and
// report false.
func (tc *timeCache) latestStamp() (int64, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.mode == staticEdge || len(tc.dynamic) == 0 {
		return 0, false
	}
	return tc.dynamic[len(tc.dynamic)-1].Stamp, true
}

// FrameInfo is a point in time summary of the edge from a frame to its parent. Stamps are
// zero for static edges.
type FrameInfo struct {
	Child     string
	Parent    string
	Authority string
	Static    bool
	Oldest    int64
	Latest    int64
	Length    int
}

func (tc *timeCache) info() FrameInfo {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	info := FrameInfo{Child: tc.child, Parent: tc.parent, Authority: tc.authority, Static: tc.mode == staticEdge}
	if info.Static {
		if !tc.emptyLocked() {
			info.Length = 1
		}
		return info
	}
	info.Length = len(tc.dynamic)
	if info.Length > 0 {
		info.Oldest = tc.dynamic[0].Stamp
		info.Latest = tc.dynamic[info.Length-1].Stamp
	}
	return info
}
