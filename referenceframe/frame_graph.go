package referenceframe

import (
	"iter"
	"sort"

	"github.com/samber/lo"
)

// DefaultMaxGraphDepth bounds every walk from a frame to its root.
const DefaultMaxGraphDepth = 1000

// frameGraph is the forest of frames. Each child has exactly one parent, held both in parents
// and in the child's edge. Callers synchronize access.
type frameGraph struct {
	frames   map[string]struct{}
	parents  map[string]string
	edges    map[string]*timeCache
	maxDepth int
}

func newFrameGraph(maxDepth int) *frameGraph {
	return &frameGraph{
		frames:   map[string]struct{}{},
		parents:  map[string]string{},
		edges:    map[string]*timeCache{},
		maxDepth: maxDepth,
	}
}

func (g *frameGraph) frameExists(name string) bool {
	_, ok := g.frames[name]
	return ok
}

func (g *frameGraph) frameNames() []string {
	names := lo.Keys(g.frames)
	sort.Strings(names)
	return names
}

// setEdge registers child under parent.
func (g *frameGraph) setEdge(parent, child string, edge *timeCache) {
	g.frames[parent] = struct{}{}
	g.frames[child] = struct{}{}
	g.parents[child] = parent
	g.edges[child] = edge
}

// ancestors lazily yields frame, parent(frame), parent(parent(frame)), ... up to the root, paired
// with the depth of each frame. It stops after maxDepth+1 steps.
func (g *frameGraph) ancestors(frame string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		current := frame
		for depth := 0; depth <= g.maxDepth; depth++ {
			if !yield(depth, current) {
				return
			}
			parent, ok := g.parents[current]
			if !ok {
				return
			}
			current = parent
		}
	}
}

// ancestorChain returns [frame, parent(frame), ..., root].
func (g *frameGraph) ancestorChain(frame string) ([]string, error) {
	var chain []string
	for depth, f := range g.ancestors(frame) {
		if depth == g.maxDepth {
			return nil, &LoopError{Frame: frame, Depth: g.maxDepth}
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// isAncestor reports whether candidate appears on the walk up from frame, frame included.
func (g *frameGraph) isAncestor(candidate, frame string) bool {
	for _, f := range g.ancestors(frame) {
		if f == candidate {
			return true
		}
	}
	return false
}

// lowestCommonAncestor finds the closest frame both a and b descend from. The returned paths list
// the frames whose edges lead from a (respectively b) up to, but not including, the ancestor.
func (g *frameGraph) lowestCommonAncestor(a, b string) (string, []string, []string, error) {
	aChain, err := g.ancestorChain(a)
	if err != nil {
		return "", nil, nil, err
	}
	bChain, err := g.ancestorChain(b)
	if err != nil {
		return "", nil, nil, err
	}

	// index the longer chain, walk the shorter one
	indexed, walked := aChain, bChain
	swapped := false
	if len(walked) > len(indexed) {
		indexed, walked = walked, indexed
		swapped = true
	}
	position := make(map[string]int, len(indexed))
	for i, f := range indexed {
		position[f] = i
	}
	for j, f := range walked {
		i, ok := position[f]
		if !ok {
			continue
		}
		if swapped {
			return f, walked[:j], indexed[:i], nil
		}
		return f, indexed[:i], walked[:j], nil
	}
	return "", nil, nil, NewConnectivityError(a, b)
}
