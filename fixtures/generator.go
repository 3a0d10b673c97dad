package fixtures

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"

	"go.viam.com/tfbuffer/logging"
	"go.viam.com/tfbuffer/referenceframe"
	"go.viam.com/tfbuffer/spatialmath"
)

// ReplayCacheDuration keeps every record of a fixture in the buffer.
const ReplayCacheDuration = time.Duration(math.MaxInt64)

// GeneratorConfig shapes a randomly generated transform tree.
type GeneratorConfig struct {
	Seed int64
	// Frames is the number of frames hung below odom, each under a random existing frame.
	Frames int
	// Updates is the number of dynamic updates applied to random frames after the tree is built.
	Updates int
	// Queries is the number of samples of each lookup kind.
	Queries int
	MaxGap  time.Duration
	Start   int64
}

// DefaultGeneratorConfig returns the configuration the reference fixtures were built with.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:    20111111,
		Frames:  20,
		Updates: 1000,
		Queries: 100,
		MaxGap:  time.Second,
		Start:   1321038671 * int64(time.Second),
	}
}

// Generator produces fixture sets from a seeded random source, so the same config always yields
// the same set.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	logger logging.Logger
}

// NewGenerator returns a generator for cfg.
func NewGenerator(cfg GeneratorConfig, logger logging.Logger) *Generator {
	//nolint:gosec
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), logger: logger}
}

func (g *Generator) randomRecord(parent, child string, stamp int64) TransformRecord {
	translation := [3]float64{g.rng.Float64(), g.rng.Float64(), g.rng.Float64()}
	var rotation [4]float64
	for i := range rotation {
		rotation[i] = g.rng.Float64()*2 - 1
	}
	q := spatialmath.Normalize(spatialmath.QuatFromXYZW(rotation))
	return TransformRecord{
		ChildFrameID: child,
		FrameID:      parent,
		Rotation:     spatialmath.QuatToXYZW(q),
		Timestamp:    stamp,
		Translation:  translation,
	}
}

// RandomTree builds a world->odom root, hangs cfg.Frames frames below it and then applies
// cfg.Updates dynamic updates, advancing time by up to cfg.MaxGap after each one.
func (g *Generator) RandomTree() []TransformRecord {
	now := g.cfg.Start
	parents := map[string]string{"odom": "world"}
	names := []string{"odom"}
	records := []TransformRecord{g.randomRecord("world", "odom", now)}

	for i := 0; i < g.cfg.Frames; i++ {
		child := fmt.Sprintf("frame_%d", i)
		parent := names[g.rng.Intn(len(names))]
		records = append(records, g.randomRecord(parent, child, now))
		parents[child] = parent
		names = append(names, child)
	}

	for i := 0; i < g.cfg.Updates; i++ {
		child := names[g.rng.Intn(len(names))]
		records = append(records, g.randomRecord(parents[child], child, now))
		if g.cfg.MaxGap > 0 {
			now += g.rng.Int63n(int64(g.cfg.MaxGap) + 1)
		}
	}
	return records
}

// window is the span of dynamic data recorded for a child frame.
type window struct {
	min, max int64
}

func windows(records []TransformRecord) (map[string]window, []string) {
	spans := map[string]window{}
	frames := map[string]struct{}{}
	for _, rec := range records {
		frames[rec.FrameID] = struct{}{}
		frames[rec.ChildFrameID] = struct{}{}
		if rec.IsStatic {
			continue
		}
		w, ok := spans[rec.ChildFrameID]
		if !ok {
			w = window{min: rec.Timestamp, max: rec.Timestamp}
		}
		w.min = min(w.min, rec.Timestamp)
		w.max = max(w.max, rec.Timestamp)
		spans[rec.ChildFrameID] = w
	}
	names := lo.Keys(frames)
	sort.Strings(names)
	return spans, names
}

// sampleTime picks a time inside the overlap of the windows of frames. Frames without dynamic data
// do not constrain it; if none do, fallback is used.
func (g *Generator) sampleTime(spans map[string]window, fallback window, frames ...string) (int64, bool) {
	w := window{min: math.MinInt64, max: math.MaxInt64}
	constrained := false
	for _, f := range frames {
		span, ok := spans[f]
		if !ok {
			continue
		}
		constrained = true
		w.min = max(w.min, span.min)
		w.max = min(w.max, span.max)
	}
	if !constrained {
		w = fallback
	}
	if w.max < w.min {
		return 0, false
	}
	return w.min + g.rng.Int63n(w.max-w.min+1), true
}

// Queries samples random lookups of both kinds and answers them with buffer. Samples the buffer
// cannot answer are skipped. It gives up after a bounded number of attempts, so the returned set
// may be short when the tree has little overlap.
func (g *Generator) Queries(buffer *referenceframe.Buffer, records []TransformRecord, set *Set) {
	spans, names := windows(records)
	if len(names) < 2 {
		return
	}
	fallback := window{}
	for _, span := range spans {
		fallback.max = max(fallback.max, span.max)
	}
	maxAttempts := 1000 * (g.cfg.Queries + 1)

	for attempt := 0; len(set.Inputs) < g.cfg.Queries && attempt < maxAttempts; attempt++ {
		target, source := names[g.rng.Intn(len(names))], names[g.rng.Intn(len(names))]
		if target == source {
			continue
		}
		stamp, ok := g.sampleTime(spans, fallback, target, source)
		if !ok || stamp == 0 {
			continue
		}
		tf, err := buffer.LookupTransform(target, source, stamp)
		if err != nil {
			continue
		}
		set.Inputs = append(set.Inputs, LookupInput{ChildFrameID: source, FrameID: target, Time: stamp})
		set.Outputs = append(set.Outputs, OutputFromTransform(tf))
	}

	for attempt := 0; len(set.FullInputs) < g.cfg.Queries && attempt < maxAttempts; attempt++ {
		target := names[g.rng.Intn(len(names))]
		source := names[g.rng.Intn(len(names))]
		fixed := names[g.rng.Intn(len(names))]
		if target == source {
			continue
		}
		targetTime, ok := g.sampleTime(spans, fallback, target, fixed)
		if !ok || targetTime == 0 {
			continue
		}
		sourceTime, ok := g.sampleTime(spans, fallback, source, fixed)
		if !ok || sourceTime == 0 {
			continue
		}
		tf, err := buffer.LookupTransformFull(target, targetTime, source, sourceTime, fixed)
		if err != nil {
			continue
		}
		set.FullInputs = append(set.FullInputs, LookupFullInput{
			FixedFrame:  fixed,
			SourceFrame: source,
			SourceTime:  sourceTime,
			TargetFrame: target,
			TargetTime:  targetTime,
		})
		set.FullOutputs = append(set.FullOutputs, OutputFromTransform(tf))
	}
}

// Generate builds a random tree and samples queries against it.
func (g *Generator) Generate() (*Set, error) {
	set := &Set{Transforms: g.RandomTree()}
	return g.Answer(set)
}

// Answer loads set.Transforms into a fresh buffer and fills in the queries.
func (g *Generator) Answer(set *Set) (*Set, error) {
	buffer := referenceframe.NewBuffer(ReplayCacheDuration, g.logger.Sublogger("buffer"))
	if err := set.Load(buffer, ""); err != nil {
		return nil, err
	}
	g.Queries(buffer, set.Transforms, set)
	g.logger.Infow("generated fixtures",
		"transforms", len(set.Transforms),
		"frames", len(buffer.FrameNames()),
		"lookups", len(set.Inputs),
		"full_lookups", len(set.FullInputs))
	return set, nil
}
