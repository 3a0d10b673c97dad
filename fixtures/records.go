// Package fixtures reads, writes, generates and verifies the YAML fixtures used to cross-check the
// transform buffer against other implementations.
package fixtures

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"go.viam.com/tfbuffer/referenceframe"
)

// Fixture file names inside a fixture directory.
const (
	TransformsFile  = "transforms.yaml"
	InputsFile      = "inputs.yaml"
	OutputsFile     = "outputs.yaml"
	FullInputsFile  = "inputs_full.yaml"
	FullOutputsFile = "outputs_full.yaml"
)

// TransformRecord is one inserted transform. Fields are declared in the sorted order python's
// yaml.safe_dump writes them.
type TransformRecord struct {
	ChildFrameID string     `yaml:"child_frame_id"`
	FrameID      string     `yaml:"frame_id"`
	IsStatic     bool       `yaml:"is_static"`
	Rotation     [4]float64 `yaml:"rotation"`
	Timestamp    int64      `yaml:"timestamp"`
	Translation  [3]float64 `yaml:"translation"`
}

// LookupInput is a LookupTransform query: FrameID is the target and ChildFrameID the source.
type LookupInput struct {
	ChildFrameID string `yaml:"child_frame_id"`
	FrameID      string `yaml:"frame_id"`
	Time         int64  `yaml:"time"`
}

// LookupFullInput is a LookupTransformFull query.
type LookupFullInput struct {
	FixedFrame  string `yaml:"fixed_frame"`
	SourceFrame string `yaml:"source_frame"`
	SourceTime  int64  `yaml:"source_time"`
	TargetFrame string `yaml:"target_frame"`
	TargetTime  int64  `yaml:"target_time"`
}

// LookupOutput is the answer to either kind of query.
type LookupOutput struct {
	ChildFrameID string     `yaml:"child_frame_id"`
	FrameID      string     `yaml:"frame_id"`
	Rotation     [4]float64 `yaml:"rotation"`
	Timestamp    int64      `yaml:"timestamp"`
	Translation  [3]float64 `yaml:"translation"`
}

// RecordFromTransform converts a buffer transform into a fixture record.
func RecordFromTransform(tf referenceframe.TransformStamped, isStatic bool) TransformRecord {
	return TransformRecord{
		ChildFrameID: tf.Child,
		FrameID:      tf.Parent,
		IsStatic:     isStatic,
		Rotation:     tf.RotationXYZW(),
		Timestamp:    tf.Stamp,
		Translation:  tf.TranslationXYZ(),
	}
}

// Transform converts the record into a buffer transform.
func (r TransformRecord) Transform() referenceframe.TransformStamped {
	return referenceframe.NewTransformStamped(r.FrameID, r.ChildFrameID, r.Timestamp, r.Translation, r.Rotation)
}

// OutputFromTransform converts a lookup result into a fixture output.
func OutputFromTransform(tf referenceframe.TransformStamped) LookupOutput {
	return LookupOutput{
		ChildFrameID: tf.Child,
		FrameID:      tf.Parent,
		Rotation:     tf.RotationXYZW(),
		Timestamp:    tf.Stamp,
		Translation:  tf.TranslationXYZ(),
	}
}

// Transform converts the output into a buffer transform.
func (o LookupOutput) Transform() referenceframe.TransformStamped {
	return referenceframe.NewTransformStamped(o.FrameID, o.ChildFrameID, o.Timestamp, o.Translation, o.Rotation)
}

// ReadAll decodes every YAML document in r.
func ReadAll[T any](r io.Reader) ([]T, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var docs []T
	for {
		var doc T
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, errors.Wrapf(err, "failed to decode document %d", len(docs))
		}
		docs = append(docs, doc)
	}
}

// WriteAll encodes docs to w as a YAML stream, one document each.
// An empty docs writes nothing.
func WriteAll[T any](w io.Writer, docs []T) (err error) {
	if len(docs) == 0 {
		return nil
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer multierr.AppendInvoke(&err, multierr.Close(encoder))
	for i, doc := range docs {
		if err := encoder.Encode(doc); err != nil {
			return errors.Wrapf(err, "failed to encode document %d", i)
		}
	}
	return nil
}

// ReadFile decodes every YAML document in the file at path.
func ReadFile[T any](path string) (docs []T, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	docs, err = ReadAll[T](f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return docs, nil
}

// WriteFile writes docs to the file at path, replacing it.
func WriteFile[T any](path string, docs []T) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	return WriteAll(f, docs)
}

// Set is a full fixture directory: the transforms to insert and the queries with their answers.
type Set struct {
	Transforms  []TransformRecord
	Inputs      []LookupInput
	Outputs     []LookupOutput
	FullInputs  []LookupFullInput
	FullOutputs []LookupOutput
}

// ReadSet reads a fixture directory. The full lookup files are optional.
func ReadSet(dir string) (*Set, error) {
	var (
		set Set
		err error
	)
	if set.Transforms, err = ReadFile[TransformRecord](filepath.Join(dir, TransformsFile)); err != nil {
		return nil, err
	}
	if set.Inputs, err = ReadFile[LookupInput](filepath.Join(dir, InputsFile)); err != nil {
		return nil, err
	}
	if set.Outputs, err = ReadFile[LookupOutput](filepath.Join(dir, OutputsFile)); err != nil {
		return nil, err
	}
	if set.FullInputs, err = ReadFile[LookupFullInput](filepath.Join(dir, FullInputsFile)); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if set.FullOutputs, err = ReadFile[LookupOutput](filepath.Join(dir, FullOutputsFile)); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := set.validate(); err != nil {
		return nil, errors.Wrapf(err, "fixture directory %s", dir)
	}
	return &set, nil
}

func (s *Set) validate() error {
	var err error
	if len(s.Inputs) != len(s.Outputs) {
		err = multierr.Append(err, errors.Errorf("%d inputs but %d outputs", len(s.Inputs), len(s.Outputs)))
	}
	if len(s.FullInputs) != len(s.FullOutputs) {
		err = multierr.Append(err, errors.Errorf("%d full inputs but %d full outputs", len(s.FullInputs), len(s.FullOutputs)))
	}
	return err
}

// Write stores the set in dir, creating it if needed.
func (s *Set) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return multierr.Combine(
		WriteFile(filepath.Join(dir, TransformsFile), s.Transforms),
		WriteFile(filepath.Join(dir, InputsFile), s.Inputs),
		WriteFile(filepath.Join(dir, OutputsFile), s.Outputs),
		WriteFile(filepath.Join(dir, FullInputsFile), s.FullInputs),
		WriteFile(filepath.Join(dir, FullOutputsFile), s.FullOutputs),
	)
}

// Load inserts every transform of the set into buffer, in order.
func (s *Set) Load(buffer *referenceframe.Buffer, authority string) error {
	for i, rec := range s.Transforms {
		if err := buffer.SetTransform(rec.Transform(), authority, rec.IsStatic); err != nil {
			return errors.Wrapf(err, "transform %d", i)
		}
	}
	return nil
}
