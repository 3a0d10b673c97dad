package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
	"gopkg.in/yaml.v3"

	"go.viam.com/tfbuffer/fixtures"
)

type testRun struct {
	out, errOut bytes.Buffer
}

func runApp(t *testing.T, args ...string) (*testRun, error) {
	t.Helper()
	run := &testRun{}
	app := NewApp(&run.out, &run.errOut)
	err := app.RunContext(context.Background(), append([]string{"tfbuffer"}, args...))
	return run, err
}

func generateSmall(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "fixtures")
	run, err := runApp(t, "generate", "--out", dir, "--frames", "5", "--updates", "60", "--queries", "10")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.out.String(), test.ShouldContainSubstring, "wrote 66 transforms")
	return dir
}

func TestGenerateAndVerify(t *testing.T) {
	dir := generateSmall(t)
	for _, name := range []string{
		fixtures.TransformsFile, fixtures.InputsFile, fixtures.OutputsFile, fixtures.FullInputsFile, fixtures.FullOutputsFile,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		test.That(t, err, test.ShouldBeNil)
	}

	run, err := runApp(t, "verify", "--dir", dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, run.out.String(), test.ShouldContainSubstring, "0 mismatched, 0 failed")
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := generateSmall(t)
	outputs, err := fixtures.ReadFile[fixtures.LookupOutput](filepath.Join(dir, fixtures.OutputsFile))
	test.That(t, err, test.ShouldBeNil)
	outputs[0].Translation[0] += 0.5
	test.That(t, fixtures.WriteFile(filepath.Join(dir, fixtures.OutputsFile), outputs), test.ShouldBeNil)

	run, err := runApp(t, "verify", "--dir", dir)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mismatched translation")
	test.That(t, run.out.String(), test.ShouldContainSubstring, "1 mismatched")

	_, err = runApp(t, "verify", "--dir", dir, "--tolerance", "1")
	test.That(t, err, test.ShouldBeNil)
}

func TestLookup(t *testing.T) {
	dir := generateSmall(t)
	transforms := filepath.Join(dir, fixtures.TransformsFile)
	inputs, err := fixtures.ReadFile[fixtures.LookupInput](filepath.Join(dir, fixtures.InputsFile))
	test.That(t, err, test.ShouldBeNil)
	outputs, err := fixtures.ReadFile[fixtures.LookupOutput](filepath.Join(dir, fixtures.OutputsFile))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inputs, test.ShouldNotBeEmpty)

	// without a configured window every generated query is answerable
	var got fixtures.LookupOutput
	for i, in := range inputs {
		run, err := runApp(t, "lookup", "--transforms", transforms,
			in.FrameID, in.ChildFrameID, strconv.FormatInt(in.Time, 10))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, yaml.Unmarshal(run.out.Bytes(), &got), test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, outputs[i])
	}

	fullInputs, err := fixtures.ReadFile[fixtures.LookupFullInput](filepath.Join(dir, fixtures.FullInputsFile))
	test.That(t, err, test.ShouldBeNil)
	fullOutputs, err := fixtures.ReadFile[fixtures.LookupOutput](filepath.Join(dir, fixtures.FullOutputsFile))
	test.That(t, err, test.ShouldBeNil)
	if len(fullInputs) > 0 {
		full := fullInputs[0]
		run, err := runApp(t, "lookup", "--transforms", transforms, "--cache-duration", "1000h",
			"--fixed", full.FixedFrame, "--source-time", strconv.FormatInt(full.SourceTime, 10),
			full.TargetFrame, full.SourceFrame, strconv.FormatInt(full.TargetTime, 10))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, yaml.Unmarshal(run.out.Bytes(), &got), test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, fullOutputs[0])
	}

	_, err = runApp(t, "lookup", "--transforms", transforms, "world")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected <target> <source> [time]")

	_, err = runApp(t, "lookup", "--transforms", transforms, "world", "odom", "yesterday")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `could not parse time "yesterday"`)

	_, err = runApp(t, "lookup", "--transforms", transforms, "world", "nowhere")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `frame "nowhere" does not exist`)
}

func TestFrames(t *testing.T) {
	dir := t.TempDir()
	transforms := filepath.Join(dir, fixtures.TransformsFile)
	test.That(t, fixtures.WriteFile(transforms, []fixtures.TransformRecord{
		{FrameID: "world", ChildFrameID: "map", IsStatic: true, Rotation: [4]float64{0, 0, 0, 1}},
		{FrameID: "map", ChildFrameID: "odom", Timestamp: 1, Rotation: [4]float64{0, 0, 0, 1}},
		{FrameID: "map", ChildFrameID: "odom", Timestamp: 2, Rotation: [4]float64{0, 0, 0, 1}},
	}), test.ShouldBeNil)

	run, err := runApp(t, "frames", "--transforms", transforms)
	test.That(t, err, test.ShouldBeNil)

	var frames map[string]map[string]interface{}
	test.That(t, yaml.Unmarshal(run.out.Bytes(), &frames), test.ShouldBeNil)
	test.That(t, frames, test.ShouldHaveLength, 2)
	test.That(t, frames["map"]["parent"], test.ShouldEqual, "world")
	test.That(t, frames["map"]["broadcaster"], test.ShouldEqual, transforms)
	test.That(t, frames["odom"]["records"], test.ShouldEqual, 2)

	run, err = runApp(t, "frames", "--transforms", transforms, "--table")
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(run.out.String()), "\n")
	test.That(t, lines[1], test.ShouldContainSubstring, "FRAME")
	test.That(t, run.out.String(), test.ShouldContainSubstring, "world")
	test.That(t, lines[len(lines)-2], test.ShouldContainSubstring, "odom")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	test.That(t, os.WriteFile(bad, []byte("log:\n  level: shouting\n"), 0o600), test.ShouldBeNil)
	_, err := runApp(t, "--config", bad, "frames", "--transforms", filepath.Join(dir, "none.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")

	transforms := filepath.Join(dir, fixtures.TransformsFile)
	test.That(t, fixtures.WriteFile(transforms, []fixtures.TransformRecord{
		{FrameID: "world", ChildFrameID: "odom", IsStatic: true, Rotation: [4]float64{0, 0, 0, 2}},
	}), test.ShouldBeNil)
	strict := filepath.Join(dir, "strict.yaml")
	test.That(t, os.WriteFile(strict, []byte("buffer:\n  reject_non_unit_rotations: true\n"), 0o600), test.ShouldBeNil)

	_, err = runApp(t, "frames", "--transforms", transforms)
	test.That(t, err, test.ShouldBeNil)
	_, err = runApp(t, "--config", strict, "--debug", "frames", "--transforms", transforms)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not a unit quaternion")
}
