package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loud")
}

func TestWriterAppender(t *testing.T) {
	var buf bytes.Buffer
	logger := NewBlankLogger("tf")
	logger.AddAppender(NewWriterAppender(&buf))
	logger.SetLevel(INFO)

	logger.Debug("hidden")
	logger.Infow("inserted", "child", "odom")
	logger.Sublogger("cache").Warnf("evicted %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines, test.ShouldHaveLength, 2)
	test.That(t, lines[0], test.ShouldContainSubstring, "INFO")
	test.That(t, lines[0], test.ShouldContainSubstring, "inserted")
	test.That(t, lines[0], test.ShouldContainSubstring, `"child": "odom"`)
	test.That(t, lines[1], test.ShouldContainSubstring, "tf.cache")
	test.That(t, lines[1], test.ShouldContainSubstring, "evicted 3")
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("reparent", "child", "base", "parent", "odom")
	logger.Error("boom")

	test.That(t, logs.FilterMessage("reparent").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("reparent").All()[0].ContextMap()["parent"], test.ShouldEqual, "odom")
	test.That(t, logs.FilterMessage("boom").Len(), test.ShouldEqual, 1)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}
