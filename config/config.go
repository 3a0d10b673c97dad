// Package config defines the on-disk configuration of the transform buffer tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/tfbuffer/logging"
	"go.viam.com/tfbuffer/referenceframe"
)

// Config is the top level configuration.
type Config struct {
	ConfigFilePath string `yaml:"-"`

	Buffer BufferConfig `yaml:"buffer"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	// defaults are filled by validation and cannot fail on a zero config
	if err := cfg.Validate(""); err != nil {
		panic(err)
	}
	return cfg
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate(path string) error {
	return multierr.Combine(
		c.Buffer.Validate(joinPath(path, "buffer")),
		c.Log.Validate(joinPath(path, "log")),
	)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}

// BufferConfig configures a referenceframe.Buffer.
type BufferConfig struct {
	// CacheDuration is how much dynamic history each edge keeps. Zero leaves the choice to the
	// caller, see CacheDurationOr.
	CacheDuration time.Duration `yaml:"cache_duration"`
	// RejectNonUnitRotations rejects, rather than normalizes, rotations that are not unit
	// quaternions.
	RejectNonUnitRotations bool `yaml:"reject_non_unit_rotations"`
	// MaxGraphDepth bounds frame tree walks. Zero selects the default.
	MaxGraphDepth int `yaml:"max_graph_depth"`
}

// Validate ensures the buffer config is valid and fills in defaults.
func (c *BufferConfig) Validate(path string) error {
	var err error
	if c.CacheDuration < 0 {
		err = multierr.Append(err, NewConfigValidationError(path, errors.Errorf("cache_duration must not be negative, got %s", c.CacheDuration)))
	}
	switch {
	case c.MaxGraphDepth < 0:
		err = multierr.Append(err, NewConfigValidationError(path, errors.Errorf("max_graph_depth must not be negative, got %d", c.MaxGraphDepth)))
	case c.MaxGraphDepth == 0:
		c.MaxGraphDepth = referenceframe.DefaultMaxGraphDepth
	}
	return err
}

// CacheDurationOr returns the configured cache duration, or fallback when none is set.
func (c BufferConfig) CacheDurationOr(fallback time.Duration) time.Duration {
	if c.CacheDuration > 0 {
		return c.CacheDuration
	}
	return fallback
}

// Options returns the buffer options matching the config.
func (c BufferConfig) Options() []referenceframe.BufferOption {
	opts := []referenceframe.BufferOption{referenceframe.WithMaxGraphDepth(c.MaxGraphDepth)}
	if c.RejectNonUnitRotations {
		opts = append(opts, referenceframe.WithRejectNonUnitRotations())
	}
	return opts
}

// NewBuffer builds an empty buffer from the config, using referenceframe.DefaultCacheDuration
// when no cache duration is set.
func (c BufferConfig) NewBuffer(logger logging.Logger) *referenceframe.Buffer {
	return referenceframe.NewBuffer(c.CacheDurationOr(referenceframe.DefaultCacheDuration), logger, c.Options()...)
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate ensures the level, if set, names a known level.
func (c *LogConfig) Validate(path string) error {
	if c.Level == "" {
		c.Level = strings.ToLower(logging.INFO.String())
		return nil
	}
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return NewConfigValidationError(path, err)
	}
	c.Level = strings.ToLower(level.String())
	return nil
}

// Apply sets the configured level on logger. The debug flag always wins.
func (c LogConfig) Apply(logger logging.Logger, debug bool) {
	if debug {
		logger.SetLevel(logging.DEBUG)
		return
	}
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return
	}
	logger.SetLevel(level)
}
