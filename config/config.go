// Package config reads the YAML configuration of the depthcam tools.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/depthcam/animation"
	"go.viam.com/depthcam/logging"
	"go.viam.com/depthcam/rimage/transform"
)

// Config is the top level configuration.
type Config struct {
	Projection ProjectionConfig `yaml:"projection"`
	Animation  AnimationConfig  `yaml:"animation"`
	Log        LogConfig        `yaml:"log"`
}

// ProjectionConfig selects the intrinsics used to project depth images. At most one of
// FocalLengthMM and IntrinsicsFile may be set; with neither the 50mm default is used.
type ProjectionConfig struct {
	FocalLengthMM  *float64 `yaml:"focal_length_mm,omitempty"`
	IntrinsicsFile string   `yaml:"intrinsics_file,omitempty"`
}

// AnimationConfig tunes keyframe playback.
type AnimationConfig struct {
	Speed      float64       `yaml:"speed"`
	TickPeriod time.Duration `yaml:"tick_period"`
	// SharedKeyframes makes every controller play from the process-wide keyframe list.
	SharedKeyframes bool `yaml:"shared_keyframes"`
}

// LogConfig controls log verbosity and an optional rotated log file.
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Animation: AnimationConfig{
			Speed:           animation.DefaultSpeed,
			TickPeriod:      animation.DefaultTickPeriod,
			SharedKeyframes: true,
		},
		Log: LogConfig{Level: logging.INFO.String()},
	}
}

// Read reads and validates the configuration at path. Unset fields keep their defaults.
func Read(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	cfg, err := FromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	return cfg, nil
}

// FromReader decodes and validates a configuration.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration.
func (cfg *Config) Validate() error {
	return multierr.Combine(
		cfg.Projection.Validate("projection"),
		cfg.Animation.Validate("animation"),
		cfg.Log.Validate("log"),
	)
}

// Validate ensures the projection settings are usable.
func (pc ProjectionConfig) Validate(path string) error {
	var err error
	if pc.FocalLengthMM != nil && *pc.FocalLengthMM <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.Errorf("focal_length_mm must be positive, got %v", *pc.FocalLengthMM)))
	}
	if pc.FocalLengthMM != nil && pc.IntrinsicsFile != "" {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.New("only one of focal_length_mm and intrinsics_file may be set")))
	}
	return err
}

// Intrinsics resolves the configured intrinsics. Flags win over the file: a positive focal
// length or a non-empty intrinsics path passed here replaces the configured value.
func (pc ProjectionConfig) Intrinsics(focalLengthMM float64, intrinsicsFile string) (transform.Intrinsics, error) {
	switch {
	case intrinsicsFile != "":
		return transform.NewIntrinsicsFromJSONFile(intrinsicsFile)
	case focalLengthMM > 0:
		return transform.FocalLength(focalLengthMM), nil
	case pc.IntrinsicsFile != "":
		return transform.NewIntrinsicsFromJSONFile(pc.IntrinsicsFile)
	case pc.FocalLengthMM != nil:
		return transform.FocalLength(*pc.FocalLengthMM), nil
	default:
		return transform.Default{}, nil
	}
}

// Validate ensures the playback settings are usable.
func (ac AnimationConfig) Validate(path string) error {
	var err error
	if ac.Speed <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.Errorf("speed must be positive, got %v", ac.Speed)))
	}
	if ac.TickPeriod <= 0 {
		err = multierr.Append(err, utils.NewConfigValidationError(path, errors.Errorf("tick_period must be positive, got %v", ac.TickPeriod)))
	}
	return err
}

// KeyframeStore returns the keyframe store controllers should share.
func (ac AnimationConfig) KeyframeStore() *animation.KeyframeStore {
	if ac.SharedKeyframes {
		return animation.SharedKeyframes()
	}
	return animation.NewKeyframeStore()
}

// ControllerOptions turns the playback settings into controller options.
func (ac AnimationConfig) ControllerOptions() []animation.Option {
	return []animation.Option{
		animation.WithSpeed(ac.Speed),
		animation.WithTickPeriod(ac.TickPeriod),
		animation.WithKeyframes(ac.KeyframeStore()),
	}
}

// Validate ensures the log settings are usable.
func (lc LogConfig) Validate(path string) error {
	if _, err := logging.LevelFromString(lc.Level); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a logger at the configured level that also writes to the configured file.
// Close the returned closer when done logging.
func (lc LogConfig) NewLogger(name string) (logging.Logger, io.Closer, error) {
	level, err := logging.LevelFromString(lc.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(name)
	logger.SetLevel(level)
	if lc.File == "" {
		return logger, nopCloser{}, nil
	}
	appender, closer := logging.NewFileAppender(logging.FileAppenderConfig{
		Filename:  lc.File,
		MaxSizeMB: lc.MaxSizeMB,
	})
	logger.AddAppender(appender)
	return logger, closer, nil
}
