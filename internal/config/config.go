// Package config loads the daemon's startup configuration from a single
// YAML file. Configuration is not hot-reloaded.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/gesturecast/internal/broadcast"
	"github.com/ayusman/gesturecast/internal/classifier"
	"github.com/ayusman/gesturecast/internal/intake"
	"github.com/ayusman/gesturecast/internal/pipeline"
	"github.com/ayusman/gesturecast/internal/statemachine"
)

// DetectorConfig describes the external landmark extractor's own tunables.
// The extractor is out of scope but its configuration surface is
// part of the daemon's config file so it can be passed through unchanged.
type DetectorConfig struct {
	MaxHands               int     `yaml:"max_hands"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
	ModelComplexity        int     `yaml:"model_complexity"`
}

// ClassifierConfig mirrors classifier.Config with yaml tags.
type ClassifierConfig struct {
	OpenPalmFingerThreshold   float64 `yaml:"open_palm_finger_threshold"`
	OpenPalmMinFingers        int     `yaml:"open_palm_min_fingers"`
	ClosedFistDistThreshold   float64 `yaml:"closed_fist_distance_threshold"`
	ClosedFistMinFingers      int     `yaml:"closed_fist_min_fingers"`
	PinchEnter                float64 `yaml:"pinch_enter"`
	PinchExit                 float64 `yaml:"pinch_exit"`
	SwipeWindowSize           int     `yaml:"swipe_window_size"`
	SwipeDxThreshold          float64 `yaml:"swipe_dx_threshold"`
	SwipeDyThreshold          float64 `yaml:"swipe_dy_threshold"`
	CrossAxisRatio            float64 `yaml:"cross_axis_ratio"`
	PushWindowSize            int     `yaml:"push_window_size"`
	PushSizeIncreaseThreshold float64 `yaml:"push_size_increase_threshold"`
	PushZThreshold            float64 `yaml:"push_z_threshold"`
}

func (c ClassifierConfig) toClassifierConfig() classifier.Config {
	return classifier.Config{
		OpenPalmFingerThreshold:   c.OpenPalmFingerThreshold,
		OpenPalmMinFingers:        c.OpenPalmMinFingers,
		ClosedFistDistThreshold:   c.ClosedFistDistThreshold,
		ClosedFistMinFingers:      c.ClosedFistMinFingers,
		PinchEnter:                c.PinchEnter,
		PinchExit:                 c.PinchExit,
		SwipeWindowSize:           c.SwipeWindowSize,
		SwipeDxThreshold:          c.SwipeDxThreshold,
		SwipeDyThreshold:          c.SwipeDyThreshold,
		CrossAxisRatio:            c.CrossAxisRatio,
		PushWindowSize:            c.PushWindowSize,
		PushSizeIncreaseThreshold: c.PushSizeIncreaseThreshold,
		PushZThreshold:            c.PushZThreshold,
	}
}

// StateMachineConfig mirrors statemachine.Config with yaml tags.
type StateMachineConfig struct {
	StabilityFrames        int   `yaml:"stability_frames"`
	CooldownMS             int64 `yaml:"cooldown_ms"`
	AllowSameGestureRepeat bool  `yaml:"allow_same_gesture_repeat"`
}

func (c StateMachineConfig) toStateMachineConfig() statemachine.Config {
	return statemachine.Config{
		StabilityFrames:        c.StabilityFrames,
		CooldownMS:             c.CooldownMS,
		AllowSameGestureRepeat: c.AllowSameGestureRepeat,
		SameGestureLockoutMS:   c.CooldownMS,
	}
}

// BroadcasterConfig mirrors broadcast.Config plus the bind address, with
// yaml tags.
type BroadcasterConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	QueueCapacity    int    `yaml:"queue_capacity"`
	IdleTimeoutSec   int    `yaml:"idle_timeout_seconds"`
	StatusIntervalMS int    `yaml:"status_interval_ms"`
}

func (c BroadcasterConfig) toBroadcastConfig() broadcast.Config {
	return broadcast.Config{
		QueueCapacity:  c.QueueCapacity,
		IdleTimeout:    secToDuration(c.IdleTimeoutSec),
		StatusInterval: msToDuration(c.StatusIntervalMS),
	}
}

// IntakeConfig mirrors intake.Config with yaml tags.
type IntakeConfig struct {
	MissFramesToRetire int     `yaml:"miss_frames_to_retire"`
	MatchThreshold     float64 `yaml:"match_threshold"`
}

func (c IntakeConfig) toIntakeConfig() intake.Config {
	return intake.Config{
		MissFramesToRetire: c.MissFramesToRetire,
		MatchThreshold:     c.MatchThreshold,
	}
}

// Config is the top-level shape of the daemon's YAML configuration file,
// with one top-level section per pipeline stage.
type Config struct {
	Detector     DetectorConfig     `yaml:"detector"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	StateMachine StateMachineConfig `yaml:"state_machine"`
	Broadcaster  BroadcasterConfig  `yaml:"broadcaster"`
	Intake       IntakeConfig       `yaml:"intake"`
	TargetFPS    int                `yaml:"target_fps"`
}

// DefaultConfig returns every documented default.
func DefaultConfig() Config {
	return Config{
		Detector: DetectorConfig{
			MaxHands:               2,
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
			ModelComplexity:        1,
		},
		Classifier: ClassifierConfig{
			OpenPalmFingerThreshold:   0.02,
			OpenPalmMinFingers:        3,
			ClosedFistDistThreshold:   0.10,
			ClosedFistMinFingers:      4,
			PinchEnter:                0.05,
			PinchExit:                 0.07,
			SwipeWindowSize:           8,
			SwipeDxThreshold:          0.08,
			SwipeDyThreshold:          0.08,
			CrossAxisRatio:            0.8,
			PushWindowSize:            8,
			PushSizeIncreaseThreshold: 0.15,
			PushZThreshold:            0.10,
		},
		StateMachine: StateMachineConfig{
			StabilityFrames:        5,
			CooldownMS:             1000,
			AllowSameGestureRepeat: false,
		},
		Broadcaster: BroadcasterConfig{
			Host:             "0.0.0.0",
			Port:             8765,
			QueueCapacity:    64,
			IdleTimeoutSec:   60,
			StatusIntervalMS: 1000,
		},
		Intake: IntakeConfig{
			MissFramesToRetire: 10,
			MatchThreshold:     0.15,
		},
		TargetFPS: 30,
	}
}

// ResolveClassifier returns the classifier.Config implied by this configuration.
func (c Config) ResolveClassifier() classifier.Config { return c.Classifier.toClassifierConfig() }

// ResolveStateMachine returns the statemachine.Config implied by this
// configuration. The frame interval used for the clock-regression fallback
// is derived from the configured target FPS.
func (c Config) ResolveStateMachine() statemachine.Config {
	sm := c.StateMachine.toStateMachineConfig()
	sm.FrameIntervalMS = int64(1000 / c.TargetFPS)
	return sm
}

// ResolveBroadcast returns the broadcast.Config implied by this configuration.
func (c Config) ResolveBroadcast() broadcast.Config { return c.Broadcaster.toBroadcastConfig() }

// ResolveIntake returns the intake.Config implied by this configuration.
func (c Config) ResolveIntake() intake.Config { return c.Intake.toIntakeConfig() }

// Pipeline returns the pipeline.Config implied by this configuration.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		TargetFPS:              c.TargetFPS,
		MaxConsecutiveFailures: pipeline.DefaultMaxConsecutiveFailures,
		StatusInterval:         msToDuration(c.Broadcaster.StatusIntervalMS),
	}
}

// Load reads and validates the YAML file at path. A parse or validation
// failure is a fatal startup error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks range and cross-field constraints before the daemon
// touches the camera or binds its port.
func (c Config) Validate() error {
	if c.Detector.MaxHands < 1 || c.Detector.MaxHands > 2 {
		return fmt.Errorf("detector.max_hands must be 1 or 2, got %d", c.Detector.MaxHands)
	}
	if c.Detector.MinDetectionConfidence < 0 || c.Detector.MinDetectionConfidence > 1 {
		return fmt.Errorf("detector.min_detection_confidence must be in [0,1]")
	}
	if c.StateMachine.StabilityFrames < 1 {
		return fmt.Errorf("state_machine.stability_frames must be >= 1")
	}
	if c.StateMachine.CooldownMS < 0 {
		return fmt.Errorf("state_machine.cooldown_ms must be >= 0")
	}
	if c.Broadcaster.Port < 1 || c.Broadcaster.Port > 65535 {
		return fmt.Errorf("broadcaster.port out of range: %d", c.Broadcaster.Port)
	}
	if c.Broadcaster.QueueCapacity < 1 {
		return fmt.Errorf("broadcaster.queue_capacity must be >= 1")
	}
	if c.TargetFPS < 1 {
		return fmt.Errorf("target_fps must be >= 1")
	}
	if c.Classifier.PinchEnter >= c.Classifier.PinchExit {
		return fmt.Errorf("classifier.pinch_enter must be less than classifier.pinch_exit")
	}
	return nil
}

func secToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
