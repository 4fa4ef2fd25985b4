package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the engine tuning parameters loaded at startup.
// Fields are pointers so partial JSON configs are safe: anything omitted
// falls back to the Get* defaults. Runtime stabilization settings (mode,
// strength, crop) come from the host application instead; this file covers
// the filter internals.
type TuningConfig struct {
	// History buffer
	HistoryCapacity *int `json:"history_capacity,omitempty"`

	// Orientation fusion
	ComplementaryAlpha     *float64 `json:"complementary_alpha,omitempty"`
	GravityAlpha           *float64 `json:"gravity_alpha,omitempty"`
	ConfidenceVarianceGain *float64 `json:"confidence_variance_gain,omitempty"`

	// Translational estimator
	ProcessNoise *float64 `json:"process_noise,omitempty"`

	// Transform calculation
	FullScaleRateRads   *float64 `json:"full_scale_rate_rads,omitempty"`
	RotationGainDeg     *float64 `json:"rotation_gain_deg,omitempty"`
	TranslationGainPx   *float64 `json:"translation_gain_px,omitempty"`
	VelocityGainPx      *float64 `json:"velocity_gain_px,omitempty"`
	RollingShutterGain  *float64 `json:"rolling_shutter_gain,omitempty"`
	FrameWidth          *int     `json:"frame_width,omitempty"`
	FrameHeight         *int     `json:"frame_height,omitempty"`
	MinUsableConfidence *float64 `json:"min_usable_confidence,omitempty"`

	// Adaptive mode controller
	AdaptiveHysteresis *float64 `json:"adaptive_hysteresis,omitempty"`

	// Ingest
	MagStaleness *string `json:"mag_staleness,omitempty"` // duration string like "500ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* accessor then serves its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and to be under the max file size.
// Fields omitted from the JSON retain their defaults, so partial configs
// are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.ComplementaryAlpha != nil {
		if *c.ComplementaryAlpha < 0 || *c.ComplementaryAlpha > 1 {
			return fmt.Errorf("complementary_alpha must be between 0 and 1, got %f", *c.ComplementaryAlpha)
		}
	}
	if c.GravityAlpha != nil {
		if *c.GravityAlpha < 0 || *c.GravityAlpha > 1 {
			return fmt.Errorf("gravity_alpha must be between 0 and 1, got %f", *c.GravityAlpha)
		}
	}
	if c.MinUsableConfidence != nil {
		if *c.MinUsableConfidence < 0 || *c.MinUsableConfidence > 1 {
			return fmt.Errorf("min_usable_confidence must be between 0 and 1, got %f", *c.MinUsableConfidence)
		}
	}
	if c.HistoryCapacity != nil {
		if *c.HistoryCapacity < 2 {
			return fmt.Errorf("history_capacity must be at least 2, got %d", *c.HistoryCapacity)
		}
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.FullScaleRateRads != nil && *c.FullScaleRateRads <= 0 {
		return fmt.Errorf("full_scale_rate_rads must be positive, got %f", *c.FullScaleRateRads)
	}
	if c.MagStaleness != nil && *c.MagStaleness != "" {
		if _, err := time.ParseDuration(*c.MagStaleness); err != nil {
			return fmt.Errorf("invalid mag_staleness '%s': %w", *c.MagStaleness, err)
		}
	}
	return nil
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *TuningConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return 64
	}
	return *c.HistoryCapacity
}

// GetComplementaryAlpha returns the complementary_alpha value or the default.
func (c *TuningConfig) GetComplementaryAlpha() float64 {
	if c.ComplementaryAlpha == nil {
		return 0.98
	}
	return *c.ComplementaryAlpha
}

// GetGravityAlpha returns the gravity_alpha value or the default.
func (c *TuningConfig) GetGravityAlpha() float64 {
	if c.GravityAlpha == nil {
		return 0.8
	}
	return *c.GravityAlpha
}

// GetConfidenceVarianceGain returns the confidence_variance_gain value or the default.
func (c *TuningConfig) GetConfidenceVarianceGain() float64 {
	if c.ConfidenceVarianceGain == nil {
		return 4.0
	}
	return *c.ConfidenceVarianceGain
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1e-3
	}
	return *c.ProcessNoise
}

// GetFullScaleRateRads returns the full_scale_rate_rads value or the default.
// This is the RMS gyro magnitude that reads as motion level 1.0.
func (c *TuningConfig) GetFullScaleRateRads() float64 {
	if c.FullScaleRateRads == nil {
		return 6.0
	}
	return *c.FullScaleRateRads
}

// GetRotationGainDeg returns the rotation_gain_deg value or the default.
func (c *TuningConfig) GetRotationGainDeg() float64 {
	if c.RotationGainDeg == nil {
		return 10.0
	}
	return *c.RotationGainDeg
}

// GetTranslationGainPx returns the translation_gain_px value or the default.
func (c *TuningConfig) GetTranslationGainPx() float64 {
	if c.TranslationGainPx == nil {
		return 12.0
	}
	return *c.TranslationGainPx
}

// GetVelocityGainPx returns the velocity_gain_px value or the default.
func (c *TuningConfig) GetVelocityGainPx() float64 {
	if c.VelocityGainPx == nil {
		return 40.0
	}
	return *c.VelocityGainPx
}

// GetRollingShutterGain returns the rolling_shutter_gain value or the default.
func (c *TuningConfig) GetRollingShutterGain() float64 {
	if c.RollingShutterGain == nil {
		return 0.005
	}
	return *c.RollingShutterGain
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1920
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 1080
	}
	return *c.FrameHeight
}

// GetMinUsableConfidence returns the min_usable_confidence value or the default.
func (c *TuningConfig) GetMinUsableConfidence() float64 {
	if c.MinUsableConfidence == nil {
		return 0.2
	}
	return *c.MinUsableConfidence
}

// GetAdaptiveHysteresis returns the adaptive_hysteresis value or the default.
// Zero keeps adaptive mode selection fully stateless.
func (c *TuningConfig) GetAdaptiveHysteresis() float64 {
	if c.AdaptiveHysteresis == nil {
		return 0
	}
	return *c.AdaptiveHysteresis
}

// GetMagStaleness parses and returns the mag_staleness value as a duration.
func (c *TuningConfig) GetMagStaleness() time.Duration {
	if c.MagStaleness == nil || *c.MagStaleness == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.MagStaleness)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
