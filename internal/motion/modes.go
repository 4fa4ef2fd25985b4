package motion

import (
	"math"
	"sync"
)

// Mode selects the stabilization policy used to derive the frame transform.
type Mode string

const (
	// ModeOff disables correction; the engine emits identity transforms.
	ModeOff Mode = "off"
	// ModeElectronic corrects rotation from gyro data only (EIS).
	ModeElectronic Mode = "electronic"
	// ModeDigital corrects translation from the acceleration trend. This
	// stands in for an optical-flow estimator; see the calculator notes.
	ModeDigital Mode = "digital"
	// ModeHybrid combines electronic rotation with digital translation.
	ModeHybrid Mode = "hybrid"
	// ModeCinematic is a gentle electronic profile favouring smoothness.
	ModeCinematic Mode = "cinematic"
	// ModeSports is an aggressive electronic profile for high motion.
	ModeSports Mode = "sports"
	// ModeWalking emphasises vertical bounce correction.
	ModeWalking Mode = "walking"
	// ModeHandheld is the general-purpose default electronic profile.
	ModeHandheld Mode = "handheld"
	// ModeAdaptive delegates to Sports/Handheld/Cinematic/Off from the
	// current motion level.
	ModeAdaptive Mode = "adaptive"
)

// ValidMode reports whether m names a known stabilization mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeOff, ModeElectronic, ModeDigital, ModeHybrid, ModeCinematic,
		ModeSports, ModeWalking, ModeHandheld, ModeAdaptive:
		return true
	}
	return false
}

// motionWindow is the number of recent samples feeding the motion level and
// the per-mode correction averages.
const motionWindow = 10

// Adaptive policy thresholds on the normalized motion level.
const (
	adaptiveSportsLevel    = 0.8
	adaptiveHandheldLevel  = 0.4
	adaptiveCinematicLevel = 0.1
)

// MotionLevel summarizes recent angular velocity as the RMS gyro magnitude
// over the last motionWindow samples, normalized against fullScaleRate and
// clamped to [0, 1]. An empty sample set reads as zero motion.
func MotionLevel(samples []MotionSample, fullScaleRate float64) float64 {
	if len(samples) == 0 || fullScaleRate <= 0 {
		return 0
	}
	n := len(samples)
	if n > motionWindow {
		samples = samples[n-motionWindow:]
	}
	var sumSq float64
	for _, s := range samples {
		m := s.Gyro.Norm()
		sumSq += m * m
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	level := rms / fullScaleRate
	if level > 1 {
		level = 1
	}
	return level
}

// AdaptiveController maps a motion level to a concrete stabilization profile.
// The policy itself is stateless re-evaluation per frame; an optional
// hysteresis margin keeps the previous profile when the level sits within the
// margin of a threshold, damping mode flapping near boundaries.
type AdaptiveController struct {
	mu         sync.Mutex
	hysteresis float64
	last       Mode
}

// NewAdaptiveController creates a controller. hysteresis is the threshold
// margin in motion-level units; zero reproduces pure stateless selection.
func NewAdaptiveController(hysteresis float64) *AdaptiveController {
	if hysteresis < 0 {
		hysteresis = 0
	}
	return &AdaptiveController{hysteresis: hysteresis}
}

// Select returns the profile for the given motion level: Sports above 0.8,
// Handheld above 0.4, Cinematic above 0.1, otherwise Off (no correction
// needed while effectively still).
func (c *AdaptiveController) Select(level float64) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := profileForLevel(level)
	if c.hysteresis > 0 && c.last != "" && mode != c.last {
		// Stick with the previous profile unless the level has cleared the
		// boundary by more than the margin in the direction of the change.
		lo, hi := profileRange(c.last)
		if level >= lo-c.hysteresis && level <= hi+c.hysteresis {
			mode = c.last
		}
	}
	c.last = mode
	return mode
}

// Reset forgets the previously selected profile.
func (c *AdaptiveController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = ""
}

func profileForLevel(level float64) Mode {
	switch {
	case level > adaptiveSportsLevel:
		return ModeSports
	case level > adaptiveHandheldLevel:
		return ModeHandheld
	case level > adaptiveCinematicLevel:
		return ModeCinematic
	default:
		return ModeOff
	}
}

// profileRange returns the motion-level interval that selects the given
// profile under the stateless policy.
func profileRange(m Mode) (lo, hi float64) {
	switch m {
	case ModeSports:
		return adaptiveSportsLevel, 1
	case ModeHandheld:
		return adaptiveHandheldLevel, adaptiveSportsLevel
	case ModeCinematic:
		return adaptiveCinematicLevel, adaptiveHandheldLevel
	default:
		return 0, adaptiveCinematicLevel
	}
}
