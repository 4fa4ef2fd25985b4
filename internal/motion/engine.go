package motion

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/stabilize/internal/config"
	"github.com/banshee-data/stabilize/internal/monitoring"
)

// StabilizationConfig is the host-facing runtime configuration. It may change
// between frames; changes take effect on the next ComputeFrameTransform call.
type StabilizationConfig struct {
	Mode       Mode    `json:"mode"`
	Strength   float64 `json:"strength"`   // [0,1] correction aggressiveness
	Smoothness float64 `json:"smoothness"` // [0,1] EMA weight on the previous transform
	CropFactor float64 `json:"crop_factor"`

	EnableHorizonLeveling          bool `json:"enable_horizon_leveling"`
	EnableRollingShutterCorrection bool `json:"enable_rolling_shutter_correction"`

	// AdaptiveStrength scales the effective strength with the measured
	// motion level: gentle when still, stronger under shake.
	AdaptiveStrength bool `json:"adaptive_strength"`
}

// DefaultStabilizationConfig returns a general-purpose handheld profile.
func DefaultStabilizationConfig() StabilizationConfig {
	return StabilizationConfig{
		Mode:       ModeHandheld,
		Strength:   0.5,
		Smoothness: 0.5,
		CropFactor: 0.1,
	}
}

// clamped coerces out-of-range values into their valid ranges rather than
// rejecting the config. An unknown mode falls back to the handheld default.
func (c StabilizationConfig) clamped() StabilizationConfig {
	if !ValidMode(c.Mode) {
		c.Mode = ModeHandheld
	}
	c.Strength = clampUnit(c.Strength)
	c.Smoothness = clampUnit(c.Smoothness)
	c.CropFactor = clampUnit(c.CropFactor)
	return c
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SensorCapabilities declares which sensors the host can deliver. The
// gyroscope is mandatory; the engine degrades gracefully without the others.
type SensorCapabilities struct {
	Accelerometer bool
	Magnetometer  bool
}

// StabilizationStatus is a read-only diagnostic snapshot, safe to serialize.
type StabilizationStatus struct {
	Active        bool       `json:"active"`
	Mode          Mode       `json:"mode"`
	EffectiveMode Mode       `json:"effective_mode"`
	MotionLevel   float64    `json:"motion_level"`
	Effectiveness float64    `json:"effectiveness"`
	CropFactor    float64    `json:"crop_factor"`
	SessionID     string     `json:"session_id"`
	FusionMode    FusionMode `json:"fusion_mode"`
	SampleCount   int        `json:"sample_count"`
	FrameCount    int64      `json:"frame_count"`
}

// Engine is the sensor-fusion and stabilization core. It is constructed once
// by the host, handed to the sensor-callback registration and the video
// pipeline, and owns all mutable state — there are no package globals.
//
// Two execution contexts touch an Engine concurrently: the sensor-callback
// context (Deliver* methods) and the frame-processing context
// (ComputeFrameTransform, Status). The history buffer and filters guard their
// own state; the engine mutex covers configuration and the last-transform
// bookkeeping. No method blocks beyond a short critical section.
type Engine struct {
	mu sync.Mutex

	cfg       StabilizationConfig
	running   bool
	sessionID string

	history  *MotionHistory
	orient   *OrientationFilter
	trans    *TranslationEstimator
	adaptive *AdaptiveController
	calc     *Calculator

	fullScaleRate     float64
	minConfidence     float64
	magStalenessNanos int64

	latestAccel      Vec3
	haveAccel        bool
	latestMag        Vec3
	latestMagNanos   int64
	haveMag          bool

	lastTransform FrameTransform
	haveLast      bool
	lastCfgMode   Mode
	effectiveMode Mode
	lastLevel     float64
	frameCount    int64
}

// NewEngine builds an engine from tuning parameters. A nil tuning config uses
// all defaults. The engine starts stopped; call Start before delivering
// samples.
func NewEngine(tuning *config.TuningConfig) *Engine {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Engine{
		cfg: DefaultStabilizationConfig(),
		history: NewMotionHistory(tuning.GetHistoryCapacity()),
		orient: NewOrientationFilter(
			tuning.GetComplementaryAlpha(),
			tuning.GetGravityAlpha(),
			tuning.GetConfidenceVarianceGain(),
		),
		trans:    NewTranslationEstimator(tuning.GetProcessNoise()),
		adaptive: NewAdaptiveController(tuning.GetAdaptiveHysteresis()),
		calc: NewCalculator(CalculatorParams{
			FrameWidth:         float64(tuning.GetFrameWidth()),
			FrameHeight:        float64(tuning.GetFrameHeight()),
			RotationGainDeg:    tuning.GetRotationGainDeg(),
			TranslationGainPx:  tuning.GetTranslationGainPx(),
			VelocityGainPx:     tuning.GetVelocityGainPx(),
			RollingShutterGain: tuning.GetRollingShutterGain(),
		}),
		fullScaleRate:     tuning.GetFullScaleRateRads(),
		minConfidence:     tuning.GetMinUsableConfidence(),
		magStalenessNanos: tuning.GetMagStaleness().Nanoseconds(),
	}
}

// Start begins a stabilization session: fresh session ID, cleared buffers,
// reset filters. Missing sensors are logged once and degrade the fusion mode
// rather than failing.
func (e *Engine) Start(caps SensorCapabilities) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("stabilization engine already running")
	}
	e.running = true
	e.sessionID = uuid.NewString()
	e.haveAccel = false
	e.haveMag = false
	e.haveLast = false
	e.lastTransform = IdentityTransform()
	e.effectiveMode = ModeOff
	e.lastLevel = 0
	e.frameCount = 0
	sessionID := e.sessionID
	e.mu.Unlock()

	e.history.Clear()
	e.orient.Reset()
	e.trans.Reset()
	e.adaptive.Reset()

	if !caps.Magnetometer {
		e.orient.DisableMagnetometer()
	}
	if !caps.Accelerometer {
		monitoring.Once("engine-no-accel-"+sessionID,
			"engine: accelerometer unavailable, tilt reference and translation correction disabled")
	}
	return nil
}

// Stop ends the session: the host unregisters its sensor callbacks, and the
// engine drops all buffered state. There is no pending work to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.haveAccel = false
	e.haveMag = false
	e.haveLast = false
	e.mu.Unlock()

	e.history.Clear()
	e.orient.Reset()
	e.trans.Reset()
	e.adaptive.Reset()
}

// Running reports whether a session is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SetConfig replaces the runtime configuration. Out-of-range values clamp;
// the new config takes effect on the next frame.
func (e *Engine) SetConfig(cfg StabilizationConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.clamped()
}

// Config returns a copy of the current runtime configuration.
func (e *Engine) Config() StabilizationConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// DeliverGyroscope ingests one gyroscope sample (rad/s). Each gyro delivery
// also closes out a MotionSample combining the freshest accelerometer and
// magnetometer readings, and pushes it into the history buffer.
func (e *Engine) DeliverGyroscope(x, y, z float64, tsNanos int64) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	accel := e.latestAccel
	haveAccel := e.haveAccel
	mag := e.latestMag
	hasMag := e.haveMag && tsNanos-e.latestMagNanos <= e.magStalenessNanos
	sessionID := e.sessionID
	e.mu.Unlock()

	g := Vec3{x, y, z}
	e.orient.IntegrateGyro(g, tsNanos)

	if !haveAccel {
		monitoring.Once("ingest-no-accel-"+sessionID,
			"ingest: gyro samples arriving without accelerometer data, running gyro-only")
	}

	sample := MotionSample{
		TimestampNanos: tsNanos,
		Gyro:           g,
		Accel:          accel,
		HasMag:         hasMag,
	}
	if hasMag {
		sample.Mag = mag
	}
	e.history.Push(sample)
}

// DeliverAccelerometer ingests one accelerometer sample (m/s²). It refreshes
// the gravity low-pass filter and advances the translational estimator with
// the gravity-compensated residual.
func (e *Engine) DeliverAccelerometer(x, y, z float64, tsNanos int64) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.latestAccel = Vec3{x, y, z}
	e.haveAccel = true
	e.mu.Unlock()

	a := Vec3{x, y, z}
	e.orient.ObserveAccel(a)
	if gravity, ok := e.orient.Gravity(); ok {
		e.trans.Predict(a.Sub(gravity), tsNanos)
	}
}

// DeliverMagnetometer ingests one magnetometer sample (µT).
func (e *Engine) DeliverMagnetometer(x, y, z float64, tsNanos int64) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.latestMag = Vec3{x, y, z}
	e.latestMagNanos = tsNanos
	e.haveMag = true
	e.mu.Unlock()

	e.orient.ObserveMag(Vec3{x, y, z})
}

// ComputeFrameTransform derives the correction for the frame captured at the
// given timestamp. It is synchronous, non-blocking, and never fails: with
// fewer than two samples of history (or a stopped engine) it returns the
// identity transform with confidence zero immediately.
func (e *Engine) ComputeFrameTransform(frameTimestampNanos int64) FrameTransform {
	e.mu.Lock()
	cfg := e.cfg
	running := e.running
	e.mu.Unlock()

	samples := e.history.Recent(motionWindow)
	if !running || len(samples) < 2 {
		t := IdentityTransform()
		e.recordFrame(t, ModeOff, cfg.Mode, 0)
		return t
	}

	level := MotionLevel(samples, e.fullScaleRate)
	mode := cfg.Mode
	if mode == ModeAdaptive {
		mode = e.adaptive.Select(level)
	}

	effCfg := cfg
	if cfg.AdaptiveStrength {
		effCfg.Strength = clampUnit(cfg.Strength * (0.5 + 0.5*level))
	}

	orientEst := e.orient.Estimate()
	gravity, gravityOK := e.orient.Gravity()
	transState := e.trans.State()

	t := e.calc.Compute(mode, effCfg, samples, orientEst, transState, gravity, gravityOK)

	// Below the usable threshold the contract is a no-op frame: report the
	// low confidence but do not move pixels on unreliable data. The gated
	// frame bypasses smoothing and is recorded as-is, so the EMA cannot
	// re-emit the previous frame's correction here or carry it forward.
	if mode != ModeOff && t.Confidence < e.minConfidence {
		conf := t.Confidence
		t = IdentityTransform()
		t.Confidence = conf
		e.recordFrame(t, mode, cfg.Mode, level)
		return t
	}

	t = e.smoothAndRecord(t, mode, cfg, level)
	return t
}

// smoothAndRecord applies the smoothness EMA against the previous frame's
// transform and stores the result for status queries. Smoothing is skipped on
// the first frame after a mode change so no state from the prior derivation
// path leaks into the new one.
func (e *Engine) smoothAndRecord(t FrameTransform, mode Mode, cfg StabilizationConfig, level float64) FrameTransform {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := cfg.Smoothness
	if e.haveLast && s > 0 && mode != ModeOff && cfg.Mode == e.lastCfgMode {
		prev := e.lastTransform
		t.TranslationX = s*prev.TranslationX + (1-s)*t.TranslationX
		t.TranslationY = s*prev.TranslationY + (1-s)*t.TranslationY
		t.RotationAngle = s*prev.RotationAngle + (1-s)*t.RotationAngle
		t.ScaleX = s*prev.ScaleX + (1-s)*t.ScaleX
		t.ScaleY = s*prev.ScaleY + (1-s)*t.ScaleY
	}

	e.lastTransform = t
	e.haveLast = true
	e.lastCfgMode = cfg.Mode
	e.effectiveMode = mode
	e.lastLevel = level
	e.frameCount++
	return t
}

func (e *Engine) recordFrame(t FrameTransform, mode, cfgMode Mode, level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTransform = t
	e.haveLast = true
	e.lastCfgMode = cfgMode
	e.effectiveMode = mode
	e.lastLevel = level
	e.frameCount++
}

// LastTransform returns the most recently computed transform, if any.
func (e *Engine) LastTransform() (FrameTransform, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTransform, e.haveLast
}

// RecentSamples returns up to the last n motion samples, oldest first.
// Intended for diagnostics and charting.
func (e *Engine) RecentSamples(n int) []MotionSample {
	return e.history.Recent(n)
}

// Status returns a diagnostic snapshot. Safe to call from any goroutine.
func (e *Engine) Status() StabilizationStatus {
	e.mu.Lock()
	cfg := e.cfg
	running := e.running
	sessionID := e.sessionID
	effective := e.effectiveMode
	level := e.lastLevel
	last := e.lastTransform
	haveLast := e.haveLast
	frames := e.frameCount
	e.mu.Unlock()

	effectiveness := 0.0
	if running && haveLast {
		effectiveness = last.Confidence
	}
	return StabilizationStatus{
		Active:        running,
		Mode:          cfg.Mode,
		EffectiveMode: effective,
		MotionLevel:   level,
		Effectiveness: effectiveness,
		CropFactor:    cfg.CropFactor,
		SessionID:     sessionID,
		FusionMode:    e.orient.Mode(),
		SampleCount:   e.history.Len(),
		FrameCount:    frames,
	}
}
