package motion

import "math"

// MaxCorrectionAngleDeg bounds the rotation correction in every mode. A
// larger correction than this cannot be hidden by any sane crop margin, so it
// is a hard invariant rather than a tuning knob.
const MaxCorrectionAngleDeg = 15.0

// FrameTransform is the per-frame 2D correction handed to the video pipeline:
// translate by (TranslationX, TranslationY) pixels, rotate by RotationAngle
// degrees about the frame centre, scale by (ScaleX, ScaleY).
type FrameTransform struct {
	TranslationX  float64 `json:"translation_x"`
	TranslationY  float64 `json:"translation_y"`
	RotationAngle float64 `json:"rotation_angle"`
	ScaleX        float64 `json:"scale_x"`
	ScaleY        float64 `json:"scale_y"`
	Confidence    float64 `json:"confidence"`
}

// IdentityTransform returns the no-op transform with zero confidence.
func IdentityTransform() FrameTransform {
	return FrameTransform{ScaleX: 1, ScaleY: 1}
}

// IsIdentity reports whether t applies no geometric change.
func (t FrameTransform) IsIdentity() bool {
	return t.TranslationX == 0 && t.TranslationY == 0 &&
		t.RotationAngle == 0 && t.ScaleX == 1 && t.ScaleY == 1
}

// Per-mode baseline confidences. Electronic correction is well grounded in
// gyro data; digital translation is a heuristic stand-in for optical flow and
// trusts itself less.
const (
	electronicConfidence = 0.8
	digitalConfidence    = 0.6
	cinematicConfidence  = 0.9
	sportsConfidence     = 0.7
	walkingConfidence    = 0.7
	handheldConfidence   = 0.75
)

// CalculatorParams are the unit-conversion and bounding knobs for transform
// computation. Zero values are replaced with defaults by NewCalculator.
type CalculatorParams struct {
	FrameWidth  float64 // pixels
	FrameHeight float64 // pixels

	// RotationGainDeg converts (rad/s · strength) of average yaw-axis
	// angular velocity into degrees of counter-rotation.
	RotationGainDeg float64
	// TranslationGainPx converts m/s² of linear acceleration trend into
	// pixels of counter-translation.
	TranslationGainPx float64
	// VelocityGainPx converts m/s of estimated drift velocity into pixels
	// of counter-translation.
	VelocityGainPx float64
	// RollingShutterGain converts rad/s of pitch-axis angular velocity into
	// fractional vertical scale trim.
	RollingShutterGain float64
}

// DefaultCalculatorParams returns gains tuned for a 1080p frame.
func DefaultCalculatorParams() CalculatorParams {
	return CalculatorParams{
		FrameWidth:         1920,
		FrameHeight:        1080,
		RotationGainDeg:    10.0,
		TranslationGainPx:  12.0,
		VelocityGainPx:     40.0,
		RollingShutterGain: 0.005,
	}
}

// Calculator derives a bounded FrameTransform from recent motion. It is pure:
// all state (smoothing, adaptive profile memory) lives with the caller.
type Calculator struct {
	params CalculatorParams
}

// NewCalculator creates a calculator, filling zero params with defaults.
func NewCalculator(params CalculatorParams) *Calculator {
	def := DefaultCalculatorParams()
	if params.FrameWidth <= 0 {
		params.FrameWidth = def.FrameWidth
	}
	if params.FrameHeight <= 0 {
		params.FrameHeight = def.FrameHeight
	}
	if params.RotationGainDeg <= 0 {
		params.RotationGainDeg = def.RotationGainDeg
	}
	if params.TranslationGainPx <= 0 {
		params.TranslationGainPx = def.TranslationGainPx
	}
	if params.VelocityGainPx <= 0 {
		params.VelocityGainPx = def.VelocityGainPx
	}
	if params.RollingShutterGain <= 0 {
		params.RollingShutterGain = def.RollingShutterGain
	}
	return &Calculator{params: params}
}

// Compute derives the correction for one frame. mode must be a concrete
// profile (adaptive delegation happens in the engine). samples are the recent
// history window, oldest first; orient is the fused orientation snapshot;
// trans the translational drift snapshot; gravity the low-pass gravity
// estimate (ignored unless gravityOK).
//
// The result always satisfies |RotationAngle| ≤ MaxCorrectionAngleDeg and
// |translation| ≤ cropFactor·frameDim/2.
func (c *Calculator) Compute(
	mode Mode,
	cfg StabilizationConfig,
	samples []MotionSample,
	orient OrientationEstimate,
	trans TranslationalState,
	gravity Vec3,
	gravityOK bool,
) FrameTransform {
	if mode == ModeOff {
		t := IdentityTransform()
		t.Confidence = 1
		return t
	}
	if len(samples) < 2 {
		return IdentityTransform()
	}
	if n := len(samples); n > motionWindow {
		samples = samples[n-motionWindow:]
	}

	gyroAvg := averageGyro(samples)
	var linAvg Vec3
	if gravityOK {
		linAvg = averageLinearAccel(samples, gravity)
	}

	var t FrameTransform
	switch mode {
	case ModeElectronic:
		t = c.electronic(gyroAvg, cfg.Strength, 1.0, electronicConfidence)
	case ModeDigital:
		t = c.digital(linAvg, trans, cfg.Strength, 1.0, digitalConfidence)
	case ModeHybrid:
		rot := c.electronic(gyroAvg, cfg.Strength, 0.8, electronicConfidence)
		trn := c.digital(linAvg, trans, cfg.Strength, 0.6, digitalConfidence)
		t = FrameTransform{
			TranslationX:  trn.TranslationX,
			TranslationY:  trn.TranslationY,
			RotationAngle: rot.RotationAngle,
			ScaleX:        1,
			ScaleY:        1,
			Confidence:    (electronicConfidence + digitalConfidence) / 2,
		}
	case ModeCinematic:
		t = c.electronic(gyroAvg, cfg.Strength, 0.5, cinematicConfidence)
	case ModeSports:
		t = c.electronic(gyroAvg, cfg.Strength, 1.2, sportsConfidence)
	case ModeWalking:
		t = c.walking(gyroAvg, linAvg, trans, cfg.Strength)
	case ModeHandheld:
		t = c.electronic(gyroAvg, cfg.Strength, 1.0, handheldConfidence)
	default:
		return IdentityTransform()
	}

	if cfg.EnableHorizonLeveling {
		// Counter the fused roll so the horizon stays level. Weighted by
		// both strength and the orientation confidence: a drifting roll
		// estimate must not tilt the frame itself.
		t.RotationAngle += -orient.Roll * (180 / math.Pi) * cfg.Strength * orient.Confidence
	}
	if cfg.EnableRollingShutterCorrection {
		trim := math.Abs(gyroAvg.X) * c.params.RollingShutterGain * cfg.Strength
		if trim > 0.02 {
			trim = 0.02
		}
		t.ScaleY *= 1 + trim
	}

	// The crop margin absorbs the correction: zoom in by the crop factor and
	// bound translation to the pixels that margin actually provides.
	if cfg.CropFactor > 0 {
		zoom := 1.0 / (1.0 - cfg.CropFactor*0.5)
		t.ScaleX *= zoom
		t.ScaleY *= zoom
	}
	t.TranslationX = clamp(t.TranslationX, c.params.FrameWidth*cfg.CropFactor/2)
	t.TranslationY = clamp(t.TranslationY, c.params.FrameHeight*cfg.CropFactor/2)
	t.RotationAngle = clamp(t.RotationAngle, MaxCorrectionAngleDeg)

	return t
}

// electronic derives rotation correction from the average yaw-axis angular
// velocity: counter-rotate against the measured rate.
func (c *Calculator) electronic(gyroAvg Vec3, strength, scale, confidence float64) FrameTransform {
	t := IdentityTransform()
	t.RotationAngle = -gyroAvg.Z * strength * c.params.RotationGainDeg * scale
	t.Confidence = confidence
	return t
}

// digital derives translation correction from the high-pass acceleration
// trend plus the Kalman-smoothed drift velocity. This is the documented
// placeholder for optical-flow tracking, hence the lower confidence.
func (c *Calculator) digital(linAvg Vec3, trans TranslationalState, strength, scale, confidence float64) FrameTransform {
	t := IdentityTransform()
	t.TranslationX = -(linAvg.X*c.params.TranslationGainPx + trans.Velocity.X*c.params.VelocityGainPx) * strength * scale
	t.TranslationY = -(linAvg.Y*c.params.TranslationGainPx + trans.Velocity.Y*c.params.VelocityGainPx) * strength * scale
	t.Confidence = confidence
	return t
}

// walking emphasises vertical bounce: full-weight vertical translation from
// the acceleration trend plus partial rotation correction.
func (c *Calculator) walking(gyroAvg, linAvg Vec3, trans TranslationalState, strength float64) FrameTransform {
	t := IdentityTransform()
	t.TranslationY = -(linAvg.Y*c.params.TranslationGainPx*1.5 + trans.Velocity.Y*c.params.VelocityGainPx) * strength
	t.TranslationX = -linAvg.X * c.params.TranslationGainPx * 0.5 * strength
	t.RotationAngle = -gyroAvg.Z * strength * c.params.RotationGainDeg * 0.6
	t.Confidence = walkingConfidence
	return t
}

func averageGyro(samples []MotionSample) Vec3 {
	var sum Vec3
	for _, s := range samples {
		sum = sum.Add(s.Gyro)
	}
	return sum.Scale(1 / float64(len(samples)))
}

// averageLinearAccel is the high-pass acceleration trend: raw accelerometer
// minus the low-pass gravity estimate, averaged over the window.
func averageLinearAccel(samples []MotionSample, gravity Vec3) Vec3 {
	var sum Vec3
	for _, s := range samples {
		sum = sum.Add(s.Accel.Sub(gravity))
	}
	return sum.Scale(1 / float64(len(samples)))
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
