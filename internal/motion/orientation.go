package motion

import (
	"math"
	"sync"

	"github.com/banshee-data/stabilize/internal/monitoring"
)

// FusionMode identifies which absolute references the orientation filter can
// fold into its estimate.
type FusionMode string

const (
	// FusionFull blends gyro integration with accelerometer tilt and
	// tilt-compensated magnetometer heading.
	FusionFull FusionMode = "full"
	// FusionGyroAccel is the degraded mode without a magnetometer: yaw is
	// gyro-only and drifts without bound, so the confidence ceiling drops.
	FusionGyroAccel FusionMode = "gyro-accel"
)

// Confidence ceiling applied in FusionGyroAccel mode. Yaw drift makes the
// estimate permanently less trustworthy without a heading reference.
const gyroAccelConfidenceCeiling = 0.7

// Quaternion norm housekeeping thresholds.
const (
	// Renormalize when the norm strays this far from 1. Cheap enough to do
	// every step, but skipping the sqrt when within tolerance keeps the hot
	// path lean.
	normDriftTolerance = 1e-3
	// Beyond this the integration inputs are suspect (sensor malfunction,
	// wild timestamps); logged once per session.
	normDriftWarnThreshold = 0.1
)

// Clamp on per-step integration time. Protects the quaternion and the gravity
// filter from schedule hiccups where a sensor callback arrives seconds late.
const maxIntegrationDt = 0.1 // seconds

// gyroWindowSize is the number of recent gyro magnitudes kept for the
// confidence variance window.
const gyroWindowSize = 16

// OrientationEstimate is an immutable snapshot of the fused orientation.
type OrientationEstimate struct {
	Pitch, Roll, Yaw float64 // radians
	Confidence       float64 // [0, 1]
	TimestampNanos   int64
	Mode             FusionMode
}

// OrientationFilter fuses gyroscope integration with accelerometer (and
// optionally magnetometer) absolute references via a complementary filter.
//
// All mutation happens on the sensor-callback context; Estimate() may be
// called concurrently from the frame-processing context and returns a
// consistent copy taken under the lock.
type OrientationFilter struct {
	mu sync.RWMutex

	q             Quaternion
	fused         [3]float64 // pitch, roll, yaw
	lastGyroNanos int64

	gravity     Vec3
	gravitySet  bool
	absTiltSet  bool
	absPitch    float64
	absRoll     float64
	absYaw      float64
	absYawValid bool

	mode FusionMode

	alpha        float64 // complementary filter weight on the gyro path
	gravityAlpha float64 // low-pass weight on the previous gravity estimate
	varianceGain float64 // scales motion variance into confidence loss

	// Rolling window of recent gyro magnitudes for the confidence variance.
	gyroMags [gyroWindowSize]float64
	gyroIdx  int
	gyroN    int

	confidence float64
}

// NewOrientationFilter creates a filter in the degraded gyro+accel mode; the
// first magnetometer observation promotes it to full fusion. Alpha is the
// complementary weight (≈0.98), gravityAlpha the accelerometer low-pass weight
// (≈0.8), varianceGain the confidence roll-off factor.
func NewOrientationFilter(alpha, gravityAlpha, varianceGain float64) *OrientationFilter {
	return &OrientationFilter{
		q:            IdentityQuaternion(),
		mode:         FusionGyroAccel,
		alpha:        alpha,
		gravityAlpha: gravityAlpha,
		varianceGain: varianceGain,
	}
}

// Reset returns the filter to its initial state. The fusion mode is retained:
// a sensor that existed before still exists.
func (f *OrientationFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.q = IdentityQuaternion()
	f.fused = [3]float64{}
	f.lastGyroNanos = 0
	f.gravity = Vec3{}
	f.gravitySet = false
	f.absTiltSet = false
	f.absYawValid = false
	f.gyroIdx = 0
	f.gyroN = 0
	f.confidence = 0
}

// DisableMagnetometer pins the filter to gyro+accel fusion for the session.
// Called when the host declares the magnetometer unavailable at start; logs
// once per process.
func (f *OrientationFilter) DisableMagnetometer() {
	f.mu.Lock()
	f.mode = FusionGyroAccel
	f.absYawValid = false
	f.mu.Unlock()
	monitoring.Once("orientation-no-mag",
		"orientation: magnetometer unavailable, yaw will drift (confidence ceiling %.2f)",
		gyroAccelConfidenceCeiling)
}

// IntegrateGyro advances the quaternion by one gyroscope sample and refreshes
// the fused Euler estimate and confidence.
func (f *OrientationFilter) IntegrateGyro(omega Vec3, tsNanos int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var dt float64
	if f.lastGyroNanos > 0 && tsNanos > f.lastGyroNanos {
		dt = float64(tsNanos-f.lastGyroNanos) / 1e9
		if dt > maxIntegrationDt {
			dt = maxIntegrationDt
		}
	}
	f.lastGyroNanos = tsNanos

	prevPitch, prevRoll, prevYaw := f.q.Euler()
	if dt > 0 {
		f.q = f.q.Mul(RotationFromRate(omega, dt))
		f.renormalizeLocked()
	}
	pitch, roll, yaw := f.q.Euler()

	// Advance the fused estimate by this step's gyro increment, then apply
	// the complementary correction toward the absolute references. The
	// correction is incremental, so the estimate converges onto the
	// references over time instead of tracking a fixed offset from the
	// gyro-only path.
	pitchF := wrapAngle(f.fused[0] + wrapAngle(pitch-prevPitch))
	rollF := wrapAngle(f.fused[1] + wrapAngle(roll-prevRoll))
	yawF := wrapAngle(f.fused[2] + wrapAngle(yaw-prevYaw))
	if f.absTiltSet {
		pitchF = blendAngle(pitchF, f.absPitch, f.alpha)
		rollF = blendAngle(rollF, f.absRoll, f.alpha)
	}
	if f.mode == FusionFull && f.absYawValid {
		yawF = blendAngle(yawF, f.absYaw, f.alpha)
	}
	f.fused[0] = pitchF
	f.fused[1] = rollF
	f.fused[2] = yawF

	f.pushGyroMagLocked(omega.Norm())
	f.confidence = f.confidenceLocked()
}

// ObserveAccel folds an accelerometer sample into the gravity low-pass filter
// and refreshes the absolute tilt reference.
func (f *OrientationFilter) ObserveAccel(accel Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.gravitySet {
		f.gravity = accel
		f.gravitySet = true
	} else {
		a := f.gravityAlpha
		f.gravity = f.gravity.Scale(a).Add(accel.Scale(1 - a))
	}

	g := f.gravity
	if g.Norm() < 1e-6 {
		return // free-fall or garbage; keep the previous reference
	}
	f.absRoll = math.Atan2(g.Y, g.Z)
	f.absPitch = math.Atan2(-g.X, math.Sqrt(g.Y*g.Y+g.Z*g.Z))
	f.absTiltSet = true
}

// ObserveMag folds a magnetometer sample into the tilt-compensated heading
// reference and promotes the filter to full fusion.
func (f *OrientationFilter) ObserveMag(mag Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.absTiltSet {
		return // heading needs a tilt reference first
	}
	if mag.Norm() < 1e-6 {
		return
	}

	sinP, cosP := math.Sincos(f.absPitch)
	sinR, cosR := math.Sincos(f.absRoll)

	// Rotate the field into the horizontal plane before taking the heading.
	mx := mag.X*cosP + mag.Z*sinP
	my := mag.X*sinR*sinP + mag.Y*cosR - mag.Z*sinR*cosP
	if math.Abs(mx) < 1e-9 && math.Abs(my) < 1e-9 {
		return // field collinear with gravity; heading undefined
	}
	f.absYaw = math.Atan2(-my, mx)
	f.absYawValid = true
	f.mode = FusionFull
}

// Gravity returns the current low-pass gravity estimate and whether one has
// been established yet.
func (f *OrientationFilter) Gravity() (Vec3, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gravity, f.gravitySet
}

// Mode returns the current fusion mode.
func (f *OrientationFilter) Mode() FusionMode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mode
}

// Estimate returns a consistent snapshot of the fused orientation.
func (f *OrientationFilter) Estimate() OrientationEstimate {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return OrientationEstimate{
		Pitch:          f.fused[0],
		Roll:           f.fused[1],
		Yaw:            f.fused[2],
		Confidence:     f.confidence,
		TimestampNanos: f.lastGyroNanos,
		Mode:           f.mode,
	}
}

// renormalizeLocked restores the quaternion to unit length when numerical
// drift exceeds tolerance. Requires f.mu held.
func (f *OrientationFilter) renormalizeLocked() {
	drift := math.Abs(f.q.Norm() - 1)
	if drift <= normDriftTolerance {
		return
	}
	if drift > normDriftWarnThreshold {
		monitoring.Once("orientation-norm-drift",
			"orientation: quaternion norm drifted by %.4f, check gyro health", drift)
	}
	f.q = f.q.Normalize()
}

func (f *OrientationFilter) pushGyroMagLocked(mag float64) {
	f.gyroMags[f.gyroIdx] = mag
	f.gyroIdx = (f.gyroIdx + 1) % gyroWindowSize
	if f.gyroN < gyroWindowSize {
		f.gyroN++
	}
}

// confidenceLocked maps the variance of recent gyro magnitudes into [0, 1]:
// steadier motion means a more trustworthy estimate. Requires f.mu held.
func (f *OrientationFilter) confidenceLocked() float64 {
	if f.gyroN < 2 {
		return 0
	}
	var mean float64
	for i := 0; i < f.gyroN; i++ {
		mean += f.gyroMags[i]
	}
	mean /= float64(f.gyroN)
	var variance float64
	for i := 0; i < f.gyroN; i++ {
		d := f.gyroMags[i] - mean
		variance += d * d
	}
	variance /= float64(f.gyroN)

	conf := 1.0 / (1.0 + f.varianceGain*variance)
	if f.mode != FusionFull && conf > gyroAccelConfidenceCeiling {
		conf = gyroAccelConfidenceCeiling
	}
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return conf
}

// blendAngle applies the complementary filter to a single Euler axis, taking
// the shortest angular path toward the absolute reference:
// result = gyro + (1-alpha)·wrap(absolute - gyro).
func blendAngle(gyro, absolute, alpha float64) float64 {
	return wrapAngle(gyro + (1-alpha)*wrapAngle(absolute-gyro))
}
