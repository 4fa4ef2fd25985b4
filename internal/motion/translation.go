package motion

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// stateDim is the translational state dimension: [x y z vx vy vz].
const stateDim = 6

// TranslationalState is a snapshot of the translational filter.
type TranslationalState struct {
	Position Vec3 // metres, integrated drift from session start
	Velocity Vec3 // m/s
	// Covariance is a 6x6 copy of the filter covariance, row/column order
	// matching [x y z vx vy vz].
	Covariance     *mat.Dense
	TimestampNanos int64
}

// TranslationEstimator is a linear Kalman filter over position and velocity
// driven by gravity-compensated linear acceleration.
//
// This is deliberately a predict-only filter: there is no absolute position
// sensor in the system, so no measurement/correction step runs and the state
// is an unconstrained double integrator. It serves as a smoothed short-term
// drift estimate for screen-space translation correction, not as position
// tracking; over long sessions the state drifts without bound and consumers
// must treat it as a relative trend.
type TranslationEstimator struct {
	mu sync.Mutex

	x *mat.VecDense // [x y z vx vy vz]
	p *mat.Dense    // covariance, 6x6

	processNoise float64 // Q diagonal, per second
	lastNanos    int64
}

// NewTranslationEstimator creates a filter with zero state and a modest
// initial covariance. processNoise is the per-second Q diagonal (≈1e-3).
func NewTranslationEstimator(processNoise float64) *TranslationEstimator {
	e := &TranslationEstimator{processNoise: processNoise}
	e.resetLocked()
	return e
}

func (e *TranslationEstimator) resetLocked() {
	e.x = mat.NewVecDense(stateDim, nil)
	p := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		p.Set(i, i, 1.0)
	}
	e.p = p
	e.lastNanos = 0
}

// Reset zeroes the filter state. Called on engine stop/start.
func (e *TranslationEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Predict advances the filter by one accelerometer sample. linAccel must
// already be gravity-compensated (raw accel minus the low-pass gravity
// estimate). The first sample only establishes the time base.
func (e *TranslationEstimator) Predict(linAccel Vec3, tsNanos int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastNanos == 0 || tsNanos <= e.lastNanos {
		e.lastNanos = tsNanos
		return
	}
	dt := float64(tsNanos-e.lastNanos) / 1e9
	if dt > maxIntegrationDt {
		dt = maxIntegrationDt
	}
	e.lastNanos = tsNanos

	// State: position += velocity·dt, velocity += accel·dt.
	for i := 0; i < 3; i++ {
		e.x.SetVec(i, e.x.AtVec(i)+e.x.AtVec(i+3)*dt)
	}
	e.x.SetVec(3, e.x.AtVec(3)+linAccel.X*dt)
	e.x.SetVec(4, e.x.AtVec(4)+linAccel.Y*dt)
	e.x.SetVec(5, e.x.AtVec(5)+linAccel.Z*dt)

	// Covariance: P = F·P·Fᵀ + Q·dt with the constant-velocity transition
	//   F = [I₃ dt·I₃; 0 I₃].
	f := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < 3; i++ {
		f.Set(i, i+3, dt)
	}
	var fp, fpft mat.Dense
	fp.Mul(f, e.p)
	fpft.Mul(&fp, f.T())
	for i := 0; i < stateDim; i++ {
		fpft.Set(i, i, fpft.At(i, i)+e.processNoise*dt)
	}
	e.p.Copy(&fpft)
}

// State returns a consistent snapshot of the filter.
func (e *TranslationEstimator) State() TranslationalState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TranslationalState{
		Position:       Vec3{e.x.AtVec(0), e.x.AtVec(1), e.x.AtVec(2)},
		Velocity:       Vec3{e.x.AtVec(3), e.x.AtVec(4), e.x.AtVec(5)},
		Covariance:     mat.DenseCopyOf(e.p),
		TimestampNanos: e.lastNanos,
	}
}
