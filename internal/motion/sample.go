package motion

import "math"

// Vec3 is a 3-axis sensor reading. Units depend on context: rad/s for
// gyroscope, m/s² for accelerometer, µT for magnetometer.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Norm returns the Euclidean magnitude of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// MotionSample is a single fused sensor reading. Samples are immutable once
// created; the ingest path builds one per gyroscope delivery by combining the
// most recent accelerometer (and, when fresh, magnetometer) readings.
type MotionSample struct {
	TimestampNanos int64

	Gyro  Vec3 // angular velocity, rad/s
	Accel Vec3 // specific force, m/s²
	Mag   Vec3 // magnetic field, µT (valid only when HasMag)

	// HasMag reports whether Mag carries a reading fresh enough to use for
	// heading. Magnetometer delivery rates are typically much lower than
	// gyro rates, so stale readings are dropped rather than reused forever.
	HasMag bool
}
