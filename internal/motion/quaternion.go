package motion

import "math"

// Quaternion is a rotation in (w, x, y, z) component order. The orientation
// filter keeps its quaternion within a few eps of unit length; callers that
// construct quaternions by hand should Normalize before use.
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion returns the no-rotation quaternion.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Mul returns the Hamilton product q ⊗ o, composing o's rotation after q's.
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Norm returns the Euclidean norm of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns q scaled to unit length. A degenerate (near-zero)
// quaternion normalizes to identity rather than propagating NaNs.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n < 1e-12 {
		return IdentityQuaternion()
	}
	inv := 1.0 / n
	return Quaternion{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// minRotationRate is the angular rate (rad/s) below which an integration step
// is treated as no rotation. Avoids dividing by a vanishing axis norm.
const minRotationRate = 1e-9

// RotationFromRate builds the incremental rotation quaternion for angular
// velocity omega (rad/s) applied over dt seconds:
//
//	dq = [cos(|ω|dt/2), axis·sin(|ω|dt/2)]
//
// Returns identity when the rotation magnitude is negligible.
func RotationFromRate(omega Vec3, dt float64) Quaternion {
	rate := omega.Norm()
	if rate < minRotationRate || dt <= 0 {
		return IdentityQuaternion()
	}
	halfAngle := rate * dt * 0.5
	s := math.Sin(halfAngle) / rate
	return Quaternion{
		W: math.Cos(halfAngle),
		X: omega.X * s,
		Y: omega.Y * s,
		Z: omega.Z * s,
	}
}

// Euler decomposes q into ZYX Euler angles. Assumes q is (near) unit length.
// Output ranges: pitch [-π/2, π/2], roll and yaw (-π, π].
func (q Quaternion) Euler() (pitch, roll, yaw float64) {
	sinPitch := 2.0 * (q.W*q.Y - q.Z*q.X)
	// Coerce into asin's domain; exceeds ±1 only through rounding.
	if sinPitch > 1 {
		sinPitch = 1
	} else if sinPitch < -1 {
		sinPitch = -1
	}
	pitch = math.Asin(sinPitch)

	ySq := q.Y * q.Y
	yaw = math.Atan2(q.W*q.Z+q.X*q.Y, 0.5-(ySq+q.Z*q.Z))
	roll = math.Atan2(q.W*q.X+q.Y*q.Z, 0.5-(ySq+q.X*q.X))
	return pitch, roll, yaw
}

// wrapAngle normalizes a to (-π, π].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
