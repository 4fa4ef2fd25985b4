package motion

import (
	"math"
	"testing"
)

func TestRotationFromRate_QuarterTurn(t *testing.T) {
	// π/2 rad/s about Z for one second should yaw by 90°.
	q := IdentityQuaternion()
	const steps = 100
	omega := Vec3{Z: math.Pi / 2}
	for i := 0; i < steps; i++ {
		q = q.Mul(RotationFromRate(omega, 1.0/steps))
	}
	_, _, yaw := q.Euler()
	if math.Abs(yaw-math.Pi/2) > 1e-9 {
		t.Errorf("yaw = %v, want %v", yaw, math.Pi/2)
	}
}

func TestRotationFromRate_NegligibleRate(t *testing.T) {
	q := RotationFromRate(Vec3{X: 1e-12}, 0.01)
	if q != IdentityQuaternion() {
		t.Errorf("near-zero rate should produce identity, got %+v", q)
	}
	q = RotationFromRate(Vec3{X: 1}, 0)
	if q != IdentityQuaternion() {
		t.Errorf("zero dt should produce identity, got %+v", q)
	}
}

func TestQuaternion_NormStableOverLongIntegration(t *testing.T) {
	// 10k varied integration steps must keep the norm within [0.999, 1.001]
	// without any explicit renormalization.
	q := IdentityQuaternion()
	for i := 0; i < 10000; i++ {
		omega := Vec3{
			X: math.Sin(float64(i) * 0.013),
			Y: math.Cos(float64(i) * 0.007),
			Z: 0.5 * math.Sin(float64(i)*0.003),
		}
		q = q.Mul(RotationFromRate(omega, 0.01))
	}
	n := q.Norm()
	if n < 0.999 || n > 1.001 {
		t.Errorf("norm after 10k steps = %v, want within [0.999, 1.001]", n)
	}
}

func TestQuaternion_NormalizeDegenerate(t *testing.T) {
	q := Quaternion{}.Normalize()
	if q != IdentityQuaternion() {
		t.Errorf("zero quaternion should normalize to identity, got %+v", q)
	}
}

func TestQuaternion_EulerRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		omega Vec3
		dt    float64
		check func(pitch, roll, yaw float64) bool
	}{
		{"roll only", Vec3{X: 1}, 0.5, func(p, r, y float64) bool {
			return math.Abs(r-0.5) < 1e-9 && math.Abs(p) < 1e-9 && math.Abs(y) < 1e-9
		}},
		{"pitch only", Vec3{Y: 1}, 0.3, func(p, r, y float64) bool {
			return math.Abs(p-0.3) < 1e-9 && math.Abs(r) < 1e-9 && math.Abs(y) < 1e-9
		}},
		{"yaw only", Vec3{Z: -1}, 0.7, func(p, r, y float64) bool {
			return math.Abs(y+0.7) < 1e-9 && math.Abs(p) < 1e-9 && math.Abs(r) < 1e-9
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := RotationFromRate(tc.omega, tc.dt)
			p, r, y := q.Euler()
			if !tc.check(p, r, y) {
				t.Errorf("euler = (%v, %v, %v)", p, r, y)
			}
		})
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4 * math.Pi, 0},
	}
	for _, tc := range cases {
		if got := wrapAngle(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("wrapAngle(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
