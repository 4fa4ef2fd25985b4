package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCalculator() *Calculator {
	return NewCalculator(DefaultCalculatorParams())
}

func gyroSamples(n int, gyro Vec3) []MotionSample {
	out := make([]MotionSample, n)
	for i := range out {
		out[i] = MotionSample{TimestampNanos: int64(i), Gyro: gyro}
	}
	return out
}

func accelSamples(n int, accel Vec3) []MotionSample {
	out := make([]MotionSample, n)
	for i := range out {
		out[i] = MotionSample{TimestampNanos: int64(i), Accel: accel}
	}
	return out
}

func TestCalculator_OffModeIsIdentity(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeOff, Strength: 1, CropFactor: 0.5}
	tr := c.Compute(ModeOff, cfg, gyroSamples(10, Vec3{Z: 5}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	assert.True(t, tr.IsIdentity())
	assert.Equal(t, 1.0, tr.Confidence)
}

func TestCalculator_InsufficientSamplesIsIdentity(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeHandheld, Strength: 1}
	tr := c.Compute(ModeHandheld, cfg, gyroSamples(1, Vec3{Z: 5}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	assert.True(t, tr.IsIdentity())
	assert.Zero(t, tr.Confidence)
}

func TestCalculator_ElectronicCountersRotation(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeElectronic, Strength: 0.5}
	tr := c.Compute(ModeElectronic, cfg, gyroSamples(10, Vec3{Z: 1}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	// -avgGyroZ · strength · gain = -1 · 0.5 · 10
	assert.InDelta(t, -5.0, tr.RotationAngle, 1e-9)
	assert.Zero(t, tr.TranslationX)
	assert.Equal(t, electronicConfidence, tr.Confidence)
}

func TestCalculator_RotationBoundedInEveryMode(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	// Violent spin at full strength must never exceed the hard angle bound.
	samples := gyroSamples(10, Vec3{X: 40, Y: 40, Z: 100})
	for _, mode := range []Mode{ModeElectronic, ModeDigital, ModeHybrid,
		ModeCinematic, ModeSports, ModeWalking, ModeHandheld} {
		cfg := StabilizationConfig{Mode: mode, Strength: 1, CropFactor: 0.3,
			EnableHorizonLeveling: true, EnableRollingShutterCorrection: true}
		orient := OrientationEstimate{Roll: 1.5, Confidence: 1}
		tr := c.Compute(mode, cfg, samples, orient, TranslationalState{}, Vec3{Z: 9.81}, true)
		assert.LessOrEqual(t, math.Abs(tr.RotationAngle), MaxCorrectionAngleDeg, string(mode))
	}
}

func TestCalculator_TranslationBoundedByCropMargin(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeDigital, Strength: 1, CropFactor: 0.2}
	// Enormous lateral acceleration trend; gravity already removed.
	samples := accelSamples(10, Vec3{X: 50, Y: 50})
	tr := c.Compute(ModeDigital, cfg, samples, OrientationEstimate{}, TranslationalState{}, Vec3{}, true)

	assert.InDelta(t, -1920*0.2/2, tr.TranslationX, 1e-9)
	assert.InDelta(t, -1080*0.2/2, tr.TranslationY, 1e-9)
}

func TestCalculator_ZeroCropMeansZeroTranslation(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeDigital, Strength: 1, CropFactor: 0}
	samples := accelSamples(10, Vec3{X: 5})
	tr := c.Compute(ModeDigital, cfg, samples, OrientationEstimate{}, TranslationalState{}, Vec3{}, true)
	// No crop margin, no pixels to translate into.
	assert.Zero(t, tr.TranslationX)
	assert.Equal(t, 1.0, tr.ScaleX)
}

func TestCalculator_CropZoom(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeHandheld, Strength: 0, CropFactor: 0.2}
	tr := c.Compute(ModeHandheld, cfg, gyroSamples(10, Vec3{}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	want := 1.0 / (1.0 - 0.2*0.5)
	assert.InDelta(t, want, tr.ScaleX, 1e-9)
	assert.InDelta(t, want, tr.ScaleY, 1e-9)
}

func TestCalculator_HorizonLeveling(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeHandheld, Strength: 1, EnableHorizonLeveling: true}
	orient := OrientationEstimate{Roll: 0.1, Confidence: 1}
	tr := c.Compute(ModeHandheld, cfg, gyroSamples(10, Vec3{}), orient, TranslationalState{}, Vec3{}, false)
	assert.InDelta(t, -0.1*180/math.Pi, tr.RotationAngle, 1e-9)

	// A low-confidence roll estimate must barely move the frame.
	orient.Confidence = 0.1
	tr = c.Compute(ModeHandheld, cfg, gyroSamples(10, Vec3{}), orient, TranslationalState{}, Vec3{}, false)
	assert.InDelta(t, -0.1*180/math.Pi*0.1, tr.RotationAngle, 1e-9)
}

func TestCalculator_RollingShutterTrimCapped(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeHandheld, Strength: 1, EnableRollingShutterCorrection: true}
	// Pitch rate far beyond what the 2% trim cap absorbs.
	tr := c.Compute(ModeHandheld, cfg, gyroSamples(10, Vec3{X: 50}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	assert.InDelta(t, 1.02, tr.ScaleY, 1e-9)
	assert.Equal(t, 1.0, tr.ScaleX)
}

func TestCalculator_WalkingEmphasisesVertical(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeWalking, Strength: 1, CropFactor: 0.5}
	samples := accelSamples(10, Vec3{X: 1, Y: 1})
	tr := c.Compute(ModeWalking, cfg, samples, OrientationEstimate{}, TranslationalState{}, Vec3{}, true)
	assert.Greater(t, math.Abs(tr.TranslationY), math.Abs(tr.TranslationX))
	assert.Equal(t, walkingConfidence, tr.Confidence)
}

func TestCalculator_HybridCombinesPaths(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeHybrid, Strength: 1, CropFactor: 0.5}
	samples := make([]MotionSample, 10)
	for i := range samples {
		samples[i] = MotionSample{TimestampNanos: int64(i), Gyro: Vec3{Z: 0.5}, Accel: Vec3{X: 1}}
	}
	tr := c.Compute(ModeHybrid, cfg, samples, OrientationEstimate{}, TranslationalState{}, Vec3{}, true)
	assert.NotZero(t, tr.RotationAngle)
	assert.NotZero(t, tr.TranslationX)
	assert.InDelta(t, (electronicConfidence+digitalConfidence)/2, tr.Confidence, 1e-9)
}

func TestCalculator_GravityUnavailableDisablesTranslation(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: ModeDigital, Strength: 1, CropFactor: 0.5}
	samples := accelSamples(10, Vec3{X: 5})
	tr := c.Compute(ModeDigital, cfg, samples, OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	assert.Zero(t, tr.TranslationX, "without a gravity estimate the accel trend is unusable")
}

func TestCalculator_UnknownModeIsIdentity(t *testing.T) {
	t.Parallel()
	c := testCalculator()
	cfg := StabilizationConfig{Mode: Mode("bogus"), Strength: 1}
	tr := c.Compute(Mode("bogus"), cfg, gyroSamples(10, Vec3{Z: 1}), OrientationEstimate{}, TranslationalState{}, Vec3{}, false)
	assert.True(t, tr.IsIdentity())
}

func TestNewCalculator_ZeroParamsGetDefaults(t *testing.T) {
	t.Parallel()
	c := NewCalculator(CalculatorParams{})
	def := DefaultCalculatorParams()
	assert.Equal(t, def, c.params)
}
