package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	t.Parallel()
	c := EmptyTuningConfig()

	assert.Equal(t, 64, c.GetHistoryCapacity())
	assert.Equal(t, 0.98, c.GetComplementaryAlpha())
	assert.Equal(t, 0.8, c.GetGravityAlpha())
	assert.Equal(t, 4.0, c.GetConfidenceVarianceGain())
	assert.Equal(t, 1e-3, c.GetProcessNoise())
	assert.Equal(t, 6.0, c.GetFullScaleRateRads())
	assert.Equal(t, 10.0, c.GetRotationGainDeg())
	assert.Equal(t, 12.0, c.GetTranslationGainPx())
	assert.Equal(t, 40.0, c.GetVelocityGainPx())
	assert.Equal(t, 0.005, c.GetRollingShutterGain())
	assert.Equal(t, 1920, c.GetFrameWidth())
	assert.Equal(t, 1080, c.GetFrameHeight())
	assert.Equal(t, 0.2, c.GetMinUsableConfidence())
	assert.Equal(t, 0.0, c.GetAdaptiveHysteresis())
	assert.Equal(t, 500*time.Millisecond, c.GetMagStaleness())
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults for omitted fields", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{
			"complementary_alpha": 0.95,
			"history_capacity": 128,
			"mag_staleness": "250ms"
		}`)

		c, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 0.95, c.GetComplementaryAlpha())
		assert.Equal(t, 128, c.GetHistoryCapacity())
		assert.Equal(t, 250*time.Millisecond, c.GetMagStaleness())
		// Omitted fields fall back.
		assert.Equal(t, 0.8, c.GetGravityAlpha())
		assert.Equal(t, 1920, c.GetFrameWidth())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.yaml", `{}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{not json`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "parse config JSON")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"complementary_alpha": 1.5}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "complementary_alpha")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f64 := func(v float64) *float64 { return &v }
	iptr := func(v int) *int { return &v }
	sptr := func(v string) *string { return &v }

	cases := []struct {
		name    string
		cfg     TuningConfig
		wantErr string
	}{
		{"empty is valid", TuningConfig{}, ""},
		{"alpha too high", TuningConfig{ComplementaryAlpha: f64(1.1)}, "complementary_alpha"},
		{"gravity alpha negative", TuningConfig{GravityAlpha: f64(-0.1)}, "gravity_alpha"},
		{"confidence out of range", TuningConfig{MinUsableConfidence: f64(2)}, "min_usable_confidence"},
		{"history too small", TuningConfig{HistoryCapacity: iptr(1)}, "history_capacity"},
		{"frame width zero", TuningConfig{FrameWidth: iptr(0)}, "frame_width"},
		{"full scale negative", TuningConfig{FullScaleRateRads: f64(-1)}, "full_scale_rate_rads"},
		{"bad staleness", TuningConfig{MagStaleness: sptr("soon")}, "mag_staleness"},
		{"good staleness", TuningConfig{MagStaleness: sptr("1s")}, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestGetMagStaleness_UnparseableFallsBack(t *testing.T) {
	t.Parallel()
	bad := "whenever"
	c := TuningConfig{MagStaleness: &bad}
	assert.Equal(t, 500*time.Millisecond, c.GetMagStaleness())
}
