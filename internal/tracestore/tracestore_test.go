package tracestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stabilize/internal/motion"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndSummarize(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	session := "session-1"
	transforms := []motion.FrameTransform{
		{TranslationX: 5, RotationAngle: -3, ScaleX: 1.05, ScaleY: 1.05, Confidence: 0.8},
		{TranslationY: -10, RotationAngle: 6, ScaleX: 1.05, ScaleY: 1.05, Confidence: 0.6},
		{ScaleX: 1, ScaleY: 1, Confidence: 0.0}, // identity frame
	}
	for i, tr := range transforms {
		err := store.RecordTransform(session, int64(i)*33_000_000, motion.ModeHandheld, 0.3, tr)
		require.NoError(t, err)
	}
	// Frames from other sessions must not leak into the summary.
	require.NoError(t, store.RecordTransform("session-2", 0, motion.ModeSports, 0.9,
		motion.FrameTransform{RotationAngle: 15, ScaleX: 1, ScaleY: 1, Confidence: 0.7}))

	summary, err := store.Summarize(session)
	require.NoError(t, err)

	assert.Equal(t, session, summary.SessionID)
	assert.Equal(t, 3, summary.FrameCount)
	assert.InDelta(t, (0.8+0.6+0.0)/3, summary.MeanConfidence, 1e-9)
	assert.InDelta(t, 6.0, summary.MaxAbsRotation, 1e-9)
	assert.InDelta(t, 0.3, summary.MeanMotionLevel, 1e-9)
	assert.InDelta(t, 1.0/3, summary.IdentityFraction, 1e-9)
}

func TestStore_SummarizeEmptySession(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	summary, err := store.Summarize("no-such-session")
	require.NoError(t, err)
	assert.Zero(t, summary.FrameCount)
	assert.Zero(t, summary.MeanConfidence)
}

func TestStore_OpenIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "traces.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordTransform("s", 1, motion.ModeOff, 0, motion.IdentityTransform()))
	require.NoError(t, store.Close())

	// Reopening an existing database must not fail on the schema.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	summary, err := store.Summarize("s")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FrameCount)
}
