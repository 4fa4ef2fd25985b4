// Package tracestore persists per-frame stabilization transforms to SQLite
// for offline analysis. The engine itself holds no persisted state; this is
// diagnostic tooling layered on top of it.
package tracestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/stabilize/internal/motion"
)

// Store records frame transforms keyed by session.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the trace database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS frame_transforms (
			session_id TEXT NOT NULL,
			ts_nanos BIGINT NOT NULL,
			mode TEXT NOT NULL,
			motion_level DOUBLE NOT NULL,
			translation_x DOUBLE NOT NULL,
			translation_y DOUBLE NOT NULL,
			rotation_angle DOUBLE NOT NULL,
			scale_x DOUBLE NOT NULL,
			scale_y DOUBLE NOT NULL,
			confidence DOUBLE NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_frame_transforms_session
			ON frame_transforms(session_id, ts_nanos);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trace schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTransform appends one frame's transform.
func (s *Store) RecordTransform(sessionID string, tsNanos int64, mode motion.Mode, motionLevel float64, t motion.FrameTransform) error {
	_, err := s.db.Exec(`
		INSERT INTO frame_transforms
			(session_id, ts_nanos, mode, motion_level,
			 translation_x, translation_y, rotation_angle, scale_x, scale_y, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, tsNanos, string(mode), motionLevel,
		t.TranslationX, t.TranslationY, t.RotationAngle, t.ScaleX, t.ScaleY, t.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to record transform: %w", err)
	}
	return nil
}

// SessionSummary aggregates a recorded session.
type SessionSummary struct {
	SessionID        string
	FrameCount       int
	MeanConfidence   float64
	MaxAbsRotation   float64
	MeanMotionLevel  float64
	IdentityFraction float64 // fraction of frames with no geometric correction
}

// Summarize computes aggregate statistics for one session.
func (s *Store) Summarize(sessionID string) (SessionSummary, error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(AVG(confidence), 0),
			COALESCE(MAX(ABS(rotation_angle)), 0),
			COALESCE(AVG(motion_level), 0),
			COALESCE(AVG(CASE WHEN translation_x = 0 AND translation_y = 0
				AND rotation_angle = 0 AND scale_x = 1 AND scale_y = 1
				THEN 1.0 ELSE 0.0 END), 0)
		FROM frame_transforms WHERE session_id = ?`, sessionID)

	summary := SessionSummary{SessionID: sessionID}
	err := row.Scan(
		&summary.FrameCount,
		&summary.MeanConfidence,
		&summary.MaxAbsRotation,
		&summary.MeanMotionLevel,
		&summary.IdentityFraction,
	)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("failed to summarize session: %w", err)
	}
	return summary, nil
}
