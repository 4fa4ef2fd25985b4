package main

import (
	"math"
	"testing"
	"time"
)

func TestFrameInterval(t *testing.T) {
	cases := []struct {
		fps     float64
		want    time.Duration
		wantErr bool
	}{
		{30, time.Second / 30, false},
		{60, time.Second / 60, false},
		{0.5, 2 * time.Second, false},
		{0, 0, true},
		{-24, 0, true},
		{math.NaN(), 0, true},
		{math.Inf(1), 0, true},
	}
	for _, tc := range cases {
		got, err := frameInterval(tc.fps)
		if tc.wantErr {
			if err == nil {
				t.Errorf("frameInterval(%v) expected error, got %v", tc.fps, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("frameInterval(%v) unexpected error: %v", tc.fps, err)
			continue
		}
		if got != tc.want {
			t.Errorf("frameInterval(%v) = %v, want %v", tc.fps, got, tc.want)
		}
	}
}
