package monitoring

import (
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
// Replacing the logger also resets the Once suppression set so redirected
// output sees one-shot messages again.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
	} else {
		Logf = f
	}
	onceKeys = sync.Map{}
}

var onceKeys sync.Map

// Once logs through Logf at most one time per key for the lifetime of the
// process (or until the logger is replaced). Used for conditions that hold
// for an entire session — a missing sensor, a misbehaving gyro — where
// repeating the message at sensor rate would drown the log.
func Once(key, format string, v ...interface{}) {
	if _, seen := onceKeys.LoadOrStore(key, struct{}{}); seen {
		return
	}
	Logf(format, v...)
}
