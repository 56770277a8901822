// Package monitoring carries the package-level log indirection used by the
// calibration core. Extraction and footprint code report per-object events
// (off-detector sources, partial orders, skipped region updates) through
// Logf and Warnf so tests and batch tools can redirect or mute them.
package monitoring

import "log"

// Logf is the informational logger. Defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf is the warning logger. Defaults to log.Printf with a WARN prefix.
var Warnf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	log.Printf("WARN: "+format, v...)
}

// SetLogger replaces both loggers with f. Passing nil installs no-op
// loggers; tests use this to silence per-object extraction chatter.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		noop := func(string, ...interface{}) {}
		Logf = noop
		Warnf = noop
		return
	}
	Logf = f
	Warnf = f
}
