// Package timeutil provides helpers for constructing time.Duration values
// from integer counts without duration-by-duration arithmetic.
package timeutil

import "time"

// FromMillis converts a non-negative millisecond count to time.Duration.
// Negative inputs return 0.
func FromMillis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * int64(time.Millisecond))
}

// FromSeconds converts a non-negative second count to time.Duration.
// Negative inputs return 0.
func FromSeconds(s int64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * int64(time.Second))
}
