// Package system provides clock implementations for run timestamps.
package system

import "time"

// Clock implements snapshot.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock frozen at T, for reproducible runs and tests.
type Fixed struct {
	T time.Time
}

// Now returns the frozen time in UTC.
func (f Fixed) Now() time.Time {
	return f.T.UTC()
}
